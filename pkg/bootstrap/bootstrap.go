// Package bootstrap implements C3 (Template Bootstrap): optionally
// populating PROJECT_ROOT from a git template at run start.
//
// No teacher file clones git repos; grounded on the teacher's
// subprocess-invocation idiom in pkg/core/tools/search.go (exec.Command,
// captured output, graceful fallback on non-zero exit), applied here to
// `git clone --depth=1 --single-branch` and to the init-script probe.
package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/yknld/geminiloop/pkg/errkind"
	"github.com/yknld/geminiloop/pkg/pathcfg"
)

// DefaultRef is used when Options.Ref is empty.
const DefaultRef = "main"

// cloneTimeout and initTimeout bound the two subprocess phases (spec §4.3
// steps 4 and 6), each a hard wall-clock ceiling rather than a soft hint.
const cloneTimeout = 5 * time.Minute
const initTimeout = 5 * time.Minute

// initScriptCandidates is probed in order; the first one present is run.
var initScriptCandidates = []string{"init.sh", "bootstrap.sh", "setup.sh"}

// Options configures one bootstrap run (spec §4.3 inputs).
type Options struct {
	RepoURL        string
	Ref            string
	ProjectDirName string
	RunInit        bool
	PublishToSite  bool
}

// Result is returned to C11 for the run manifest.
type Result struct {
	Enabled    bool   `json:"enabled"`
	Success    bool   `json:"success"`
	FilesCount int    `json:"files_count"`
	RepoURL    string `json:"repo_url,omitempty"`
	Ref        string `json:"ref,omitempty"`
	CommitSHA  string `json:"commit_sha,omitempty"`
	InitOutput string `json:"init_output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Run executes the Template Bootstrap sequence against roots.
func Run(ctx context.Context, roots *pathcfg.Roots, opts Options, log logr.Logger) (Result, error) {
	if strings.TrimSpace(opts.RepoURL) == "" {
		return Result{Enabled: false}, nil
	}

	ref := opts.Ref
	if ref == "" {
		ref = DefaultRef
	}

	if rel, err := filepath.Rel(roots.WorkspaceRoot, roots.ProjectRoot); err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Result{}, &errkind.PathEscape{Path: roots.ProjectRoot, Boundary: roots.WorkspaceRoot}
	}

	if err := os.RemoveAll(roots.ProjectRoot); err != nil {
		return Result{}, fmt.Errorf("bootstrap: clear project root: %w", err)
	}
	if err := os.MkdirAll(roots.ProjectRoot, 0o755); err != nil {
		return Result{}, fmt.Errorf("bootstrap: recreate project root: %w", err)
	}

	result := Result{Enabled: true, RepoURL: opts.RepoURL, Ref: ref}

	if err := shallowClone(ctx, opts.RepoURL, ref, roots.ProjectRoot, log); err != nil {
		result.Error = err.Error()
		return result, err
	}

	if sha, err := commitSHA(ctx, roots.ProjectRoot); err == nil {
		result.CommitSHA = sha
		log.Info("template bootstrap cloned", "repo_url", opts.RepoURL, "ref", ref, "commit", sha)
	}

	if opts.RunInit {
		output, err := runInitScript(ctx, roots.ProjectRoot)
		result.InitOutput = output
		if err != nil {
			// spec §4.3 step 6: non-zero exit is a warning, not an abort.
			log.Info("bootstrap init script exited non-zero", "error", err.Error())
		}
	}

	if opts.PublishToSite {
		if err := mirrorToSite(roots.ProjectRoot, roots.SiteRoot); err != nil {
			result.Error = err.Error()
			return result, err
		}
	}

	count, _ := countFiles(roots.ProjectRoot)
	result.FilesCount = count
	result.Success = true
	return result, nil
}

func shallowClone(ctx context.Context, repoURL, ref, dest string, log logr.Logger) error {
	cloneCtx, cancel := context.WithTimeout(ctx, cloneTimeout)
	defer cancel()

	operation := func() error {
		cmd := exec.CommandContext(cloneCtx, "git", "clone", "--depth=1", "--single-branch", "--branch", ref, repoURL, dest)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			if cloneCtx.Err() == context.DeadlineExceeded {
				return backoff.Permanent(&errkind.Timeout{Op: "git clone", Cause: cloneCtx.Err()})
			}
			return fmt.Errorf("git clone failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), cloneCtx)
	if err := backoff.Retry(operation, bo); err != nil {
		log.Info("template clone failed", "repo_url", repoURL, "ref", ref, "error", err.Error())
		return &errkind.TransportError{Cause: err}
	}
	return nil
}

func commitSHA(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func runInitScript(ctx context.Context, dir string) (string, error) {
	var scriptPath string
	for _, candidate := range initScriptCandidates {
		p := filepath.Join(dir, candidate)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			scriptPath = p
			break
		}
	}
	if scriptPath == "" {
		return "", nil
	}

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	cmd := exec.CommandContext(initCtx, "sh", scriptPath)
	cmd.Dir = dir
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()
	output := combined.String()
	if err != nil {
		if initCtx.Err() == context.DeadlineExceeded {
			return output, &errkind.Timeout{Op: "init script", Cause: initCtx.Err()}
		}
		return output, fmt.Errorf("init script %s: %w", filepath.Base(scriptPath), err)
	}
	return output, nil
}

// mirrorToSite copies projectRoot into siteRoot, replacing its previous
// contents (spec §4.3 step 7: "mirror PROJECT_ROOT -> SITE_ROOT").
func mirrorToSite(projectRoot, siteRoot string) error {
	if err := os.RemoveAll(siteRoot); err != nil {
		return fmt.Errorf("bootstrap: clear site root: %w", err)
	}
	if err := os.MkdirAll(siteRoot, 0o755); err != nil {
		return fmt.Errorf("bootstrap: recreate site root: %w", err)
	}

	return filepath.Walk(projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(projectRoot, path)
		if relErr != nil || rel == "." {
			return nil
		}
		dest := filepath.Join(siteRoot, rel)
		if info.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dest, data, info.Mode().Perm())
	})
}

func countFiles(root string) (int, error) {
	count := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			count++
		}
		return nil
	})
	return count, err
}
