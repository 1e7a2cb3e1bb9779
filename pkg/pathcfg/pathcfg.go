// Package pathcfg resolves the canonical directory roots (C1: Path
// Configuration) and enforces the write boundary the rest of the system
// relies on: the core never writes outside PROJECT_ROOT.
//
// Grounded on the teacher's ValidatePathWithinWorkDir
// (falcon: pkg/core/tools/shared/pathutil.go), generalized from a single
// work-dir check into named roots plus a process-wide singleton with an
// explicit Reset for tests.
package pathcfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/yknld/geminiloop/pkg/errkind"
)

const (
	defaultProjectDirName = "project"
	siteDirName           = "site"
)

// Roots holds the resolved canonical directories for one process.
type Roots struct {
	WorkspaceRoot string
	ProjectRoot   string
	SiteRoot      string
	PreviewHost   string
	PreviewPort   int
}

var (
	mu      sync.RWMutex
	current *Roots
)

// Options configures root resolution; all fields are optional overrides of
// the documented environment-driven defaults (spec §4.1, §6).
type Options struct {
	WorkspaceRootOverride string
	ProjectDirName        string
	PreviewHost           string
	PreviewPort           int
}

// candidateWorkspaceRoots lists, in priority order, the directories C1 will
// accept as WORKSPACE_ROOT: an explicit override, then the documented
// container conventions, then the process's current directory.
func candidateWorkspaceRoots(override string) []string {
	var candidates []string
	if override != "" {
		candidates = append(candidates, override)
	}
	if env := os.Getenv("WORKSPACE_ROOT"); env != "" {
		candidates = append(candidates, env)
	}
	candidates = append(candidates, "/workspace", "/root/workspace")
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, cwd)
	}
	return candidates
}

// Init resolves and creates the canonical roots, installing them as the
// process-wide singleton, and returns them. Init is idempotent-safe to call
// again with Reset in between (tests use this to get a fresh sandbox).
func Init(opts Options) (*Roots, error) {
	mu.Lock()
	defer mu.Unlock()

	projectDirName := opts.ProjectDirName
	if projectDirName == "" {
		projectDirName = defaultProjectDirName
	}

	var workspaceRoot string
	for _, cand := range candidateWorkspaceRoots(opts.WorkspaceRootOverride) {
		if cand == "" {
			continue
		}
		if dirExistsOrCreatable(cand) {
			workspaceRoot = cand
			break
		}
	}
	if workspaceRoot == "" {
		return nil, fmt.Errorf("pathcfg: no usable workspace root among candidates")
	}
	if err := os.MkdirAll(workspaceRoot, 0o755); err != nil {
		return nil, fmt.Errorf("pathcfg: create workspace root: %w", err)
	}

	absWorkspace, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("pathcfg: resolve workspace root: %w", err)
	}

	host := opts.PreviewHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.PreviewPort
	if port == 0 {
		port = 8000
	}

	roots := &Roots{
		WorkspaceRoot: absWorkspace,
		ProjectRoot:   filepath.Join(absWorkspace, projectDirName),
		SiteRoot:      filepath.Join(absWorkspace, siteDirName),
		PreviewHost:   host,
		PreviewPort:   port,
	}

	if err := os.MkdirAll(roots.ProjectRoot, 0o755); err != nil {
		return nil, fmt.Errorf("pathcfg: create project root: %w", err)
	}
	if err := os.MkdirAll(roots.SiteRoot, 0o755); err != nil {
		return nil, fmt.Errorf("pathcfg: create site root: %w", err)
	}

	current = roots
	return roots, nil
}

// Reset clears the process-wide singleton. Tests call this between cases so
// Init can be called freely without cross-test leakage.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = nil
}

// Current returns the active singleton, or nil if Init has not run.
func Current() *Roots {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func dirExistsOrCreatable(path string) bool {
	info, err := os.Stat(path)
	if err == nil {
		return info.IsDir()
	}
	if !os.IsNotExist(err) {
		return false
	}
	// Creatable: parent exists and is writable-ish (best effort — MkdirAll
	// will surface the real error at Init time if this guess is wrong).
	parent := filepath.Dir(path)
	parentInfo, err := os.Stat(parent)
	return err == nil && parentInfo.IsDir()
}

// SafePathJoin resolves parts relative to ProjectRoot and fails with
// errkind.PathEscape if the result is not a prefix-relative descendant of
// ProjectRoot.
func (r *Roots) SafePathJoin(parts ...string) (string, error) {
	joined := filepath.Join(append([]string{r.ProjectRoot}, parts...)...)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("pathcfg: resolve path: %w", err)
	}
	if !r.isWithinProject(abs) {
		return "", &errkind.PathEscape{Path: abs, Boundary: r.ProjectRoot}
	}
	return abs, nil
}

// ValidatePathInProject reports whether path is a descendant of ProjectRoot,
// without raising.
func (r *Roots) ValidatePathInProject(path string) bool {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.ProjectRoot, abs)
	}
	abs, err := filepath.Abs(abs)
	if err != nil {
		return false
	}
	return r.isWithinProject(abs)
}

func (r *Roots) isWithinProject(absPath string) bool {
	absProject, err := filepath.Abs(r.ProjectRoot)
	if err != nil {
		return false
	}
	withSep := absProject
	if !strings.HasSuffix(withSep, string(filepath.Separator)) {
		withSep += string(filepath.Separator)
	}
	return absPath == absProject || strings.HasPrefix(absPath, withSep)
}

// LogStartupInfo emits a single human-readable block listing the resolved
// roots, preview binding, current working directory, and the project root's
// top-level contents — grounded on the teacher's startup banner idiom in
// pkg/core/init.go.
func (r *Roots) LogStartupInfo(log logr.Logger) {
	cwd, _ := os.Getwd()
	entries, _ := os.ReadDir(r.ProjectRoot)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	log.Info("geminiloop path configuration",
		"workspace_root", r.WorkspaceRoot,
		"project_root", r.ProjectRoot,
		"site_root", r.SiteRoot,
		"preview_addr", fmt.Sprintf("%s:%d", r.PreviewHost, r.PreviewPort),
		"cwd", cwd,
		"project_root_contents", names,
	)
}
