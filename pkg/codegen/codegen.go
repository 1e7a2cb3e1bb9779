// Package codegen implements C8 (Code-Generation Adapter): a uniform
// interface over the external agentic code-editing backend, with two
// selectable implementations (Scripted, Delegated).
//
// Grounded on the teacher's path-safety-enforced writer/reader
// (pkg/core/tools/shared/falcon_write.go, falcon_read.go) for the Scripted
// backend's boundary checks and backup discipline, and on the
// daydemir-ralph executor's subprocess wall-clock-timeout pattern
// (other_examples/) for the Delegated backend.
package codegen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yknld/geminiloop/pkg/errkind"
)

// Mode selects a Code-Generation Adapter implementation.
type Mode string

const (
	ModeScripted  Mode = "scripted"
	ModeDelegated Mode = "delegated"
)

// FileAction is the kind of change a PatchPlan entry requests.
type FileAction string

const (
	ActionModify FileAction = "modify"
	ActionCreate FileAction = "create"
	ActionDelete FileAction = "delete"
)

// FileChange is one file-level entry of a PatchPlan (see pkg/patchplanner).
type FileChange struct {
	Path        string     `json:"path"`
	Action      FileAction `json:"action"`
	Description string     `json:"description"`
	Changes     []string   `json:"changes"`

	// Content, when set, fully replaces the file (used for create and for
	// modify entries where the Scripted backend has full new content
	// rather than a find/replace pair).
	Content string `json:"content,omitempty"`
	// Find/Replace, when both set, perform one literal substring
	// substitution rather than a full overwrite.
	Find    string `json:"find,omitempty"`
	Replace string `json:"replace,omitempty"`
}

// PatchPlan is C9's output, consumed by apply_patch_plan.
type PatchPlan struct {
	Instructions                string       `json:"instructions"`
	Files                       []FileChange `json:"files"`
	OriginalScore               int          `json:"original_score"`
	IssuesCount                 int          `json:"issues_count"`
	FixSuggestionsFromEvaluator []string     `json:"fix_suggestions_from_evaluator"`
}

// GenerateResult is generate_code's return value.
type GenerateResult struct {
	FilesGenerated []string `json:"files_generated"`
}

// ApplyResult is apply_patch_plan's return value.
type ApplyResult struct {
	Success         bool     `json:"success"`
	FilesModified   []string `json:"files_modified"`
	Error           string   `json:"error,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// Adapter is the uniform interface C11 drives; Scripted and Delegated both
// satisfy it.
type Adapter interface {
	GenerateCode(task, workspacePath, detailedRequirements string) (GenerateResult, error)
	ApplyPatchPlan(workspacePath string, plan PatchPlan) (ApplyResult, error)
}

// resolveInWorkspace enforces the invariant that every written file lies
// inside workspacePath, the same boundary discipline as pkg/pathcfg but
// scoped to an arbitrary workspace directory rather than the process-wide
// PROJECT_ROOT singleton.
func resolveInWorkspace(workspacePath, relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return "", &errkind.PathEscape{Path: relPath, Boundary: workspacePath}
	}
	if strings.Contains(relPath, "..") {
		return "", &errkind.PathEscape{Path: relPath, Boundary: workspacePath}
	}

	absWorkspace, err := filepath.Abs(workspacePath)
	if err != nil {
		return "", fmt.Errorf("codegen: resolve workspace: %w", err)
	}
	full := filepath.Join(absWorkspace, relPath)
	rel, err := filepath.Rel(absWorkspace, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", &errkind.PathEscape{Path: relPath, Boundary: absWorkspace}
	}
	return full, nil
}

// backupSuffix names the Scripted backend's pre-overwrite backup file.
const backupSuffix = ".bak"

func writeWithBackup(fullPath string, content []byte) error {
	if _, err := os.Stat(fullPath); err == nil {
		existing, readErr := os.ReadFile(fullPath)
		if readErr == nil {
			_ = os.WriteFile(fullPath+backupSuffix, existing, 0o644)
		}
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("codegen: create parent dir: %w", err)
	}
	return os.WriteFile(fullPath, content, 0o644)
}

func elapsedSeconds(start time.Time) float64 {
	return time.Since(start).Seconds()
}

func readExisting(fullPath string) (string, error) {
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("codegen: read %s: %w", filepath.Base(fullPath), err)
	}
	return string(data), nil
}

func removeIfExists(fullPath string) error {
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("codegen: remove %s: %w", filepath.Base(fullPath), err)
	}
	return nil
}

// walkRegularFiles lists regular files under root, relative to root,
// silently skipping unreadable entries — the "capture workspace state"
// invariant from spec §4.8.
func walkRegularFiles(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries, don't abort the walk
		}
		if info.IsDir() {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("codegen: walk workspace: %w", err)
	}
	return out, nil
}
