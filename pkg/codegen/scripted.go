package codegen

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Scripted applies patch plans and generation briefs as direct file writes,
// with no LLM call of its own. It completes in subseconds and is the
// default Code-Generation Adapter for OpenHandsMode "mock" (see
// pkg/config.Config.OpenHandsMode).
//
// Grounded on the path-safety checks and backup-before-overwrite discipline
// of the teacher's falcon_write.go.
type Scripted struct{}

// NewScripted returns a ready-to-use Scripted adapter; it holds no state.
func NewScripted() *Scripted { return &Scripted{} }

// fileBlockPattern extracts `### relative/path.ext` headers followed by a
// fenced code block from a detailed-requirements brief. C7's brief is plain
// prose by default; when the Planner or a caller instead hands Scripted a
// brief already broken into per-file sections (the convention this
// implementation standardizes on for the no-LLM path), GenerateCode honors
// it verbatim instead of guessing at content.
var fileBlockPattern = regexp.MustCompile(`(?m)^###\s+(\S+)\s*\n` + "```[a-zA-Z0-9]*\\n([\\s\\S]*?)\\n```")

// GenerateCode writes each `### path` / fenced-block pair found in
// detailedRequirements into workspacePath. A brief with no such sections
// produces a single scaffold file (index.html) carrying the raw brief, so
// Scripted mode never fails outright on free-form input.
func (s *Scripted) GenerateCode(task, workspacePath, detailedRequirements string) (GenerateResult, error) {
	matches := fileBlockPattern.FindAllStringSubmatch(detailedRequirements, -1)

	var written []string
	if len(matches) == 0 {
		full, err := resolveInWorkspace(workspacePath, "index.html")
		if err != nil {
			return GenerateResult{}, err
		}
		if err := writeWithBackup(full, []byte(scaffoldHTML(task, detailedRequirements))); err != nil {
			return GenerateResult{}, fmt.Errorf("codegen: scripted scaffold: %w", err)
		}
		return GenerateResult{FilesGenerated: []string{"index.html"}}, nil
	}

	for _, m := range matches {
		relPath := strings.TrimSpace(m[1])
		content := m[2]
		full, err := resolveInWorkspace(workspacePath, relPath)
		if err != nil {
			return GenerateResult{}, err
		}
		if err := writeWithBackup(full, []byte(content)); err != nil {
			return GenerateResult{}, fmt.Errorf("codegen: scripted write %s: %w", relPath, err)
		}
		written = append(written, relPath)
	}

	return GenerateResult{FilesGenerated: written}, nil
}

// ApplyPatchPlan performs every FileChange in plan.Files in order: create
// and modify write content (full overwrite, or literal find/replace when
// Find or Replace is set), delete removes the file. A modify entry with no
// Content, Find or Replace is a natural-language hint: it leaves the file
// untouched and is not reported as modified. All targets are backed up
// before being overwritten, never before being deleted.
func (s *Scripted) ApplyPatchPlan(workspacePath string, plan PatchPlan) (ApplyResult, error) {
	start := time.Now()
	var modified []string

	for _, fc := range plan.Files {
		full, err := resolveInWorkspace(workspacePath, fc.Path)
		if err != nil {
			return ApplyResult{Success: false, Error: err.Error(), DurationSeconds: elapsedSeconds(start)}, nil
		}

		switch fc.Action {
		case ActionDelete:
			if err := removeIfExists(full); err != nil {
				return ApplyResult{Success: false, Error: err.Error(), DurationSeconds: elapsedSeconds(start)}, nil
			}
		case ActionCreate, ActionModify:
			if fc.Action == ActionModify && fc.Content == "" && fc.Find == "" && fc.Replace == "" {
				continue
			}
			content, err := resolveContent(full, fc)
			if err != nil {
				return ApplyResult{Success: false, Error: err.Error(), DurationSeconds: elapsedSeconds(start)}, nil
			}
			if err := writeWithBackup(full, []byte(content)); err != nil {
				return ApplyResult{Success: false, Error: err.Error(), DurationSeconds: elapsedSeconds(start)}, nil
			}
		default:
			return ApplyResult{Success: false, Error: fmt.Sprintf("codegen: unknown file action %q", fc.Action), DurationSeconds: elapsedSeconds(start)}, nil
		}

		modified = append(modified, fc.Path)
	}

	return ApplyResult{Success: true, FilesModified: modified, DurationSeconds: elapsedSeconds(start)}, nil
}

func resolveContent(fullPath string, fc FileChange) (string, error) {
	if fc.Find == "" && fc.Replace == "" {
		return fc.Content, nil
	}
	existing, err := readExisting(fullPath)
	if err != nil {
		return "", err
	}
	if !strings.Contains(existing, fc.Find) {
		return "", fmt.Errorf("codegen: find/replace target %q not present in %s", fc.Find, fc.Path)
	}
	return strings.Replace(existing, fc.Find, fc.Replace, 1), nil
}

func scaffoldHTML(task, requirements string) string {
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<main>
<h1>%s</h1>
<pre>%s</pre>
</main>
</body>
</html>
`, task, task, requirements)
}
