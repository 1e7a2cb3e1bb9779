package codegen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScriptedGenerateCodeWithFileBlocks(t *testing.T) {
	dir := t.TempDir()
	s := NewScripted()

	brief := "### index.html\n```html\n<h1>hi</h1>\n```\n\n### css/site.css\n```css\nbody { margin: 0; }\n```\n"
	result, err := s.GenerateCode("build a page", dir, brief)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"index.html", "css/site.css"}, result.FilesGenerated)

	content, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	require.Equal(t, "<h1>hi</h1>", string(content))
}

func TestScriptedGenerateCodeFallsBackToScaffold(t *testing.T) {
	dir := t.TempDir()
	s := NewScripted()

	result, err := s.GenerateCode("build a page", dir, "just some free-form prose, no sections")
	require.NoError(t, err)
	require.Equal(t, []string{"index.html"}, result.FilesGenerated)
	require.FileExists(t, filepath.Join(dir, "index.html"))
}

func TestScriptedGenerateCodeRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	s := NewScripted()

	brief := "### ../../etc/passwd\n```\nmalicious\n```\n"
	_, err := s.GenerateCode("task", dir, brief)
	require.Error(t, err)
}

func TestScriptedApplyPatchPlanModifyCreateDelete(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>old</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gone.txt"), []byte("bye"), 0o644))

	s := NewScripted()
	plan := PatchPlan{
		Instructions: "fix heading and add about page",
		Files: []FileChange{
			{Path: "index.html", Action: ActionModify, Find: "old", Replace: "new"},
			{Path: "about.html", Action: ActionCreate, Content: "<h1>about</h1>"},
			{Path: "gone.txt", Action: ActionDelete},
		},
	}

	result, err := s.ApplyPatchPlan(dir, plan)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.ElementsMatch(t, []string{"index.html", "about.html", "gone.txt"}, result.FilesModified)

	updated, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	require.Equal(t, "<h1>new</h1>", string(updated))
	require.FileExists(t, filepath.Join(dir, "index.html")+".bak")
	require.NoFileExists(t, filepath.Join(dir, "gone.txt"))
}

func TestScriptedApplyPatchPlanFindNotPresentFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>old</h1>"), 0o644))

	s := NewScripted()
	plan := PatchPlan{Files: []FileChange{
		{Path: "index.html", Action: ActionModify, Find: "not-there", Replace: "x"},
	}}

	result, err := s.ApplyPatchPlan(dir, plan)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)
}
