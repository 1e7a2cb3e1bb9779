package pathcfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yknld/geminiloop/pkg/errkind"
)

func TestInitCreatesRoots(t *testing.T) {
	t.Cleanup(Reset)
	base := t.TempDir()

	roots, err := Init(Options{WorkspaceRootOverride: base, ProjectDirName: "project"})
	require.NoError(t, err)
	require.DirExists(t, roots.ProjectRoot)
	require.DirExists(t, roots.SiteRoot)
	require.Equal(t, roots, Current())
}

func TestSafePathJoinRejectsEscape(t *testing.T) {
	t.Cleanup(Reset)
	roots, err := Init(Options{WorkspaceRootOverride: t.TempDir()})
	require.NoError(t, err)

	_, err = roots.SafePathJoin("..", "..", "etc", "passwd")
	require.Error(t, err)
	var pathEscape *errkind.PathEscape
	require.ErrorAs(t, err, &pathEscape)
}

func TestSafePathJoinAllowsDescendant(t *testing.T) {
	t.Cleanup(Reset)
	roots, err := Init(Options{WorkspaceRootOverride: t.TempDir()})
	require.NoError(t, err)

	p, err := roots.SafePathJoin("index.html")
	require.NoError(t, err)
	require.True(t, roots.ValidatePathInProject(p))
}

func TestValidatePathInProjectRejectsOutside(t *testing.T) {
	t.Cleanup(Reset)
	roots, err := Init(Options{WorkspaceRootOverride: t.TempDir()})
	require.NoError(t, err)

	require.False(t, roots.ValidatePathInProject("/etc/passwd"))
}
