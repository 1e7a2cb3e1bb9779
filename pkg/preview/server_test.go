package preview

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
)

func TestServerServesProjectRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0o644))

	s := New(logr.Discard(), dir, "127.0.0.1", 0)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.True(t, strings.HasPrefix(s.URL(), "http://"))

	resp, err := http.Get(s.GetFileURL("index.html"))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "<h1>hi</h1>", string(body))
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(logr.Discard(), t.TempDir(), "127.0.0.1", 0)
	s.Stop()
	require.NoError(t, s.Start())
	s.Stop()
	s.Stop()
	require.False(t, s.Listening())
}
