package deliver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nedladdningar")
	d, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, root, d.Dir())
	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewRejectsEmptyRoot(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestDeliverWritesFile(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, d.Deliver("backup.json", "application/json", []byte(`{"ok":true}`)))

	got, err := os.ReadFile(filepath.Join(d.Dir(), "backup.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(got))
}

func TestDeliverOverwritesExisting(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, d.Deliver("f.json", "application/json", []byte("gammal")))
	require.NoError(t, d.Deliver("f.json", "application/json", []byte("ny")))

	got, err := os.ReadFile(filepath.Join(d.Dir(), "f.json"))
	require.NoError(t, err)
	assert.Equal(t, "ny", string(got))
}

func TestDeliverNeverEscapesRoot(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)
	cases := []struct{ suggested, written string }{
		{"../../etc/passwd", "passwd"},
		{"..\\..\\windows\\boot.ini", "boot.ini"},
		{"/absolut/väg.json", "väg.json"},
		{"..", "fil"},
	}
	for _, tc := range cases {
		require.NoError(t, d.Deliver(tc.suggested, "application/json", []byte("x")))
		_, err := os.Stat(filepath.Join(d.Dir(), tc.written))
		assert.NoError(t, err, "suggested %q must land as %q", tc.suggested, tc.written)
	}
	entries, err := os.ReadDir(d.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, len(cases))
}
