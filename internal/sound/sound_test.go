//go:build !ci

package sound

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_SilentWithoutCues(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"empty dir":    "",
		"missing dir":  filepath.Join(t.TempDir(), "missing"),
		"no cue files": t.TempDir(),
	} {
		t.Run(name, func(t *testing.T) {
			p := NewPlayer(dir)
			require.NoError(t, p.Load())
			assert.False(t, p.Active())
			p.Play(CuePrivate)
		})
	}
}

func TestDecodeDir_SkipsUnsupportedAndBrokenFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "private.wav"), []byte("not a wav"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "join.MP3"), []byte("not an mp3"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.wav"), 0o750))

	cues, err := decodeDir(dir)
	require.NoError(t, err)
	assert.Empty(t, cues)
}

func TestDecodeDir_UnreadableDir(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := decodeDir(file)
	assert.Error(t, err)
}
