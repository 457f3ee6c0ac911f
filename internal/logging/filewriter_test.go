package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmmcquay/chess-arbiter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "SF_stderr.txt")

	fw, err := NewFileWriter(path, 10, 2, 1)
	require.NoError(t, err)

	_, err = fw.Write([]byte("first\n"))
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	fw, err = NewFileWriter(path, 10, 2, 1)
	require.NoError(t, err)
	_, err = fw.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestFileWriterRotatesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbiter.log")

	fw, err := NewFileWriter(path, 1, 1, 0)
	require.NoError(t, err)
	defer fw.Close()

	chunk := []byte(strings.Repeat("x", 600*1024))
	for i := 0; i < 4; i++ {
		_, err := fw.Write(chunk)
		require.NoError(t, err)
	}

	backups, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.Len(t, backups, 1, "only maxBackups backups should survive")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(1024*1024))
}

func TestFileWriterWriteAfterClose(t *testing.T) {
	fw, err := NewFileWriter(filepath.Join(t.TempDir(), "x.log"), 1, 1, 1)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	_, err = fw.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, fw.Close())
}

func TestNewLoggerFromConfigWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbiter.log")
	var stderr bytes.Buffer

	logger, closer := NewLoggerFromConfig(&Config{
		Level:   "info",
		Format:  FormatJSON,
		Service: "chess-arbiter",
		Version: "test",
		File:    &config.FileConfig{Enabled: true, Path: path, MaxSize: 1},
		Output:  &stderr,
	})
	require.NotNil(t, closer)

	logger.Info("game started", "game", "abc")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "game started")
	assert.Contains(t, stderr.String(), "game started")
}

func TestNewLoggerFromConfigTextWithoutFile(t *testing.T) {
	var out bytes.Buffer
	logger, closer := NewLoggerFromConfig(&Config{Level: "debug", Format: FormatText, Prefix: "[t] ", Output: &out})
	assert.Nil(t, closer)

	logger.Debug("hello")
	assert.Contains(t, out.String(), "[t] ")
	assert.Contains(t, out.String(), "[DEBUG] hello")
}
