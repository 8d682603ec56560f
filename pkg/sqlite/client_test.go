package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.db")
	c, err := Open(context.Background(), path, true)
	require.NoError(t, err)
	defer c.Close()

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)

	var mode string
	require.NoError(t, c.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "", false)
	assert.Error(t, err)
}

func TestCloseNilDB(t *testing.T) {
	assert.NoError(t, (&Client{}).Close())
}
