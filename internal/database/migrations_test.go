package database

import (
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_indexes.sql":         {Data: []byte("CREATE INDEX ...;")},
		"001_processing_runs.sql": {Data: []byte("CREATE TABLE ...;")},
		"README.md":               {Data: []byte("notes")},
	}

	pending, err := PendingMigrations(fsys, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_processing_runs.sql", "002_indexes.sql"}, pending)

	pending, err = PendingMigrations(fsys, map[string]bool{"001_processing_runs.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_indexes.sql"}, pending)
}

func TestShippedMigrations(t *testing.T) {
	pending, err := PendingMigrations(os.DirFS("../../migrations"), nil)
	require.NoError(t, err)
	assert.Contains(t, pending, "001_processing_runs.sql")
}
