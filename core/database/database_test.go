package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dialogbot/migrations"
)

func TestConfigDSNAndURL(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss", Name: "dialog"}

	assert.Equal(t, "user=bot password=p@ss host=db port=5432 dbname=dialog sslmode=disable", cfg.DSN())
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/dialog?sslmode=disable", cfg.URL())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.URL(), "sslmode=require")
	assert.Equal(t, "migrations", cfg.migrationsDir())
}

func TestMigrationFileSelection(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_quiz_results_index.up.sql",
		"000001_quiz_results.up.sql",
		"000001_quiz_results.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	files := upFiles(os.DirFS(dir))
	require.Equal(t, []string{"000001_quiz_results.up.sql", "000002_quiz_results_index.up.sql"}, files)

	assert.Equal(t, uint64(2), fileVersion(files[1]))
	assert.Len(t, appliedBetween(files, 0, 2), 2)
	assert.Equal(t, []string{"000002_quiz_results_index.up.sql"}, appliedBetween(files, 1, 2))
	assert.Empty(t, appliedBetween(files, 2, 2))
}

func TestEmbeddedMigrations(t *testing.T) {
	files := upFiles(migrations.Source(""))
	require.NotEmpty(t, files)
	assert.Equal(t, "000001_quiz_results.up.sql", files[0])
}
