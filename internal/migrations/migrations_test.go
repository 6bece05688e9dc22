package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrationsOrdersByVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"V10__reports.sql", "V2__deliveries.sql", "seed.sql", "V1__init.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "V3__dir.sql"), 0o755))

	migs, err := listMigrations(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(migs))
	for _, mig := range migs {
		names = append(names, mig.Name)
	}
	assert.Equal(t, []string{"V1__init.sql", "V2__deliveries.sql", "V10__reports.sql", "seed.sql"}, names)
	assert.Equal(t, "10", migs[2].Version)
	assert.Equal(t, "", migs[3].Version)
}

func TestParseVersion(t *testing.T) {
	cases := map[string]string{
		"V1__init.sql":    "1",
		"V007__codes.sql": "007",
		"v1__lower.sql":   "",
		"V1-missing.sql":  "",
		"init.sql":        "",
	}
	for name, want := range cases {
		assert.Equal(t, want, parseVersion(name), name)
	}
	n, ok := parseVersionNumber("V007__codes.sql")
	assert.True(t, ok)
	assert.Equal(t, 7, n)
}

func TestRepositoryMigrationsAreVersioned(t *testing.T) {
	migs, err := listMigrations(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	for _, mig := range migs {
		_, ok := parseVersionNumber(mig.Name)
		assert.True(t, ok, mig.Name)
	}
}
