package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/cafe?sslmode=disable", migrationURL("postgres://u:p@localhost:5432/cafe?sslmode=disable"))
	require.Equal(t, "pgx5://localhost/cafe", migrationURL("postgresql://localhost/cafe"))
	require.Equal(t, "pgx5://localhost/cafe", migrationURL("pgx5://localhost/cafe"))
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(Migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(Migrations, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
}
