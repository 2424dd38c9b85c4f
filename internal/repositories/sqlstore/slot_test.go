package sqlstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"kahramana.bh/site/internal/cart"
)

func TestDialectStatements(t *testing.T) {
	t.Parallel()

	require.Contains(t, Postgres.upsert(), "ON CONFLICT (slot_key)")
	require.Contains(t, Postgres.upsert(), "$3")
	require.Contains(t, MySQL.upsert(), "ON DUPLICATE KEY UPDATE")
	require.NotContains(t, MySQL.upsert(), "$1")

	_, err := Dialect("sqlite").driver()
	require.Error(t, err)
}

func TestEmbeddedMigrationsPairUpAndDown(t *testing.T) {
	t.Parallel()

	for _, dialect := range []Dialect{Postgres, MySQL} {
		entries, err := fs.ReadDir(migrationsFS, "migrations/"+string(dialect))
		require.NoError(t, err)

		ups, downs := 0, 0
		for _, e := range entries {
			switch {
			case strings.HasSuffix(e.Name(), ".up.sql"):
				ups++
			case strings.HasSuffix(e.Name(), ".down.sql"):
				downs++
			}
		}
		require.NotZero(t, ups, dialect)
		require.Equal(t, ups, downs, dialect)
	}
}

func TestOpenRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Dialect("oracle"), "dsn")
	require.Error(t, err)
	_, err = Open(context.Background(), Postgres, "  ")
	require.Error(t, err)
	_, err = NewSlot(nil, Postgres)
	require.Error(t, err)
}

// Runs against a real database when KAHRAMANA_TEST_POSTGRES_DSN is set.
func TestPostgresSlotIntegration(t *testing.T) {
	dsn := os.Getenv("KAHRAMANA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KAHRAMANA_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	db, err := Open(ctx, Postgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = Migrate(db, Postgres, nil)
	require.NoError(t, err)

	slot, err := NewSlot(db, Postgres)
	require.NoError(t, err)

	key := cart.SlotKey("integration-" + t.Name())
	_, err = slot.Get(ctx, key)
	require.True(t, errors.Is(err, cart.ErrSlotEmpty) || err == nil)

	require.NoError(t, slot.Put(ctx, key, []byte(`{"items":[]}`)))
	require.NoError(t, slot.Put(ctx, key, []byte(`{"items":[],"notes":"x"}`)))
	got, err := slot.Get(ctx, key)
	require.NoError(t, err)
	require.JSONEq(t, `{"items":[],"notes":"x"}`, string(got))
}
