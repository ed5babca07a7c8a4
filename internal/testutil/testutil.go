// Package testutil provides a migrated SQLite database for package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/db"
	"chat-sync/internal/logx"
)

// NewDB opens a fresh temp-file database with the production migrations applied.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()
	logx.Discard()

	conn, err := db.Connect("sqlite3", filepath.Join(t.TempDir(), "chat-sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// SeedUsers inserts n users named user1..userN and returns their ids.
func SeedUsers(t *testing.T, conn *sqlx.DB, n int) []int {
	t.Helper()
	ids := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		var id int
		err := conn.QueryRowxContext(context.Background(),
			conn.Rebind(`INSERT INTO users (username, display_name) VALUES (?, ?) RETURNING id`),
			fmt.Sprintf("user%d", i), fmt.Sprintf("User %d", i)).Scan(&id)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}
