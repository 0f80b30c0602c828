// Package testutil opens throwaway sqlite databases carrying the production schema.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/coursepay/internal/migration"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB returns an in-memory database with every migration applied.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the shared-cache database free of table lock errors under concurrent tests.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.ApplyEmbedded(conn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return conn
}

// NewNode returns a snowflake node for id generation in tests.
func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// SeedUser inserts a user row.
func SeedUser(t *testing.T, conn *gorm.DB, id string) {
	t.Helper()
	if err := conn.Exec(`INSERT INTO users (id, email, display_name, created_at) VALUES (?, ?, ?, ?)`,
		id, id+"@example.test", id, time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

// SeedCourse inserts a course row.
func SeedCourse(t *testing.T, conn *gorm.DB, id, title string) {
	t.Helper()
	if err := conn.Exec(`INSERT INTO courses (id, title, slug, created_at) VALUES (?, ?, ?, ?)`,
		id, title, "", time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
}
