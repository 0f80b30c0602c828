package migration

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestApplyEmbeddedIsRepeatable(t *testing.T) {
	dsn := fmt.Sprintf("file:migration_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, ApplyEmbedded(conn))
	require.NoError(t, ApplyEmbedded(conn))

	for _, table := range []string{"payment_records", "entitlements", "invoices", "legacy_payments", "operator_reviews", "users", "courses"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasColumn("payment_records", "last_checked_at"))
}

func TestSplitStatementsSkipsBlanks(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id INT);\n\n;CREATE TABLE b (id INT);  ")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, stmts)
}
