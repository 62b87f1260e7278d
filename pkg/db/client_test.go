package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/logger"
)

type ledgerRow struct {
	ID   int
	Note string
}

func openSQLite(t *testing.T, cfg *gorm.Config) *Client {
	t.Helper()
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	cfg.SkipDefaultTransaction = true
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), cfg)
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&ledgerRow{}))
	return FromConn(conn)
}

func countNotes(t *testing.T, c *Client, note string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&ledgerRow{}).Where("note = ?", note).Count(&n).Error)
	return n
}

func TestWithTxCommitOrRollback(t *testing.T) {
	client := openSQLite(t, nil)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Note: "kept"}).Error
	}))
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerRow{Note: "dropped"}).Error)
		return errors.New("stock check failed")
	})
	assert.EqualError(t, err, "stock check failed")

	assert.EqualValues(t, 1, countNotes(t, client, "kept"))
	assert.Zero(t, countNotes(t, client, "dropped"))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	client := openSQLite(t, nil)
	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&ledgerRow{Note: "panicked"}).Error)
			panic("boom")
		})
	})
	assert.Zero(t, countNotes(t, client, "panicked"))
}

func TestPingAndClose(t *testing.T) {
	client := openSQLite(t, nil)
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
	assert.Error(t, client.Ping(context.Background()))
}

func TestQueryLoggerReportsFailuresNotMisses(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	client := openSQLite(t, &gorm.Config{Logger: newQueryLogger(logg, time.Hour)})
	buf.Reset()

	var row ledgerRow
	err := client.DB().First(&row, 999).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Zero(t, buf.Len(), "a miss must not be logged")

	_ = client.DB().Exec("SELECT * FROM missing_table").Error
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "missing_table")
}

func TestQueryLoggerFlagsSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	q := newQueryLogger(logger.New(logger.Options{Output: &buf}), time.Millisecond)
	q.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), `"rows":1`)

	assert.Equal(t, newQueryLogger(nil, time.Second), newQueryLogger(nil, 0))
}
