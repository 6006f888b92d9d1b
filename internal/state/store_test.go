package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/intraday-risk-bot/internal/ledger"
)

func sampleSnapshot() ledger.WeeklySnapshot {
	return ledger.WeeklySnapshot{
		Week:           "2026-W42",
		WeeklyPnL:      decimal.RequireFromString("-1234.56"),
		WeeklyLimitHit: false,
		UpdatedAt:      time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	snap, err := fs.LoadWeekly(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, fs.SaveWeekly(ctx, sampleSnapshot()))
	_, err = os.Stat(fs.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	snap, err = fs.LoadWeekly(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "2026-W42", snap.Week)
	assert.True(t, snap.WeeklyPnL.Equal(decimal.RequireFromString("-1234.56")))
}

func TestFileStoreCorruptFile(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fs.Path(), []byte("{not json"), 0644))

	snap, err := fs.LoadWeekly(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestFileStoreWithLedger(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	now := func() time.Time { return time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC) }
	l := ledger.NewRiskLedger(ledger.DefaultConfig(), fs, ledger.WithClock(now))
	l.RecordPnL(ctx, "AAPL", -300)

	restarted := ledger.NewRiskLedger(ledger.DefaultConfig(), fs, ledger.WithClock(now))
	require.NoError(t, restarted.Load(ctx))
	assert.Equal(t, -300.0, restarted.Status().WeeklyPnL)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewRedisStoreFromClient(db, "")

	t.Run("missing key", func(t *testing.T) {
		mock.ExpectGet(DefaultWeeklyKey).RedisNil()
		snap, err := store.LoadWeekly(ctx)
		assert.NoError(t, err)
		assert.Nil(t, snap)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("save and load", func(t *testing.T) {
		snap := sampleSnapshot()
		data, err := json.Marshal(&snap)
		require.NoError(t, err)

		mock.ExpectSet(DefaultWeeklyKey, string(data), weeklyTTL).SetVal("OK")
		require.NoError(t, store.SaveWeekly(ctx, snap))

		mock.ExpectGet(DefaultWeeklyKey).SetVal(string(data))
		loaded, err := store.LoadWeekly(ctx)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, snap.Week, loaded.Week)
		assert.True(t, snap.WeeklyPnL.Equal(loaded.WeeklyPnL))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("server error", func(t *testing.T) {
		mock.ExpectGet(DefaultWeeklyKey).SetErr(errors.New("connection refused"))
		_, err := store.LoadWeekly(ctx)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
