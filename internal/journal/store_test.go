package journal

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trade-journal-go/internal/database"
	"trade-journal-go/internal/models"
	"trade-journal-go/internal/storage"
)

// MockKV is a mock implementation of storage.KV.
type MockKV struct {
	mock.Mock
}

func (m *MockKV) Get(key string) (string, bool, error) {
	args := m.Called(key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockKV) Set(key, value string) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func (m *MockKV) Remove(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func ptr[T any](v T) *T { return &v }

var tradeDay = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

func aaplInput() models.TradeInput {
	return models.TradeInput{
		Date:        tradeDay,
		StockName:   "AAPL",
		Quantity:    10,
		EntryPrice:  150.50,
		SLPrice:     148.00,
		TargetPrice: 155.00,
		ExitPrice:   ptr(152.00),
		Strategy:    "Breakout",
	}
}

// setupStore creates a store over an in-memory KV with a fixed clock and sequential ids.
func setupStore(t *testing.T, kv storage.KV) (*Store, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)}
	n := 0
	store := NewStore(kv, zap.NewNop(),
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("trade-%d", n)
		}),
	)
	return store, clock
}

func TestStore_AddThenQuery(t *testing.T) {
	store, clock := setupStore(t, storage.NewMemory())

	trade, err := store.Add(aaplInput())
	require.NoError(t, err)

	assert.Equal(t, "trade-1", trade.ID)
	assert.Equal(t, DefaultOwnerID, trade.UserID)
	assert.Equal(t, clock.Now(), trade.CreatedAt)
	assert.Equal(t, trade.CreatedAt, trade.UpdatedAt)

	onDay := store.TradesOnDate(tradeDay.Add(15 * time.Hour))
	require.Len(t, onDay, 1)
	assert.Equal(t, trade, onDay[0])
	assert.Equal(t, aaplInput(), onDay[0].Input())

	assert.Empty(t, store.TradesOnDate(tradeDay.AddDate(0, 0, 1)))
}

func TestStore_AddRejectsInvalidInput(t *testing.T) {
	kv := new(MockKV)
	store, _ := setupStore(t, kv)

	in := aaplInput()
	in.TrailedSL = true
	in.SLHit = true

	_, err := store.Add(in)
	assert.ErrorIs(t, err, ErrInvalidTrade)
	assert.Equal(t, 0, store.Len())
	kv.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestStore_AddRejectsNonFiniteNumbers(t *testing.T) {
	kv := storage.NewMemory()
	store, _ := setupStore(t, kv)

	in := aaplInput()
	in.Quantity = math.NaN()
	_, err := store.Add(in)
	assert.ErrorIs(t, err, ErrInvalidTrade)
	assert.Equal(t, 0, store.Len())

	// The store is still writable afterwards.
	_, err = store.Add(aaplInput())
	require.NoError(t, err)
	assert.NotNil(t, store.DailySummary(tradeDay))

	_, err = store.Update("trade-2", models.TradePatch{ExitPrice: ptr(math.Inf(1))})
	assert.ErrorIs(t, err, ErrInvalidTrade)
	require.NoError(t, store.Persist())
}

func TestStore_AddKeepsTradeWhenPersistFails(t *testing.T) {
	kv := new(MockKV)
	kv.On("Set", DefaultTradesKey, mock.Anything).Return(errors.New("quota exceeded"))
	store, _ := setupStore(t, kv)

	trade, err := store.Add(aaplInput())

	assert.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, "trade-1", trade.ID)
	assert.Len(t, store.TradesOnDate(tradeDay), 1)
	kv.AssertExpectations(t)
}

func TestStore_Update(t *testing.T) {
	store, clock := setupStore(t, storage.NewMemory())
	original, err := store.Add(aaplInput())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	updated, err := store.Update(original.ID, models.TradePatch{
		Notes:     ptr("moved stop"),
		TrailedSL: ptr(true),
	})
	require.NoError(t, err)

	assert.Equal(t, original.ID, updated.ID)
	assert.Equal(t, original.CreatedAt, updated.CreatedAt)
	assert.Equal(t, clock.Now(), updated.UpdatedAt)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.Equal(t, "moved stop", updated.Notes)
	assert.True(t, updated.TrailedSL)

	// Everything not in the patch is unchanged.
	expected := original
	expected.Notes = "moved stop"
	expected.TrailedSL = true
	expected.UpdatedAt = updated.UpdatedAt
	assert.Equal(t, expected, updated)

	stored, err := store.Get(original.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestStore_UpdateReopensTrade(t *testing.T) {
	store, _ := setupStore(t, storage.NewMemory())
	trade, err := store.Add(aaplInput())
	require.NoError(t, err)

	updated, err := store.Update(trade.ID, models.TradePatch{ClearExitPrice: true})
	require.NoError(t, err)
	assert.False(t, updated.IsClosed())
	assert.Equal(t, models.OutcomeOpen, updated.Outcome())
}

func TestStore_UpdateErrors(t *testing.T) {
	store, _ := setupStore(t, storage.NewMemory())
	trade, err := store.Add(aaplInput())
	require.NoError(t, err)

	t.Run("Unknown id", func(t *testing.T) {
		_, err := store.Update("nope", models.TradePatch{Notes: ptr("x")})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, []models.Trade{trade}, store.All())
	})

	t.Run("Patch breaks validation", func(t *testing.T) {
		_, err := store.Update(trade.ID, models.TradePatch{SLHit: ptr(true), TrailedSL: ptr(true)})
		assert.ErrorIs(t, err, ErrInvalidTrade)

		stored, err := store.Get(trade.ID)
		require.NoError(t, err)
		assert.Equal(t, trade, stored)
	})
}

func TestStore_UpdateLegacyTradeWithBothFlags(t *testing.T) {
	kv := storage.NewMemory()
	legacy := `{"version":1,"trades":[{"id":"legacy-1","userId":"user-123","date":"2025-03-14T00:00:00Z",
		"stockName":"AAPL","quantity":10,"entryPrice":150.5,"slPrice":148,"targetPrice":155,"exitPrice":147,
		"trailedSL":true,"slHit":true,"strategy":"Breakout",
		"createdAt":"2025-03-14T09:30:00Z","updatedAt":"2025-03-14T09:30:00Z"}]}`
	require.NoError(t, kv.Set(DefaultTradesKey, legacy))
	store, _ := setupStore(t, kv)
	require.NoError(t, store.Load())

	updated, err := store.Update("legacy-1", models.TradePatch{Notes: ptr("stopped out")})
	require.NoError(t, err)
	assert.Equal(t, "stopped out", updated.Notes)
	assert.Equal(t, models.OutcomeStopLossHit, updated.Outcome())

	// Touching a flag without resolving the conflict is still rejected.
	_, err = store.Update("legacy-1", models.TradePatch{SLHit: ptr(true)})
	assert.ErrorIs(t, err, ErrInvalidTrade)

	updated, err = store.Update("legacy-1", models.TradePatch{TrailedSL: ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.TrailedSL)
}

func TestStore_Delete(t *testing.T) {
	store, _ := setupStore(t, storage.NewMemory())
	first, err := store.Add(aaplInput())
	require.NoError(t, err)
	second, err := store.Add(aaplInput())
	require.NoError(t, err)

	require.NoError(t, store.Delete(first.ID))

	onDay := store.TradesOnDate(tradeDay)
	require.Len(t, onDay, 1)
	assert.Equal(t, second.ID, onDay[0].ID)

	assert.ErrorIs(t, store.Delete(first.ID), ErrNotFound)
	_, err = store.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, store.Len())
}

func TestStore_DailySummary(t *testing.T) {
	store, _ := setupStore(t, storage.NewMemory())

	assert.Nil(t, store.DailySummary(tradeDay))

	_, err := store.Add(aaplInput())
	require.NoError(t, err)

	summary := store.DailySummary(tradeDay)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.TotalTrades)
	assert.Equal(t, 15.0, summary.PnL)
	assert.Equal(t, 100.0, summary.WinRate)

	// A losing trade and an open trade on the same day.
	loser := aaplInput()
	loser.ExitPrice = ptr(149.50)
	_, err = store.Add(loser)
	require.NoError(t, err)
	open := aaplInput()
	open.ExitPrice = nil
	_, err = store.Add(open)
	require.NoError(t, err)

	summary = store.DailySummary(tradeDay)
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.TotalTrades)
	assert.Equal(t, 2, summary.ClosedTrades)
	assert.Equal(t, 5.0, summary.PnL)
	// The open trade counts in the denominator.
	assert.InDelta(t, 100.0/3, summary.WinRate, 1e-9)
}

func TestStore_PersistAndLoadRoundTrip(t *testing.T) {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "journal.db"), zap.NewNop())
	require.NoError(t, err)
	kv := storage.NewGorm(db, "test")

	store, _ := setupStore(t, kv)
	closed, err := store.Add(aaplInput())
	require.NoError(t, err)

	bare := models.TradeInput{
		Date:        time.Date(2024, time.December, 31, 0, 0, 0, 0, time.FixedZone("EST", -5*3600)),
		StockName:   "SPY 500C",
		Quantity:    2,
		EntryPrice:  3.10,
		SLPrice:     2.50,
		TargetPrice: 4.00,
		Strategy:    "Scalp",
	}
	open, err := store.Add(bare)
	require.NoError(t, err)

	withExtras := aaplInput()
	withExtras.ImageURL = "https://example.com/chart.png"
	withExtras.Notes = "clean break of resistance"
	withExtras.SLHit = true
	extras, err := store.Add(withExtras)
	require.NoError(t, err)

	require.NoError(t, store.Persist())

	reloaded, _ := setupStore(t, kv)
	require.NoError(t, reloaded.Load())

	got := reloaded.All()
	require.Len(t, got, 3)
	for i, want := range []models.Trade{closed, open, extras} {
		assertSameTrade(t, want, got[i])
	}
}

func TestStore_LoadEmptyStorage(t *testing.T) {
	store, _ := setupStore(t, storage.NewMemory())

	require.NoError(t, store.Load())
	assert.Equal(t, 0, store.Len())
}

func TestStore_LoadLegacyArray(t *testing.T) {
	kv := storage.NewMemory()
	legacy := `[{"id":"trade-1700000000000-abc123xyz","userId":"user-123","date":"2025-03-14T00:00:00.000Z",
		"stockName":"AAPL","quantity":10,"entryPrice":150.5,"slPrice":148,"targetPrice":155,"exitPrice":152,
		"trailedSL":false,"slHit":false,"strategy":"Breakout",
		"createdAt":"2025-03-14T09:30:00.000Z","updatedAt":"2025-03-14T09:30:00.000Z"}]`
	require.NoError(t, kv.Set(DefaultTradesKey, legacy))

	store, _ := setupStore(t, kv)
	require.NoError(t, store.Load())

	onDay := store.TradesOnDate(tradeDay)
	require.Len(t, onDay, 1)
	assert.Equal(t, "trade-1700000000000-abc123xyz", onDay[0].ID)
	require.NotNil(t, onDay[0].ExitPrice)
	assert.Equal(t, 152.0, *onDay[0].ExitPrice)
}

func TestStore_LoadFailures(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
	}{
		{name: "Not JSON", payload: "{"},
		{name: "Unknown version", payload: `{"version":2,"trades":[]}`},
		{name: "Missing required field", payload: `{"version":1,"trades":[{"id":"x"}]}`},
		{name: "Wrong type", payload: `[{"id":"x","date":"2025-03-14T00:00:00Z","stockName":"A","quantity":"ten",
			"entryPrice":1,"slPrice":1,"targetPrice":1,"strategy":"s","createdAt":"2025-03-14T00:00:00Z","updatedAt":"2025-03-14T00:00:00Z"}]`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kv := storage.NewMemory()
			store, _ := setupStore(t, kv)
			_, err := store.Add(aaplInput())
			require.NoError(t, err)

			require.NoError(t, kv.Set(DefaultTradesKey, tc.payload))

			assert.ErrorIs(t, store.Load(), ErrLoad)
			assert.Equal(t, 0, store.Len())

			backup, ok, err := kv.Get(DefaultTradesKey + BackupSuffix)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tc.payload, backup)
		})
	}

	t.Run("Storage read error blocks writes", func(t *testing.T) {
		kv := new(MockKV)
		kv.On("Get", DefaultTradesKey).Return("", false, errors.New("disk gone"))
		store, _ := setupStore(t, kv)

		assert.ErrorIs(t, store.Load(), ErrLoad)

		_, err := store.Add(aaplInput())
		assert.ErrorIs(t, err, ErrPersist)
		assert.ErrorIs(t, err, ErrUnreadableStorage)
		assert.ErrorIs(t, store.Persist(), ErrUnreadableStorage)
		assert.Equal(t, 1, store.Len())
		kv.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
		kv.AssertExpectations(t)
	})
}

func TestStore_UnreadablePayloadSurvives(t *testing.T) {
	future := `{"version":2,"trades":[{"id":"keep-me"}]}`

	t.Run("Nothing changed", func(t *testing.T) {
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(DefaultTradesKey, future))
		store, _ := setupStore(t, kv)

		assert.ErrorIs(t, store.Load(), ErrLoad)
		assert.False(t, store.Dirty())
		require.NoError(t, store.Flush())

		stored, _, err := kv.Get(DefaultTradesKey)
		require.NoError(t, err)
		assert.Equal(t, future, stored)
	})

	t.Run("Backed up before the first write", func(t *testing.T) {
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(DefaultTradesKey, future))
		store, _ := setupStore(t, kv)

		assert.ErrorIs(t, store.Load(), ErrLoad)
		_, err := store.Add(aaplInput())
		require.NoError(t, err)

		backup, ok, err := kv.Get(DefaultTradesKey + BackupSuffix)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, future, backup)
	})

	t.Run("Backup failure blocks writes", func(t *testing.T) {
		kv := new(MockKV)
		kv.On("Get", DefaultTradesKey).Return(future, true, nil)
		kv.On("Set", DefaultTradesKey+BackupSuffix, future).Return(errors.New("quota exceeded")).Once()
		store, _ := setupStore(t, kv)

		assert.ErrorIs(t, store.Load(), ErrLoad)
		_, err := store.Add(aaplInput())
		assert.ErrorIs(t, err, ErrUnreadableStorage)
		assert.ErrorIs(t, store.Flush(), ErrUnreadableStorage)
		kv.AssertNotCalled(t, "Set", DefaultTradesKey, mock.Anything)
		kv.AssertExpectations(t)
	})
}

func TestStore_FlushWritesOnlyChanges(t *testing.T) {
	kv := new(MockKV)
	kv.On("Set", DefaultTradesKey, mock.Anything).Return(errors.New("quota exceeded")).Once()
	kv.On("Set", DefaultTradesKey, mock.Anything).Return(nil).Once()
	store, _ := setupStore(t, kv)

	require.NoError(t, store.Flush())
	kv.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)

	_, err := store.Add(aaplInput())
	assert.ErrorIs(t, err, ErrPersist)
	assert.True(t, store.Dirty())

	require.NoError(t, store.Flush())
	assert.False(t, store.Dirty())
	require.NoError(t, store.Flush())
	kv.AssertNumberOfCalls(t, "Set", 2)
}

func TestStore_PersistIsIdempotent(t *testing.T) {
	kv := storage.NewMemory()
	store, _ := setupStore(t, kv)
	_, err := store.Add(aaplInput())
	require.NoError(t, err)

	require.NoError(t, store.Persist())
	first, _, _ := kv.Get(DefaultTradesKey)
	require.NoError(t, store.Persist())
	second, _, _ := kv.Get(DefaultTradesKey)

	assert.Equal(t, first, second)
	assert.Contains(t, first, `"version":1`)
	assert.Contains(t, first, `"date":"2025-03-14T00:00:00Z"`)
}

func TestStore_DeleteLastTradePersistsEmptyCollection(t *testing.T) {
	kv := storage.NewMemory()
	store, _ := setupStore(t, kv)
	trade, err := store.Add(aaplInput())
	require.NoError(t, err)

	require.NoError(t, store.Delete(trade.ID))

	reloaded, _ := setupStore(t, kv)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 0, reloaded.Len())
}

func TestStore_WithOwnerAndKey(t *testing.T) {
	kv := storage.NewMemory()
	store := NewStore(kv, zap.NewNop(), WithOwner("someone"), WithKey("custom"))

	trade, err := store.Add(aaplInput())
	require.NoError(t, err)
	assert.Equal(t, "someone", trade.UserID)
	assert.Contains(t, trade.ID, "trade-")

	_, ok, err := kv.Get("custom")
	require.NoError(t, err)
	assert.True(t, ok)
}

// assertSameTrade compares trades field by field, using instant equality for times.
func assertSameTrade(t *testing.T, want, got models.Trade) {
	t.Helper()
	assert.True(t, want.Date.Equal(got.Date), "date %v != %v", want.Date, got.Date)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	assert.True(t, got.OnDate(want.Date))

	want.Date, got.Date = time.Time{}, time.Time{}
	want.CreatedAt, got.CreatedAt = time.Time{}, time.Time{}
	want.UpdatedAt, got.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, want, got)
}
