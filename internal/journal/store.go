package journal

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trade-journal-go/internal/metrics"
	"trade-journal-go/internal/models"
	"trade-journal-go/internal/storage"
)

const (
	// DefaultTradesKey is the storage key holding the whole collection.
	DefaultTradesKey = "tradeJournalTrades"
	// DefaultOwnerID stands in for a real account until multi-user support exists.
	DefaultOwnerID = "user-123"
	// BackupSuffix is appended to the trades key to keep a payload that failed to load.
	BackupSuffix = ".unreadable"
)

// Store owns the trade collection and mirrors it to a key-value storage.
//
// Every mutation persists the full collection before returning. A failed write
// keeps the in-memory change and reports ErrPersist; memory stays the source of truth.
//
// A payload that fails to load is copied under key+BackupSuffix before anything
// can overwrite it. When that copy cannot be made the store refuses every write.
type Store struct {
	mu      sync.RWMutex
	kv      storage.KV
	key     string
	log     *zap.Logger
	ownerID string
	now     func() time.Time
	newID   func() string
	trades  []models.Trade
	// dirty is set by mutations and cleared by a successful write or load.
	dirty bool
	// guarded blocks writes after a load that left unread data in storage.
	guarded bool
}

// Option configures a Store.
type Option func(*Store)

// WithOwner sets the owner id stamped on new trades.
func WithOwner(id string) Option {
	return func(s *Store) { s.ownerID = id }
}

// WithKey sets the storage key of the collection.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the trade id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates an empty store. Call Load to rehydrate it from storage.
func NewStore(kv storage.KV, log *zap.Logger, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		key:     DefaultTradesKey,
		log:     log.Named("journal"),
		ownerID: DefaultOwnerID,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return "trade-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add validates in, records it as a new trade and persists the collection.
// On ErrPersist the returned trade is valid and kept in memory.
func (s *Store) Add(in models.TradeInput) (models.Trade, error) {
	if err := Validate(in); err != nil {
		return models.Trade{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	trade := models.Trade{
		ID:          s.newID(),
		UserID:      s.ownerID,
		Date:        in.Date,
		StockName:   in.StockName,
		Quantity:    in.Quantity,
		EntryPrice:  in.EntryPrice,
		SLPrice:     in.SLPrice,
		TargetPrice: in.TargetPrice,
		ExitPrice:   in.ExitPrice,
		TrailedSL:   in.TrailedSL,
		SLHit:       in.SLHit,
		Strategy:    in.Strategy,
		ImageURL:    in.ImageURL,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}.Clone()
	s.trades = append(s.trades, trade)
	s.dirty = true

	s.log.Info("Trade added",
		zap.String("trade_id", trade.ID),
		zap.String("stock", trade.StockName),
		zap.Time("date", trade.Date))

	return trade.Clone(), s.persistLocked()
}

// Update applies patch to the trade with the given id and persists the collection.
// The id and createdAt never change; updatedAt is refreshed.
func (s *Store) Update(id string, patch models.TradePatch) (models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return models.Trade{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}

	updated := s.trades[i].Clone()
	patch.Apply(&updated)
	touchesOutcome := patch.TrailedSL != nil || patch.SLHit != nil
	if err := validate(updated.Input(), touchesOutcome); err != nil {
		return models.Trade{}, err
	}

	updated.UpdatedAt = s.now()
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		updated.UpdatedAt = updated.CreatedAt
	}
	s.trades[i] = updated
	s.dirty = true

	s.log.Info("Trade updated", zap.String("trade_id", id))
	return updated.Clone(), s.persistLocked()
}

// Delete removes the trade with the given id and persists the collection.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	s.trades = append(s.trades[:i], s.trades[i+1:]...)
	s.dirty = true

	s.log.Info("Trade deleted", zap.String("trade_id", id))
	return s.persistLocked()
}

// Get returns the trade with the given id.
func (s *Store) Get(id string) (models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return models.Trade{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return s.trades[i].Clone(), nil
}

// All returns every trade in insertion order.
func (s *Store) All() []models.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Trade, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, t.Clone())
	}
	return out
}

// Len returns the number of trades.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}

// TradesOnDate returns the trades recorded on the calendar day of date.
func (s *Store) TradesOnDate(date time.Time) []models.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onDateLocked(date)
}

// DailySummary aggregates the trades of one day. It returns nil when there are none.
func (s *Store) DailySummary(date time.Time) *models.DailySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := s.onDateLocked(date)
	if len(day) == 0 {
		return nil
	}

	summary := &models.DailySummary{
		Date:        date,
		TotalTrades: len(day),
		PnL:         metrics.SumPnL(day),
	}
	wins := 0
	for _, t := range day {
		if t.ExitPrice == nil {
			continue
		}
		summary.ClosedTrades++
		if metrics.RealizedPnL(t.Quantity, t.EntryPrice, *t.ExitPrice) > 0 {
			wins++
		}
	}
	summary.WinRate = float64(wins) / float64(summary.TotalTrades) * 100
	return summary
}

// Persist writes the whole collection to storage. Calling it twice writes the same payload.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// Flush persists only when something changed since the last successful write or load.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.persistLocked()
}

// Dirty reports whether the collection has changes not yet in storage.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Load replaces the in-memory collection with the stored one.
// Missing data is not an error. On failure the store is left empty and the
// unread payload is backed up, or the store refuses writes when it cannot be.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = nil
	s.dirty = false
	s.guarded = false

	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		s.guarded = true
		s.log.Error("Failed to read stored trades, writes are blocked", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if !ok {
		s.log.Info("No stored trades found, starting empty")
		return nil
	}

	trades, err := decodeTrades([]byte(raw))
	if err != nil {
		s.backupLocked(raw)
		s.log.Error("Failed to decode stored trades", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	s.trades = trades

	s.log.Info("Trades loaded", zap.Int("count", len(trades)))
	return nil
}

// backupLocked copies a payload that failed to load under the backup key.
func (s *Store) backupLocked(raw string) {
	backupKey := s.key + BackupSuffix
	if err := s.kv.Set(backupKey, raw); err != nil {
		s.guarded = true
		s.log.Error("Failed to back up unreadable trades, writes are blocked",
			zap.String("backup_key", backupKey), zap.Error(err))
		return
	}
	s.log.Warn("Unreadable trades backed up", zap.String("backup_key", backupKey), zap.Int("bytes", len(raw)))
}

func (s *Store) persistLocked() error {
	if s.guarded {
		return fmt.Errorf("%w: %w", ErrPersist, ErrUnreadableStorage)
	}
	data, err := encodeTrades(s.trades)
	if err != nil {
		s.log.Error("Failed to encode trades", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := s.kv.Set(s.key, string(data)); err != nil {
		s.log.Error("Failed to write trades to storage", zap.Error(err), zap.Int("count", len(s.trades)))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.dirty = false
	s.log.Debug("Trades persisted", zap.Int("count", len(s.trades)), zap.Int("bytes", len(data)))
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.trades {
		if s.trades[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) onDateLocked(date time.Time) []models.Trade {
	var out []models.Trade
	for _, t := range s.trades {
		if t.OnDate(date) {
			out = append(out, t.Clone())
		}
	}
	return out
}
