// Package ledger owns the per-user calorie ledger: reads through a snapshot
// cache and read-modify-write mutations against the shared document.
//
// Every mutation for a user is serialized behind a per-user gate, so within
// one process two in-flight edits can never read the same base document and
// lose one of the writes. Across processes the document store's versioned
// compare-and-swap write catches the same race and fails with ErrConflict.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"kalori/internal/cache"
	"kalori/internal/core"
	"kalori/internal/docstore"
)

var (
	// ErrInvalidEntry rejects caller input: empty food, negative calories,
	// malformed date key, or a replace index that does not exist. Not
	// retryable without correcting the input.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrNoUser is returned for mutations without an authenticated user.
	ErrNoUser = errors.New("no user")
)

// Publisher notifies other processes that a user's ledger changed.
// The engine treats publishing as best effort: a committed mutation is never
// rolled back because the notification failed.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, userID string, version int64) error
}

type snapshot struct {
	ledger  core.Ledger
	version docstore.Version
}

// Options configures an Engine.
type Options struct {
	// MutationTimeout bounds one read-modify-write cycle. Zero disables
	// the internal deadline; callers can still cancel via ctx.
	MutationTimeout time.Duration
	// CacheSize and CacheTTL size the snapshot cache.
	CacheSize int
	CacheTTL  time.Duration
	// Publisher is optional.
	Publisher Publisher
}

// Engine is the calorie ledger engine.
type Engine struct {
	store     docstore.Store
	snapshots *cache.LRU[snapshot]
	loads     singleflight.Group
	publisher Publisher
	timeout   time.Duration

	mu    sync.Mutex
	gates map[string]*sync.Mutex
}

func New(store docstore.Store, opts Options) *Engine {
	size := opts.CacheSize
	if size <= 0 {
		size = 1024
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Engine{
		store:     store,
		snapshots: cache.NewLRU[snapshot](size, ttl),
		publisher: opts.Publisher,
		timeout:   opts.MutationTimeout,
	}
}

// Snapshots exposes the cache for cleanup registration.
func (e *Engine) Snapshots() cache.Cleaner { return e.snapshots }

// GetLedger returns the user's full ledger. An empty user ID or an absent
// document both yield an empty ledger; only store failures are errors.
func (e *Engine) GetLedger(ctx context.Context, userID string) (core.Ledger, error) {
	if userID == "" {
		return core.Ledger{}, nil
	}

	if snap, ok := e.snapshots.Get(userID); ok {
		return snap.ledger.Clone(), nil
	}

	// Concurrent cold reads for the same user share one store round trip.
	v, err, _ := e.loads.Do(userID, func() (any, error) {
		snap, err := e.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		e.cacheSnapshot(userID, snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(snapshot).ledger.Clone(), nil
}

// GetDayRecord returns the entries for one date key, empty if absent.
func (e *Engine) GetDayRecord(ctx context.Context, userID, dateKey string) (core.DayRecord, error) {
	l, err := e.GetLedger(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.Day(dateKey), nil
}

// AddEntry appends an entry to the given day and returns the updated record.
func (e *Engine) AddEntry(ctx context.Context, userID, dateKey string, entry core.Entry) (core.DayRecord, error) {
	return e.mutate(ctx, userID, dateKey, entry, -1)
}

// ReplaceEntry overwrites the entry at index within the given day.
func (e *Engine) ReplaceEntry(ctx context.Context, userID, dateKey string, index int, entry core.Entry) (core.DayRecord, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: negative index %d", ErrInvalidEntry, index)
	}
	return e.mutate(ctx, userID, dateKey, entry, index)
}

// Invalidate drops the cached snapshot; the next query reloads from the
// store. Called when another process reports a committed mutation.
func (e *Engine) Invalidate(userID string) {
	e.snapshots.Delete(userID)
}

// mutate runs one serialized read-modify-write cycle. index < 0 appends,
// otherwise the entry at index is replaced.
func (e *Engine) mutate(ctx context.Context, userID, dateKey string, entry core.Entry, index int) (core.DayRecord, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if _, err := core.ParseDateKey(dateKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	gate := e.gate(userID)
	gate.Lock()
	defer gate.Unlock()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// Always read the base state from the store, never from the cache: the
	// write below must be conditional on the version that was actually read.
	snap, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec := snap.ledger[dateKey]
	if index >= 0 {
		if index >= len(rec) {
			return nil, fmt.Errorf("%w: index %d out of range for %s (%d entries)", ErrInvalidEntry, index, dateKey, len(rec))
		}
		rec[index] = entry
	} else {
		rec = append(rec, entry)
	}
	snap.ledger[dateKey] = rec

	body, err := json.Marshal(snap.ledger)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal ledger: %v", docstore.ErrUnavailable, err)
	}

	newVersion, err := e.store.Write(ctx, docstore.CollectionLedgers, userID, body, snap.version)
	if err != nil {
		// After a failed write the in-memory state must not be trusted:
		// drop the snapshot so the next query re-reads the store.
		e.snapshots.Delete(userID)
		if errors.Is(err, docstore.ErrConflict) {
			return nil, err
		}
		return nil, storeFailure("write ledger", err)
	}

	e.cacheSnapshot(userID, snapshot{ledger: snap.ledger, version: newVersion})

	if e.publisher != nil {
		if err := e.publisher.PublishLedgerChanged(ctx, userID, int64(newVersion)); err != nil {
			slog.WarnContext(ctx, "Failed to publish ledger change",
				"user_id", userID, "version", newVersion, "error", err)
		}
	}

	return snap.ledger.Day(dateKey), nil
}

// cacheSnapshot stores a snapshot unless a newer version is already cached.
// A cold load that captured the document before a concurrent mutation
// committed must not shadow the post-commit snapshot the mutation cached, or
// queries issued after the commit would see the pre-commit ledger until the
// entry expires.
func (e *Engine) cacheSnapshot(userID string, snap snapshot) {
	e.snapshots.Upsert(userID, func(old snapshot, ok bool) (snapshot, bool) {
		if ok && old.version >= snap.version {
			return old, false
		}
		return snap, true
	})
}

// load reads and decodes the user's ledger document.
func (e *Engine) load(ctx context.Context, userID string) (snapshot, error) {
	doc, version, err := e.store.Read(ctx, docstore.CollectionLedgers, userID)
	if err != nil {
		return snapshot{}, storeFailure("read ledger", err)
	}

	l := core.Ledger{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &l); err != nil {
			return snapshot{}, fmt.Errorf("%w: corrupt ledger document for %s: %v", docstore.ErrUnavailable, userID, err)
		}
	}
	return snapshot{ledger: l, version: version}, nil
}

// gate returns the per-user mutation lock, creating it on first use.
func (e *Engine) gate(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.gates[userID]
	if !ok {
		if e.gates == nil {
			e.gates = make(map[string]*sync.Mutex)
		}
		g = &sync.Mutex{}
		e.gates[userID] = g
	}
	return g
}

// storeFailure keeps ErrUnavailable in the chain no matter how the backend
// reported the failure (context deadline, driver error, API error).
func storeFailure(op string, err error) error {
	if errors.Is(err, docstore.ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, docstore.ErrUnavailable, err)
}
