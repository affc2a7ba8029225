package ledger

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"kalori/internal/core"
	"kalori/internal/docstore"
	"kalori/internal/docstore/memory"
)

func newTestEngine(opts Options) *Engine {
	return New(memory.New(), opts)
}

func TestAddEntryThenGetDayRecord(t *testing.T) {
	e := newTestEngine(Options{})
	ctx := context.Background()

	entry := core.Entry{Food: "Tavuk", Calories: 650}
	rec, err := e.AddEntry(ctx, "u1", "2024-03-04", entry)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(rec) != 1 || rec[0] != entry {
		t.Fatalf("unexpected record %v", rec)
	}

	got, err := e.GetDayRecord(ctx, "u1", "2024-03-04")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got) != 1 || got[0] != entry {
		t.Fatalf("expected the added entry exactly once, got %v", got)
	}
}

func TestReplaceEntry(t *testing.T) {
	e := newTestEngine(Options{})
	ctx := context.Background()

	if _, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Elma", Calories: 80}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Muz", Calories: 100}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	rec, err := e.ReplaceEntry(ctx, "u1", "2024-03-04", 0, core.Entry{Food: "Armut", Calories: 90})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	want := core.DayRecord{{Food: "Armut", Calories: 90}, {Food: "Muz", Calories: 100}}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("expected %v, got %v", want, rec)
	}

	// Replacing must not grow the record.
	if len(rec) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(rec))
	}
}

func TestReplaceEntryIndexOutOfRange(t *testing.T) {
	e := newTestEngine(Options{})
	ctx := context.Background()

	if _, err := e.ReplaceEntry(ctx, "u1", "2024-03-04", 3, core.Entry{Food: "Elma", Calories: 80}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	if _, err := e.ReplaceEntry(ctx, "u1", "2024-03-04", -1, core.Entry{Food: "Elma", Calories: 80}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry for negative index, got %v", err)
	}
}

func TestMutationValidation(t *testing.T) {
	e := newTestEngine(Options{})
	ctx := context.Background()

	cases := []struct {
		name    string
		userID  string
		dateKey string
		entry   core.Entry
		want    error
	}{
		{"no user", "", "2024-03-04", core.Entry{Food: "Elma", Calories: 80}, ErrNoUser},
		{"empty food", "u1", "2024-03-04", core.Entry{Food: "", Calories: 80}, ErrInvalidEntry},
		{"negative calories", "u1", "2024-03-04", core.Entry{Food: "Elma", Calories: -1}, ErrInvalidEntry},
		{"bad date key", "u1", "04-03-2024", core.Entry{Food: "Elma", Calories: 80}, ErrInvalidEntry},
	}
	for _, tc := range cases {
		if _, err := e.AddEntry(ctx, tc.userID, tc.dateKey, tc.entry); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	// Nothing may have been written.
	l, err := e.GetLedger(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(l) != 0 {
		t.Fatalf("rejected mutations must not write, got %v", l)
	}
}

func TestNoLostUpdate(t *testing.T) {
	e := newTestEngine(Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	entries := []core.Entry{
		{Food: "Elma", Calories: 80},
		{Food: "Muz", Calories: 100},
	}
	for i := range entries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.AddEntry(ctx, "u1", "2024-03-04", entries[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("mutation %d failed: %v", i, err)
		}
	}

	rec, err := e.GetDayRecord(ctx, "u1", "2024-03-04")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(rec) != 2 {
		t.Fatalf("lost update: expected 2 entries, got %v", rec)
	}
	if total := core.DayTotal(rec); total != 180 {
		t.Fatalf("expected total 180, got %d", total)
	}
}

func TestGetLedgerEmptyUserAndIdempotence(t *testing.T) {
	e := newTestEngine(Options{})
	ctx := context.Background()

	l, err := e.GetLedger(ctx, "")
	if err != nil || len(l) != 0 {
		t.Fatalf("empty user should read an empty ledger, got (%v, %v)", l, err)
	}

	if _, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Pilav", Calories: 500}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	first, err := e.GetLedger(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	second, err := e.GetLedger(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ledger reads without mutations must be equal: %v vs %v", first, second)
	}

	// Snapshots must not alias each other.
	first["2024-03-04"][0].Calories = 1
	if second["2024-03-04"][0].Calories != 500 {
		t.Fatal("ledger snapshots must not share storage")
	}
}

// conflictingStore forces a version conflict on the first write.
type conflictingStore struct {
	inner     docstore.Store
	conflicts int
}

func (s *conflictingStore) Read(ctx context.Context, collection, userID string) (docstore.Document, docstore.Version, error) {
	return s.inner.Read(ctx, collection, userID)
}

func (s *conflictingStore) Write(ctx context.Context, collection, userID string, doc docstore.Document, expected docstore.Version) (docstore.Version, error) {
	if s.conflicts > 0 {
		s.conflicts--
		return 0, docstore.ErrConflict
	}
	return s.inner.Write(ctx, collection, userID, doc, expected)
}

func TestConflictSurfacesAndInvalidatesCache(t *testing.T) {
	store := &conflictingStore{inner: memory.New(), conflicts: 1}
	e := New(store, Options{})
	ctx := context.Background()

	_, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Elma", Calories: 80})
	if !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// The caller refetches and reapplies; the retry must succeed.
	rec, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Elma", Calories: 80})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(rec) != 1 {
		t.Fatalf("expected 1 entry after retry, got %v", rec)
	}
}

// failingStore reports every operation as unavailable.
type failingStore struct{ err error }

func (s *failingStore) Read(context.Context, string, string) (docstore.Document, docstore.Version, error) {
	return nil, 0, s.err
}

func (s *failingStore) Write(context.Context, string, string, docstore.Document, docstore.Version) (docstore.Version, error) {
	return 0, s.err
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	e := New(&failingStore{err: errors.New("connection refused")}, Options{})
	ctx := context.Background()

	if _, err := e.GetLedger(ctx, "u1"); !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on read, got %v", err)
	}
	if _, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Elma", Calories: 80}); !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on mutation, got %v", err)
	}
}

// slowStore blocks reads until the context expires.
type slowStore struct{}

func (s *slowStore) Read(ctx context.Context, _, _ string) (docstore.Document, docstore.Version, error) {
	<-ctx.Done()
	return nil, 0, ctx.Err()
}

func (s *slowStore) Write(ctx context.Context, _, _ string, _ docstore.Document, _ docstore.Version) (docstore.Version, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestMutationTimeout(t *testing.T) {
	e := New(&slowStore{}, Options{MutationTimeout: 10 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	_, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Elma", Calories: 80})
	if !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on timeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout did not apply")
	}

	// The gate must be released after the failure.
	done := make(chan struct{})
	go func() {
		_, _ = e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Muz", Calories: 100})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mutation gate leaked after a failed cycle")
	}
}

// holdFirstRead parks the first Read after it captured the document,
// until release is closed. Later reads pass through untouched.
type holdFirstRead struct {
	docstore.Store
	mu      sync.Mutex
	held    bool
	started chan struct{}
	release chan struct{}
}

func (s *holdFirstRead) Read(ctx context.Context, collection, userID string) (docstore.Document, docstore.Version, error) {
	doc, version, err := s.Store.Read(ctx, collection, userID)
	s.mu.Lock()
	first := !s.held
	s.held = true
	s.mu.Unlock()
	if first {
		close(s.started)
		<-s.release
	}
	return doc, version, err
}

func TestColdReadDoesNotShadowCommit(t *testing.T) {
	inner := memory.New()
	ctx := context.Background()
	if _, err := inner.Write(ctx, docstore.CollectionLedgers, "u1",
		[]byte(`{"2024-03-04":[{"food":"Elma","calories":80}]}`), 0); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	store := &holdFirstRead{
		Store:   inner,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	e := New(store, Options{CacheTTL: time.Hour})

	// A cold query captures version 1 and then stalls before caching it.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := e.GetLedger(ctx, "u1"); err != nil {
			t.Errorf("cold read failed: %v", err)
		}
	}()
	<-store.started

	// A mutation commits version 2 and caches it while the cold read hangs.
	if _, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Muz", Calories: 100}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	close(store.release)
	<-done

	// The stalled read must not have clobbered the committed snapshot.
	rec, err := e.GetDayRecord(ctx, "u1", "2024-03-04")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(rec) != 2 {
		t.Fatalf("expected 2 entries after commit, got %v", rec)
	}
}

// recordingPublisher captures published change notifications.
type recordingPublisher struct {
	mu      sync.Mutex
	userIDs []string
	err     error
}

func (p *recordingPublisher) PublishLedgerChanged(_ context.Context, userID string, _ int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userIDs = append(p.userIDs, userID)
	return p.err
}

func TestPublishAfterCommit(t *testing.T) {
	pub := &recordingPublisher{}
	e := New(memory.New(), Options{Publisher: pub})
	ctx := context.Background()

	if _, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Elma", Calories: 80}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(pub.userIDs) != 1 || pub.userIDs[0] != "u1" {
		t.Fatalf("expected one published change for u1, got %v", pub.userIDs)
	}

	// A failing publisher must not fail the mutation.
	pub.err = errors.New("broker down")
	if _, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Muz", Calories: 100}); err != nil {
		t.Fatalf("mutation must commit despite publish failure: %v", err)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	store := memory.New()
	e := New(store, Options{CacheTTL: time.Hour})
	ctx := context.Background()

	if _, err := e.AddEntry(ctx, "u1", "2024-03-04", core.Entry{Food: "Elma", Calories: 80}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Another process writes behind this engine's back.
	_, version, err := store.Read(ctx, docstore.CollectionLedgers, "u1")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if _, err := store.Write(ctx, docstore.CollectionLedgers, "u1",
		[]byte(`{"2024-03-04":[{"food":"Elma","calories":80},{"food":"Muz","calories":100}]}`), version); err != nil {
		t.Fatalf("external write failed: %v", err)
	}

	// Cached snapshot still shows one entry until invalidated.
	rec, err := e.GetDayRecord(ctx, "u1", "2024-03-04")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(rec) != 1 {
		t.Fatalf("expected stale snapshot with 1 entry, got %v", rec)
	}

	e.Invalidate("u1")
	rec, err = e.GetDayRecord(ctx, "u1", "2024-03-04")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(rec) != 2 {
		t.Fatalf("expected reloaded snapshot with 2 entries, got %v", rec)
	}
}
