// Package docstore defines the outbound port for per-user document
// persistence. A document is one opaque JSON blob per (collection, user);
// the ledger engine reads and rewrites it wholesale, so the port exposes a
// version token and a compare-and-swap write instead of a blind overwrite.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// Logical collections. "ledgers" holds one calorie ledger per user,
// "profiles" one profile per user.
const (
	CollectionLedgers  = "ledgers"
	CollectionProfiles = "profiles"
)

type (
	// Document is the raw JSON body of a stored document.
	Document = json.RawMessage

	// Version is a monotonically increasing document revision.
	// Zero means the document does not exist yet.
	Version int64
)

var (
	// ErrUnavailable covers every infrastructure failure of a backend:
	// network, permission, quota. Callers retry with backoff or surface it;
	// they never need to distinguish the underlying cause.
	ErrUnavailable = errors.New("document store unavailable")

	// ErrConflict is returned by Write when the stored version no longer
	// matches the expected one: a concurrent writer committed first.
	ErrConflict = errors.New("document version conflict")
)

// Store is the port implemented by every backend.
type Store interface {
	// Read returns the document and its current version. An absent
	// document is (nil, 0, nil), not an error.
	Read(ctx context.Context, collection, userID string) (Document, Version, error)

	// Write stores doc if the current version still equals expected
	// (expected 0 = create). It returns the new version, or ErrConflict
	// without writing when a concurrent update got there first.
	Write(ctx context.Context, collection, userID string, doc Document, expected Version) (Version, error)
}
