package market

import "context"

// Persistence hooks let the watch engine mirror resolved snapshots to
// external stores. The engine never reads back through this interface; it is
// a write-only sink. A nil Persistence disables mirroring.
type Persistence interface {
	// RecordSnapshot persists a single resolved token snapshot.
	RecordSnapshot(ctx context.Context, provider string, snap *TokenSnapshot) error
}
