// Package store persists entities and battles and owns their counters.
//
// The core treats this as a document store: read a record or the whole
// collection, write records back, apply per-entity counter updates. No
// server-side ranking happens here; ranking always re-reads the full
// snapshot and computes client-side.
package store

import (
	"context"

	"github.com/jwpark-dev/facearena/internal/domain/model"
)

// Store provides read/write access to entities and battles.
type Store interface {
	// SaveEntity inserts a new entity record.
	SaveEntity(ctx context.Context, e *model.Entity) error

	// Entity returns one entity by id. Returns ErrNotFound when unknown.
	Entity(ctx context.Context, id string) (*model.Entity, error)

	// Entities returns the full entity snapshot for one gender partition.
	// An empty gender returns all partitions.
	Entities(ctx context.Context, gender model.Gender) ([]model.Entity, error)

	// RandomOpponents picks up to n random entities from the given
	// partition, excluding excludeID.
	RandomOpponents(ctx context.Context, gender model.Gender, excludeID string, n int) ([]model.Entity, error)

	// IncrementStats applies one battle outcome to one entity's counters
	// as a single atomic update. Returns ErrNotFound when the record does
	// not exist (yet).
	IncrementStats(ctx context.Context, id string, won bool) error

	// SaveBattle inserts an immutable battle record.
	SaveBattle(ctx context.Context, b *model.Battle) error

	// Battle returns one battle by id. Returns ErrNotFound when unknown.
	Battle(ctx context.Context, id string) (*model.Battle, error)

	// CountEntities returns the number of stored entities.
	CountEntities(ctx context.Context) (int64, error)

	// Reconcile repairs integrity faults in stored counters: merges the
	// legacy wins column, clamps win_count to battle_count, and recomputes
	// loss_count. Returns the number of repaired records.
	Reconcile(ctx context.Context) (int64, error)

	// Close releases the underlying database handle.
	Close() error
}
