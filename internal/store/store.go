// Package store provides durability sinks for the board: a saved collection,
// when loaded, reproduces every task exactly. The wire format is the sink's
// own concern.
package store

import (
	"context"

	"github.com/tverenko/flowboard/internal/model"
)

// Store persists and restores the full task collection. Save is called
// synchronously for every board mutation, so implementations should be cheap
// at board scale.
type Store interface {
	Save(ctx context.Context, tasks []model.Task) error
	Load(ctx context.Context) ([]model.Task, error)
}
