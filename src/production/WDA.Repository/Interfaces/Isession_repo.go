package interfaces

import (
	"context"
	"errors"
	"time"

	wdamodels "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models"
)

// ErrNotFound is returned when no session exists for a device
var ErrNotFound = errors.New("session not found")

type SessionRepository interface {
	// Upsert applies update to the device's session, creating it when absent.
	// at is written as updatedAt, and as createdAt on creation.
	Upsert(ctx context.Context, update wdamodels.SensorUpdate, at time.Time) (wdamodels.UpsertResult, error)

	// Read sessions
	FindByDevice(ctx context.Context, deviceID string) (*wdamodels.SensorSession, error)
	List(ctx context.Context, limit int64) ([]wdamodels.SensorSession, error)
}

// IndexManager is implemented by repositories that maintain store indexes
type IndexManager interface {
	EnsureIndexes(ctx context.Context) error
}
