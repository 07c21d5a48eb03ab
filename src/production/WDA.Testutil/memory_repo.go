// Package testutil holds in-memory doubles shared by the service tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	wdamodels "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models"
	interfaces "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemorySessionRepository is a mutex guarded SessionRepository with the same
// upsert semantics as the Mongo implementation.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*wdamodels.SensorSession

	// Err, when set, is returned by every call
	Err error

	upserts int
}

var _ interfaces.SessionRepository = (*MemorySessionRepository)(nil)

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*wdamodels.SensorSession)}
}

func (r *MemorySessionRepository) Upsert(_ context.Context, u wdamodels.SensorUpdate, at time.Time) (wdamodels.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return wdamodels.UpsertResult{}, r.Err
	}
	r.upserts++
	at = wdamodels.Timestamp(at)

	s, ok := r.sessions[u.DeviceID]
	created := !ok
	if created {
		s = &wdamodels.SensorSession{ID: primitive.NewObjectID(), DeviceID: u.DeviceID, CreatedAt: at}
		r.sessions[u.DeviceID] = s
	}

	if u.HeartRate != nil {
		v := *u.HeartRate
		s.HeartRate = &v
	}
	if u.Accelerometer != nil {
		v := *u.Accelerometer
		s.Accelerometer = &v
	}
	if u.Gyroscope != nil {
		v := *u.Gyroscope
		s.Gyroscope = &v
	}
	if u.Steps != nil {
		v := *u.Steps
		s.Steps = &v
	}
	s.UpdatedAt = at

	if created {
		return wdamodels.UpsertResult{Outcome: wdamodels.OutcomeCreated, ID: s.ID}, nil
	}
	return wdamodels.UpsertResult{Outcome: wdamodels.OutcomeUpdated, ID: s.ID, FieldsChanged: u.Fields()}, nil
}

func (r *MemorySessionRepository) FindByDevice(_ context.Context, deviceID string) (*wdamodels.SensorSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	s, ok := r.sessions[deviceID]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	c := copySession(s)
	return &c, nil
}

func (r *MemorySessionRepository) List(_ context.Context, limit int64) ([]wdamodels.SensorSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]wdamodels.SensorSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, copySession(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored sessions
func (r *MemorySessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Upserts returns how many writes reached the repository
func (r *MemorySessionRepository) Upserts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts
}

func copySession(s *wdamodels.SensorSession) wdamodels.SensorSession {
	c := *s
	if s.HeartRate != nil {
		v := *s.HeartRate
		c.HeartRate = &v
	}
	if s.Accelerometer != nil {
		v := *s.Accelerometer
		c.Accelerometer = &v
	}
	if s.Gyroscope != nil {
		v := *s.Gyroscope
		c.Gyroscope = &v
	}
	if s.Steps != nil {
		v := *s.Steps
		c.Steps = &v
	}
	return c
}

// FixedClock returns successive instants one millisecond apart starting at start
func FixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Millisecond)
		return t
	}
}
