package sessions

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	logger "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Logger"
	wdamodels "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models"
	interfaces "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Repository/Interfaces"
)

// Operation names a write path; used for metrics and logs
type Operation string

const (
	OpSave          Operation = "save"
	OpHeartRate     Operation = "heart_rate"
	OpAccelerometer Operation = "accelerometer"
	OpGyroscope     Operation = "gyroscope"
	OpSteps         Operation = "steps"
)

const (
	kindValidation  = "validation"
	kindPersistence = "persistence"
)

// Recorder receives write outcomes; *metrics.Metrics satisfies it
type Recorder interface {
	WriteSucceeded(operation, outcome string)
	WriteFailed(operation, kind string)
}

type nopRecorder struct{}

func (nopRecorder) WriteSucceeded(string, string) {}
func (nopRecorder) WriteFailed(string, string)    {}

// Service turns partial sensor payloads into a single upsert per request
type Service struct {
	repo    interfaces.SessionRepository
	log     *logger.Logger
	metrics Recorder
	now     func() time.Time

	clockMu  sync.Mutex
	lastTick time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// NewService creates the session service
func NewService(repo interfaces.SessionRepository, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		repo:    repo,
		log:     log.WithComponent("sessions"),
		metrics: nopRecorder{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save creates the device session from every present field, or merges the
// present fields into the existing one. The gyroscope is replaced as a whole.
func (s *Service) Save(ctx context.Context, u wdamodels.SensorUpdate) (wdamodels.UpsertResult, error) {
	u.GyroscopeMode = wdamodels.GyroscopeWhole
	return s.write(ctx, OpSave, u)
}

// UpdateHeartRate sets heartRate for the device, creating its session if needed
func (s *Service) UpdateHeartRate(ctx context.Context, deviceID string, bpm float64) (wdamodels.UpsertResult, error) {
	return s.write(ctx, OpHeartRate, wdamodels.SensorUpdate{DeviceID: deviceID, HeartRate: &bpm})
}

// UpdateAccelerometer replaces the accelerometer reading
func (s *Service) UpdateAccelerometer(ctx context.Context, deviceID string, v wdamodels.Vector3) (wdamodels.UpsertResult, error) {
	return s.write(ctx, OpAccelerometer, wdamodels.SensorUpdate{DeviceID: deviceID, Accelerometer: &v})
}

// UpdateGyroscope sets the three gyroscope axes individually
func (s *Service) UpdateGyroscope(ctx context.Context, deviceID string, v wdamodels.Vector3) (wdamodels.UpsertResult, error) {
	return s.write(ctx, OpGyroscope, wdamodels.SensorUpdate{
		DeviceID:      deviceID,
		Gyroscope:     &v,
		GyroscopeMode: wdamodels.GyroscopePerAxis,
	})
}

// UpdateSteps sets the step count
func (s *Service) UpdateSteps(ctx context.Context, deviceID string, steps int64) (wdamodels.UpsertResult, error) {
	return s.write(ctx, OpSteps, wdamodels.SensorUpdate{DeviceID: deviceID, Steps: &steps})
}

// List returns sessions ordered by updatedAt descending; limit <= 0 returns all
func (s *Service) List(ctx context.Context, limit int64) ([]wdamodels.SensorSession, error) {
	sessions, err := s.repo.List(ctx, limit)
	if err != nil {
		s.log.ErrorWithError(err, "Failed to list sessions")
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return sessions, nil
}

// Get returns the session of one device
func (s *Service) Get(ctx context.Context, deviceID string) (*wdamodels.SensorSession, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, invalid(fieldDeviceID, msgDeviceIDRequired)
	}
	session, err := s.repo.FindByDevice(ctx, deviceID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		s.log.WithDevice(deviceID).ErrorWithError(err, "Failed to load session")
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return session, nil
}

func (s *Service) write(ctx context.Context, op Operation, u wdamodels.SensorUpdate) (wdamodels.UpsertResult, error) {
	u.DeviceID = strings.TrimSpace(u.DeviceID)
	if err := validate(op, u); err != nil {
		s.metrics.WriteFailed(string(op), kindValidation)
		return wdamodels.UpsertResult{}, err
	}

	log := s.log.WithDevice(u.DeviceID).WithField("operation", string(op))
	res, err := s.repo.Upsert(ctx, u, s.tick())
	if err != nil {
		s.metrics.WriteFailed(string(op), kindPersistence)
		log.ErrorWithError(err, "Session write failed")
		return wdamodels.UpsertResult{}, &PersistenceError{Op: string(op), Err: err}
	}

	s.metrics.WriteSucceeded(string(op), string(res.Outcome))
	log.Logger.Debug().
		Str("outcome", string(res.Outcome)).
		Str("id", res.ID.Hex()).
		Msg("Session written")
	return res, nil
}

// tick returns the write timestamp: the clock at millisecond precision, moved
// forward so that successive writes never share a value
func (s *Service) tick() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := wdamodels.Timestamp(s.now())
	if !t.After(s.lastTick) {
		t = s.lastTick.Add(time.Millisecond)
	}
	s.lastTick = t
	return t
}

// validate guards callers that build updates without the Decode functions
func validate(op Operation, u wdamodels.SensorUpdate) error {
	if u.DeviceID == "" {
		if op == OpSave {
			return invalid(fieldDeviceID, msgDeviceIDRequired)
		}
		if fields := u.Fields(); len(fields) == 1 {
			return invalid(fieldDeviceID, requiredMessage(fields[0]))
		}
		return invalid(fieldDeviceID, msgDeviceIDRequired)
	}
	if u.HeartRate != nil && !nonNegativeFinite(*u.HeartRate) {
		return invalid(string(wdamodels.HeartRate), msgHeartRateInvalid)
	}
	if u.Steps != nil && (*u.Steps < 0 || *u.Steps > maxSafeInteger) {
		return invalid(string(wdamodels.Steps), msgStepsInvalid)
	}
	if u.Accelerometer != nil && !finiteVector(*u.Accelerometer) {
		return invalid(string(wdamodels.Accelerometer), msgAccelerometerAxes)
	}
	if u.Gyroscope != nil && !finiteVector(*u.Gyroscope) {
		return invalid(string(wdamodels.Gyroscope), msgGyroscopeInvalid)
	}
	return nil
}

func nonNegativeFinite(f float64) bool {
	return f >= 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func finiteVector(v wdamodels.Vector3) bool {
	for _, f := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return false
		}
	}
	return true
}
