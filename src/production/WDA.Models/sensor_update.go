package wdamodels

import "go.mongodb.org/mongo-driver/bson/primitive"

// Field names a sensor value that a partial update can carry
type Field string

const (
	HeartRate     Field = "heartRate"
	Accelerometer Field = "accelerometer"
	Gyroscope     Field = "gyroscope"
	Steps         Field = "steps"
)

// GyroscopeMode controls how a gyroscope value is written
type GyroscopeMode int

const (
	// GyroscopeWhole replaces the gyroscope sub-document
	GyroscopeWhole GyroscopeMode = iota
	// GyroscopePerAxis sets gyroscope.x, gyroscope.y and gyroscope.z individually
	GyroscopePerAxis
)

// SensorUpdate is a partial write for one device. A nil pointer means the
// field was not submitted and must not touch the stored value.
type SensorUpdate struct {
	DeviceID      string
	HeartRate     *float64
	Accelerometer *Vector3
	Gyroscope     *Vector3
	GyroscopeMode GyroscopeMode
	Steps         *int64
}

// Fields returns the tags of the fields present in the update, in a stable order
func (u SensorUpdate) Fields() []Field {
	fields := make([]Field, 0, 4)
	if u.HeartRate != nil {
		fields = append(fields, HeartRate)
	}
	if u.Accelerometer != nil {
		fields = append(fields, Accelerometer)
	}
	if u.Gyroscope != nil {
		fields = append(fields, Gyroscope)
	}
	if u.Steps != nil {
		fields = append(fields, Steps)
	}
	return fields
}

// Outcome tells whether an upsert created a session or modified an existing one
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
)

// UpsertResult is the tagged result of a session write
type UpsertResult struct {
	Outcome       Outcome            `json:"outcome"`
	ID            primitive.ObjectID `json:"id"`
	FieldsChanged []Field            `json:"fieldsChanged,omitempty"`
}

// Created reports whether the write created a new session
func (r UpsertResult) Created() bool {
	return r.Outcome == OutcomeCreated
}
