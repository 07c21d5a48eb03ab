package wdamodels

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vector3 is a three-axis sensor sample (accelerometer or gyroscope)
type Vector3 struct {
	X float64 `bson:"x" json:"x"`
	Y float64 `bson:"y" json:"y"`
	Z float64 `bson:"z" json:"z"`
}

// SensorSession is the single document kept per device with its latest readings
type SensorSession struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	DeviceID      string             `bson:"deviceId" json:"deviceId"`
	HeartRate     *float64           `bson:"heartRate,omitempty" json:"heartRate,omitempty"`
	Accelerometer *Vector3           `bson:"accelerometer,omitempty" json:"accelerometer,omitempty"`
	Gyroscope     *Vector3           `bson:"gyroscope,omitempty" json:"gyroscope,omitempty"`
	Steps         *int64             `bson:"steps,omitempty" json:"steps,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Stored field names
const (
	FieldDeviceID  = "deviceId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Timestamp returns t in the precision the document store keeps (UTC milliseconds)
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
