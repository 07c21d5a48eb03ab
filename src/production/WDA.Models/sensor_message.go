package wdamodels

import (
	"encoding/json"
	"time"
)

// SensorMessage is a single-field reading received over MQTT and queued for forwarding
type SensorMessage struct {
	DeviceID   string          `json:"device_id"`
	Metric     string          `json:"metric"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// IngestError is published on the error feedback topic of a device
type IngestError struct {
	ErrorType string    `json:"error_type"`
	Message   string    `json:"message"`
	DeviceID  string    `json:"device_id"`
	Topic     string    `json:"topic,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
