package api_models

import (
	wdamodels "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models"
)

// MessageSessionCreated is reported by every write that created a session
const MessageSessionCreated = "New session created"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SessionListResponse is returned by GET /api/sensor-data
type SessionListResponse struct {
	Success bool                      `json:"success"`
	Data    []wdamodels.SensorSession `json:"data"`
}

// SessionResponse is returned by GET /api/sensor-data/:deviceId
type SessionResponse struct {
	Success bool                     `json:"success"`
	Data    *wdamodels.SensorSession `json:"data"`
}

// WriteResponse reports the outcome of a session write.
// InsertedID and UpdatedID both carry the document id.
type WriteResponse struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	Outcome       wdamodels.Outcome `json:"outcome"`
	ID            string            `json:"id"`
	InsertedID    string            `json:"insertedId,omitempty"`
	UpdatedID     string            `json:"updatedId,omitempty"`
	FieldsChanged []wdamodels.Field `json:"fieldsChanged,omitempty"`
}

// NewWriteResponse builds the response for result; updatedMessage is used when
// an existing session was modified.
func NewWriteResponse(result wdamodels.UpsertResult, updatedMessage string) WriteResponse {
	id := result.ID.Hex()
	if result.Created() {
		return WriteResponse{
			Success:    true,
			Message:    MessageSessionCreated,
			Outcome:    result.Outcome,
			ID:         id,
			InsertedID: id,
		}
	}
	return WriteResponse{
		Success:       true,
		Message:       updatedMessage,
		Outcome:       result.Outcome,
		ID:            id,
		UpdatedID:     id,
		FieldsChanged: result.FieldsChanged,
	}
}
