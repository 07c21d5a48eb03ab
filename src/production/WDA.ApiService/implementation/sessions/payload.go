package sessions

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	wdamodels "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models"
)

// Largest integer a JSON number carries exactly
const maxSafeInteger = 1<<53 - 1

const (
	msgInvalidBody       = "Invalid JSON body"
	msgDeviceIDRequired  = "deviceId is required"
	msgDeviceIDString    = "deviceId must be a string"
	msgHeartRateInvalid  = "heartRate must be a non-negative number"
	msgStepsInvalid      = "steps must be a non-negative integer"
	msgAccelerometerAxes = "accelerometer must have numeric x, y and z"
	msgGyroscopeInvalid  = "Invalid gyroscope values"
	fieldDeviceID        = "deviceId"
	fieldBody            = "body"
)

type rawBody map[string]json.RawMessage

func parseBody(body []byte) (rawBody, error) {
	var raw rawBody
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, invalid(fieldBody, msgInvalidBody)
	}
	return raw, nil
}

// present reports whether key was sent with a non-null value
func (b rawBody) present(key string) bool {
	v, ok := b[key]
	return ok && !isNull(v)
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// deviceID returns the trimmed device id; requiredMsg is used when it is missing or blank
func (b rawBody) deviceID(requiredMsg string) (string, error) {
	if !b.present(fieldDeviceID) {
		return "", invalid(fieldDeviceID, requiredMsg)
	}
	var id string
	if err := json.Unmarshal(b[fieldDeviceID], &id); err != nil {
		return "", invalid(fieldDeviceID, msgDeviceIDString)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", invalid(fieldDeviceID, requiredMsg)
	}
	return id, nil
}

func requiredMessage(field wdamodels.Field) string {
	return "deviceId and " + string(field) + " are required"
}

func decodeHeartRate(v json.RawMessage) (float64, error) {
	var f float64
	if isNull(v) || json.Unmarshal(v, &f) != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, invalid(string(wdamodels.HeartRate), msgHeartRateInvalid)
	}
	return f, nil
}

func decodeSteps(v json.RawMessage) (int64, error) {
	var f float64
	if isNull(v) || json.Unmarshal(v, &f) != nil || f < 0 || f != math.Trunc(f) || f > maxSafeInteger {
		return 0, invalid(string(wdamodels.Steps), msgStepsInvalid)
	}
	return int64(f), nil
}

func decodeAccelerometer(v json.RawMessage) (wdamodels.Vector3, error) {
	var axes struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
		Z *float64 `json:"z"`
	}
	if isNull(v) || json.Unmarshal(v, &axes) != nil || axes.X == nil || axes.Y == nil || axes.Z == nil {
		return wdamodels.Vector3{}, invalid(string(wdamodels.Accelerometer), msgAccelerometerAxes)
	}
	return wdamodels.Vector3{X: *axes.X, Y: *axes.Y, Z: *axes.Z}, nil
}

// decodeGyroscope accepts each axis as a JSON number or a numeric string.
// Any axis that does not parse rejects the whole value.
func decodeGyroscope(v json.RawMessage) (wdamodels.Vector3, error) {
	var axes map[string]json.RawMessage
	if isNull(v) || json.Unmarshal(v, &axes) != nil || axes == nil {
		return wdamodels.Vector3{}, invalid(string(wdamodels.Gyroscope), msgGyroscopeInvalid)
	}
	var out [3]float64
	for i, key := range [3]string{"x", "y", "z"} {
		f, ok := parseAxis(axes[key])
		if !ok {
			return wdamodels.Vector3{}, invalid(string(wdamodels.Gyroscope), msgGyroscopeInvalid)
		}
		out[i] = f
	}
	return wdamodels.Vector3{X: out[0], Y: out[1], Z: out[2]}, nil
}

func parseAxis(v json.RawMessage) (float64, bool) {
	if len(v) == 0 || isNull(v) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// DecodeSave parses a full session body. deviceId is required; every other
// known field is optional and validated when present. Unknown fields are ignored.
func DecodeSave(body []byte) (wdamodels.SensorUpdate, error) {
	raw, err := parseBody(body)
	if err != nil {
		return wdamodels.SensorUpdate{}, err
	}
	id, err := raw.deviceID(msgDeviceIDRequired)
	if err != nil {
		return wdamodels.SensorUpdate{}, err
	}

	u := wdamodels.SensorUpdate{DeviceID: id, GyroscopeMode: wdamodels.GyroscopeWhole}
	if v, ok := raw[string(wdamodels.HeartRate)]; ok {
		hr, err := decodeHeartRate(v)
		if err != nil {
			return wdamodels.SensorUpdate{}, err
		}
		u.HeartRate = &hr
	}
	if v, ok := raw[string(wdamodels.Accelerometer)]; ok {
		acc, err := decodeAccelerometer(v)
		if err != nil {
			return wdamodels.SensorUpdate{}, err
		}
		u.Accelerometer = &acc
	}
	if v, ok := raw[string(wdamodels.Gyroscope)]; ok {
		gyro, err := decodeGyroscope(v)
		if err != nil {
			return wdamodels.SensorUpdate{}, err
		}
		u.Gyroscope = &gyro
	}
	if v, ok := raw[string(wdamodels.Steps)]; ok {
		steps, err := decodeSteps(v)
		if err != nil {
			return wdamodels.SensorUpdate{}, err
		}
		u.Steps = &steps
	}
	return u, nil
}

// single parses a body carrying deviceId and exactly one required field
func single(body []byte, field wdamodels.Field) (string, json.RawMessage, error) {
	raw, err := parseBody(body)
	if err != nil {
		return "", nil, err
	}
	msg := requiredMessage(field)
	id, err := raw.deviceID(msg)
	if err != nil {
		return "", nil, err
	}
	v, ok := raw[string(field)]
	if !ok {
		return "", nil, invalid(string(field), msg)
	}
	return id, v, nil
}

// DecodeHeartRate parses {deviceId, heartRate}
func DecodeHeartRate(body []byte) (string, float64, error) {
	id, v, err := single(body, wdamodels.HeartRate)
	if err != nil {
		return "", 0, err
	}
	hr, err := decodeHeartRate(v)
	return id, hr, err
}

// DecodeAccelerometer parses {deviceId, accelerometer:{x,y,z}}
func DecodeAccelerometer(body []byte) (string, wdamodels.Vector3, error) {
	id, v, err := single(body, wdamodels.Accelerometer)
	if err != nil {
		return "", wdamodels.Vector3{}, err
	}
	if isNull(v) {
		return "", wdamodels.Vector3{}, invalid(string(wdamodels.Accelerometer), requiredMessage(wdamodels.Accelerometer))
	}
	acc, err := decodeAccelerometer(v)
	return id, acc, err
}

// DecodeGyroscope parses {deviceId, gyroscope:{x,y,z}}
func DecodeGyroscope(body []byte) (string, wdamodels.Vector3, error) {
	id, v, err := single(body, wdamodels.Gyroscope)
	if err != nil {
		return "", wdamodels.Vector3{}, err
	}
	if isNull(v) {
		return "", wdamodels.Vector3{}, invalid(string(wdamodels.Gyroscope), requiredMessage(wdamodels.Gyroscope))
	}
	gyro, err := decodeGyroscope(v)
	return id, gyro, err
}

// DecodeSteps parses {deviceId, steps}
func DecodeSteps(body []byte) (string, int64, error) {
	id, v, err := single(body, wdamodels.Steps)
	if err != nil {
		return "", 0, err
	}
	steps, err := decodeSteps(v)
	return id, steps, err
}
