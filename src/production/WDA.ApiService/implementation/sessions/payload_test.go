package sessions

import (
	"errors"
	"testing"

	wdamodels "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models"
)

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var v *InputValidationError
	if !errors.As(err, &v) {
		t.Fatalf("error = %v, want *InputValidationError", err)
	}
	return v.Message
}

func TestDecodeSave(t *testing.T) {
	u, err := DecodeSave([]byte(`{
		"deviceId": " w-1 ",
		"heartRate": 0,
		"accelerometer": {"x": 0.1, "y": -0.2, "z": 9.8},
		"gyroscope": {"x": "1.5", "y": 2, "z": "-3"},
		"steps": 0,
		"battery": 80
	}`))
	if err != nil {
		t.Fatalf("DecodeSave() error = %v", err)
	}
	if u.DeviceID != "w-1" {
		t.Errorf("DeviceID = %q, want trimmed w-1", u.DeviceID)
	}
	if u.HeartRate == nil || *u.HeartRate != 0 {
		t.Errorf("HeartRate = %v, want 0", u.HeartRate)
	}
	if u.Steps == nil || *u.Steps != 0 {
		t.Errorf("Steps = %v, want 0", u.Steps)
	}
	if u.Accelerometer == nil || *u.Accelerometer != (wdamodels.Vector3{X: 0.1, Y: -0.2, Z: 9.8}) {
		t.Errorf("Accelerometer = %v", u.Accelerometer)
	}
	if u.Gyroscope == nil || *u.Gyroscope != (wdamodels.Vector3{X: 1.5, Y: 2, Z: -3}) {
		t.Errorf("Gyroscope = %v", u.Gyroscope)
	}
}

func TestDecodeSave_OnlyDeviceID(t *testing.T) {
	u, err := DecodeSave([]byte(`{"deviceId":"w-1"}`))
	if err != nil {
		t.Fatalf("DecodeSave() error = %v", err)
	}
	if len(u.Fields()) != 0 {
		t.Errorf("Fields() = %v, want none", u.Fields())
	}
}

func TestDecodeSave_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `{`, msgInvalidBody},
		{"array body", `[1,2]`, msgInvalidBody},
		{"null body", `null`, msgInvalidBody},
		{"missing deviceId", `{"heartRate":70}`, msgDeviceIDRequired},
		{"empty deviceId", `{"deviceId":"  "}`, msgDeviceIDRequired},
		{"null deviceId", `{"deviceId":null}`, msgDeviceIDRequired},
		{"numeric deviceId", `{"deviceId":12}`, msgDeviceIDString},
		{"negative heart rate", `{"deviceId":"d","heartRate":-1}`, msgHeartRateInvalid},
		{"null heart rate", `{"deviceId":"d","heartRate":null}`, msgHeartRateInvalid},
		{"string heart rate", `{"deviceId":"d","heartRate":"70"}`, msgHeartRateInvalid},
		{"fractional steps", `{"deviceId":"d","steps":1.5}`, msgStepsInvalid},
		{"negative steps", `{"deviceId":"d","steps":-3}`, msgStepsInvalid},
		{"accelerometer missing axis", `{"deviceId":"d","accelerometer":{"x":1,"y":2}}`, msgAccelerometerAxes},
		{"accelerometer string axis", `{"deviceId":"d","accelerometer":{"x":"1","y":2,"z":3}}`, msgAccelerometerAxes},
		{"gyroscope bad axis", `{"deviceId":"d","gyroscope":{"x":"abc","y":2,"z":3}}`, msgGyroscopeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSave([]byte(tt.body))
			if got := validationMessage(t, err); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeHeartRate(t *testing.T) {
	id, hr, err := DecodeHeartRate([]byte(`{"deviceId":"w-1","heartRate":0}`))
	if err != nil {
		t.Fatalf("DecodeHeartRate() error = %v", err)
	}
	if id != "w-1" || hr != 0 {
		t.Errorf("got (%q, %v), want (w-1, 0)", id, hr)
	}

	for _, body := range []string{`{"heartRate":70}`, `{"deviceId":"w-1"}`, `{"deviceId":"","heartRate":70}`} {
		_, _, err := DecodeHeartRate([]byte(body))
		if got := validationMessage(t, err); got != "deviceId and heartRate are required" {
			t.Errorf("%s: message = %q", body, got)
		}
	}
}

func TestDecodeAccelerometer(t *testing.T) {
	id, v, err := DecodeAccelerometer([]byte(`{"deviceId":"w-1","accelerometer":{"x":1,"y":2,"z":3}}`))
	if err != nil {
		t.Fatalf("DecodeAccelerometer() error = %v", err)
	}
	if id != "w-1" || v != (wdamodels.Vector3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("got (%q, %v)", id, v)
	}

	_, _, err = DecodeAccelerometer([]byte(`{"deviceId":"w-1","accelerometer":null}`))
	if got := validationMessage(t, err); got != "deviceId and accelerometer are required" {
		t.Errorf("null accelerometer message = %q", got)
	}
}

func TestDecodeGyroscope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    wdamodels.Vector3
		wantErr string
	}{
		{"numbers", `{"deviceId":"g","gyroscope":{"x":1,"y":2.5,"z":-3}}`, wdamodels.Vector3{X: 1, Y: 2.5, Z: -3}, ""},
		{"numeric strings", `{"deviceId":"g","gyroscope":{"x":"1","y":" 2.5 ","z":"-3e0"}}`, wdamodels.Vector3{X: 1, Y: 2.5, Z: -3}, ""},
		{"non numeric axis", `{"deviceId":"g","gyroscope":{"x":"abc","y":2,"z":3}}`, wdamodels.Vector3{}, msgGyroscopeInvalid},
		{"trailing garbage", `{"deviceId":"g","gyroscope":{"x":"12abc","y":2,"z":3}}`, wdamodels.Vector3{}, msgGyroscopeInvalid},
		{"missing axis", `{"deviceId":"g","gyroscope":{"x":1,"y":2}}`, wdamodels.Vector3{}, msgGyroscopeInvalid},
		{"null axis", `{"deviceId":"g","gyroscope":{"x":1,"y":null,"z":3}}`, wdamodels.Vector3{}, msgGyroscopeInvalid},
		{"not an object", `{"deviceId":"g","gyroscope":5}`, wdamodels.Vector3{}, msgGyroscopeInvalid},
		{"missing gyroscope", `{"deviceId":"g"}`, wdamodels.Vector3{}, "deviceId and gyroscope are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got, err := DecodeGyroscope([]byte(tt.body))
			if tt.wantErr != "" {
				if msg := validationMessage(t, err); msg != tt.wantErr {
					t.Errorf("message = %q, want %q", msg, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeGyroscope() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeGyroscope() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeSteps(t *testing.T) {
	_, steps, err := DecodeSteps([]byte(`{"deviceId":"w-1","steps":12000}`))
	if err != nil {
		t.Fatalf("DecodeSteps() error = %v", err)
	}
	if steps != 12000 {
		t.Errorf("steps = %d, want 12000", steps)
	}

	_, _, err = DecodeSteps([]byte(`{"deviceId":"w-1","steps":"many"}`))
	if got := validationMessage(t, err); got != msgStepsInvalid {
		t.Errorf("message = %q, want %q", got, msgStepsInvalid)
	}
}
