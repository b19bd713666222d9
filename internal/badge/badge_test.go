package badge

import (
	"encoding/json"
	"testing"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"bool true", true, true},
		{"string true", "true", true},
		{"int one", 1, true},
		{"string one", "1", true},
		{"float one", float64(1), true},
		{"json number one", json.Number("1"), true},
		{"raw true", json.RawMessage(`true`), true},
		{"raw string one", json.RawMessage(`"1"`), true},
		{"bool false", false, false},
		{"string false", "false", false},
		{"int zero", 0, false},
		{"nil", nil, false},
		{"raw null", json.RawMessage(`null`), false},
		{"raw empty", json.RawMessage(nil), false},
		{"two", 2, false},
		{"yes", "yes", false},
		{"capital True", "True", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truthy(tt.in); got != tt.want {
				t.Errorf("Truthy(%#v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPresent(t *testing.T) {
	var v struct {
		A json.RawMessage `json:"a"`
		B json.RawMessage `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":null}`), &v); err != nil {
		t.Fatal(err)
	}
	if !Present(v.A) {
		t.Error("explicit null should be present")
	}
	if Present(v.B) {
		t.Error("absent field should not be present")
	}
}
