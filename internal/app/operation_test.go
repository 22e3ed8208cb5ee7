package app

import (
	"errors"
	"testing"

	"gsm-go/internal/gsm"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name       string
		operation  string
		parameters string
	}{
		{
			name:       "with parameters",
			operation:  "snapshot create",
			parameters: "game=Hades",
		},
		{
			name:       "empty parameters",
			operation:  "cloud upload",
			parameters: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.operation, tt.parameters)

			if op.Name != tt.operation {
				t.Errorf("Name = %q, want %q", op.Name, tt.operation)
			}
			if op.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", op.Parameters, tt.parameters)
			}
			if op.Status != gsm.OperationSuccess {
				t.Errorf("Status = %q, want %q", op.Status, gsm.OperationSuccess)
			}
			if op.ID != 0 {
				t.Errorf("ID = %d, want 0", op.ID)
			}
		})
	}
}

func TestOperation_Persisted(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		want bool
	}{
		{name: "not persisted when ID is 0", id: 0, want: false},
		{name: "persisted when ID is positive", id: 1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &Operation{ID: tt.id}
			if got := op.Persisted(); got != tt.want {
				t.Errorf("Persisted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperation_Fail(t *testing.T) {
	op := NewOperation("snapshot restore", "")
	op.Fail(nil)
	if op.Status != gsm.OperationSuccess {
		t.Errorf("Fail(nil) changed status to %q", op.Status)
	}
	op.Fail(errors.New("boom"))
	if op.Status != gsm.OperationFailed || op.Message != "boom" {
		t.Errorf("after Fail() = %+v", op)
	}
}
