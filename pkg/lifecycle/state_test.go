package lifecycle

import (
	"errors"
	"testing"
)

func TestState_CanTransition(t *testing.T) {
	tests := []struct {
		from State
		to   State
		want bool
	}{
		{StateNew, StateInstalling, true},
		{StateInstalling, StateInstalled, true},
		{StateInstalled, StateActivating, true},
		{StateActivating, StateActivated, true},
		{StateNew, StateActivated, false},
		{StateInstalled, StateActivated, false},
		{StateActivated, StateInstalling, false},
		{StateRedundant, StateInstalling, false},
		{StateNew, StateRedundant, true},
		{StateActivated, StateRedundant, true},
		{StateRedundant, StateRedundant, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckTransition(t *testing.T) {
	if err := checkTransition(StateNew, StateActivating); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("checkTransition() error = %v, want ErrInvalidTransition", err)
	}
	if err := checkTransition(StateNew, StateInstalling); err != nil {
		t.Errorf("checkTransition() error = %v, want nil", err)
	}
}

func TestState_Waiting(t *testing.T) {
	if !StateInstalled.Waiting() {
		t.Error("installed should be waiting")
	}
	if StateActivated.Waiting() {
		t.Error("activated should not be waiting")
	}
}
