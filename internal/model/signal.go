package model

import (
	"encoding/json"
	"fmt"
)

type AreaStatus struct {
	Name    string `json:"name"`
	IsArmed bool   `json:"isArmed"`
}

// ArmedSignal is the security system's report of which areas are armed.
type ArmedSignal struct {
	Areas []AreaStatus
}

// FirstArea returns the first area with the given name.
func (s ArmedSignal) FirstArea(name string) (AreaStatus, bool) {
	for _, a := range s.Areas {
		if a.Name == name {
			return a, true
		}
	}
	return AreaStatus{}, false
}

func ParseSignal(payload []byte) (ArmedSignal, error) {
	var env struct {
		Status *struct {
			AreasStatus []AreaStatus `json:"areasStatus"`
		} `json:"status"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return ArmedSignal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Status == nil {
		return ArmedSignal{}, ErrMissingStatus
	}
	return ArmedSignal{Areas: env.Status.AreasStatus}, nil
}

// StatusMessage is the outward status report.
type StatusMessage struct {
	MessageID string `json:"messageId,omitempty"`
	Status    State  `json:"status"`
}
