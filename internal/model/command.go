package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMissingStatus is returned when an inbound message has no top-level "status" object.
	ErrMissingStatus = errors.New(`message has no "status" object`)
	ErrMalformed     = errors.New("malformed message")
)

// ValidationError describes a single present field whose value could not be used.
// The field is skipped; the rest of the message is still applied.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value %q: %s", e.Field, e.Value, e.Reason)
}

// Optional carries a value plus whether the field was present at all, so that an
// explicit false or zero is distinguishable from an omitted field.
type Optional[T any] struct {
	value T
	set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

func (o Optional[T]) Get() (T, bool) { return o.value, o.set }
func (o Optional[T]) IsSet() bool    { return o.set }

// PartialCommand is a sparse desired-state update. Mode and Fan stay as raw tokens
// and are resolved against the unit when applied.
type PartialCommand struct {
	PowerOn         Optional[bool]
	Mode            Optional[string]
	TempDelta       Optional[int]
	Temp            Optional[int]
	Fan             Optional[string]
	SwingVertical   Optional[bool]
	SwingHorizontal Optional[bool]
	Quiet           Optional[bool]
	Powerful        Optional[bool]
	MessageID       Optional[string]

	// Rejected lists present fields that failed to decode.
	Rejected []*ValidationError
}

type commandEnvelope struct {
	Status    map[string]json.RawMessage `json:"status"`
	MessageID json.RawMessage            `json:"messageId"`
}

// ParseCommand decodes a set-state message. Only a missing or non-object "status"
// (or unparseable JSON) fails the whole message; bad individual fields are collected
// in PartialCommand.Rejected.
func ParseCommand(payload []byte) (PartialCommand, error) {
	var env commandEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return PartialCommand{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Status == nil {
		return PartialCommand{}, ErrMissingStatus
	}

	var cmd PartialCommand
	boolField := func(name string, dst *Optional[bool]) {
		raw, ok := present(env.Status, name)
		if !ok {
			return
		}
		v, err := decodeBool(raw)
		if err != nil {
			cmd.Rejected = append(cmd.Rejected, &ValidationError{Field: name, Value: string(raw), Reason: err.Error()})
			return
		}
		*dst = Some(v)
	}
	intField := func(name string, dst *Optional[int]) {
		raw, ok := present(env.Status, name)
		if !ok {
			return
		}
		v, err := decodeInt(raw)
		if err != nil {
			cmd.Rejected = append(cmd.Rejected, &ValidationError{Field: name, Value: string(raw), Reason: err.Error()})
			return
		}
		*dst = Some(v)
	}
	tokenField := func(name string, dst *Optional[string]) {
		raw, ok := present(env.Status, name)
		if !ok {
			return
		}
		v, err := decodeToken(raw)
		if err != nil {
			cmd.Rejected = append(cmd.Rejected, &ValidationError{Field: name, Value: string(raw), Reason: err.Error()})
			return
		}
		*dst = Some(v)
	}

	boolField("powerOn", &cmd.PowerOn)
	tokenField("mode", &cmd.Mode)
	intField("tempDelta", &cmd.TempDelta)
	intField("temp", &cmd.Temp)
	tokenField("fan", &cmd.Fan)
	boolField("swingVertical", &cmd.SwingVertical)
	boolField("swingHorizontal", &cmd.SwingHorizontal)
	boolField("quiet", &cmd.Quiet)
	boolField("powerful", &cmd.Powerful)

	if len(env.MessageID) > 0 && !isNull(env.MessageID) {
		var id string
		if err := json.Unmarshal(env.MessageID, &id); err != nil {
			cmd.Rejected = append(cmd.Rejected, &ValidationError{Field: "messageId", Value: string(env.MessageID), Reason: "not a string"})
		} else {
			cmd.MessageID = Some(id)
		}
	}

	return cmd, nil
}

func present(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeBool accepts JSON booleans and the strings "true"/"false" in any case.
func decodeBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, errors.New("expected a boolean")
}

// decodeInt accepts integral JSON numbers and numeric strings. Values beyond the int
// range saturate so that callers clamping the result still see the intended direction.
func decodeInt(raw json.RawMessage) (int, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return parseSaturatingInt(n.String())
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseSaturatingInt(strings.TrimSpace(s))
	}
	return 0, errors.New("expected an integer")
}

func parseSaturatingInt(s string) (int, error) {
	i, err := strconv.ParseInt(s, 10, 0)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, errors.New("expected an integer")
	}
	return int(i), nil
}

// decodeToken accepts strings and numbers, returning the textual form.
func decodeToken(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", errors.New("expected a string or number")
}
