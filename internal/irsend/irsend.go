package irsend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/ac-controller/internal/model"
)

// Transmitter emits the complete AC state as one infrared frame.
type Transmitter interface {
	Send(ctx context.Context, state model.State) error
}

// CommandTransmitter hands the state, as JSON on stdin, to an external IR codec
// program that encodes the remote protocol and drives the LED.
type CommandTransmitter struct {
	command  string
	args     []string
	timeout  time.Duration
	safeMode bool
}

func NewCommandTransmitter(command string, args []string, timeout time.Duration, safeMode bool) *CommandTransmitter {
	return &CommandTransmitter{
		command:  command,
		args:     args,
		timeout:  timeout,
		safeMode: safeMode,
	}
}

var execCommand = exec.CommandContext

func (t *CommandTransmitter) Send(ctx context.Context, state model.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal IR state: %w", err)
	}

	if t.safeMode {
		log.Warn().RawJSON("state", payload).Msg("Safe mode: IR transmission suppressed")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := execCommand(ctx, t.command, t.args...)
	cmd.Stdin = bytes.NewReader(payload)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("IR codec %s failed: %w (output: %s)", t.command, err, bytes.TrimSpace(out))
	}

	log.Debug().RawJSON("state", payload).Msg("IR frame sent")
	return nil
}
