package irsend

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/ac-controller/internal/model"
)

func TestSend_PipesStateToCommand(t *testing.T) {
	var gotName string
	var gotArgs []string
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName = name
		gotArgs = args
		// cat echoes stdin so the state round-trips through a real process
		return exec.CommandContext(ctx, "cat")
	}
	defer func() { execCommand = orig }()

	tx := NewCommandTransmitter("daikin-ir", []string{"--pin", "4"}, time.Second, false)
	state := model.NewACState(model.DaikinLimits, true).Snapshot()

	require.NoError(t, tx.Send(context.Background(), state))
	assert.Equal(t, "daikin-ir", gotName)
	assert.Equal(t, []string{"--pin", "4"}, gotArgs)
}

func TestSend_CommandFailure(t *testing.T) {
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	}
	defer func() { execCommand = orig }()

	tx := NewCommandTransmitter("daikin-ir", nil, time.Second, false)
	err := tx.Send(context.Background(), model.State{Mode: model.ModeCool})
	assert.Error(t, err)
}

func TestSend_SafeModeSkipsCommand(t *testing.T) {
	called := false
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		called = true
		return exec.CommandContext(ctx, "false")
	}
	defer func() { execCommand = orig }()

	tx := NewCommandTransmitter("daikin-ir", nil, time.Second, true)
	assert.NoError(t, tx.Send(context.Background(), model.State{Mode: model.ModeCool}))
	assert.False(t, called)
}
