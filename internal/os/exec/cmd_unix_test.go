//go:build linux || darwin
// +build linux darwin

package exec_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/report-aggregator/internal/os/exec"
	"github.com/input-output-hk/report-aggregator/test/helpers"
)

var (
	errExplicitError = errors.New("this is an explicit error")
)

func TestExitCodeUnix(t *testing.T) {
	t.Parallel()

	for _, index := range []int{0, 1, 2, 42, 255} {
		cmd := exec.Command(context.Background(), "testdata/test_exit_code.sh", strconv.Itoa(index))
		cmd.Configure(exec.WithLogger(helpers.CreateLogger(t)))

		err := cmd.Run()

		if index == 0 {
			require.NoError(t, err)
		} else {
			require.Error(t, err)

			var exitErr exec.ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, "failure "+strconv.Itoa(index), exitErr.Stderr)
			assert.Equal(t, "test_exit_code.sh", exitErr.Cmd)
		}

		retCode, err := exec.GetExitCode(err)
		require.NoError(t, err)
		assert.Equal(t, index, retCode)
	}

	// assert a non exec.ExitError returns an error
	retCode, retErr := exec.GetExitCode(errExplicitError)
	require.Error(t, retErr, "An error was expected")
	assert.Equal(t, errExplicitError, retErr)
	assert.Equal(t, 0, retCode)
}

func TestCommandNotFound(t *testing.T) {
	t.Parallel()

	cmd := exec.Command(context.Background(), "testdata/does-not-exist.sh")
	cmd.Configure(exec.WithLogger(helpers.CreateLogger(t)))

	err := cmd.Run()
	require.Error(t, err)

	var exitErr exec.ExitError
	assert.False(t, errors.As(err, &exitErr))
}

// TestGracefulShutdownOnContextCancelUnix verifies that canceling the context interrupts the command
// instead of killing it. The script traps SIGINT and exits with code 42.
func TestGracefulShutdownOnContextCancelUnix(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	cmd := exec.Command(ctx, "testdata/test_graceful_shutdown.sh")
	cmd.Configure(exec.WithLogger(helpers.CreateLogger(t)), exec.WithWaitDelay(5*time.Second))

	runChannel := make(chan error)

	go func() {
		runChannel <- cmd.Run()
	}()

	time.Sleep(500 * time.Millisecond)

	cancel()

	err := <-runChannel
	require.Error(t, err)

	retCode, err := exec.GetExitCode(err)
	require.NoError(t, err)
	assert.Equal(t, 42, retCode, "Expected exit code 42 (SIGINT received), but got %d.", retCode)
}
