// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"io"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/repose/internal/config"
	"github.com/xkilldash9x/repose/internal/observability"
)

// quietLogger installs a discard console logger so command runs neither
// write to stdout nor create log files. The logger is a process singleton,
// so tests that execute full commands must not run in parallel.
func quietLogger(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	observability.Initialize(config.LoggerConfig{
		Level:       "error",
		Format:      "console",
		ServiceName: "repose-test",
	}, zapcore.AddSync(io.Discard))
	t.Cleanup(observability.ResetForTest)
}

// runCommand executes a fresh root command with the given arguments and
// returns everything it printed.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	quietLogger(t)

	root := NewRootCommand()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
