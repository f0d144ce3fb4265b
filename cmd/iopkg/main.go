// Command iopkg builds, inspects and unpacks IOPKG packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/meigma/iopkg"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(exitCode(err))
	}
}

// Exit codes by error kind.
var kindExitCodes = map[iopkg.Kind]int{
	iopkg.KindScan:          3,
	iopkg.KindCompression:   4,
	iopkg.KindIO:            5,
	iopkg.KindEmptyInput:    6,
	iopkg.KindSerialization: 7,
	iopkg.KindFormat:        8,
	iopkg.KindChecksum:      9,
	iopkg.KindNotFound:      10,
}

// ExitError signals a specific exit code without calling os.Exit in RunE
// handlers.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCode returns the process exit status for err.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if code, ok := kindExitCodes[iopkg.KindOf(err)]; ok {
		return code
	}
	return 1
}
