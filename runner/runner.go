// Package runner invokes external formatters as subprocesses. The diff core
// never touches a process; it only ever sees the captured output from here.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"nvfmt/logger"
	"nvfmt/types"
)

// Runner executes formatter specs, remembering resolved executable paths for
// the lifetime of the daemon session. The cache lives on the Runner, not in
// a package global, so each daemon owns its own view of PATH.
type Runner struct {
	mu    sync.Mutex
	paths map[string]string // command name -> resolved executable path
}

// New creates a Runner.
func New() *Runner {
	return &Runner{
		paths: make(map[string]string),
	}
}

// lookPath resolves a command name through PATH once per session.
func (r *Runner) lookPath(cmd string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if path, ok := r.paths[cmd]; ok {
		return path, nil
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		return "", fmt.Errorf("formatter %q not found in PATH: %w", cmd, err)
	}
	r.paths[cmd] = path
	logger.Debug("resolved %s -> %s", cmd, path)
	return path, nil
}

// Run feeds input to the formatter described by spec and returns its output.
// dir becomes the subprocess working directory. Cancelling the context kills
// the subprocess and returns the context error.
//
// Stdin formatters read the buffer on stdin and write the result to stdout.
// File formatters get the buffer in a temp file substituted for "{file}" in
// the args; the result is read back from the temp file when stdout stays
// empty (in-place formatters), from stdout otherwise.
func (r *Runner) Run(ctx context.Context, spec *types.FormatterSpec, dir string, input string) (*types.RunResult, error) {
	defer logger.Trace("runner.Run")()

	path, err := r.lookPath(spec.Cmd)
	if err != nil {
		return nil, err
	}

	args := spec.Args
	var tempFile string
	if !spec.Stdin {
		tempFile, err = writeTempInput(spec.Cmd, input)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tempFile)

		args = make([]string, len(spec.Args))
		for i, arg := range spec.Args {
			args[i] = strings.ReplaceAll(arg, "{file}", tempFile)
		}
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if spec.Stdin {
		cmd.Stdin = strings.NewReader(input)
	}

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &types.RunResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to run %s: %w", spec.Cmd, runErr)
	}

	if !spec.Stdin && len(result.Stdout) == 0 {
		formatted, err := os.ReadFile(tempFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read back %s output: %w", spec.Cmd, err)
		}
		result.Stdout = formatted
	}

	return result, nil
}

// writeTempInput writes the buffer text to a private temp file for
// file-based formatters.
func writeTempInput(cmd string, input string) (string, error) {
	f, err := os.CreateTemp("", "nvfmt-"+filepath.Base(cmd)+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp input: %w", err)
	}
	if _, err := f.WriteString(input); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp input: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp input: %w", err)
	}
	return f.Name(), nil
}
