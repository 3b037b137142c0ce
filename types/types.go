// Package types holds the small structs shared across nvfmt's packages.
package types

// FormatterSpec describes how to invoke one external formatter.
type FormatterSpec struct {
	// Cmd is the executable name, resolved through PATH at run time.
	Cmd string
	// Args are the command arguments after config-file expansion. "{file}"
	// is substituted by the runner with the temp file path when Stdin is
	// false.
	Args []string
	// Stdin selects how the buffer text reaches the formatter: on stdin
	// (output read from stdout) or through a temp file named by "{file}".
	Stdin bool
}

// RunResult is the outcome of one formatter invocation that actually
// started. Spawn failures and cancellation surface as errors instead.
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}
