package app

import (
	"io"
	"os"
)

// Option configures the environment run by Run().
type Option func(o *opts)

type opts struct {
	args      []string
	logOutput io.Writer
	signals   []os.Signal
}

// WithArgs replaces the process arguments, excluding the program name.
func WithArgs(args []string) Option {
	return func(o *opts) {
		o.args = args
	}
}

// WithLogOutput configures where logs are written. Logs go to stderr by
// default so command output on stdout stays parseable.
func WithLogOutput(w io.Writer) Option {
	return func(o *opts) {
		o.logOutput = w
	}
}

// WithSignals configures the signals that cancel the running command.
func WithSignals(signals ...os.Signal) Option {
	return func(o *opts) {
		o.signals = signals
	}
}
