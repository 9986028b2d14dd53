package logging

import (
	"fmt"
	"io"
	"os"
)

// Options configures the process logger
type Options struct {
	Level  string
	Format string // "text" or "json"
	File   string // Also log here when set
	Stderr io.Writer
}

// Setup builds the process logger. Output goes to stderr and, when
// opts.File is set, is also appended to that file. The returned teardown
// closes the file and must be called once processing has finished.
func Setup(opts Options) (Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	if opts.Stderr != nil {
		out = opts.Stderr
	}

	teardown := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		teardown = f.Close
	}

	return NewLogrusLogger(out, level, opts.Format), teardown, nil
}
