package libprocess

import (
	"fmt"

	"github.com/go-delve/lpdbg/pkg/terminal/colorize"
)

// ReadErrorPolicy selects what the process manager printer does when the
// process table can not be walked to its end.
type ReadErrorPolicy uint8

const (
	// FailOnReadError makes the printer return the error.
	FailOnReadError ReadErrorPolicy = iota
	// TruncateOnReadError prints the entries read before the error
	// followed by a note.
	TruncateOnReadError
)

// ParseReadErrorPolicy converts the hashmap-read-errors configuration
// value into a ReadErrorPolicy.
func ParseReadErrorPolicy(s string) (ReadErrorPolicy, error) {
	switch s {
	case "", "fail":
		return FailOnReadError, nil
	case "truncate":
		return TruncateOnReadError, nil
	}
	return FailOnReadError, fmt.Errorf("unknown read error policy %q", s)
}

// Options configures the printers.
type Options struct {
	// Types resolves nested types, usually the *proc.BinaryInfo of the
	// target.
	Types TypeLookup
	// Styler decorates the output, nil disables colors.
	Styler *colorize.Styler
	// MaxEntries is the maximum number of process table entries printed,
	// 0 means no limit.
	MaxEntries int
	// ReadErrors is applied to errors walking the process table.
	ReadErrors ReadErrorPolicy
	// MaxStringLen is the maximum number of bytes read from a string, 0
	// means DefaultMaxStringLen.
	MaxStringLen int
}

func (o *Options) style(s colorize.Style, text string) string {
	if o == nil {
		return text
	}
	return o.Styler.Style(s, text)
}

func (o *Options) maxStringLen() int {
	if o == nil || o.MaxStringLen <= 0 {
		return DefaultMaxStringLen
	}
	return o.MaxStringLen
}
