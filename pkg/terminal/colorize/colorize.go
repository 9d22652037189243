// Package colorize decorates printer output with ANSI escape sequences.
package colorize

import "strings"

// Style describes the style of a chunk of text.
type Style uint8

const (
	NormalStyle Style = iota
	TypeStyle
	KeyStyle
	NumberStyle
	LabelStyle
	ErrorStyle
)

const (
	ansiBlue   = "\033[94m"
	ansiYellow = "\033[93m"
	ansiRed    = "\033[91m"
	ansiBold   = "\033[1m"
	ansiClear  = "\033[0m"
)

// DefaultEscapes returns the escape sequences used when the output is a
// terminal.
func DefaultEscapes() map[Style]string {
	return map[Style]string{
		TypeStyle:   ansiBlue,
		KeyStyle:    ansiYellow,
		NumberStyle: ansiBold,
		LabelStyle:  ansiBold,
		ErrorStyle:  ansiRed,
	}
}

// Styler applies styles to text. The zero value, and a nil *Styler,
// leave text unchanged.
type Styler struct {
	escapes map[Style]string
}

// New returns a Styler using escapes, a nil map disables colors.
func New(escapes map[Style]string) *Styler {
	return &Styler{escapes: escapes}
}

// Plain returns a Styler that never emits escape sequences.
func Plain() *Styler {
	return &Styler{}
}

// Style returns text decorated with the escape sequence of style.
func (s *Styler) Style(style Style, text string) string {
	if s == nil || style == NormalStyle {
		return text
	}
	esc, ok := s.escapes[style]
	if !ok || esc == "" {
		return text
	}
	return esc + text + ansiClear
}

// Enabled reports whether s emits escape sequences.
func (s *Styler) Enabled() bool {
	return s != nil && len(s.escapes) > 0
}

// Strip removes the ANSI escape sequences from text.
func Strip(text string) string {
	if !strings.Contains(text, "\033[") {
		return text
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == '\033' && i+1 < len(text) && text[i+1] == '[' {
			j := i + 2
			for j < len(text) && (text[j] < 0x40 || text[j] > 0x7e) {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(text[i])
	}
	return b.String()
}
