package colorize

import "testing"

func TestStyle(t *testing.T) {
	s := New(DefaultEscapes())
	got := s.Style(TypeStyle, "ProcessManager")
	if got != "\033[94mProcessManager\033[0m" {
		t.Fatalf("unexpected output %q", got)
	}
	if Strip(got) != "ProcessManager" {
		t.Fatalf("Strip: %q", Strip(got))
	}
	if got := Plain().Style(KeyStyle, "actor-1"); got != "actor-1" {
		t.Fatalf("plain styler changed text: %q", got)
	}
	var nilStyler *Styler
	if got := nilStyler.Style(LabelStyle, "State: "); got != "State: " {
		t.Fatalf("nil styler changed text: %q", got)
	}
}
