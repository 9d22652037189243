package libprocess

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/go-delve/lpdbg/pkg/printer"
	"github.com/go-delve/lpdbg/pkg/proc"
	protest "github.com/go-delve/lpdbg/pkg/proc/test"
	"github.com/go-delve/lpdbg/pkg/terminal/colorize"
)

func processVar(t *testing.T, lp *protest.Libprocess, addr uint64) *proc.Variable {
	t.Helper()
	return lp.Target.NewVariable("", addr, lookup(t, lp.BinInfo, protest.ProcessBaseType))
}

func managerVar(t *testing.T, lp *protest.Libprocess) *proc.Variable {
	t.Helper()
	v, err := lp.Target.Global(protest.ProcessManagerSymbol)
	protest.AssertNoError(err, t, "Global(process_manager)")
	return v
}

func TestProcessPrinter(t *testing.T) {
	lp := protest.NewLibprocess(t)
	for _, tc := range []struct {
		managed bool
		state   int32
		expect  []string
	}{
		{true, protest.StateReady, []string{"Process actor-1 (managed)", "State: READY (2)"}},
		{false, protest.StateBlocked, []string{"Process actor-1 (not managed)", "State: BLOCKED (1)"}},
		{true, 42, []string{"(managed)", "State: 42"}},
	} {
		addr := lp.NewProcess("actor-1", tc.managed, tc.state)
		out, err := NewProcessPrinter(processVar(t, lp, addr), nil).String()
		protest.AssertNoError(err, t, "ProcessPrinter.String")
		for _, s := range tc.expect {
			if !strings.Contains(out, s) {
				t.Errorf("output %q does not contain %q", out, s)
			}
		}
		if !tc.managed && strings.Contains(out, "(managed)") {
			t.Errorf("output %q claims the process is managed", out)
		}
	}
}

func TestProcessPrinterPartial(t *testing.T) {
	lp := protest.NewLibprocess(t)
	addr := lp.NewProcess("actor-1", true, protest.StateTerminating)
	lp.BreakProcessID(addr)
	out, err := NewProcessPrinter(processVar(t, lp, addr), nil).String()
	protest.AssertNoError(err, t, "ProcessPrinter.String")
	if out != "Process (managed)\nState: TERMINATING (3)" {
		t.Errorf("unexpected output %q", out)
	}

	// A class without any of the members renders as nothing at all.
	out, err = NewProcessPrinter(lp.Target.NewVariable("", addr, lookup(t, lp.BinInfo, "chain::C")), nil).String()
	protest.AssertNoError(err, t, "ProcessPrinter.String")
	if out != "" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestProcessPrinterIdempotent(t *testing.T) {
	lp := protest.NewLibprocess(t)
	p := NewProcessPrinter(processVar(t, lp, lp.NewProcess("actor-1", true, protest.StateReady)), nil)
	out1, err := p.String()
	protest.AssertNoError(err, t, "first String")
	reads := lp.Mem.Reads
	out2, err := p.String()
	protest.AssertNoError(err, t, "second String")
	if out1 != out2 {
		t.Errorf("output changed between calls: %q %q", out1, out2)
	}
	if lp.Mem.Reads == reads {
		t.Errorf("second call did not read target memory")
	}
}

func TestUPIDPrinter(t *testing.T) {
	lp := protest.NewLibprocess(t)
	addr := lp.NewUPID("scheduler-1", 0x0100007f, 5050)
	for _, typ := range []string{protest.UPIDType, protest.PIDType} {
		p := NewUPIDPrinter(lp.Target.NewVariable("", addr, lookup(t, lp.BinInfo, typ)), nil)
		brief, err := p.BriefString()
		protest.AssertNoError(err, t, "BriefString")
		if brief != "scheduler-1" {
			t.Errorf("%s: BriefString %q", typ, brief)
		}
		full, err := p.String()
		protest.AssertNoError(err, t, "String")
		if full != brief {
			t.Errorf("%s: String %q", typ, full)
		}
		long, err := p.Long()
		protest.AssertNoError(err, t, "Long")
		if long != "scheduler-1@127.0.0.1:5050" {
			t.Errorf("%s: Long %q", typ, long)
		}
	}
}

func TestUPIDPrinterMaxStringLen(t *testing.T) {
	lp := protest.NewLibprocess(t)
	addr := lp.NewUPID("a-very-long-process-name", 0, 0)
	brief, err := NewUPIDPrinter(lp.Target.NewVariable("", addr, lookup(t, lp.BinInfo, protest.UPIDType)), &Options{MaxStringLen: 6}).BriefString()
	protest.AssertNoError(err, t, "BriefString")
	if brief != "a-very..." {
		t.Errorf("BriefString %q", brief)
	}
}

var listingLine = regexp.MustCompile(`^ - (\S+) at (0x[0-9a-f]+)$`)

func listing(t *testing.T, out string) (header string, lines []string) {
	t.Helper()
	all := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	return all[0], all[1:]
}

func TestProcessManagerPrinter(t *testing.T) {
	lp := protest.NewLibprocess(t)
	p1 := lp.NewProcess("actor-1", true, protest.StateReady)
	p2 := lp.NewProcess("actor-2", false, protest.StateBlocked)
	lp.NewProcessManager(
		protest.ProcessEntry{ID: "actor-1", Process: p1},
		protest.ProcessEntry{ID: "actor-2", Process: p2},
	)

	out, err := NewProcessManagerPrinter(managerVar(t, lp), nil).String()
	protest.AssertNoError(err, t, "ProcessManagerPrinter.String")
	header, lines := listing(t, out)
	if header != "ProcessManager with 2 running processes" {
		t.Errorf("header %q", header)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	seen := map[string]string{}
	for _, line := range lines {
		m := listingLine.FindStringSubmatch(line)
		if m == nil {
			t.Fatalf("malformed line %q", line)
		}
		seen[m[1]] = m[2]
	}
	if seen["actor-1"] == "" || seen["actor-2"] == "" {
		t.Fatalf("missing processes in %q", lines)
	}
	if seen["actor-1"] == seen["actor-2"] {
		t.Errorf("both processes at %s", seen["actor-1"])
	}

	again, err := NewProcessManagerPrinter(managerVar(t, lp), nil).String()
	protest.AssertNoError(err, t, "ProcessManagerPrinter.String")
	if again != out {
		t.Errorf("output changed on an unchanged image:\n%s\n%s", out, again)
	}
}

func TestProcessManagerEntries(t *testing.T) {
	lp := protest.NewLibprocess(t)
	pm := newManager(lp, 3)
	p := NewProcessManagerPrinter(managerVar(t, lp), nil)
	entries, err := p.Entries()
	protest.AssertNoError(err, t, "Entries")
	if len(entries) != len(pm.Nodes) {
		t.Fatalf("expected %d entries, got %d", len(pm.Nodes), len(entries))
	}
	for i, e := range entries {
		key, err := p.KeyString(e)
		protest.AssertNoError(err, t, "KeyString")
		if want := "actor-" + string(rune('a'+i)); key != want {
			t.Errorf("entry %d: key %q, expected %q", i, key, want)
		}
	}
}

func TestProcessManagerPrinterEmpty(t *testing.T) {
	lp := protest.NewLibprocess(t)
	lp.NewProcessManager()
	out, err := NewProcessManagerPrinter(managerVar(t, lp), nil).String()
	protest.AssertNoError(err, t, "ProcessManagerPrinter.String")
	if out != "ProcessManager with 0 running processes\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestProcessManagerPrinterNull(t *testing.T) {
	lp := protest.NewLibprocess(t)
	_, err := NewProcessManagerPrinter(managerVar(t, lp), nil).String()
	if !errors.Is(err, proc.ErrNilPointer) {
		t.Fatalf("expected nil pointer error, got %v", err)
	}
}

func newManager(lp *protest.Libprocess, n int) *protest.ProcessManager {
	entries := make([]protest.ProcessEntry, n)
	for i := range entries {
		id := "actor-" + string(rune('a'+i))
		entries[i] = protest.ProcessEntry{ID: id, Process: lp.NewProcess(id, true, protest.StateReady)}
	}
	return lp.NewProcessManager(entries...)
}

func TestProcessManagerPrinterMaxEntries(t *testing.T) {
	lp := protest.NewLibprocess(t)
	newManager(lp, 5)
	out, err := NewProcessManagerPrinter(managerVar(t, lp), &Options{MaxEntries: 2}).String()
	protest.AssertNoError(err, t, "ProcessManagerPrinter.String")
	header, lines := listing(t, out)
	if header != "ProcessManager with 5 running processes" {
		t.Errorf("header %q", header)
	}
	if len(lines) != 3 || lines[2] != " ... (truncated)" {
		t.Errorf("unexpected lines %q", lines)
	}
}

func TestProcessManagerPrinterReadErrors(t *testing.T) {
	lp := protest.NewLibprocess(t)
	pm := newManager(lp, 3)
	lp.Mem.Unmap(pm.Nodes[1])

	_, err := NewProcessManagerPrinter(managerVar(t, lp), nil).String()
	var mre *proc.MemoryReadError
	if !errors.As(err, &mre) || mre.Addr != pm.Nodes[1] {
		t.Fatalf("expected MemoryReadError at %#x, got %v", pm.Nodes[1], err)
	}

	out, err := NewProcessManagerPrinter(managerVar(t, lp), &Options{ReadErrors: TruncateOnReadError}).String()
	protest.AssertNoError(err, t, "ProcessManagerPrinter.String")
	_, lines := listing(t, out)
	if len(lines) != 2 || !listingLine.MatchString(lines[0]) {
		t.Fatalf("unexpected lines %q", lines)
	}
	if tgt := fmt.Sprintf(" ... (chain unreadable at %#x)", pm.Nodes[1]); lines[1] != tgt {
		t.Errorf("expected %q got %q", tgt, lines[1])
	}
}

func TestProcessManagerPrinterCyclicChain(t *testing.T) {
	lp := protest.NewLibprocess(t)
	pm := newManager(lp, 3)
	lp.Mem.WriteUint64(pm.Nodes[2], pm.Nodes[0])
	out, err := NewProcessManagerPrinter(managerVar(t, lp), &Options{ReadErrors: TruncateOnReadError}).String()
	protest.AssertNoError(err, t, "ProcessManagerPrinter.String")
	_, lines := listing(t, out)
	if tgt := " ... (chain unreadable: " + ErrCyclicChain.Error() + ")"; len(lines) == 0 || lines[len(lines)-1] != tgt {
		t.Errorf("expected last line %q got %q", tgt, lines)
	}
}

func TestProcessManagerPrinterNoDebugInfo(t *testing.T) {
	lp := protest.NewLibprocess(t)
	pm := newManager(lp, 1)
	v := proc.NewVariable("", pm.Addr, lookup(t, lp.BinInfo, protest.ProcessManagerType), nil, lp.Mem)
	p := NewProcessManagerPrinter(v, nil)
	if _, err := p.String(); err == nil || !strings.Contains(err.Error(), "no debug information") {
		t.Errorf("unexpected error %v", err)
	}
	if _, err := p.Entries(); err == nil {
		t.Error("Entries succeeded without debug information")
	}

	out, err := NewProcessManagerPrinter(v, &Options{Types: lp.BinInfo}).String()
	protest.AssertNoError(err, t, "ProcessManagerPrinter.String")
	if header, _ := listing(t, out); header != "ProcessManager with 1 running processes" {
		t.Errorf("header %q", header)
	}
}

func TestProcessManagerPrinterColors(t *testing.T) {
	lp := protest.NewLibprocess(t)
	newManager(lp, 1)
	out, err := NewProcessManagerPrinter(managerVar(t, lp), &Options{Styler: colorize.New(colorize.DefaultEscapes())}).String()
	protest.AssertNoError(err, t, "ProcessManagerPrinter.String")
	if !strings.HasPrefix(out, "\033[94mProcessManager\033[0m with \033[1m1\033[0m running processes\n") {
		t.Errorf("unexpected header %q", out)
	}
	if !strings.Contains(out, "\033[93mactor-a\033[0m") {
		t.Errorf("key not highlighted %q", out)
	}
	_, lines := listing(t, colorize.Strip(out))
	if len(lines) != 1 || !listingLine.MatchString(lines[0]) {
		t.Errorf("unexpected lines %q", lines)
	}
}

func TestRegister(t *testing.T) {
	lp := protest.NewLibprocess(t)
	lp.NewProcessManager()
	r := &printer.Registry{}
	Register(r, nil)
	if r.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", r.Len())
	}

	upid := lp.NewUPID("actor-1", 0, 0)
	for _, tc := range []struct {
		v      *proc.Variable
		expect interface{}
	}{
		{managerVar(t, lp), &ProcessManagerPrinter{}},
		{processVar(t, lp, lp.NewProcess("actor-1", true, protest.StateReady)), &ProcessPrinter{}},
		{lp.Target.NewVariable("", upid, lookup(t, lp.BinInfo, protest.UPIDType)), &UPIDPrinter{}},
		{lp.Target.NewVariable("", upid, lookup(t, lp.BinInfo, protest.PIDType)), &UPIDPrinter{}},
		{intTable(t, lp), nil},
	} {
		p := r.Lookup(tc.v)
		switch tc.expect.(type) {
		case *ProcessManagerPrinter:
			_, ok := p.(*ProcessManagerPrinter)
			if !ok {
				t.Errorf("%s: got %T", tc.v.TypeString(), p)
			}
		case *ProcessPrinter:
			_, ok := p.(*ProcessPrinter)
			if !ok {
				t.Errorf("%s: got %T", tc.v.TypeString(), p)
			}
		case *UPIDPrinter:
			_, ok := p.(*UPIDPrinter)
			if !ok {
				t.Errorf("%s: got %T", tc.v.TypeString(), p)
			}
		default:
			if p != nil {
				t.Errorf("%s: expected no printer, got %T", tc.v.TypeString(), p)
			}
		}
	}
}

func TestParseReadErrorPolicy(t *testing.T) {
	for s, expect := range map[string]ReadErrorPolicy{"": FailOnReadError, "fail": FailOnReadError, "truncate": TruncateOnReadError} {
		p, err := ParseReadErrorPolicy(s)
		if err != nil || p != expect {
			t.Errorf("%q: got %v %v", s, p, err)
		}
	}
	if _, err := ParseReadErrorPolicy("ignore"); err == nil {
		t.Error("expected error")
	}
}
