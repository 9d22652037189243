package libprocess

import (
	"errors"
	"testing"

	"github.com/go-delve/lpdbg/pkg/proc"
	protest "github.com/go-delve/lpdbg/pkg/proc/test"
)

func TestReadString(t *testing.T) {
	lp := protest.NewLibprocess(t)
	for _, tc := range []struct {
		typ  string
		addr uint64
	}{
		{protest.StringType, lp.NewString("scheduler-1")},
		{protest.COWStringType, lp.NewCOWString("scheduler-1")},
	} {
		v := lp.Target.NewVariable("", tc.addr, lookup(t, lp.BinInfo, tc.typ))
		if !IsString(v) {
			t.Errorf("%s: not recognized as a string", tc.typ)
		}
		s, complete, err := ReadString(v, 0)
		protest.AssertNoError(err, t, "ReadString")
		if s != "scheduler-1" || !complete {
			t.Errorf("%s: got %q %v", tc.typ, s, complete)
		}
		s, complete, err = ReadString(v, 5)
		protest.AssertNoError(err, t, "ReadString")
		if s != "sched" || complete {
			t.Errorf("%s: got %q %v", tc.typ, s, complete)
		}
	}
}

func TestReadStringEmpty(t *testing.T) {
	lp := protest.NewLibprocess(t)
	v := lp.Target.NewVariable("", lp.NewCOWString(""), lookup(t, lp.BinInfo, protest.COWStringType))
	s, complete, err := ReadString(v, 0)
	protest.AssertNoError(err, t, "ReadString")
	if s != "" || !complete {
		t.Errorf("got %q %v", s, complete)
	}
}

func TestReadStringCOWNull(t *testing.T) {
	lp := protest.NewLibprocess(t)
	addr := lp.NewCOWString("scheduler-1")
	lp.Mem.WriteUint64(addr, 0)
	_, _, err := ReadString(lp.Target.NewVariable("", addr, lookup(t, lp.BinInfo, protest.COWStringType)), 0)
	var mre *proc.MemoryReadError
	if !errors.As(err, &mre) {
		t.Fatalf("expected MemoryReadError, got %v", err)
	}
}

func TestReadStringNotAString(t *testing.T) {
	lp := protest.NewLibprocess(t)
	_, _, err := ReadString(lp.Target.NewVariable("", lp.NewUPID("a", 0, 0), lookup(t, lp.BinInfo, protest.UPIDType)), 0)
	if err == nil {
		t.Fatal("UPID read as a string")
	}
}
