package proc_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
	"github.com/go-delve/lpdbg/pkg/proc"
	protest "github.com/go-delve/lpdbg/pkg/proc/test"
)

func lookupType(t *testing.T, lp *protest.Libprocess, name string) godwarf.Type {
	t.Helper()
	typ, err := lp.BinInfo.LookupType(name)
	protest.AssertNoError(err, t, "LookupType "+name)
	return typ
}

func TestVariableFields(t *testing.T) {
	lp := protest.NewLibprocess(t)
	addr := lp.NewProcess("scheduler", true, protest.StateReady)
	v := lp.Target.NewVariable("p", addr, lookupType(t, lp, protest.ProcessBaseType))
	if v.Kind != reflect.Struct {
		t.Fatalf("wrong kind %v", v.Kind)
	}

	manage, err := v.Field("manage")
	protest.AssertNoError(err, t, "Field(manage)")
	if b, err := manage.AsBool(); err != nil || !b {
		t.Fatalf("manage: %v %v", b, err)
	}
	if manage.Name != "p.manage" {
		t.Errorf("wrong name %q", manage.Name)
	}

	state, err := v.Field("state")
	protest.AssertNoError(err, t, "Field(state)")
	i, err := state.Field("_M_i")
	protest.AssertNoError(err, t, "Field(_M_i)")
	if n, err := i.AsInt(); err != nil || n != protest.StateReady {
		t.Fatalf("state: %d %v", n, err)
	}
	if s, err := i.FormatScalar(); err != nil || s != "READY" {
		t.Fatalf("state formatted as %q %v", s, err)
	}

	_, err = v.Field("nosuchmember")
	var nf *proc.NoFieldError
	if !errors.As(err, &nf) || nf.Field != "nosuchmember" {
		t.Fatalf("expected NoFieldError, got %v", err)
	}
	if v.HasField("nosuchmember") || !v.HasField("pid") {
		t.Fatal("HasField is wrong")
	}
}

func TestVariableInheritedFields(t *testing.T) {
	lp := protest.NewLibprocess(t)
	addr := lp.NewUPID("master", 0x0100007f, 5050)
	pid := lp.Target.NewVariable("", addr, lookupType(t, lp, protest.PIDType))

	// process::PID<T> derives from process::UPID.
	address, err := pid.Field("address")
	protest.AssertNoError(err, t, "Field(address)")
	port, err := address.Field("port")
	protest.AssertNoError(err, t, "Field(port)")
	if n, err := port.AsUint(); err != nil || n != 5050 {
		t.Fatalf("port: %d %v", n, err)
	}
	if !pid.HasField("id") {
		t.Fatal("inherited member not found by HasField")
	}
}

func TestVariableDeref(t *testing.T) {
	lp := protest.NewLibprocess(t)
	g, err := lp.Target.Global(protest.ProcessManagerSymbol)
	protest.AssertNoError(err, t, "Global")
	if g.Kind != reflect.Ptr {
		t.Fatalf("wrong kind %v", g.Kind)
	}
	if tag := g.TypeTag(); tag != protest.ProcessManagerType {
		t.Fatalf("wrong type tag %q", tag)
	}

	_, err = g.Deref()
	var mre *proc.MemoryReadError
	if !errors.As(err, &mre) || !errors.Is(err, proc.ErrNilPointer) {
		t.Fatalf("expected a nil pointer MemoryReadError, got %v", err)
	}
	if _, err := g.Field("processes"); !errors.Is(err, proc.ErrNilPointer) {
		t.Fatalf("Field through a null pointer: %v", err)
	}

	pm := lp.NewProcessManager()
	m, err := g.Deref()
	protest.AssertNoError(err, t, "Deref")
	if m.Addr != pm.Addr {
		t.Fatalf("wrong address %#x, expected %#x", m.Addr, pm.Addr)
	}
	if m.Name != "*"+protest.ProcessManagerSymbol {
		t.Errorf("wrong name %q", m.Name)
	}
	if tag := m.TypeTag(); tag != protest.ProcessManagerType {
		t.Fatalf("wrong type tag %q", tag)
	}
}

func TestVariableReadErrors(t *testing.T) {
	lp := protest.NewLibprocess(t)
	v := lp.Target.NewVariable("", 0xdead0000, lookupType(t, lp, protest.ProcessBaseType))
	manage, err := v.Field("manage")
	protest.AssertNoError(err, t, "Field")
	_, err = manage.AsBool()
	var mre *proc.MemoryReadError
	if !errors.As(err, &mre) {
		t.Fatalf("expected MemoryReadError, got %v", err)
	}
	if mre.Addr != manage.Addr {
		t.Fatalf("wrong address in error %#x", mre.Addr)
	}

	if _, err := v.AsUint(); err == nil {
		t.Fatal("struct read as an integer")
	}
	if _, err := v.ReadBytes(4); err == nil {
		t.Fatal("read of unmapped memory succeeded")
	}
}

func TestVariableTemplateArg(t *testing.T) {
	lp := protest.NewLibprocess(t)
	node := lookupType(t, lp, protest.ProcessNodeType)

	arg, err := proc.TemplateArg(node, 0)
	protest.AssertNoError(err, t, "TemplateArg")
	if godwarf.NormalizeName(arg.Common().Name) != godwarf.NormalizeName(protest.ProcessPairType) {
		t.Fatalf("wrong template argument %s", arg)
	}

	for _, i := range []int{1, 2, -1} {
		_, err := proc.TemplateArg(node, i)
		var mgt *proc.MalformedGenericTypeError
		if !errors.As(err, &mgt) {
			t.Errorf("argument %d: expected MalformedGenericTypeError, got %v", i, err)
		}
	}

	upid := lookupType(t, lp, protest.UPIDType)
	if _, err := proc.TemplateArg(upid, 0); err == nil {
		t.Fatal("template argument of a non template class")
	}
}

func TestVariableCastReinterpret(t *testing.T) {
	lp := protest.NewLibprocess(t)
	nodes := lp.FillIntTable([]int32{7}, []int64{-3})
	table, err := lp.Target.Global(protest.IntTableSymbol)
	protest.AssertNoError(err, t, "Global")

	pair := table.Reinterpret(nodes[0]+8, lookupType(t, lp, protest.IntPairType))
	first, err := pair.Field("first")
	protest.AssertNoError(err, t, "Field(first)")
	second, err := pair.Field("second")
	protest.AssertNoError(err, t, "Field(second)")
	if n, err := first.AsInt(); err != nil || n != 7 {
		t.Fatalf("first: %d %v", n, err)
	}
	if n, err := second.AsInt(); err != nil || n != -3 {
		t.Fatalf("second: %d %v", n, err)
	}
	if s, err := second.FormatScalar(); err != nil || s != "-3" {
		t.Fatalf("second formatted as %q %v", s, err)
	}

	raw := second.Cast(lookupType(t, lp, "long unsigned int"))
	if n, err := raw.AsUint(); err != nil || n != uint64(0xfffffffffffffffd) {
		t.Fatalf("cast: %#x %v", n, err)
	}
}

func TestVariableCached(t *testing.T) {
	lp := protest.NewLibprocess(t)
	addr := lp.NewProcess("scheduler", false, protest.StateBlocked)
	v := lp.Target.NewVariable("", addr, lookupType(t, lp, protest.ProcessBaseType)).Cached()

	reads := lp.Mem.Reads
	manage, err := v.Field("manage")
	protest.AssertNoError(err, t, "Field")
	if b, err := manage.AsBool(); err != nil || b {
		t.Fatalf("manage: %v %v", b, err)
	}
	if lp.Mem.Reads != reads {
		t.Fatalf("cached variable read target memory %d times", lp.Mem.Reads-reads)
	}
}
