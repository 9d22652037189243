package libprocess

import (
	"errors"
	"sort"
	"testing"

	"github.com/go-delve/lpdbg/pkg/proc"
	protest "github.com/go-delve/lpdbg/pkg/proc/test"
)

func intTable(t *testing.T, lp *protest.Libprocess) *proc.Variable {
	t.Helper()
	table, err := lp.Target.Global(protest.IntTableSymbol)
	protest.AssertNoError(err, t, "Global(intTable)")
	return table
}

// collectInts walks intTable and returns its keys and values.
func collectInts(t *testing.T, it *HashtableIterator) (keys []int64, vals []int64) {
	t.Helper()
	for it.Next() {
		first, err := it.Value().Field("first")
		protest.AssertNoError(err, t, "Field(first)")
		second, err := it.Value().Field("second")
		protest.AssertNoError(err, t, "Field(second)")
		k, err := first.AsInt()
		protest.AssertNoError(err, t, "first.AsInt")
		v, err := second.AsInt()
		protest.AssertNoError(err, t, "second.AsInt")
		keys = append(keys, k)
		vals = append(vals, v)
	}
	return keys, vals
}

func TestHashtableIteratorElements(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 100} {
		lp := protest.NewLibprocess(t)
		keys := make([]int32, n)
		vals := make([]int64, n)
		for i := range keys {
			// chain order differs from key order, like a real table
			keys[i] = int32((i*37 + 11) % 1000)
			vals[i] = int64(keys[i]) * 10
		}
		lp.FillIntTable(keys, vals)

		it, err := NewHashtableIterator(lp.BinInfo, intTable(t, lp))
		protest.AssertNoError(err, t, "NewHashtableIterator")
		gotKeys, gotVals := collectInts(t, it)
		protest.AssertNoError(it.Err(), t, "iteration")

		if len(gotKeys) != n || it.Count() != n {
			t.Fatalf("n=%d: got %d elements (Count %d)", n, len(gotKeys), it.Count())
		}
		for i := range gotKeys {
			if gotVals[i] != gotKeys[i]*10 {
				t.Errorf("n=%d: key %d has value %d", n, gotKeys[i], gotVals[i])
			}
		}
		want := make([]int64, n)
		for i := range keys {
			want[i] = int64(keys[i])
		}
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
		sort.Slice(gotKeys, func(i, j int) bool { return gotKeys[i] < gotKeys[j] })
		for i := range want {
			if want[i] != gotKeys[i] {
				t.Fatalf("n=%d: keys %v, expected %v", n, gotKeys, want)
			}
		}

		count, err := ElementCount(intTable(t, lp))
		protest.AssertNoError(err, t, "ElementCount")
		if count != uint64(n) {
			t.Errorf("n=%d: ElementCount %d", n, count)
		}
	}
}

func TestHashtableIteratorEmpty(t *testing.T) {
	lp := protest.NewLibprocess(t)
	lp.FillIntTable(nil, nil)
	it, err := NewHashtableIterator(lp.BinInfo, intTable(t, lp))
	protest.AssertNoError(err, t, "NewHashtableIterator")
	reads := lp.Mem.Reads
	if it.Next() {
		t.Fatal("empty table produced an element")
	}
	if it.Value() != nil || it.Err() != nil || it.Count() != 0 {
		t.Fatalf("unexpected state after exhaustion: value %v err %v count %d", it.Value(), it.Err(), it.Count())
	}
	if lp.Mem.Reads != reads {
		t.Fatalf("exhausted iterator read memory")
	}
}

func TestHashtableIteratorCountMismatch(t *testing.T) {
	for _, declared := range []uint64{0, 1, 3, 1000} {
		lp := protest.NewLibprocess(t)
		lp.FillIntTable([]int32{1, 2, 3}, []int64{10, 20, 30})
		protest.SetElementCount(lp.Mem, protest.IntTableAddr, declared)

		it, err := NewHashtableIterator(lp.BinInfo, intTable(t, lp))
		protest.AssertNoError(err, t, "NewHashtableIterator")
		keys, _ := collectInts(t, it)
		protest.AssertNoError(it.Err(), t, "iteration")
		if len(keys) != 3 {
			t.Errorf("declared count %d: walked %d nodes, expected 3", declared, len(keys))
		}
		if it.Next() {
			t.Errorf("declared count %d: iterator restarted after the end", declared)
		}
	}
}

func TestHashtableIteratorUnreadableNode(t *testing.T) {
	lp := protest.NewLibprocess(t)
	nodes := lp.FillIntTable([]int32{1, 2, 3}, []int64{10, 20, 30})
	lp.Mem.Unmap(nodes[1])

	it, err := NewHashtableIterator(lp.BinInfo, intTable(t, lp))
	protest.AssertNoError(err, t, "NewHashtableIterator")
	if !it.Next() {
		t.Fatalf("first node not produced: %v", it.Err())
	}
	if it.Next() {
		t.Fatal("unreadable node produced an element")
	}
	var mre *proc.MemoryReadError
	if !errors.As(it.Err(), &mre) {
		t.Fatalf("expected MemoryReadError, got %v", it.Err())
	}
	if mre.Addr != nodes[1] {
		t.Errorf("error reports address %#x, expected %#x", mre.Addr, nodes[1])
	}
	if it.Next() || it.Count() != 1 {
		t.Errorf("iterator continued after an error")
	}
}

func TestHashtableIteratorCycle(t *testing.T) {
	lp := protest.NewLibprocess(t)
	nodes := lp.FillIntTable([]int32{1, 2, 3, 4}, []int64{10, 20, 30, 40})
	lp.Mem.WriteUint64(nodes[3], nodes[1])

	it, err := NewHashtableIterator(lp.BinInfo, intTable(t, lp))
	protest.AssertNoError(err, t, "NewHashtableIterator")
	n := 0
	for it.Next() {
		n++
		if n > 100 {
			t.Fatal("cycle not detected")
		}
	}
	if !errors.Is(it.Err(), ErrCyclicChain) {
		t.Fatalf("expected ErrCyclicChain, got %v", it.Err())
	}
}

func TestHashtableIteratorSelfLoop(t *testing.T) {
	lp := protest.NewLibprocess(t)
	nodes := lp.FillIntTable([]int32{1}, []int64{10})
	lp.Mem.WriteUint64(nodes[0], nodes[0])

	it, err := NewHashtableIterator(lp.BinInfo, intTable(t, lp))
	protest.AssertNoError(err, t, "NewHashtableIterator")
	if !it.Next() {
		t.Fatalf("first node not produced: %v", it.Err())
	}
	if it.Next() {
		t.Fatal("self loop not detected")
	}
	if !errors.Is(it.Err(), ErrCyclicChain) {
		t.Fatalf("expected ErrCyclicChain, got %v", it.Err())
	}
}

func TestHashtableIteratorNotRestartable(t *testing.T) {
	lp := protest.NewLibprocess(t)
	lp.FillIntTable([]int32{1, 2}, []int64{10, 20})
	table := intTable(t, lp)

	it, err := NewHashtableIterator(lp.BinInfo, table)
	protest.AssertNoError(err, t, "NewHashtableIterator")
	first, _ := collectInts(t, it)
	second, _ := collectInts(t, it)
	if len(first) != 2 || len(second) != 0 {
		t.Fatalf("first walk %v, second walk %v", first, second)
	}

	// A new iterator reads the head again and sees the current contents.
	lp.FillIntTable([]int32{5, 6, 7}, []int64{50, 60, 70})
	it, err = NewHashtableIterator(lp.BinInfo, table)
	protest.AssertNoError(err, t, "NewHashtableIterator")
	third, _ := collectInts(t, it)
	if len(third) != 3 {
		t.Fatalf("fresh iterator walked %v", third)
	}
}

func TestHashtableIteratorMalformed(t *testing.T) {
	lp := protest.NewLibprocess(t)
	for _, name := range []string{protest.BrokenTableType, protest.NoStorageNodeType} {
		typ := lookup(t, lp.BinInfo, name)
		reads := lp.Mem.Reads
		_, err := NewHashtableIterator(lp.BinInfo, lp.Target.NewVariable("", protest.IntTableAddr, typ))
		var mgt *proc.MalformedGenericTypeError
		if !errors.As(err, &mgt) {
			t.Errorf("%s: expected MalformedGenericTypeError, got %v", name, err)
		}
		if lp.Mem.Reads != reads {
			t.Errorf("%s: memory read before the layout was validated", name)
		}
	}
}

func TestHashtableIteratorNoNodeType(t *testing.T) {
	lp := protest.NewLibprocess(t)
	typ := lookup(t, lp.BinInfo, "chain::D")
	_, err := NewHashtableIterator(lp.BinInfo, lp.Target.NewVariable("", protest.IntTableAddr, typ))
	var tnf *proc.TypeNotFoundError
	if !errors.As(err, &tnf) {
		t.Fatalf("expected TypeNotFoundError, got %v", err)
	}
	if tnf.Member != "__node_type" {
		t.Errorf("wrong member %q", tnf.Member)
	}
}

func TestHashtableIteratorUnreadableHead(t *testing.T) {
	lp := protest.NewLibprocess(t)
	typ := lookup(t, lp.BinInfo, protest.IntTableType)
	_, err := NewHashtableIterator(lp.BinInfo, lp.Target.NewVariable("", 0xdead0000, typ))
	var mre *proc.MemoryReadError
	if !errors.As(err, &mre) {
		t.Fatalf("expected MemoryReadError, got %v", err)
	}
}

func TestHashtableIteratorDerivedTable(t *testing.T) {
	lp := protest.NewLibprocess(t)
	pm := lp.NewProcessManager(
		protest.ProcessEntry{ID: "actor-1", Process: lp.NewProcess("actor-1", true, protest.StateReady)},
		protest.ProcessEntry{ID: "actor-2", Process: lp.NewProcess("actor-2", false, protest.StateBlocked)},
	)
	typ := lookup(t, lp.BinInfo, protest.ProcessTableType)
	it, err := NewHashtableIterator(lp.BinInfo, lp.Target.NewVariable("", pm.Table, typ))
	protest.AssertNoError(err, t, "NewHashtableIterator")
	ids := map[string]bool{}
	for it.Next() {
		first, err := it.Value().Field("first")
		protest.AssertNoError(err, t, "Field(first)")
		id, err := NewUPIDPrinter(first, nil).BriefString()
		protest.AssertNoError(err, t, "BriefString")
		ids[id] = true
	}
	protest.AssertNoError(it.Err(), t, "iteration")
	if len(ids) != 2 || !ids["actor-1"] || !ids["actor-2"] {
		t.Fatalf("unexpected ids %v", ids)
	}
}
