package libprocess

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
	"github.com/go-delve/lpdbg/pkg/logflags"
	"github.com/go-delve/lpdbg/pkg/proc"
)

// ErrCyclicChain is returned by HashtableIterator.Err when the node chain
// of the table loops back on itself, which only happens if the table is
// corrupt or being modified.
var ErrCyclicChain = errors.New("hashtable node chain is cyclic")

// Member names of the libstdc++ hashtable implementation
// (bits/hashtable.h, bits/hashtable_policy.h).
const (
	nodeTypeName       = "__node_type"
	beforeBeginField   = "_M_before_begin"
	nextField          = "_M_nxt"
	storageField       = "_M_storage"
	elementCountField  = "_M_element_count"
	unorderedMapMember = "_M_h"
)

// HashtableIterator walks the elements of a std::_Hashtable (the
// implementation of std::unordered_map and std::unordered_set) in the
// order of its node chain.
//
// The iterator keeps nothing but the address of the next node: every
// call to Next reads the node from target memory. It can not be
// restarted, create a new iterator to walk the table again.
//
//	it, err := NewHashtableIterator(bi, table)
//	if err != nil {
//		return err
//	}
//	for it.Next() {
//		use(it.Value())
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
type HashtableIterator struct {
	table     *proc.Variable
	nodeType  godwarf.Type
	valueType godwarf.Type

	cursor uint64
	cur    *proc.Variable
	count  int
	err    error

	// cycle detection (Brent): the chain is cyclic if cursor ever comes
	// back to mark.
	mark     uint64
	steps    int
	maxSteps int
}

// NewHashtableIterator returns an iterator over the elements of table,
// which must be (or point to) a std::_Hashtable instantiation, or a class
// derived from one.
//
// The node type is resolved and the head of the chain is read before
// NewHashtableIterator returns, failures are reported here and no node
// is visited.
func NewHashtableIterator(types TypeLookup, table *proc.Variable) (*HashtableIterator, error) {
	if table.Kind == reflect.Ptr {
		var err error
		table, err = table.Deref()
		if err != nil {
			return nil, err
		}
	}

	nodeType, err := FindMemberType(types, table.DwarfType, nodeTypeName)
	if err != nil {
		return nil, err
	}
	nodeStruct, ok := canonical(types, nodeType).(*godwarf.StructType)
	if !ok {
		return nil, &proc.MalformedGenericTypeError{Type: nodeType.String(), Reason: "node type is not a class"}
	}

	valueType, err := proc.TemplateArg(nodeStruct, 0)
	if err != nil {
		return nil, err
	}

	// Check the layout of the node without reading memory, the probe is
	// never dereferenced.
	probe := table.Reinterpret(0, nodeStruct)
	if !probe.HasField(nextField) {
		return nil, &proc.MalformedGenericTypeError{Type: nodeStruct.String(), Reason: "node has no " + nextField + " member"}
	}
	storage, err := probe.Field(storageField)
	if err != nil {
		return nil, &proc.MalformedGenericTypeError{Type: nodeStruct.String(), Reason: "node has no " + storageField + " member"}
	}
	if vsz, ssz := valueType.Size(), storage.RealType.Size(); vsz > ssz {
		return nil, &proc.MalformedGenericTypeError{
			Type:   nodeStruct.String(),
			Reason: fmt.Sprintf("value type %s (%d bytes) does not fit in %s (%d bytes)", valueType, vsz, storageField, ssz),
		}
	}

	beforeBegin, err := table.Field(beforeBeginField)
	if err != nil {
		return nil, structural(table, err)
	}
	headVar, err := beforeBegin.Field(nextField)
	if err != nil {
		return nil, structural(table, err)
	}
	head, err := headVar.PointerValue()
	if err != nil {
		return nil, err
	}

	if logflags.Libprocess() {
		logflags.LibprocessLogger().Debugf("hashtable %#x: node type %s, value type %s, head %#x", table.Addr, nodeStruct, valueType, head)
	}

	return &HashtableIterator{
		table:     table,
		nodeType:  nodeStruct,
		valueType: valueType,
		cursor:    head,
		mark:      head,
		maxSteps:  1,
	}, nil
}

// structural converts a missing member of the table into a
// MalformedGenericTypeError, memory errors are returned unchanged.
func structural(table *proc.Variable, err error) error {
	var nf *proc.NoFieldError
	if errors.As(err, &nf) {
		return &proc.MalformedGenericTypeError{Type: table.TypeString(), Reason: err.Error()}
	}
	return err
}

// Next advances the iterator to the next element of the table. It
// returns false when the end of the chain is reached or when a node can
// not be read, in which case Err returns the reason.
func (it *HashtableIterator) Next() bool {
	it.cur = nil
	if it.err != nil || it.cursor == 0 {
		return false
	}

	node := it.table.Reinterpret(it.cursor, it.nodeType).Cached()

	nextVar, err := node.Field(nextField)
	if err != nil {
		it.fail(err)
		return false
	}
	next, err := nextVar.PointerValue()
	if err != nil {
		it.fail(err)
		return false
	}
	// The cursor moves before the element is produced: whatever happens
	// to the element the iterator remains consistent.
	it.cursor = next

	storage, err := node.Field(storageField)
	if err != nil {
		it.fail(err)
		return false
	}
	it.cur = node.Reinterpret(storage.Addr, it.valueType)
	it.count++

	it.checkCycle()
	return true
}

func (it *HashtableIterator) checkCycle() {
	if it.cursor == 0 {
		return
	}
	if it.cursor == it.mark {
		it.fail(ErrCyclicChain)
		return
	}
	it.steps++
	if it.steps == it.maxSteps {
		it.mark = it.cursor
		it.maxSteps *= 2
		it.steps = 0
	}
}

func (it *HashtableIterator) fail(err error) {
	it.err = err
	it.cursor = 0
	if logflags.Libprocess() {
		logflags.LibprocessLogger().Debugf("hashtable %#x: stopped after %d elements: %v", it.table.Addr, it.count, err)
	}
}

// Value returns the element produced by the last call to Next. For maps
// it is a std::pair with members first and second.
func (it *HashtableIterator) Value() *proc.Variable {
	return it.cur
}

// Err returns the error that stopped the iteration, nil if the end of the
// chain was reached.
func (it *HashtableIterator) Err() error {
	return it.err
}

// Count returns the number of elements produced so far.
func (it *HashtableIterator) Count() int {
	return it.count
}

// ValueType returns the type of the elements of the table.
func (it *HashtableIterator) ValueType() godwarf.Type {
	return it.valueType
}

// ElementCount returns the number of elements table claims to hold. The
// value is only meant for display: a corrupt or concurrently modified
// table can hold a different number of nodes.
func ElementCount(table *proc.Variable) (uint64, error) {
	n, err := table.Field(elementCountField)
	if err != nil {
		return 0, structural(table, err)
	}
	return n.AsUint()
}

// UnorderedMapTable returns the std::_Hashtable implementing m, a
// std::unordered_map (or a class derived from one, like stout's hashmap).
func UnorderedMapTable(m *proc.Variable) (*proc.Variable, error) {
	table, err := m.Field(unorderedMapMember)
	if err != nil {
		return nil, structural(m, err)
	}
	return table, nil
}
