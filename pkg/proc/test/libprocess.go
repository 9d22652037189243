package test

import (
	"debug/dwarf"
	"testing"

	"github.com/go-delve/lpdbg/pkg/dwarf/dwarfbuilder"
	"github.com/go-delve/lpdbg/pkg/proc"
)

// Names of the types described by LibprocessDwarf.
const (
	StringType         = "std::__cxx11::basic_string<char, std::char_traits<char>, std::allocator<char> >"
	COWStringType      = "std::basic_string<char, std::char_traits<char>, std::allocator<char> >"
	UPIDType           = "process::UPID"
	ProcessBaseType    = "process::ProcessBase"
	ProcessManagerType = "process::ProcessManager"
	ProcessPairType    = "std::pair<process::UPID const, process::ProcessBase*>"
	ProcessNodeType    = "std::__detail::_Hash_node<" + ProcessPairType + ", true>"
	ProcessTableType   = "std::_Hashtable<process::UPID, " + ProcessPairType + ", std::allocator<" + ProcessPairType + " >, std::__detail::_Select1st, std::equal_to<process::UPID>, std::hash<process::UPID> >"
	ProcessMapType     = "std::unordered_map<process::UPID, process::ProcessBase*, std::hash<process::UPID>, std::equal_to<process::UPID>, std::allocator<" + ProcessPairType + " > >"
	ProcessHashmapType = "hashmap<process::UPID, process::ProcessBase*, std::hash<process::UPID>, std::equal_to<process::UPID> >"
	PIDType            = "process::PID<process::ProcessBase>"

	IntPairType  = "std::pair<int const, long>"
	IntNodeType  = "std::__detail::_Hash_node<" + IntPairType + ", false>"
	IntTableType = "std::_Hashtable<int, " + IntPairType + ", std::allocator<" + IntPairType + " >, std::__detail::_Select1st, std::equal_to<int>, std::hash<int> >"

	BrokenTableType   = "broken::Table"
	NoStorageNodeType = "broken::NoStorageTable"

	ProcessManagerSymbol = "process::process_manager"
	IntTableSymbol       = "intTable"
)

// Layout of the fixture types, the code under test never uses these: it
// must derive every offset from the debug information.
const (
	stringSize     = 32
	cowStringSize  = 8
	cowRepSize     = 24
	sharedPtrSize  = 16
	upidSize       = 24
	upidAddressOff = 16
	processSize    = 40
	processPidOff  = 8
	processManOff  = 32
	processStOff   = 36
	pairSize       = 32
	pairSecondOff  = 24
	nodeSize       = 48
	nodeStorageOff = 8
	tableSize      = 56
	tableHeadOff   = 16
	tableCountOff  = 24
	managerSize    = 64
	managerProcOff = 8

	intNodeSize = 24

	// ProcessManagerAddr is the address of the process::process_manager
	// global variable.
	ProcessManagerAddr = 0x601000
	// IntTableAddr is the address of the intTable global variable.
	IntTableAddr = 0x602000
)

// Values of process::ProcessBase::State.
const (
	StateBottom = iota
	StateBlocked
	StateReady
	StateTerminating
)

// LibprocessDwarf returns debug information describing the parts of
// libstdc++ and libprocess the printers need, laid out the way GCC
// describes them, plus a few auxiliary types used to test type lookups:
//
//	chain::A : chain::B : chain::C, only C declares the nested type T
//	chain::D, holds a C as a member (composition, no bases)
//	broken::Table, a table whose node type is not a template instantiation
//	broken::NoStorageTable, a table whose node type has no _M_storage
func LibprocessDwarf() (*dwarf.Data, error) {
	b := dwarfbuilder.New()

	// base types
	charoff := b.AddBaseType("char", dwarfbuilder.DW_ATE_signed_char, 1)
	ucharoff := b.AddBaseType("unsigned char", dwarfbuilder.DW_ATE_unsigned_char, 1)
	booloff := b.AddBaseType("bool", dwarfbuilder.DW_ATE_boolean, 1)
	intoff := b.AddBaseType("int", dwarfbuilder.DW_ATE_signed, 4)
	uintoff := b.AddBaseType("unsigned int", dwarfbuilder.DW_ATE_unsigned, 4)
	ushortoff := b.AddBaseType("short unsigned int", dwarfbuilder.DW_ATE_unsigned, 2)
	longoff := b.AddBaseType("long int", dwarfbuilder.DW_ATE_signed, 8)
	ulongoff := b.AddBaseType("long unsigned int", dwarfbuilder.DW_ATE_unsigned, 8)
	charptroff := b.AddPointerType("", charoff)
	voidptroff := b.AddPointerType("", 0)
	constintoff := b.AddConstType(intoff)

	// std::string
	b.AddNamespace("std")
	b.AddNamespace("__cxx11")
	stroff := b.AddClassType("basic_string<char, std::char_traits<char>, std::allocator<char> >", stringSize)
	hideroff := b.AddStructType("_Alloc_hider", 8)
	b.AddMember("_M_p", charptroff, 0)
	b.TagClose()
	b.AddMember("_M_dataplus", hideroff, 0)
	b.AddMember("_M_string_length", ulongoff, 8)
	b.AddMember("_M_local_buf", b.AddArrayType("", charoff, 16), 16)
	b.TagClose()
	b.AddTypedef("string", stroff)
	b.TagClose() // __cxx11
	strptroff := b.AddPointerType("", stroff)

	// copy-on-write std::string of the old ABI
	b.AddClassType("basic_string<char, std::char_traits<char>, std::allocator<char> >", cowStringSize)
	cowhideroff := b.AddStructType("_Alloc_hider", 8)
	b.AddMember("_M_p", charptroff, 0)
	b.TagClose()
	b.AddMember("_M_dataplus", cowhideroff, 0)
	b.TagClose()

	// std::shared_ptr<std::string>
	countoff := b.AddClassType("__shared_count<(__gnu_cxx::_Lock_policy)2>", 8)
	b.AddMember("_M_pi", voidptroff, 0)
	b.TagClose()
	sharedbaseoff := b.AddClassType("__shared_ptr<std::__cxx11::basic_string<char, std::char_traits<char>, std::allocator<char> >, (__gnu_cxx::_Lock_policy)2>", sharedPtrSize)
	b.AddTemplateTypeParam("_Tp", stroff)
	b.AddMember("_M_ptr", strptroff, 0)
	b.AddMember("_M_refcount", countoff, 8)
	b.TagClose()
	sharedoff := b.AddClassType("shared_ptr<std::__cxx11::basic_string<char, std::char_traits<char>, std::allocator<char> > >", sharedPtrSize)
	b.AddInheritance(sharedbaseoff, 0)
	b.AddTemplateTypeParam("_Tp", stroff)
	b.TagClose()
	b.TagClose() // std

	// process::UPID, forward declaration of process::ProcessBase with its
	// nested State enum.
	b.AddNamespace("process")
	b.AddNamespace("network")
	b.AddNamespace("inet")
	addroff := b.AddClassType("Address", 8)
	b.AddMember("ip", uintoff, 0)
	b.AddMember("port", ushortoff, 4)
	b.TagClose()
	b.TagClose() // inet
	b.TagClose() // network
	upidoff := b.AddStructType("UPID", upidSize)
	idoff := b.AddStructType("ID", sharedPtrSize)
	b.AddMember("id", sharedoff, 0)
	b.TagClose()
	b.AddMember("id", idoff, 0)
	b.AddMember("address", addroff, upidAddressOff)
	b.TagClose()
	b.AddClassType("PID<process::ProcessBase>", upidSize)
	b.AddInheritance(upidoff, 0)
	b.TagClose()
	pbdecloff := b.TagOpen(dwarf.TagClassType, "ProcessBase")
	b.Attr(dwarf.AttrDeclaration, true)
	stateoff := b.AddEnumType("State", 4,
		dwarfbuilder.Enumerator{Name: "BOTTOM", Val: StateBottom},
		dwarfbuilder.Enumerator{Name: "BLOCKED", Val: StateBlocked},
		dwarfbuilder.Enumerator{Name: "READY", Val: StateReady},
		dwarfbuilder.Enumerator{Name: "TERMINATING", Val: StateTerminating})
	b.TagClose()
	b.TagClose() // process
	pbptroff := b.AddPointerType("", pbdecloff)
	constupidoff := b.AddConstType(upidoff)

	// std::atomic<process::ProcessBase::State> and the process table.
	b.AddNamespace("std")
	atomicoff := b.AddStructType("atomic<process::ProcessBase::State>", 4)
	b.AddTemplateTypeParam("_Tp", stateoff)
	b.AddMember("_M_i", stateoff, 0)
	b.TagClose()

	pairoff := b.AddStructType("pair<process::UPID const, process::ProcessBase*>", pairSize)
	b.AddTemplateTypeParam("_T1", constupidoff)
	b.AddTemplateTypeParam("_T2", pbptroff)
	b.AddMember("first", constupidoff, 0)
	b.AddMember("second", pbptroff, pairSecondOff)
	b.TagClose()

	intpairoff := b.AddStructType("pair<int const, long>", 16)
	b.AddTemplateTypeParam("_T1", constintoff)
	b.AddTemplateTypeParam("_T2", longoff)
	b.AddMember("first", constintoff, 0)
	b.AddMember("second", longoff, 8)
	b.TagClose()

	b.AddNamespace("__detail")
	nodebaseoff := b.AddStructType("_Hash_node_base", 8)
	nodebaseptroff := b.AddPointerType("", nodebaseoff)
	b.AddMember("_M_nxt", nodebaseptroff, 0)
	b.TagClose()
	b.TagClose() // __detail
	b.TagClose() // std

	b.AddNamespace("__gnu_cxx")
	bufoff := b.AddStructType("__aligned_buffer<std::pair<process::UPID const, process::ProcessBase*> >", pairSize)
	b.AddTemplateTypeParam("_Tp", pairoff)
	b.AddMember("_M_storage", b.AddArrayType("", ucharoff, pairSize), 0)
	b.TagClose()
	intbufoff := b.AddStructType("__aligned_buffer<std::pair<int const, long> >", 16)
	b.AddTemplateTypeParam("_Tp", intpairoff)
	b.AddMember("_M_storage", b.AddArrayType("", ucharoff, 16), 0)
	b.TagClose()
	b.TagClose() // __gnu_cxx

	b.AddNamespace("std")
	b.AddNamespace("__detail")
	valbaseoff := b.AddStructType("_Hash_node_value_base<std::pair<process::UPID const, process::ProcessBase*> >", nodeStorageOff+pairSize)
	b.AddInheritance(nodebaseoff, 0)
	b.AddTemplateTypeParam("_Value", pairoff)
	b.AddMember("_M_storage", bufoff, nodeStorageOff)
	b.TagClose()
	nodeoff := b.AddStructType("_Hash_node<std::pair<process::UPID const, process::ProcessBase*>, true>", nodeSize)
	b.AddInheritance(valbaseoff, 0)
	b.AddTemplateTypeParam("_Value", pairoff)
	b.AddTemplateValueParam("_Cache_hash_code", booloff, 1)
	b.AddMember("_M_hash_code", ulongoff, nodeStorageOff+pairSize)
	b.TagClose()
	allocoff := b.AddStructType("_Hashtable_alloc<std::allocator<std::__detail::_Hash_node<std::pair<process::UPID const, process::ProcessBase*>, true> > >", 1)
	b.AddTypedef("__node_type", nodeoff)
	b.TagClose()

	intvalbaseoff := b.AddStructType("_Hash_node_value_base<std::pair<int const, long> >", intNodeSize)
	b.AddInheritance(nodebaseoff, 0)
	b.AddTemplateTypeParam("_Value", intpairoff)
	b.AddMember("_M_storage", intbufoff, 8)
	b.TagClose()
	intnodeoff := b.AddStructType("_Hash_node<std::pair<int const, long>, false>", intNodeSize)
	b.AddInheritance(intvalbaseoff, 0)
	b.AddTemplateTypeParam("_Value", intpairoff)
	b.AddTemplateValueParam("_Cache_hash_code", booloff, 0)
	b.TagClose()
	b.TagClose() // __detail

	tableoff := b.AddClassType("_Hashtable<process::UPID, std::pair<process::UPID const, process::ProcessBase*>, std::allocator<std::pair<process::UPID const, process::ProcessBase*> >, std::__detail::_Select1st, std::equal_to<process::UPID>, std::hash<process::UPID> >", tableSize)
	b.AddInheritance(allocoff, 0)
	b.AddMember("_M_buckets", b.AddPointerType("", nodebaseptroff), 0)
	b.AddMember("_M_bucket_count", ulongoff, 8)
	b.AddMember("_M_before_begin", nodebaseoff, tableHeadOff)
	b.AddMember("_M_element_count", ulongoff, tableCountOff)
	b.AddMember("_M_single_bucket", nodebaseptroff, 48)
	b.TagClose()

	inttableoff := b.AddClassType("_Hashtable<int, std::pair<int const, long>, std::allocator<std::pair<int const, long> >, std::__detail::_Select1st, std::equal_to<int>, std::hash<int> >", tableSize)
	b.AddTypedef("__node_type", intnodeoff)
	b.AddMember("_M_buckets", b.AddPointerType("", nodebaseptroff), 0)
	b.AddMember("_M_bucket_count", ulongoff, 8)
	b.AddMember("_M_before_begin", nodebaseoff, tableHeadOff)
	b.AddMember("_M_element_count", ulongoff, tableCountOff)
	b.TagClose()

	mapoff := b.AddClassType("unordered_map<process::UPID, process::ProcessBase*, std::hash<process::UPID>, std::equal_to<process::UPID>, std::allocator<std::pair<process::UPID const, process::ProcessBase*> > >", tableSize)
	b.AddMember("_M_h", tableoff, 0)
	b.TagClose()
	b.TagClose() // std

	// stout's hashmap lives in the global namespace.
	hashmapoff := b.AddClassType("hashmap<process::UPID, process::ProcessBase*, std::hash<process::UPID>, std::equal_to<process::UPID> >", tableSize)
	b.AddInheritance(mapoff, 0)
	b.TagClose()

	b.AddNamespace("process")
	pboff := b.AddClassType("ProcessBase", processSize)
	b.TagOpen(dwarf.TagMember, "_vptr.ProcessBase")
	b.Attr(dwarf.AttrType, voidptroff)
	b.Attr(dwarf.AttrDataMemberLoc, int64(0))
	b.Attr(dwarf.AttrArtificial, true)
	b.TagClose()
	b.AddMember("pid", upidoff, processPidOff)
	b.AddMember("manage", booloff, processManOff)
	b.AddMember("state", atomicoff, processStOff)
	b.TagClose()
	pmoff := b.AddClassType("ProcessManager", managerSize)
	b.AddMember("finalizer", b.AddPointerType("", pboff), 0)
	b.AddMember("processes", hashmapoff, managerProcOff)
	b.TagClose()
	b.AddVariable("process_manager", b.AddPointerType("", pmoff), dwarfbuilder.AddrLocation(ProcessManagerAddr))
	b.TagClose() // process

	b.AddVariable("intTable", inttableoff, dwarfbuilder.AddrLocation(IntTableAddr))

	// Resolver fixtures.
	b.AddNamespace("chain")
	coff := b.AddStructType("C", 4)
	b.AddTypedef("T", intoff)
	b.AddMember("c", intoff, 0)
	b.TagClose()
	boff := b.AddStructType("B", 4)
	b.AddInheritance(coff, 0)
	b.TagClose()
	b.AddStructType("A", 4)
	b.AddInheritance(boff, 0)
	b.TagClose()
	b.AddStructType("D", 4)
	b.AddMember("c", coff, 0)
	b.TagClose()
	b.TagClose() // chain

	b.AddNamespace("broken")
	plainnodeoff := b.AddStructType("Node", 16)
	b.AddMember("_M_nxt", nodebaseptroff, 0)
	b.AddMember("_M_storage", longoff, 8)
	b.TagClose()
	b.AddStructType("Table", tableSize)
	b.AddTypedef("__node_type", plainnodeoff)
	b.AddMember("_M_before_begin", nodebaseoff, tableHeadOff)
	b.AddMember("_M_element_count", ulongoff, tableCountOff)
	b.TagClose()
	nostoragenodeoff := b.AddStructType("NoStorageNode<std::pair<int const, long> >", 8)
	b.AddTemplateTypeParam("_Value", intpairoff)
	b.AddMember("_M_nxt", nodebaseptroff, 0)
	b.TagClose()
	b.AddStructType("NoStorageTable", tableSize)
	b.AddTypedef("__node_type", nostoragenodeoff)
	b.AddMember("_M_before_begin", nodebaseoff, tableHeadOff)
	b.AddMember("_M_element_count", ulongoff, tableCountOff)
	b.TagClose()
	b.TagClose() // broken

	return b.Data()
}

// Libprocess is a fake libprocess program: the debug information of
// LibprocessDwarf and a memory image the test fills with objects.
type Libprocess struct {
	Mem     *FakeMemory
	BinInfo *proc.BinaryInfo
	Target  *proc.Target
}

// NewLibprocess returns a Libprocess with the global variables mapped
// and process::process_manager set to null.
func NewLibprocess(t testing.TB) *Libprocess {
	t.Helper()
	d, err := LibprocessDwarf()
	AssertNoError(err, t, "LibprocessDwarf")
	bi := proc.NewBinaryInfo()
	AssertNoError(bi.LoadImageFromData(d), t, "LoadImageFromData")
	mem := NewFakeMemory()
	mem.Map(ProcessManagerAddr, 8)
	mem.Map(IntTableAddr, tableSize)
	return &Libprocess{Mem: mem, BinInfo: bi, Target: proc.NewTarget(bi, mem)}
}

// NewString allocates a std::string holding s and returns its address.
func (lp *Libprocess) NewString(s string) uint64 {
	addr := lp.Mem.Alloc(stringSize)
	lp.WriteString(addr, s)
	return addr
}

// WriteString writes, at addr, a std::string holding s.
func (lp *Libprocess) WriteString(addr uint64, s string) {
	buf := lp.Mem.Alloc(len(s) + 1)
	lp.Mem.Write(buf, []byte(s))
	lp.Mem.WriteUint64(addr, buf)
	lp.Mem.WriteUint64(addr+8, uint64(len(s)))
}

// NewCOWString allocates a copy-on-write std::string holding s, its
// _M_p points past a {length, capacity, refcount} header.
func (lp *Libprocess) NewCOWString(s string) uint64 {
	addr := lp.Mem.Alloc(cowStringSize)
	rep := lp.Mem.Alloc(cowRepSize + len(s) + 1)
	lp.Mem.WriteUint64(rep, uint64(len(s)))
	lp.Mem.WriteUint64(rep+8, uint64(len(s)))
	lp.Mem.Write(rep+cowRepSize, []byte(s))
	lp.Mem.WriteUint64(addr, rep+cowRepSize)
	return addr
}

// WriteUPID writes at addr a process::UPID with the given id and address.
// The id string is allocated separately and referenced through the
// id.id shared_ptr.
func (lp *Libprocess) WriteUPID(addr uint64, id string, ip uint32, port uint16) {
	lp.Mem.WriteUint64(addr, lp.NewString(id))
	lp.Mem.WriteUint64(addr+8, 0)
	lp.Mem.WriteUint32(addr+upidAddressOff, ip)
	lp.Mem.WriteUint16(addr+upidAddressOff+4, port)
}

// NewUPID allocates a process::UPID and returns its address.
func (lp *Libprocess) NewUPID(id string, ip uint32, port uint16) uint64 {
	addr := lp.Mem.Alloc(upidSize)
	lp.WriteUPID(addr, id, ip, port)
	return addr
}

// NewProcess allocates a process::ProcessBase and returns its address.
func (lp *Libprocess) NewProcess(id string, managed bool, state int32) uint64 {
	addr := lp.Mem.Alloc(processSize)
	lp.WriteUPID(addr+processPidOff, id, 0x0100007f, 5050)
	lp.Mem.WriteBool(addr+processManOff, managed)
	lp.Mem.WriteUint32(addr+processStOff, uint32(state))
	return addr
}

// ProcessEntry is an element of the process table of a ProcessManager.
type ProcessEntry struct {
	ID      string
	Process uint64 // address of the process::ProcessBase
}

// ProcessManager describes a process::ProcessManager built by
// NewProcessManager.
type ProcessManager struct {
	Addr  uint64   // address of the manager
	Table uint64   // address of the std::_Hashtable of processes
	Nodes []uint64 // address of each node, in chain order
}

// NewProcessManager allocates a process::ProcessManager whose process table
// holds entries, chained in the given order, and points
// process::process_manager to it.
func (lp *Libprocess) NewProcessManager(entries ...ProcessEntry) *ProcessManager {
	pm := &ProcessManager{Addr: lp.Mem.Alloc(managerSize)}
	pm.Table = pm.Addr + managerProcOff
	lp.Mem.WriteUint64(pm.Table+8, uint64(len(entries)+1))
	for _, e := range entries {
		node := lp.Mem.Alloc(nodeSize)
		lp.WriteUPID(node+nodeStorageOff, e.ID, 0x0100007f, 5050)
		lp.Mem.WriteUint64(node+nodeStorageOff+pairSecondOff, e.Process)
		pm.Nodes = append(pm.Nodes, node)
	}
	LinkChain(lp.Mem, pm.Table, pm.Nodes)
	lp.Mem.WriteUint64(ProcessManagerAddr, pm.Addr)
	return pm
}

// LinkChain links nodes into a singly linked list headed by the table at
// tableAddr and sets the element count of the table to len(nodes).
func LinkChain(mem *FakeMemory, tableAddr uint64, nodes []uint64) {
	head := uint64(0)
	if len(nodes) > 0 {
		head = nodes[0]
	}
	mem.WriteUint64(tableAddr+tableHeadOff, head)
	for i, n := range nodes {
		next := uint64(0)
		if i+1 < len(nodes) {
			next = nodes[i+1]
		}
		mem.WriteUint64(n, next)
	}
	SetElementCount(mem, tableAddr, uint64(len(nodes)))
}

// SetElementCount overwrites the _M_element_count of the table at tableAddr.
func SetElementCount(mem *FakeMemory, tableAddr, n uint64) {
	mem.WriteUint64(tableAddr+tableCountOff, n)
}

// FillIntTable fills intTable with the given key/value pairs, chained in
// the order of keys, and returns the addresses of the nodes.
func (lp *Libprocess) FillIntTable(keys []int32, vals []int64) []uint64 {
	nodes := make([]uint64, len(keys))
	for i := range keys {
		n := lp.Mem.Alloc(intNodeSize)
		lp.Mem.WriteUint32(n+8, uint32(keys[i]))
		lp.Mem.WriteUint64(n+16, uint64(vals[i]))
		nodes[i] = n
	}
	LinkChain(lp.Mem, IntTableAddr, nodes)
	return nodes
}

// BreakProcessID points the id string of the process at addr to unmapped
// memory.
func (lp *Libprocess) BreakProcessID(addr uint64) {
	lp.Mem.WriteUint64(addr+processPidOff, 0xdead0000)
}
