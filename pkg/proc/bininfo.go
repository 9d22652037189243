package proc

import (
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/derekparker/trie"
	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
	"github.com/go-delve/lpdbg/pkg/dwarf/op"
	"github.com/go-delve/lpdbg/pkg/logflags"
)

// ErrUnsupportedArch is returned when loading an executable for an
// architecture other than linux/amd64 or linux/arm64.
var ErrUnsupportedArch = errors.New("unsupported architecture - only 64bit little endian executables are supported")

// typeLookupCacheSize is the number of name lookups remembered by
// BinaryInfo.LookupType, misses included.
const typeLookupCacheSize = 1024

// BinaryInfo holds information on the executable being debugged: its
// named types and global variables, indexed by fully qualified C++ name.
type BinaryInfo struct {
	// Path is the path of the executable, empty for debug information
	// loaded from memory.
	Path         string
	lastModified time.Time

	// StaticBase is the difference between the address the executable was
	// linked at and the address it was loaded at (non-zero for PIE).
	StaticBase uint64
	// ElfEntry is the entry point of the executable as linked.
	ElfEntry uint64
	// PIE is true if the executable is position independent.
	PIE bool

	PtrSize   int
	ByteOrder binary.ByteOrder

	closer io.Closer
	dwarf  *dwarf.Data

	types        map[string]dwarf.Offset // normalized qualified name of definitions
	declarations map[string]dwarf.Offset // types only ever declared
	names        godwarf.NameTable
	globals      map[string]*global
	typeNames    *trie.Trie

	typeCacheMu sync.Mutex
	typeCache   map[dwarf.Offset]godwarf.Type

	// lookupCache maps normalized names to lookupResult.
	lookupCache *lru.Cache
}

type global struct {
	name     string
	typ      dwarf.Offset
	location []byte
}

type lookupResult struct {
	typ godwarf.Type
	err error
}

// NewBinaryInfo returns an empty BinaryInfo, call LoadBinaryInfo or
// LoadImageFromData to fill it.
func NewBinaryInfo() *BinaryInfo {
	cache, _ := lru.New(typeLookupCacheSize)
	return &BinaryInfo{
		PtrSize:      8,
		ByteOrder:    binary.LittleEndian,
		types:        make(map[string]dwarf.Offset),
		declarations: make(map[string]dwarf.Offset),
		names:        make(godwarf.NameTable),
		globals:      make(map[string]*global),
		typeNames:    trie.New(),
		typeCache:    make(map[dwarf.Offset]godwarf.Type),
		lookupCache:  cache,
	}
}

// LoadBinaryInfo opens the ELF executable at path and indexes its debug
// information.
func (bi *BinaryInfo) LoadBinaryInfo(path string) error {
	fi, err := os.Stat(path)
	if err == nil {
		bi.lastModified = fi.ModTime()
	}

	exe, err := os.OpenFile(path, 0, os.ModePerm)
	if err != nil {
		return err
	}
	elfFile, err := elf.NewFile(exe)
	if err != nil {
		exe.Close()
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	switch elfFile.Machine {
	case elf.EM_X86_64, elf.EM_AARCH64:
	default:
		exe.Close()
		return ErrUnsupportedArch
	}
	if elfFile.Class != elf.ELFCLASS64 || elfFile.ByteOrder != binary.LittleEndian {
		exe.Close()
		return ErrUnsupportedArch
	}

	d, err := godwarf.LoadDwarfElf(elfFile)
	if err != nil {
		exe.Close()
		return fmt.Errorf("could not load debug information of %s: %w", path, err)
	}
	bi.Path = path
	bi.closer = exe
	bi.ElfEntry = elfFile.Entry
	bi.PIE = elfFile.Type == elf.ET_DYN
	return bi.LoadImageFromData(d)
}

// LoadImageFromData indexes the debug information contained in d.
func (bi *BinaryInfo) LoadImageFromData(d *dwarf.Data) error {
	bi.dwarf = d
	t0 := time.Now()
	if err := bi.loadDebugInfoMaps(); err != nil {
		return err
	}
	if logflags.Proc() {
		logflags.ProcLogger().Debugf("indexed %d types, %d declarations, %d globals in %v", len(bi.types), len(bi.declarations), len(bi.globals), time.Since(t0))
	}
	return nil
}

// SetStaticBase records the address the executable was relocated by.
func (bi *BinaryInfo) SetStaticBase(base uint64) {
	bi.StaticBase = base
	logflags.ProcLogger().Debugf("static base %#x", base)
}

// SetStaticBaseFromEntry computes the static base of a position
// independent executable from the entry point the loader actually used
// (AT_ENTRY of the auxiliary vector).
func (bi *BinaryInfo) SetStaticBaseFromEntry(entryPoint uint64) {
	if !bi.PIE || entryPoint == 0 {
		return
	}
	bi.SetStaticBase(entryPoint - bi.ElfEntry)
}

// LastModified returns the modification time of the executable.
func (bi *BinaryInfo) LastModified() time.Time {
	return bi.lastModified
}

// Close releases the executable file.
func (bi *BinaryInfo) Close() error {
	if bi.closer == nil {
		return nil
	}
	return bi.closer.Close()
}

// scopeFrame is one level of DIE nesting seen by loadDebugInfoMaps.
type scopeFrame struct {
	prefix string // qualified name of the enclosing namespace or class
	named  bool   // false inside functions and unnamed types, nothing there is indexed
}

func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "::" + name
}

// loadDebugInfoMaps walks every compile unit once and records the fully
// qualified names of types and global variables.
func (bi *BinaryInfo) loadDebugInfoMaps() error {
	rdr := bi.dwarf.Reader()
	stack := []scopeFrame{{named: true}}
	varDecls := make(map[dwarf.Offset]string)

	for {
		entry, err := rdr.Next()
		if err != nil {
			return fmt.Errorf("could not read debug_info: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag == 0 {
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		top := stack[len(stack)-1]
		push := func(f scopeFrame) {
			if entry.Children {
				stack = append(stack, f)
			}
		}
		name, _ := entry.Val(dwarf.AttrName).(string)

		switch entry.Tag {
		case dwarf.TagCompileUnit, dwarf.TagPartialUnit:
			push(scopeFrame{named: true})

		case dwarf.TagNamespace:
			if name == "" {
				name = "(anonymous namespace)"
			}
			push(scopeFrame{prefix: qualify(top.prefix, name), named: top.named})

		case dwarf.TagClassType, dwarf.TagStructType, dwarf.TagUnionType, dwarf.TagEnumerationType,
			dwarf.TagTypedef, dwarf.TagBaseType, dwarf.TagUnspecifiedType:
			qname := ""
			if spec, ok := entry.Val(dwarf.AttrSpecification).(dwarf.Offset); ok {
				qname = bi.names[spec]
			}
			if qname == "" && name != "" && top.named {
				qname = qualify(top.prefix, name)
			}
			if qname != "" {
				decl, _ := entry.Val(dwarf.AttrDeclaration).(bool)
				bi.addType(qname, entry.Offset, decl)
			}
			push(scopeFrame{prefix: qname, named: qname != ""})

		case dwarf.TagVariable, dwarf.TagMember:
			if !top.named {
				push(scopeFrame{})
				break
			}
			qname := ""
			if spec, ok := entry.Val(dwarf.AttrSpecification).(dwarf.Offset); ok {
				qname = varDecls[spec]
			}
			if qname == "" && name != "" {
				qname = qualify(top.prefix, name)
			}
			if decl, _ := entry.Val(dwarf.AttrDeclaration).(bool); decl {
				varDecls[entry.Offset] = qname
			}
			bi.addGlobal(qname, entry)
			push(scopeFrame{})

		default:
			push(scopeFrame{})
		}
	}
	return nil
}

func (bi *BinaryInfo) addType(qname string, off dwarf.Offset, decl bool) {
	bi.names[off] = qname
	key := godwarf.NormalizeName(qname)
	if decl {
		if _, defined := bi.types[key]; !defined {
			if _, seen := bi.declarations[key]; !seen {
				bi.declarations[key] = off
			}
		}
		return
	}
	if _, defined := bi.types[key]; defined {
		return
	}
	bi.types[key] = off
	delete(bi.declarations, key)
	bi.typeNames.Add(key, off)
}

func (bi *BinaryInfo) addGlobal(qname string, entry *dwarf.Entry) {
	if qname == "" {
		return
	}
	loc, ok := entry.Val(dwarf.AttrLocation).([]byte)
	if !ok || len(loc) == 0 {
		return
	}
	key := godwarf.NormalizeName(qname)
	g := bi.globals[key]
	if g == nil {
		g = &global{name: qname}
		bi.globals[key] = g
	}
	g.location = loc
	if typ, ok := entry.Val(dwarf.AttrType).(dwarf.Offset); ok {
		g.typ = typ
	} else if g.typ == 0 {
		g.typ = bi.declaredType(entry)
	}
}

// declaredType returns the type of the declaration a DW_AT_specification
// points to, GCC omits DW_AT_type on out-of-class definitions.
func (bi *BinaryInfo) declaredType(entry *dwarf.Entry) dwarf.Offset {
	spec, ok := entry.Val(dwarf.AttrSpecification).(dwarf.Offset)
	if !ok {
		return 0
	}
	rdr := bi.dwarf.Reader()
	rdr.Seek(spec)
	e, err := rdr.Next()
	if err != nil || e == nil {
		return 0
	}
	typ, _ := e.Val(dwarf.AttrType).(dwarf.Offset)
	return typ
}

// Type returns the type at the given DIE offset.
func (bi *BinaryInfo) Type(off dwarf.Offset) (godwarf.Type, error) {
	bi.typeCacheMu.Lock()
	defer bi.typeCacheMu.Unlock()
	typ, err := godwarf.ReadType(bi.dwarf, off, bi.typeCache, bi.names)
	if err != nil {
		return nil, err
	}
	return bi.completeLocked(typ), nil
}

// completeLocked replaces a declaration-only class with its definition,
// if one exists anywhere in the debug information.
func (bi *BinaryInfo) completeLocked(typ godwarf.Type) godwarf.Type {
	st, ok := typ.(*godwarf.StructType)
	if !ok || !st.Incomplete || st.Name == "" {
		return typ
	}
	off, ok := bi.types[godwarf.NormalizeName(st.Name)]
	if !ok {
		return typ
	}
	def, err := godwarf.ReadType(bi.dwarf, off, bi.typeCache, bi.names)
	if err != nil {
		return typ
	}
	return def
}

// Complete returns the definition of typ if typ is a declaration-only
// class type, otherwise typ itself.
func (bi *BinaryInfo) Complete(typ godwarf.Type) godwarf.Type {
	bi.typeCacheMu.Lock()
	defer bi.typeCacheMu.Unlock()
	return bi.completeLocked(typ)
}

// LookupType returns the type with the given fully qualified name. Names
// are compared after normalization, so "std::pair<const int, char*>"
// and "std::pair<const int,char *>" designate the same type.
func (bi *BinaryInfo) LookupType(name string) (godwarf.Type, error) {
	key := godwarf.NormalizeName(name)
	if r, ok := bi.lookupCache.Get(key); ok {
		res := r.(lookupResult)
		return res.typ, res.err
	}
	off, ok := bi.types[key]
	if !ok {
		off, ok = bi.declarations[key]
	}
	var res lookupResult
	if !ok {
		res.err = &TypeNotFoundError{Type: name}
	} else {
		res.typ, res.err = bi.Type(off)
	}
	bi.lookupCache.Add(key, res)
	return res.typ, res.err
}

// TypesMatching returns the sorted names of all types defined in the
// target whose name starts with prefix.
func (bi *BinaryInfo) TypesMatching(prefix string) []string {
	var r []string
	if prefix == "" {
		r = bi.typeNames.Keys()
	} else {
		r = bi.typeNames.PrefixSearch(godwarf.NormalizeName(prefix))
	}
	sort.Strings(r)
	return r
}

// Globals returns the sorted names of all global variables of the target.
func (bi *BinaryInfo) Globals() []string {
	r := make([]string, 0, len(bi.globals))
	for _, g := range bi.globals {
		r = append(r, g.name)
	}
	sort.Strings(r)
	return r
}

// FindGlobal returns the address and type of the global variable with
// the given fully qualified name.
func (bi *BinaryInfo) FindGlobal(name string) (uint64, godwarf.Type, error) {
	g, ok := bi.globals[godwarf.NormalizeName(name)]
	if !ok {
		return 0, nil, &SymbolNotFoundError{Name: name}
	}
	if g.typ == 0 {
		return 0, nil, fmt.Errorf("global %s has no type", name)
	}
	typ, err := bi.Type(g.typ)
	if err != nil {
		return 0, nil, err
	}
	addr, isValue, err := op.ExecuteStackProgram(op.DwarfRegisters{StaticBase: bi.StaticBase, ByteOrder: bi.ByteOrder}, g.location, bi.PtrSize, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("could not evaluate location of %s: %w", name, err)
	}
	if isValue {
		return 0, nil, fmt.Errorf("global %s has been optimized into a constant", name)
	}
	return uint64(addr), typ, nil
}

// pointerTo returns the type of a pointer to typ.
func (bi *BinaryInfo) pointerTo(typ godwarf.Type) godwarf.Type {
	return &godwarf.PtrType{
		CommonType: godwarf.CommonType{
			ByteSize: int64(bi.PtrSize),
			Name:     strings.TrimSpace(typ.String()) + " *",
		},
		Type: typ,
	}
}
