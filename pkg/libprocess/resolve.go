package libprocess

import (
	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
	"github.com/go-delve/lpdbg/pkg/proc"
)

// TypeLookup finds types by fully qualified name. *proc.BinaryInfo
// implements it.
type TypeLookup interface {
	LookupType(name string) (godwarf.Type, error)
}

// typeCompleter is implemented by lookups that can replace a class
// declaration with its definition.
type typeCompleter interface {
	Complete(typ godwarf.Type) godwarf.Type
}

// FindMemberType returns the type name declared inside orig, or inside
// one of its base classes.
//
// GCC only records a nested typedef in the class that declares it, so
// std::_Hashtable<...>::__node_type has to be looked up in the base
// class that actually declares it. Only the first base class of each
// class is searched: the hierarchies this is used on never rely on
// multiple inheritance.
func FindMemberType(types TypeLookup, orig godwarf.Type, name string) (godwarf.Type, error) {
	notFound := &proc.TypeNotFoundError{Type: typeName(orig), Member: name}
	if orig == nil {
		return nil, notFound
	}
	typ := canonical(types, orig)
	visited := make(map[string]bool)
	for {
		tname := typ.Common().Name
		if tname == "" || visited[tname] {
			return nil, notFound
		}
		visited[tname] = true

		if r, err := types.LookupType(tname + "::" + name); err == nil {
			return r, nil
		}

		st, ok := typ.(*godwarf.StructType)
		if !ok || len(st.Bases) == 0 {
			return nil, notFound
		}
		base := st.Bases[0]
		if !base.Embedded || base.Type == nil {
			return nil, notFound
		}
		typ = canonical(types, base.Type)
	}
}

// canonical strips typedefs and cv-qualifiers from typ and, if possible,
// replaces a class declaration with its definition.
func canonical(types TypeLookup, typ godwarf.Type) godwarf.Type {
	typ = godwarf.ResolveTypedef(typ)
	if c, ok := types.(typeCompleter); ok {
		typ = c.Complete(typ)
	}
	return typ
}

func typeName(typ godwarf.Type) string {
	if typ == nil {
		return "<nil>"
	}
	return typ.String()
}
