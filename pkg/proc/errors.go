package proc

import (
	"errors"
	"fmt"
)

// ErrNilPointer is the cause of a MemoryReadError produced by
// dereferencing a null pointer.
var ErrNilPointer = errors.New("nil pointer dereference")

// ErrShortRead is the cause of a MemoryReadError produced when the memory
// source returned fewer bytes than requested.
var ErrShortRead = errors.New("short read")

// TypeNotFoundError is returned when a type, or a type nested inside
// another type, could not be found in the debug information of the target.
type TypeNotFoundError struct {
	Type   string // type the lookup started from
	Member string // nested type name, empty for plain lookups
}

func (err *TypeNotFoundError) Error() string {
	if err.Member == "" {
		return fmt.Sprintf("could not find type %s", err.Type)
	}
	return fmt.Sprintf("could not find type %s::%s in %s or its base classes", err.Type, err.Member, err.Type)
}

// MemoryReadError is returned when target memory could not be read at Addr.
type MemoryReadError struct {
	Addr uint64
	Size int
	Err  error
}

func (err *MemoryReadError) Error() string {
	return fmt.Sprintf("could not read %d bytes at %#x: %v", err.Size, err.Addr, err.Err)
}

func (err *MemoryReadError) Unwrap() error { return err.Err }

// MalformedGenericTypeError is returned when an instantiation of a class
// template does not have the template arguments or the members its layout
// requires.
type MalformedGenericTypeError struct {
	Type   string
	Reason string
}

func (err *MalformedGenericTypeError) Error() string {
	return fmt.Sprintf("malformed generic type %s: %s", err.Type, err.Reason)
}

// NoFieldError is returned by Variable.Field when neither the type of the
// variable nor any of its base classes has the requested member.
type NoFieldError struct {
	Type  string
	Field string
}

func (err *NoFieldError) Error() string {
	return fmt.Sprintf("%s has no member %s", err.Type, err.Field)
}

// SymbolNotFoundError is returned when a global variable does not exist in
// the debug information of the target.
type SymbolNotFoundError struct {
	Name string
}

func (err *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("could not find symbol %s", err.Name)
}
