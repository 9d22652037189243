// Package libprocess prints the internal state of programs built on the
// libprocess actor runtime: the process table of the process manager and
// the identity and lifecycle state of single processes.
//
// Everything is read from target memory through the debug information of
// the executable. libstdc++ containers are walked by following their
// internal node chains, no byte offset is hardcoded: every layout fact is
// derived from the types the compiler recorded.
package libprocess
