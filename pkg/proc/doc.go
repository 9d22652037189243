// Package proc is a low-level package that provides methods to explore
// the memory of the program we are inspecting.
//
// proc implements the core functionality lpdbg is built on:
// * indexing the types and global variables of an executable by their
// fully qualified C++ name
// * typed, read-only views of target memory (Variable)
// * a small expression evaluator for the print command
//
// The memory itself comes from the core and native subpackages.
package proc
