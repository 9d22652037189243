// Package leb128 provides encoders and decoders for the Little Endian Base 128
// format used by DWARF (DWARF v4 section 7.6).
//
// Decoding never panics: truncated input is reported through ErrTruncated so
// that malformed debug information in an inspected binary cannot bring down
// the debugger.
package leb128
