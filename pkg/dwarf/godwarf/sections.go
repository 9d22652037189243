package godwarf

import (
	"bytes"
	"compress/zlib"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrNoDebugInfo is returned by LoadDwarfElf when the executable has been
// stripped of its .debug_info section.
var ErrNoDebugInfo = errors.New("could not find .debug_info section, was the program built with -g?")

// GetDebugSectionElf returns the data contents of the specified debug
// section, decompressing it if it is compressed.
// For example GetDebugSectionElf("line") will return the contents of
// .debug_line, if .debug_line doesn't exist it will try to return the
// decompressed contents of .zdebug_line.
func GetDebugSectionElf(f *elf.File, name string) ([]byte, error) {
	sec := f.Section(".debug_" + name)
	if sec != nil {
		// debug/elf transparently inflates SHF_COMPRESSED sections.
		return sec.Data()
	}
	sec = f.Section(".zdebug_" + name)
	if sec == nil {
		return nil, fmt.Errorf("could not find .debug_%s section", name)
	}
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	return decompressMaybe(b)
}

// LoadDwarfElf builds a dwarf.Data from the debug sections of f. Only
// .debug_info and .debug_abbrev are mandatory, type printing never needs
// line tables or frame information.
func LoadDwarfElf(f *elf.File) (*dwarf.Data, error) {
	get := func(name string, required bool) ([]byte, error) {
		b, err := GetDebugSectionElf(f, name)
		if err != nil && !required {
			return nil, nil
		}
		return b, err
	}
	info, err := get("info", true)
	if err != nil {
		return nil, ErrNoDebugInfo
	}
	abbrev, err := get("abbrev", true)
	if err != nil {
		return nil, err
	}
	var opt [4][]byte
	for i, name := range []string{"aranges", "line", "ranges", "str"} {
		opt[i], _ = get(name, false)
	}
	d, err := dwarf.New(abbrev, opt[0], nil, info, opt[1], nil, opt[2], opt[3])
	if err != nil {
		return nil, err
	}
	// DWARFv5 string and address tables.
	for _, name := range []string{"addr", "line_str", "str_offsets", "rnglists"} {
		b, _ := get(name, false)
		if b == nil {
			continue
		}
		if err := d.AddSection(".debug_"+name, b); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func decompressMaybe(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[:4]) != "ZLIB" {
		// not compressed
		return b, nil
	}

	dlen := binary.BigEndian.Uint64(b[4:12])
	dbuf := make([]byte, dlen)
	r, err := zlib.NewReader(bytes.NewBuffer(b[12:]))
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, dbuf); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return dbuf, nil
}
