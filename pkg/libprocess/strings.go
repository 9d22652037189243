package libprocess

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-delve/lpdbg/pkg/proc"
)

// DefaultMaxStringLen is the number of bytes read from a std::string when
// no limit is configured.
const DefaultMaxStringLen = 256

// isStdString reports whether the type tag names a std::string, of either
// the cxx11 or the copy-on-write ABI.
func isStdString(tag string) bool {
	return strings.HasPrefix(tag, "std::__cxx11::basic_string<char") || strings.HasPrefix(tag, "std::basic_string<char")
}

// ReadString reads the contents of a std::string (or a pointer to one),
// at most maxLen bytes are read. The second return value is false if the
// string was truncated.
func ReadString(v *proc.Variable, maxLen int) (string, bool, error) {
	if v.Kind == reflect.Ptr {
		var err error
		v, err = v.Deref()
		if err != nil {
			return "", false, err
		}
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxStringLen
	}

	dataplus, err := v.Field("_M_dataplus")
	if err != nil {
		return "", false, fmt.Errorf("not a std::string: %w", err)
	}
	p, err := dataplus.Field("_M_p")
	if err != nil {
		return "", false, fmt.Errorf("not a std::string: %w", err)
	}
	var n uint64
	if lenVar, err := v.Field("_M_string_length"); err == nil {
		n, err = lenVar.AsUint()
		if err != nil {
			return "", false, err
		}
	} else if strings.HasPrefix(v.TypeTag(), "std::basic_string<char") {
		n, err = cowLength(p)
		if err != nil {
			return "", false, err
		}
	} else {
		return "", false, fmt.Errorf("not a std::string: %w", err)
	}
	complete := true
	if n > uint64(maxLen) {
		n = uint64(maxLen)
		complete = false
	}
	if n == 0 {
		return "", true, nil
	}

	data, err := p.Deref()
	if err != nil {
		return "", false, err
	}
	buf, err := data.ReadBytes(int(n))
	if err != nil {
		return "", false, err
	}
	return string(buf), complete, nil
}

// cowLength returns the length of a copy-on-write string, stored in the
// _Rep header {_M_length, _M_capacity, _M_refcount} that precedes the
// characters _M_p points to.
func cowLength(p *proc.Variable) (uint64, error) {
	ptr, err := p.PointerValue()
	if err != nil {
		return 0, err
	}
	sz := uint64(p.RealType.Size())
	if ptr < 3*sz {
		return 0, &proc.MemoryReadError{Addr: ptr, Size: int(sz), Err: proc.ErrNilPointer}
	}
	return p.Reinterpret(ptr-3*sz, p.RealType).PointerValue()
}

// IsString reports whether v is a std::string or a pointer to one.
func IsString(v *proc.Variable) bool {
	return isStdString(v.TypeTag())
}
