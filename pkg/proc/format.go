package proc

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
)

// FormatScalar returns the display form of a scalar value: integers in
// decimal, enums by enumerator name, pointers in hexadecimal. Structs and
// arrays are rejected.
func (v *Variable) FormatScalar() (string, error) {
	switch t := v.RealType.(type) {
	case *godwarf.EnumType:
		n, err := v.AsInt()
		if err != nil {
			return "", err
		}
		if name, ok := t.Lookup(n); ok {
			return name, nil
		}
		return strconv.FormatInt(n, 10), nil
	case *godwarf.CharType, *godwarf.UcharType:
		n, err := v.AsUint()
		if err != nil {
			return "", err
		}
		if n >= 0x20 && n < 0x7f {
			return fmt.Sprintf("%d %q", n, rune(n)), nil
		}
		return strconv.FormatUint(n, 10), nil
	}

	switch v.Kind {
	case reflect.Int:
		n, err := v.AsInt()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case reflect.Uint:
		n, err := v.AsUint()
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(n, 10), nil
	case reflect.Bool:
		b, err := v.AsBool()
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	case reflect.Float32, reflect.Float64:
		n, err := v.AsUint()
		if err != nil {
			return "", err
		}
		if v.Kind == reflect.Float32 {
			return strconv.FormatFloat(float64(math.Float32frombits(uint32(n))), 'g', -1, 32), nil
		}
		return strconv.FormatFloat(math.Float64frombits(n), 'g', -1, 64), nil
	case reflect.Ptr, reflect.UnsafePointer:
		p, err := v.PointerValue()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%#x", p), nil
	}
	return "", fmt.Errorf("%s (type %s) is not a scalar", v.Name, v.TypeString())
}
