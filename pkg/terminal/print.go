package terminal

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
	"github.com/go-delve/lpdbg/pkg/libprocess"
	"github.com/go-delve/lpdbg/pkg/proc"
	"github.com/go-delve/lpdbg/pkg/terminal/colorize"
)

// maxStructDepth is the number of nested struct levels the default
// formatter expands.
const maxStructDepth = 2

// formatValue renders v through its registered printer or, if no
// printer is registered for its type, through the default formatter.
func (t *Term) formatValue(v *proc.Variable) (string, error) {
	if p := t.printers.Lookup(v); p != nil {
		return p.String()
	}
	return t.defaultFormat(v, 0)
}

// printString writes s followed by a newline, unless it already ends
// with one.
func (t *Term) printString(s string) {
	fmt.Fprint(t.stdout, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(t.stdout)
	}
}

func (t *Term) maxStringLen() int {
	if t.conf != nil && t.conf.MaxStringLen != nil {
		return *t.conf.MaxStringLen
	}
	return libprocess.DefaultMaxStringLen
}

func (t *Term) defaultFormat(v *proc.Variable, depth int) (string, error) {
	switch {
	case v.Kind == reflect.Struct && libprocess.IsString(v):
		s, complete, err := libprocess.ReadString(v, t.maxStringLen())
		if err != nil {
			return "", err
		}
		s = strconv.Quote(s)
		if !complete {
			s += "..."
		}
		return s, nil
	case v.Kind == reflect.Struct:
		return t.formatStruct(v, depth)
	case v.Kind == reflect.Array:
		return v.String(), nil
	}
	s, err := v.FormatScalar()
	if err != nil {
		return "", err
	}
	if v.Kind == reflect.Ptr || v.Kind == reflect.UnsafePointer {
		return fmt.Sprintf("(%s) %s", t.styler.Style(colorize.TypeStyle, v.TypeString()), s), nil
	}
	return s, nil
}

// formatStruct renders the members of v, base classes first as they are
// laid out, with nested values formatted by their printer when one is
// registered.
func (t *Term) formatStruct(v *proc.Variable, depth int) (string, error) {
	st := v.RealType.(*godwarf.StructType)
	name := t.styler.Style(colorize.TypeStyle, st.String())
	if depth >= maxStructDepth {
		return name + " {...}", nil
	}
	if st.Incomplete {
		return name + " <incomplete type>", nil
	}
	members := make([]*godwarf.StructField, 0, len(st.Bases)+len(st.Field))
	members = append(members, st.Bases...)
	members = append(members, st.Field...)
	parts := make([]string, 0, len(members))
	for _, f := range members {
		if f.Virtual {
			continue
		}
		fv := v.Reinterpret(v.Addr+uint64(f.ByteOffset), f.Type)
		var s string
		var err error
		if p := t.printers.Lookup(fv); p != nil {
			s, err = p.String()
			s = strings.ReplaceAll(strings.TrimSuffix(s, "\n"), "\n", "; ")
		} else {
			s, err = t.defaultFormat(fv, depth+1)
		}
		if err != nil {
			s = t.styler.Style(colorize.ErrorStyle, "<"+err.Error()+">")
		}
		label := f.Name
		if f.Embedded {
			label = f.Type.String()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", label, s))
	}
	return fmt.Sprintf("%s {%s}", name, strings.Join(parts, ", ")), nil
}
