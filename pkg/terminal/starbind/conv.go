package starbind

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"go.starlark.net/starlark"

	"github.com/go-delve/lpdbg/pkg/dwarf/godwarf"
	"github.com/go-delve/lpdbg/pkg/libprocess"
	"github.com/go-delve/lpdbg/pkg/proc"
)

// Attributes of a variableValue that are not data members.
const (
	addrAttr  = "Addr"
	typeAttr  = "Type"
	derefAttr = "Deref"
)

// variableToStarlarkValue converts v into a starlark value: integers,
// booleans, floats and strings are read immediately, everything else is
// wrapped in a variableValue that reads the target lazily.
func (env *Env) variableToStarlarkValue(v *proc.Variable) (starlark.Value, error) {
	if v.Kind == reflect.Struct && libprocess.IsString(v) {
		max := 0
		if opts := env.ctx.PrinterOptions(); opts != nil {
			max = opts.MaxStringLen
		}
		s, _, err := libprocess.ReadString(v, max)
		if err != nil {
			return nil, err
		}
		return starlark.String(s), nil
	}
	switch v.Kind {
	case reflect.Int:
		n, err := v.AsInt()
		if err != nil {
			return nil, err
		}
		return starlark.MakeInt64(n), nil
	case reflect.Uint:
		n, err := v.AsUint()
		if err != nil {
			return nil, err
		}
		return starlark.MakeUint64(n), nil
	case reflect.Bool:
		b, err := v.AsBool()
		if err != nil {
			return nil, err
		}
		return starlark.Bool(b), nil
	case reflect.Float32, reflect.Float64:
		n, err := v.AsUint()
		if err != nil {
			return nil, err
		}
		if v.Kind == reflect.Float32 {
			return starlark.Float(math.Float32frombits(uint32(n))), nil
		}
		return starlark.Float(math.Float64frombits(n)), nil
	}
	return variableValue{v, env}, nil
}

// variableValue is a struct, pointer or array of the target.
// The public methods of variableValue implement the HasAttrs starlark
// interface: data members are attributes, as are Addr, Type and, for
// pointers, Deref.
type variableValue struct {
	v   *proc.Variable
	env *Env
}

var _ starlark.HasAttrs = variableValue{}

func (v variableValue) Freeze() {
}

func (v variableValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("not hashable")
}

func (v variableValue) String() string {
	s, err := v.env.ctx.FormatValue(v.v)
	if err != nil {
		return fmt.Sprintf("%s <%v>", v.v.String(), err)
	}
	return s
}

func (v variableValue) Truth() starlark.Bool {
	if v.v.Kind == reflect.Ptr || v.v.Kind == reflect.UnsafePointer {
		p, err := v.v.PointerValue()
		return starlark.Bool(err == nil && p != 0)
	}
	return true
}

func (v variableValue) Type() string {
	return v.v.TypeString()
}

func (v variableValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case addrAttr:
		return starlark.MakeUint64(v.v.Addr), nil
	case typeAttr:
		return starlark.String(v.v.TypeString()), nil
	case derefAttr:
		if v.v.Kind != reflect.Ptr {
			return nil, nil
		}
		elem, err := v.v.Deref()
		if err != nil {
			return nil, err
		}
		return v.env.variableToStarlarkValue(elem)
	}
	field, err := v.v.Field(name)
	if err != nil {
		var nf *proc.NoFieldError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, err
	}
	return v.env.variableToStarlarkValue(field)
}

func (v variableValue) AttrNames() []string {
	r := []string{addrAttr, typeAttr}
	if v.v.Kind == reflect.Ptr {
		r = append(r, derefAttr)
	}
	target := v.v
	if target.Kind == reflect.Ptr {
		elem, err := target.Deref()
		if err != nil {
			return r
		}
		target = elem
	}
	st, ok := target.RealType.(*godwarf.StructType)
	if !ok {
		return r
	}
	var members []string
	for _, f := range st.Field {
		members = append(members, f.Name)
	}
	sort.Strings(members)
	return append(r, members...)
}
