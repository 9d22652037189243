package proc

import (
	"fmt"
	"strconv"
	"strings"
)

// EvalExpression evaluates a (small) C++ expression against the target.
// Supported forms are
//
//	name                 a global variable, e.g. process::process_manager
//	(T*)0x1000           a pointer of type T* with the given value
//	*expr                the value pointed to by expr
//	expr.member          a data member (pointers are dereferenced)
//	expr->member         same as expr.member
//	(expr)               grouping
func EvalExpression(t *Target, expr string) (*Variable, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	if expr[0] == '*' {
		v, err := EvalExpression(t, expr[1:])
		if err != nil {
			return nil, err
		}
		return v.Deref()
	}

	primary, rest, err := splitPrimary(expr)
	if err != nil {
		return nil, err
	}

	var v *Variable
	switch {
	case strings.HasPrefix(primary, "("):
		inner := primary[1 : len(primary)-1]
		if tail := strings.TrimSpace(rest); strings.HasSuffix(strings.TrimSpace(inner), "*") && isNumber(tail) {
			return evalPointerCast(t, inner, tail)
		}
		v, err = EvalExpression(t, inner)
	default:
		v, err = t.Global(primary)
	}
	if err != nil {
		return nil, err
	}

	for rest = strings.TrimSpace(rest); rest != ""; rest = strings.TrimSpace(rest) {
		switch {
		case strings.HasPrefix(rest, "->"):
			rest = rest[2:]
		case strings.HasPrefix(rest, "."):
			rest = rest[1:]
		default:
			return nil, fmt.Errorf("unexpected %q in expression %q", rest, expr)
		}
		var member string
		member, rest = splitIdent(strings.TrimSpace(rest))
		if member == "" {
			return nil, fmt.Errorf("missing member name in expression %q", expr)
		}
		if v, err = v.Field(member); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// splitPrimary splits expr into its leading primary expression (a
// parenthesized expression or a qualified name) and the selectors that
// follow it.
func splitPrimary(expr string) (string, string, error) {
	if expr[0] == '(' {
		depth := 0
		for i := 0; i < len(expr); i++ {
			switch expr[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return expr[:i+1], expr[i+1:], nil
				}
			}
		}
		return "", "", fmt.Errorf("unbalanced parenthesis in %q", expr)
	}
	name, rest := splitIdent(expr)
	if name == "" {
		return "", "", fmt.Errorf("could not parse %q", expr)
	}
	return name, rest, nil
}

// splitIdent splits off a qualified C++ name (with template arguments)
// from the start of s.
func splitIdent(s string) (string, string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '<':
			depth++
		case c == '>':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), s[i:]
			}
			depth--
		case depth > 0:
		case c == '.' || (c == '-' && i+1 < len(s) && s[i+1] == '>'):
			return strings.TrimSpace(s[:i]), s[i:]
		}
	}
	return strings.TrimSpace(s), ""
}

func isNumber(s string) bool {
	_, err := strconv.ParseUint(s, 0, 64)
	return err == nil
}

func evalPointerCast(t *Target, typeExpr, addrExpr string) (*Variable, error) {
	typeName := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(typeExpr), "*"))
	addr, err := strconv.ParseUint(addrExpr, 0, 64)
	if err != nil {
		return nil, err
	}
	typ, err := t.BinInfo.LookupType(typeName)
	if err != nil {
		return nil, err
	}
	data := make([]byte, t.BinInfo.PtrSize)
	if t.BinInfo.PtrSize == 4 {
		t.BinInfo.ByteOrder.PutUint32(data, uint32(addr))
	} else {
		t.BinInfo.ByteOrder.PutUint64(data, addr)
	}
	mem := &compositeMemory{realmem: t.mem, data: data}
	return NewVariable("", fakeAddress, t.BinInfo.pointerTo(typ), t.BinInfo, mem), nil
}
