package godwarf

import "strings"

// NormalizeName canonicalizes the spelling of a C++ type name so that
// names produced by different compilers (and typed by users) compare
// equal: whitespace next to punctuation is removed and runs of spaces
// are collapsed.
//
//	"std::pair<process::UPID const, process::ProcessBase *>"
//
// becomes
//
//	"std::pair<process::UPID const,process::ProcessBase*>"
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSpace := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == ' ' || c == '\t' || c == '\n' {
			pendingSpace = true
			continue
		}
		if pendingSpace {
			if b.Len() > 0 && !isPunct(c) && !isPunct(lastByte(&b)) {
				b.WriteByte(' ')
			}
			pendingSpace = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

func lastByte(b *strings.Builder) byte {
	s := b.String()
	return s[len(s)-1]
}

func isPunct(c byte) bool {
	switch c {
	case '<', '>', ',', '*', '&', '(', ')', '[', ']':
		return true
	}
	return false
}

// SplitTemplate returns the portion of name before the outermost template
// argument list, for example "std::_Hashtable" for
// "std::_Hashtable<int, std::pair<int const, long>>".
func SplitTemplate(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		return name[:i]
	}
	return name
}
