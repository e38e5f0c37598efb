package agentstream

import (
	"html"
	"regexp"
	"strings"
)

var (
	// tagPattern matches <name attrs>, </name>, and <name attrs/>.
	// Groups: 1 closing slash, 2 name, 3 attribute source, 4 self-closing slash.
	tagPattern = regexp.MustCompile(`<(/?)([A-Za-z_][\w:.\-]*)((?:\s+[^\s=/<>"']+(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'<>]+))?)*)\s*(/?)>`)

	// attrPattern matches one attribute. Groups: 1 name, 2 double-quoted,
	// 3 single-quoted, 4 unquoted value.
	attrPattern = regexp.MustCompile(`([^\s=/<>"']+)(?:\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'<>]+)))?`)

	// partialTagPattern matches a tag cut off by the end of the buffer.
	partialTagPattern = regexp.MustCompile(`(?s)^<(/?)([A-Za-z_][\w:.\-]*)(.*)$`)
)

// frame is an element still open during tokenization.
type frame struct {
	tag      string
	attrs    map[string]string
	children []Node
}

func (f *frame) appendText(s string) {
	if s == "" {
		return
	}
	if n := len(f.children); n > 0 && f.children[n-1].IsText() {
		f.children[n-1].Content += s
		return
	}
	f.children = append(f.children, Text(s))
}

func (f *frame) appendNode(n Node) {
	f.children = append(f.children, n)
}

func (f *frame) node() Node {
	return Element(f.tag, f.attrs, f.children...)
}

// Tokenize turns mixed text and pseudo-tags into a node list using the
// global tag registry.
func Tokenize(input string) []Node {
	return GetTagRegistry().Tokenize(input)
}

// TokenizeComplete is Tokenize for input that will not grow any further,
// using the global tag registry.
func TokenizeComplete(input string) []Node {
	return GetTagRegistry().TokenizeComplete(input)
}

// Tokenize turns mixed text and pseudo-tags into a node list.
//
// Structural tags become elements; every other tag-like sequence, and any
// closing tag with no matching open element, stays literal text. Elements
// still open at the end of input are returned with whatever children have
// arrived. Adjacent text is coalesced into one node. Tokenize never fails:
// the worst case is a single text node.
//
// A trailing tag that may still be arriving is held back; use
// TokenizeComplete once the input is final.
func (r *TagRegistry) Tokenize(input string) []Node {
	return r.tokenize(input, false)
}

// TokenizeComplete tokenizes input that is final: a trailing unterminated
// tag is kept as literal text instead of being held back.
func (r *TagRegistry) TokenizeComplete(input string) []Node {
	return r.tokenize(input, true)
}

func (r *TagRegistry) tokenize(input string, final bool) []Node {
	root := &frame{}
	stack := []*frame{root}
	top := func() *frame { return stack[len(stack)-1] }
	pop := func() {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		top().appendNode(f.node())
	}

	pos := 0
	for _, m := range tagPattern.FindAllStringSubmatchIndex(input, -1) {
		start, end := m[0], m[1]
		top().appendText(input[pos:start])
		pos = end

		raw := input[start:end]
		name := input[m[4]:m[5]]
		if !r.IsStructural(name) {
			top().appendText(raw)
			continue
		}

		if m[3] > m[2] {
			match := -1
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].tag == name {
					match = i
					break
				}
			}
			if match < 0 {
				top().appendText(raw)
				continue
			}
			for len(stack) > match {
				pop()
			}
			continue
		}

		attrSrc := input[m[6]:m[7]]
		selfClosing := m[9] > m[8]
		if !selfClosing && strings.HasSuffix(attrSrc, "/") {
			// <a x=1/> : the unquoted value swallowed the slash
			selfClosing = true
			attrSrc = attrSrc[:len(attrSrc)-1]
		}

		f := &frame{tag: name, attrs: ParseAttributes(attrSrc)}
		if selfClosing {
			top().appendNode(f.node())
			continue
		}
		stack = append(stack, f)
	}

	rest := input[pos:]
	if !final {
		rest = r.trimPartialTag(rest)
	}
	top().appendText(rest)
	for len(stack) > 1 {
		pop()
	}
	return root.children
}

// trimPartialTag drops a trailing structural tag that the stream has not
// finished delivering, so a partial read never shows half a tag as text.
func (r *TagRegistry) trimPartialTag(rest string) string {
	for i := strings.IndexByte(rest, '<'); i >= 0; {
		tail := rest[i:]
		if r.isPartialTag(tail) {
			return rest[:i]
		}
		next := strings.IndexByte(rest[i+1:], '<')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return rest
}

func (r *TagRegistry) isPartialTag(tail string) bool {
	m := partialTagPattern.FindStringSubmatch(tail)
	if m == nil {
		return false
	}
	name, after := m[2], m[3]
	if after == "" {
		return r.HasStructuralPrefix(name) || r.IsStructural(name)
	}
	switch after[0] {
	case ' ', '\t', '\n', '\r', '/':
	default:
		return false
	}
	if !r.IsStructural(name) {
		return false
	}

	// Still unterminated unless a '>' outside quotes ended it.
	var quote byte
	for i := 0; i < len(after); i++ {
		c := after[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return false
		}
	}
	return true
}

// ParseAttributes decodes an attribute list. Double-quoted, single-quoted and
// unquoted values are supported and HTML-entity-decoded; a bare name maps to
// the empty string. The first occurrence of a repeated name wins.
func ParseAttributes(src string) map[string]string {
	matches := attrPattern.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(matches))
	for _, m := range matches {
		name := src[m[2]:m[3]]
		if _, seen := attrs[name]; seen {
			continue
		}
		var value string
		switch {
		case m[4] >= 0:
			value = src[m[4]:m[5]]
		case m[6] >= 0:
			value = src[m[6]:m[7]]
		case m[8] >= 0:
			value = src[m[8]:m[9]]
		}
		attrs[name] = html.UnescapeString(value)
	}
	return attrs
}
