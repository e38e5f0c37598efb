package tagged

import (
	"regexp"
	"strconv"
	"strings"
)

// Placeholder delimiters come from the Unicode private use area so they never
// collide with tag syntax.
const (
	placeholderOpen  = "\uE000"
	placeholderClose = "\uE001"
)

var placeholderPattern = regexp.MustCompile(`\x{E000}([0-9]+)\x{E001}`)

// verbatim holds the sections cut out of a buffer before tokenization.
type verbatim struct {
	sections []string
}

// extractVerbatim replaces every open...close section of src with a
// placeholder. A section whose close delimiter has not arrived yet runs to
// the end of src. A trailing, partially delivered open delimiter is dropped.
func extractVerbatim(src, open, close string) (string, *verbatim) {
	v := &verbatim{}
	if open == "" || close == "" {
		return src, v
	}

	var out strings.Builder
	rest := src
	for {
		i := strings.Index(rest, open)
		if i < 0 {
			out.WriteString(trimPartialDelimiter(rest, open))
			break
		}
		out.WriteString(rest[:i])
		body := rest[i+len(open):]

		j := strings.Index(body, close)
		if j < 0 {
			out.WriteString(v.add(trimPartialDelimiter(body, close)))
			break
		}
		out.WriteString(v.add(body[:j]))
		rest = body[j+len(close):]
	}
	return out.String(), v
}

func (v *verbatim) add(content string) string {
	v.sections = append(v.sections, content)
	return placeholderOpen + strconv.Itoa(len(v.sections)-1) + placeholderClose
}

// restore puts the original section content back in place of placeholders.
func (v *verbatim) restore(s string) string {
	if len(v.sections) == 0 || !strings.Contains(s, placeholderOpen) {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.Atoi(m[len(placeholderOpen) : len(m)-len(placeholderClose)])
		if err != nil || n < 0 || n >= len(v.sections) {
			return m
		}
		return v.sections[n]
	})
}

// trimPartialDelimiter drops a suffix of s that is a proper prefix of delim.
func trimPartialDelimiter(s, delim string) string {
	for n := len(delim) - 1; n > 0; n-- {
		if strings.HasSuffix(s, delim[:n]) {
			return s[:len(s)-n]
		}
	}
	return s
}
