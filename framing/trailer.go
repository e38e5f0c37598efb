package framing

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aurosoni/agentstream"
)

// Trailer is the decoded meta_final header sent at stream end.
type Trailer struct {
	// MessageHistory is the updated history snapshot, if present
	MessageHistory json.RawMessage

	// Fields holds every top-level field of the payload as raw JSON
	Fields map[string]json.RawMessage
}

const trailerOpen = "<" + agentstream.TagMetaFinal

// trailerPattern is anchored: it is applied at a located start delimiter.
var trailerPattern = regexp.MustCompile(`^<meta_final\s+data\s*=\s*(?:"([^"]*)"|'([^']*)')\s*(?:/>|>\s*</meta_final>)`)

// ParseTrailer decodes the meta_final element in text. It returns an error
// wrapping agentstream.ErrTrailerNotFound when there is none or it cannot be
// decoded.
func ParseTrailer(text string) (*Trailer, error) {
	for i := strings.Index(text, trailerOpen); i >= 0; {
		if m := trailerPattern.FindStringSubmatchIndex(text[i:]); m != nil {
			return DecodeTrailer(html.UnescapeString(attrValue(text[i:], m)))
		}
		next := strings.Index(text[i+1:], trailerOpen)
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, trailerError("no meta_final element")
}

// StripTrailer removes every well-formed meta_final element from text.
func StripTrailer(text string) string {
	var out strings.Builder
	rest := text
	for {
		i := strings.Index(rest, trailerOpen)
		if i < 0 {
			out.WriteString(rest)
			return out.String()
		}
		m := trailerPattern.FindStringIndex(rest[i:])
		if m == nil {
			out.WriteString(rest[:i+1])
			rest = rest[i+1:]
			continue
		}
		out.WriteString(rest[:i])
		rest = rest[i+m[1]:]
	}
}

// DecodeTrailer decodes a trailer payload that is already free of entity
// encoding.
func DecodeTrailer(data string) (*Trailer, error) {
	data = strings.TrimSpace(data)
	if !gjson.Valid(data) {
		return nil, trailerError("data attribute is not valid JSON")
	}
	obj := gjson.Parse(data)
	if !obj.IsObject() {
		return nil, trailerError("data attribute is not a JSON object")
	}

	t := &Trailer{Fields: make(map[string]json.RawMessage)}
	obj.ForEach(func(key, value gjson.Result) bool {
		t.Fields[key.String()] = json.RawMessage(value.Raw)
		return true
	})
	if h := obj.Get("message_history"); h.Exists() && h.Type != gjson.Null {
		t.MessageHistory = json.RawMessage(h.Raw)
	}
	return t, nil
}

func trailerError(reason string) error {
	return &agentstream.FramingError{
		Element: agentstream.TagMetaFinal,
		Reason:  reason,
		Err:     agentstream.ErrTrailerNotFound,
	}
}

// TrailerScanner removes a meta_final element from a chunked stream. Text
// from the trailer's start delimiter on, or a partial delimiter at the end of
// a chunk, is held back until the element is complete or proves not to be a
// trailer.
type TrailerScanner struct {
	held    string
	trailer *Trailer
}

// Feed consumes the next chunk. It returns the text that can be passed on
// and, on the call that completes it, the decoded trailer.
func (s *TrailerScanner) Feed(chunk string) (string, *Trailer) {
	buf := s.held + chunk
	s.held = ""

	var out strings.Builder
	var found *Trailer
	for {
		i := strings.Index(buf, trailerOpen)
		if i < 0 {
			keep := partialSuffix(buf, trailerOpen)
			out.WriteString(buf[:len(buf)-keep])
			s.held = buf[len(buf)-keep:]
			break
		}

		out.WriteString(buf[:i])
		buf = buf[i:]

		if m := trailerPattern.FindStringSubmatchIndex(buf); m != nil {
			t, err := DecodeTrailer(html.UnescapeString(attrValue(buf, m)))
			if err != nil {
				agentstream.Logger("framing").WithError(err).Warn("dropping undecodable trailer")
			} else {
				found, s.trailer = t, t
			}
			buf = buf[m[1]:]
			continue
		}

		if trailerIncomplete(buf) {
			s.held = buf
			break
		}

		// Starts like a trailer but is something else.
		out.WriteString(buf[:1])
		buf = buf[1:]
	}
	return out.String(), found
}

// Flush returns any held-back text. Call it once the stream has ended.
func (s *TrailerScanner) Flush() string {
	held := s.held
	s.held = ""
	return held
}

// Trailer returns the trailer seen so far, or nil.
func (s *TrailerScanner) Trailer() *Trailer {
	return s.trailer
}

// trailerIncomplete reports whether buf, which starts with the trailer start
// delimiter, may still become a well-formed trailer.
func trailerIncomplete(buf string) bool {
	rest := buf[len(trailerOpen):]
	if rest == "" {
		return true
	}
	switch rest[0] {
	case ' ', '\t', '\r', '\n', '/', '>':
	default:
		return false
	}
	return !strings.Contains(rest, "/>") && !strings.Contains(rest, "</"+agentstream.TagMetaFinal+">")
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of delim.
func partialSuffix(s, delim string) int {
	for n := len(delim) - 1; n > 0; n-- {
		if strings.HasSuffix(s, delim[:n]) {
			return n
		}
	}
	return 0
}
