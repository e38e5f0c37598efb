// Package framing finds and strips the out-of-band metadata an agent embeds
// inline at the start (meta_init) and end (meta_final) of a stream, and picks
// the wire format when no header is present.
package framing

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aurosoni/agentstream"
)

// Metadata is the decoded initialization header.
type Metadata struct {
	Format         agentstream.Format `json:"format"`
	UserQuery      string             `json:"user_query,omitempty"`
	MessageHistory json.RawMessage    `json:"message_history,omitempty"`
	AgentUUID      string             `json:"agent_uuid,omitempty"`
	Model          string             `json:"model,omitempty"`
}

// headerPattern matches <meta_init data="..."/> and <meta_init data="..."></meta_init>.
var headerPattern = regexp.MustCompile(`<meta_init\s+data\s*=\s*(?:"([^"]*)"|'([^']*)')\s*(?:/>|>\s*</meta_init>)`)

const headerOpen = "<" + agentstream.TagMetaInit

// HeaderState classifies the start of a stream.
type HeaderState int

const (
	// HeaderPending means more input is needed to decide.
	HeaderPending HeaderState = iota

	// HeaderPresent means a complete header unit is in the buffer.
	HeaderPresent

	// HeaderAbsent means the stream does not start with a header.
	HeaderAbsent
)

// located is a header found in a buffer: its byte range and the raw,
// still entity-encoded data payload.
type located struct {
	start, end int
	data       string
	escaped    bool
}

// locateHeader finds the header unit, either a meta_init element or an
// envelope-shaped first line {"type":"meta_init","delta":...}.
func locateHeader(buf string) (located, bool) {
	if m := headerPattern.FindStringSubmatchIndex(buf); m != nil {
		return located{start: m[0], end: m[1], data: attrValue(buf, m), escaped: true}, true
	}

	lead := len(buf) - len(strings.TrimLeft(buf, " \t\r\n"))
	rest := buf[lead:]
	if !strings.HasPrefix(rest, "{") {
		return located{}, false
	}
	line, end := rest, len(buf)
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		line, end = rest[:nl], lead+nl+1
	}
	line = strings.TrimSpace(line)
	if !gjson.Valid(line) {
		return located{}, false
	}
	env := gjson.Parse(line)
	if env.Get("type").String() != agentstream.TagMetaInit {
		return located{}, false
	}
	delta := env.Get("delta")
	data := delta.Raw
	if delta.Type == gjson.String {
		data = delta.String()
	}
	return located{start: lead, end: end, data: data}, true
}

func attrValue(buf string, m []int) string {
	if m[2] >= 0 {
		return buf[m[2]:m[3]]
	}
	return buf[m[4]:m[5]]
}

// ScanHeader reports whether buf starts with a header, does not, or is too
// short to tell. A stream that opens with a partial meta_init tag or an
// unfinished first JSON line is pending.
func ScanHeader(buf string) HeaderState {
	if _, ok := locateHeader(buf); ok {
		return HeaderPresent
	}

	s := strings.TrimLeft(buf, " \t\r\n")
	if s == "" {
		return HeaderPending
	}

	switch s[0] {
	case '<':
		if len(s) < len(headerOpen) {
			if strings.HasPrefix(headerOpen, s) {
				return HeaderPending
			}
			return HeaderAbsent
		}
		if !strings.HasPrefix(s, headerOpen) {
			return HeaderAbsent
		}
		if strings.Contains(s, "/>") || strings.Contains(s, "</"+agentstream.TagMetaInit+">") {
			// Closed but not a well-formed header.
			return HeaderAbsent
		}
		return HeaderPending

	case '{':
		if strings.IndexByte(s, '\n') < 0 && !gjson.Valid(strings.TrimSpace(s)) {
			return HeaderPending
		}
		return HeaderAbsent

	default:
		return HeaderAbsent
	}
}

// ParseHeader decodes the initialization header in buf. It returns an error
// wrapping agentstream.ErrHeaderNotFound when there is no header or it cannot
// be decoded; callers then fall back to DetectFormat.
func ParseHeader(buf string) (*Metadata, error) {
	loc, ok := locateHeader(buf)
	if !ok {
		return nil, headerError("no meta_init element")
	}
	data := loc.data
	if loc.escaped {
		data = html.UnescapeString(data)
	}
	return DecodeMetadata(data)
}

// DecodeMetadata decodes a header payload that is already free of entity
// encoding.
func DecodeMetadata(data string) (*Metadata, error) {
	data = strings.TrimSpace(data)
	if !gjson.Valid(data) {
		return nil, headerError("data attribute is not valid JSON")
	}
	obj := gjson.Parse(data)
	if !obj.IsObject() {
		return nil, headerError("data attribute is not a JSON object")
	}

	meta := &Metadata{
		Format:    agentstream.Format(obj.Get("format").String()),
		UserQuery: obj.Get("user_query").String(),
		AgentUUID: obj.Get("agent_uuid").String(),
		Model:     obj.Get("model").String(),
	}
	if h := obj.Get("message_history"); h.Exists() && h.Type != gjson.Null {
		meta.MessageHistory = json.RawMessage(h.Raw)
	}
	if !meta.Format.IsValid() {
		return nil, headerError("unknown format '" + string(meta.Format) + "'")
	}
	return meta, nil
}

// StripHeader removes the header unit from buf. buf is returned unchanged
// when it holds no header.
func StripHeader(buf string) string {
	loc, ok := locateHeader(buf)
	if !ok {
		return buf
	}
	return buf[:loc.start] + buf[loc.end:]
}

func headerError(reason string) error {
	return &agentstream.FramingError{
		Element: agentstream.TagMetaInit,
		Reason:  reason,
		Err:     agentstream.ErrHeaderNotFound,
	}
}

// DetectFormat guesses the wire format from the first chunk of a stream
// without a header: a leading '{' means raw events, anything else tag-based
// text.
func DetectFormat(first string) agentstream.Format {
	s := strings.TrimLeft(first, " \t\r\n")
	if strings.HasPrefix(s, "{") {
		return agentstream.FormatRaw
	}
	return agentstream.FormatXML
}
