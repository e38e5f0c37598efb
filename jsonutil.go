package agentstream

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// PrettyJSON re-encodes raw JSON with two-space indentation, keeping key
// order. It returns false, and raw unchanged, when raw does not decode.
func PrettyJSON(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return raw, false
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(trimmed)); err != nil {
		return raw, false
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return raw, false
	}
	return out.String(), true
}

// DecodeJSON decodes raw into a generic value. The boolean reports success.
func DecodeJSON(raw string) (any, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, false
	}
	return v, true
}

// PayloadText renders a payload for display: a JSON string passes through
// as its decoded content, any other JSON value is pretty-printed, and
// anything that is not JSON is returned as-is.
func PayloadText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	res := gjson.Parse(trimmed)
	if res.Type == gjson.String && gjson.Valid(trimmed) {
		return res.String()
	}
	pretty, _ := PrettyJSON(trimmed)
	return pretty
}

// PayloadJSON returns the JSON text a payload stands for. A JSON string whose
// content is itself JSON is unwrapped once (payloads are often double-encoded
// on the wire); any other valid JSON is compacted; invalid input is encoded
// as a JSON string so the result always decodes.
func PayloadJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "null"
	}
	if !gjson.Valid(trimmed) {
		b, _ := json.Marshal(raw)
		return string(b)
	}
	res := gjson.Parse(trimmed)
	if res.Type == gjson.String {
		if inner := strings.TrimSpace(res.String()); inner != "" && gjson.Valid(inner) {
			return compactJSON(inner)
		}
	}
	return compactJSON(trimmed)
}

func compactJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

// LineBuffer splits newline-delimited JSON arriving in arbitrary chunks.
//
// Complete lines are returned as soon as their newline arrives. A trailing
// fragment without a newline is returned too once it is a complete JSON
// object, so streams that deliver exactly one event per chunk need no
// separator.
type LineBuffer struct {
	pending strings.Builder
}

// Write appends chunk and returns the JSON lines it completed.
func (b *LineBuffer) Write(chunk string) []string {
	b.pending.WriteString(chunk)
	buf := b.pending.String()

	var lines []string
	for {
		nl := strings.IndexByte(buf, '\n')
		if nl < 0 {
			break
		}
		if line := strings.TrimSpace(buf[:nl]); line != "" {
			lines = append(lines, line)
		}
		buf = buf[nl+1:]
	}

	rest := strings.TrimSpace(buf)
	if strings.HasPrefix(rest, "{") && gjson.Valid(rest) {
		lines = append(lines, rest)
		buf = ""
	}

	b.pending.Reset()
	b.pending.WriteString(buf)
	return lines
}

// Pending returns the buffered, not yet complete, fragment.
func (b *LineBuffer) Pending() string {
	return b.pending.String()
}

// Reset discards buffered input.
func (b *LineBuffer) Reset() {
	b.pending.Reset()
}

// CitationFromJSON reads a citation from a decoded object. typeKey names the
// field holding the citation type ("type" in raw events, "citation_type" in
// envelopes). Numeric locators keep their literal spelling.
func CitationFromJSON(obj gjson.Result, typeKey string) Citation {
	field := func(key string) string {
		v := obj.Get(key)
		switch v.Type {
		case gjson.String:
			return v.String()
		case gjson.Number, gjson.True, gjson.False:
			return v.Raw
		default:
			return ""
		}
	}
	return Citation{
		Type:            field(typeKey),
		CitedText:       field("cited_text"),
		DocumentIndex:   field("document_index"),
		DocumentTitle:   field("document_title"),
		StartPageNumber: field("start_page_number"),
		EndPageNumber:   field("end_page_number"),
		StartCharIndex:  field("start_char_index"),
		EndCharIndex:    field("end_char_index"),
		URL:             field("url"),
		Title:           field("title"),
	}
}
