// Package lorem produces synthetic agent streams for tests and demos.
//
// A Script describes one agent turn as a list of steps. Encode renders it in
// any of the three wire formats and Chunks cuts the result into arbitrary
// pieces, so one script exercises every parser with the same content.
package lorem

import (
	"unicode/utf8"

	"github.com/aurosoni/agentstream"
	"github.com/aurosoni/agentstream/framing"
)

// Step is one content unit of a scripted turn.
type Step struct {
	Kind agentstream.BlockKind

	// Text is the content of text, thinking, tool result and error steps
	Text string

	// ID and Name identify tool calls and results
	ID   string
	Name string

	// Arguments is the raw JSON input of a tool call
	Arguments string

	// ToolType names the server tool family of a server tool result
	ToolType string

	// Payload is the JSON payload of awaiting_frontend_tools and meta_files
	Payload string

	Citations []agentstream.Citation
	Images    []agentstream.Image

	// NewMessage starts a new top-level message before this step. Only raw
	// event streams carry message boundaries.
	NewMessage bool
}

// Script is one scripted agent turn.
type Script struct {
	// Header, when set, is sent as a meta_init element before any content.
	// Its Format is overwritten with the encoding format.
	Header *framing.Metadata

	// Trailer, when set, is sent as a meta_final element after the content
	Trailer map[string]any

	Steps []Step
}

// Chunks encodes the script and cuts it into pieces of at most size bytes,
// never splitting a UTF-8 sequence. size <= 0 returns one chunk.
func (s Script) Chunks(format agentstream.Format, size int) []string {
	return Split(s.Encode(format), size)
}

// Split cuts text into pieces of at most size bytes on rune boundaries.
func Split(text string, size int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	var out []string
	for len(text) > 0 {
		n := size
		if n >= len(text) {
			out = append(out, text)
			break
		}
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		if n == 0 {
			_, n = utf8.DecodeRuneInString(text)
		}
		out = append(out, text[:n])
		text = text[n:]
	}
	return out
}
