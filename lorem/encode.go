package lorem

import (
	"encoding/json"
	"html"
	"strconv"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/aurosoni/agentstream"
)

// Encode renders the script in format. Unknown formats encode as tag-based
// text.
func (s Script) Encode(format agentstream.Format) string {
	var b strings.Builder
	if s.Header != nil {
		meta := *s.Header
		meta.Format = format
		data, _ := json.Marshal(meta)
		b.WriteString(`<meta_init data="` + html.EscapeString(string(data)) + `"/>` + "\n")
	}

	switch format {
	case agentstream.FormatRaw:
		s.encodeRaw(&b)
	case agentstream.FormatJSON:
		s.encodeEnvelopes(&b)
	default:
		s.encodeTagged(&b)
	}

	if s.Trailer != nil {
		data, _ := json.Marshal(s.Trailer)
		b.WriteString("\n" + `<meta_final data="` + html.EscapeString(string(data)) + `"/>`)
	}
	return b.String()
}

// words splits text into word-sized deltas that concatenate back to text.
func words(text string) []string {
	if text == "" {
		return nil
	}
	return strings.SplitAfter(text, " ")
}

// pieces splits s into fragments of n bytes, the way argument JSON streams.
func pieces(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func set(doc, path string, value any) string {
	out, err := sjson.Set(doc, path, value)
	if err != nil {
		return doc
	}
	return out
}

func setRaw(doc, path, raw string) string {
	out, err := sjson.SetRaw(doc, path, raw)
	if err != nil {
		return doc
	}
	return out
}

// setLocator writes a citation locator, as a number when it is one.
func setLocator(doc, path, value string) string {
	if value == "" {
		return doc
	}
	if _, err := strconv.Atoi(value); err == nil {
		return setRaw(doc, path, value)
	}
	return set(doc, path, value)
}

func citationJSON(c agentstream.Citation, typeKey string, withText bool) string {
	return citationFields(`{}`, c, typeKey, withText)
}

// citationFields writes the citation's fields onto doc.
func citationFields(doc string, c agentstream.Citation, typeKey string, withText bool) string {
	if c.Type != "" {
		doc = set(doc, typeKey, c.Type)
	}
	if withText {
		doc = set(doc, "cited_text", c.CitedText)
	}
	doc = setLocator(doc, "document_index", c.DocumentIndex)
	doc = setLocator(doc, "document_title", c.DocumentTitle)
	doc = setLocator(doc, "start_page_number", c.StartPageNumber)
	doc = setLocator(doc, "end_page_number", c.EndPageNumber)
	doc = setLocator(doc, "start_char_index", c.StartCharIndex)
	doc = setLocator(doc, "end_char_index", c.EndCharIndex)
	doc = setLocator(doc, "url", c.URL)
	doc = setLocator(doc, "title", c.Title)
	return doc
}

// ===== Raw events =====

func (s Script) encodeRaw(b *strings.Builder) {
	line := func(doc string) {
		b.WriteString(doc)
		b.WriteByte('\n')
	}
	messageStart := func() {
		doc := set(`{}`, "type", "message_start")
		doc = set(doc, "message.id", "msg_lorem")
		doc = set(doc, "message.type", "message")
		doc = set(doc, "message.role", "assistant")
		doc = setRaw(doc, "message.content", `[]`)
		line(doc)
	}
	messageStop := func() {
		doc := set(`{}`, "type", "message_delta")
		line(set(doc, "delta.stop_reason", "end_turn"))
		line(`{"type":"message_stop"}`)
	}

	messageStart()
	index := 0
	for i, st := range s.Steps {
		if st.NewMessage && i > 0 {
			messageStop()
			messageStart()
			index = 0
		}
		if st.Kind == agentstream.BlockKindError {
			doc := set(`{}`, "type", "error")
			doc = set(doc, "error.type", "api_error")
			line(set(doc, "error.message", st.Text))
			continue
		}
		if s.encodeRawBlock(line, index, st) {
			index++
		}
	}
	messageStop()
}

func (s Script) encodeRawBlock(line func(string), index int, st Step) bool {
	start := set(`{}`, "type", "content_block_start")
	start = set(start, "index", index)
	delta := func(deltaType, field, value string) {
		doc := set(`{}`, "type", "content_block_delta")
		doc = set(doc, "index", index)
		doc = set(doc, "delta.type", deltaType)
		line(set(doc, "delta."+field, value))
	}
	stop := set(`{}`, "type", "content_block_stop")
	stop = set(stop, "index", index)

	switch st.Kind {
	case agentstream.BlockKindText:
		start = set(start, "content_block.type", "text")
		line(set(start, "content_block.text", ""))
		for _, w := range words(st.Text) {
			delta("text_delta", "text", w)
		}
		if len(st.Citations) > 0 {
			list := `[]`
			for _, c := range st.Citations {
				list = setRaw(list, "-1", citationJSON(c, "type", true))
			}
			stop = setRaw(stop, "content_block.citations", list)
		}

	case agentstream.BlockKindThinking:
		start = set(start, "content_block.type", "thinking")
		line(set(start, "content_block.thinking", ""))
		for _, w := range words(st.Text) {
			delta("thinking_delta", "thinking", w)
		}
		delta("signature_delta", "signature", "bG9yZW0=")

	case agentstream.BlockKindToolCall, agentstream.BlockKindServerToolCall:
		wireType := "tool_use"
		if st.Kind == agentstream.BlockKindServerToolCall {
			wireType = "server_tool_use"
		}
		start = set(start, "content_block.type", wireType)
		start = set(start, "content_block.id", st.ID)
		start = set(start, "content_block.name", st.Name)
		line(setRaw(start, "content_block.input", `{}`))
		for _, frag := range pieces(st.Arguments, 8) {
			delta("input_json_delta", "partial_json", frag)
		}

	case agentstream.BlockKindToolResult, agentstream.BlockKindServerToolResult:
		wireType := "tool_result"
		if st.Kind == agentstream.BlockKindServerToolResult {
			wireType = st.ToolType + "_tool_result"
		}
		start = set(start, "content_block.type", wireType)
		start = set(start, "content_block.tool_use_id", st.ID)
		if st.Name != "" {
			start = set(start, "content_block.name", st.Name)
		}
		if st.Payload != "" {
			line(setRaw(start, "content_block.content", st.Payload))
		} else {
			line(set(start, "content_block.content", st.Text))
		}

	default:
		// No raw event spelling for signals such as awaiting_frontend_tools.
		return false
	}

	line(stop)
	return true
}

// ===== Tag-based text =====

func verbatim(text string) string {
	if strings.ContainsAny(text, "<>&") {
		return "<![CDATA[" + text + "]]>"
	}
	return text
}

func attrs(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		b.WriteString(" " + pairs[i] + `="` + html.EscapeString(pairs[i+1]) + `"`)
	}
	return b.String()
}

func (s Script) encodeTagged(b *strings.Builder) {
	for _, st := range s.Steps {
		switch st.Kind {
		case agentstream.BlockKindText:
			b.WriteString("<content-block-text>" + verbatim(st.Text) + "</content-block-text>\n")
			if len(st.Citations) > 0 {
				b.WriteString("<citations>")
				for _, c := range st.Citations {
					b.WriteString("<citation" + attrs(
						"citation_type", c.Type,
						"document_index", c.DocumentIndex,
						"document_title", c.DocumentTitle,
						"start_page_number", c.StartPageNumber,
						"end_page_number", c.EndPageNumber,
						"start_char_index", c.StartCharIndex,
						"end_char_index", c.EndCharIndex,
						"url", c.URL,
						"title", c.Title,
					) + ">" + verbatim(c.CitedText) + "</citation>")
				}
				b.WriteString("</citations>\n")
			}

		case agentstream.BlockKindThinking:
			b.WriteString("<content-block-thinking>" + verbatim(st.Text) + "</content-block-thinking>\n")

		case agentstream.BlockKindToolCall:
			b.WriteString("<content-block-tool_call" + attrs("id", st.ID, "name", st.Name, "arguments", st.Arguments) + "></content-block-tool_call>\n")

		case agentstream.BlockKindServerToolCall:
			b.WriteString("<content-block-server_tool_call" + attrs("id", st.ID, "name", st.Name, "arguments", st.Arguments) + "></content-block-server_tool_call>\n")

		case agentstream.BlockKindToolResult, agentstream.BlockKindServerToolResult:
			tag := "content-block-tool_result"
			if st.Kind == agentstream.BlockKindServerToolResult {
				tag = "content-block-" + st.ToolType + "_tool_result"
			}
			body := st.Text
			if st.Payload != "" {
				body = agentstream.PayloadText(st.Payload)
			}
			b.WriteString("<" + tag + attrs("id", st.ID, "name", st.Name) + ">" + verbatim(body) + "</" + tag + ">\n")
			for _, img := range st.Images {
				b.WriteString("<image" + attrs("src", img.Src, "media_type", img.MediaType) + "/>\n")
			}

		case agentstream.BlockKindAwaitingFrontendTools:
			b.WriteString("<awaiting_frontend_tools" + attrs("data", st.Payload) + "/>\n")

		case agentstream.BlockKindMetaFiles:
			b.WriteString("<meta_files" + attrs("data", st.Payload) + "/>\n")

		case agentstream.BlockKindError:
			b.WriteString("<content-block-error>" + verbatim(st.Text) + "</content-block-error>\n")
		}
	}
}

// ===== Envelopes =====

func envelope(kind string, final bool) string {
	doc := set(`{}`, "type", kind)
	doc = set(doc, "agent", "lorem")
	return set(doc, "final", final)
}

func (s Script) encodeEnvelopes(b *strings.Builder) {
	line := func(doc string) {
		b.WriteString(doc)
		b.WriteByte('\n')
	}
	stream := func(kind string, frags []string, head func(string) string, before func()) {
		for i, frag := range frags {
			doc := envelope(kind, false)
			if i == 0 && head != nil {
				doc = head(doc)
			}
			line(set(doc, "delta", frag))
		}
		if before != nil {
			before()
		}
		doc := envelope(kind, true)
		if len(frags) == 0 && head != nil {
			doc = head(doc)
		}
		line(set(doc, "delta", ""))
	}

	for _, st := range s.Steps {
		ids := func(doc string) string {
			if st.ID != "" {
				doc = set(doc, "id", st.ID)
			}
			if st.Name != "" {
				doc = set(doc, "name", st.Name)
			}
			if st.ToolType != "" {
				doc = set(doc, "toolType", st.ToolType)
			}
			return doc
		}

		switch st.Kind {
		case agentstream.BlockKindText:
			stream(string(st.Kind), words(st.Text), nil, nil)
			for _, c := range st.Citations {
				doc := citationFields(envelope("citation", true), c, "citation_type", false)
				line(set(doc, "delta", c.CitedText))
			}

		case agentstream.BlockKindThinking:
			stream(string(st.Kind), words(st.Text), nil, nil)

		case agentstream.BlockKindToolCall, agentstream.BlockKindServerToolCall:
			stream(string(st.Kind), pieces(st.Arguments, 8), ids, nil)

		case agentstream.BlockKindToolResult, agentstream.BlockKindServerToolResult:
			body := st.Text
			if st.Payload != "" {
				body = agentstream.PayloadText(st.Payload)
			}
			images := func() {
				for _, img := range st.Images {
					doc := envelope("tool_result_image", false)
					doc = set(doc, "src", img.Src)
					line(set(doc, "media_type", img.MediaType))
				}
			}
			stream(string(st.Kind), words(body), ids, images)

		case agentstream.BlockKindAwaitingFrontendTools, agentstream.BlockKindMetaFiles:
			payload := st.Payload
			if payload == "" {
				payload = "null"
			}
			line(setRaw(envelope(string(st.Kind), true), "delta", payload))

		case agentstream.BlockKindError:
			line(set(envelope("error", true), "delta", st.Text))
		}
	}
}
