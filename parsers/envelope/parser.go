// Package envelope parses streams of self-contained JSON envelopes of the form
//
//	{"type":"text","agent":"main","final":false,"delta":"Hel"}
//
// Envelopes carry no block index. Records are kept in arrival order and
// fragments are routed to the record its kind's cursor points at.
package envelope

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/aurosoni/agentstream"
)

// Envelope kinds
const (
	KindThinking              = "thinking"
	KindText                  = "text"
	KindCitation              = "citation"
	KindToolCall              = "tool_call"
	KindServerToolCall        = "server_tool_call"
	KindServerToolResult      = "server_tool_result"
	KindToolResult            = "tool_result"
	KindToolResultImage       = "tool_result_image"
	KindAwaitingFrontendTools = "awaiting_frontend_tools"
	KindError                 = "error"
	KindMetaFiles             = "meta_files"
	KindMetaInit              = "meta_init"
	KindMetaFinal             = "meta_final"
)

// MetaHandler observes framing envelopes, which are not rendered.
// payload is the raw JSON of the envelope's delta.
type MetaHandler func(kind string, payload string)

// Parser accumulates envelopes into an ordered list of block records.
type Parser struct {
	records []*agentstream.Block

	// Open records per policy; nil when nothing is open.
	thinking *agentstream.Block
	text     *agentstream.Block
	tool     *agentstream.Block // shared by tool_call and server_tool_call
	result   *agentstream.Block // shared by tool_result and server_tool_result

	lines  agentstream.LineBuffer
	onMeta MetaHandler
	log    logrus.FieldLogger
}

// Option configures a Parser.
type Option func(*Parser)

// WithMetaHandler registers fn to receive meta_init and meta_final envelopes.
func WithMetaHandler(fn MetaHandler) Option {
	return func(p *Parser) {
		p.OnMeta(fn)
	}
}

// New returns an empty envelope parser.
func New(opts ...Option) *Parser {
	p := &Parser{log: agentstream.Logger("envelope")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnMeta replaces the handler for meta_init and meta_final envelopes.
func (p *Parser) OnMeta(fn MetaHandler) {
	p.onMeta = fn
}

// Format returns agentstream.FormatJSON.
func (p *Parser) Format() agentstream.Format {
	return agentstream.FormatJSON
}

// Ingest accepts one or more newline-delimited envelopes. An incomplete
// trailing line is buffered until the rest arrives.
func (p *Parser) Ingest(chunk string) {
	for _, line := range p.lines.Write(chunk) {
		p.IngestEnvelope([]byte(line))
	}
}

// IngestEnvelope applies exactly one envelope. Undecodable input and
// unknown kinds are ignored.
func (p *Parser) IngestEnvelope(data []byte) {
	s := strings.TrimSpace(string(data))
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		s = strings.TrimSpace(rest)
	}
	if !strings.HasPrefix(s, "{") || !gjson.Valid(s) {
		p.log.Debug("ignoring undecodable envelope")
		return
	}
	env := gjson.Parse(s)
	kind := env.Get("type").String()

	switch kind {
	case KindThinking:
		p.buffered(&p.thinking, agentstream.BlockKindThinking, kind, env)

	case KindText:
		p.buffered(&p.text, agentstream.BlockKindText, kind, env)

	case KindCitation:
		p.citation(env)

	case KindToolCall:
		p.buffered(&p.tool, agentstream.BlockKindToolCall, kind, env)

	case KindServerToolCall:
		p.buffered(&p.tool, agentstream.BlockKindServerToolCall, kind, env)

	case KindToolResult:
		p.buffered(&p.result, agentstream.BlockKindToolResult, kind, env)

	case KindServerToolResult:
		p.buffered(&p.result, agentstream.BlockKindServerToolResult, kind, env)

	case KindToolResultImage:
		p.image(env)

	case KindAwaitingFrontendTools:
		p.signal(agentstream.BlockKindAwaitingFrontendTools, kind, env)

	case KindError:
		p.signal(agentstream.BlockKindError, kind, env)

	case KindMetaFiles:
		p.signal(agentstream.BlockKindMetaFiles, kind, env)

	case KindMetaInit, KindMetaFinal:
		if p.onMeta != nil {
			p.onMeta(kind, env.Get("delta").Raw)
		}

	default:
		p.log.WithField("event_type", kind).Debug("ignoring unknown envelope type")
	}
}

// fragment returns the payload fragment: string deltas as their content,
// any other JSON value as its literal text.
func fragment(env gjson.Result) string {
	d := env.Get("delta")
	switch d.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return d.String()
	default:
		return d.Raw
	}
}

// buffered applies the open-record policy shared by text-like and tool kinds.
// An open record on the cursor takes every fragment routed to that cursor,
// whatever the envelope's kind; identifiers are captured only when a record
// is created.
func (p *Parser) buffered(cursor **agentstream.Block, kind agentstream.BlockKind, wireType string, env gjson.Result) {
	final := env.Get("final").Bool()

	if open := *cursor; open != nil && !open.Complete {
		if open.Kind != kind {
			p.log.WithFields(logrus.Fields{"kind": kind, "open_kind": open.Kind}).Debug("continuing open record of the other kind")
		}
		p.appendFragment(open, env)
		if final {
			open.Finish()
			*cursor = nil
		}
		return
	}

	if fragment(env) == "" && !final {
		return
	}

	b := agentstream.NewBlock(kind, wireType)
	b.ID = env.Get("id").String()
	b.Name = env.Get("name").String()
	if kind == agentstream.BlockKindServerToolResult {
		b.ToolType = toolType(env)
	}
	p.appendFragment(b, env)
	p.records = append(p.records, b)

	if final {
		b.Finish()
		*cursor = nil
		return
	}
	*cursor = b
	p.log.WithFields(logrus.Fields{"kind": kind, "index": len(p.records) - 1}).Debug("record opened")
}

// appendFragment routes an envelope's delta into b. A tool result whose
// first delta is structured JSON keeps it as its payload so it renders
// pretty-printed.
func (p *Parser) appendFragment(b *agentstream.Block, env gjson.Result) {
	switch {
	case b.IsToolCall():
		b.AppendArguments(fragment(env))
	case b.IsToolResult() && structured(env.Get("delta")) && b.Payload == "" && b.Content() == "":
		b.Payload = env.Get("delta").Raw
	default:
		b.AppendContent(fragment(env))
	}
}

// structured reports whether d is a JSON value other than a string or null.
func structured(d gjson.Result) bool {
	return d.Exists() && d.Type != gjson.String && d.Type != gjson.Null
}

func toolType(env gjson.Result) string {
	for _, key := range []string{"toolType", "tool_type"} {
		if v := env.Get(key).String(); v != "" {
			return v
		}
	}
	if name := env.Get("name").String(); name != "" {
		return agentstream.GetTagRegistry().ToolType(name)
	}
	return ""
}

// citation attaches a citation to the most recent text record, creating an
// empty complete one when the stream has no text yet.
func (p *Parser) citation(env gjson.Result) {
	c := agentstream.CitationFromJSON(env, "citation_type")
	if c.CitedText == "" {
		c.CitedText = fragment(env)
	}

	for i := len(p.records) - 1; i >= 0; i-- {
		if p.records[i].Kind == agentstream.BlockKindText {
			p.records[i].AddCitation(c)
			return
		}
	}

	b := agentstream.NewBlock(agentstream.BlockKindText, KindText)
	b.Finish()
	b.AddCitation(c)
	p.records = append(p.records, b)
}

// image attaches an image to the open tool result, else the latest tool
// result. With no tool result at all an open placeholder record is created.
func (p *Parser) image(env gjson.Result) {
	img := agentstream.Image{
		Src:       env.Get("src").String(),
		MediaType: env.Get("media_type").String(),
	}

	if p.result != nil && !p.result.Complete {
		p.result.AddImage(img)
		return
	}
	for i := len(p.records) - 1; i >= 0; i-- {
		if p.records[i].IsToolResult() {
			p.records[i].AddImage(img)
			return
		}
	}

	p.log.WithField("src", img.Src).Warn("tool result image arrived before any tool result; creating placeholder")
	b := agentstream.NewBlock(agentstream.BlockKindToolResult, KindToolResult)
	b.ID = env.Get("id").String()
	b.AddImage(img)
	p.records = append(p.records, b)
	p.result = b
}

// signal appends a complete record holding the delta's JSON verbatim.
func (p *Parser) signal(kind agentstream.BlockKind, wireType string, env gjson.Result) {
	b := agentstream.NewBlock(kind, wireType)
	b.Payload = env.Get("delta").Raw
	b.Finish()
	p.records = append(p.records, b)
}

// Materialize renders every record in arrival order.
func (p *Parser) Materialize() []agentstream.Node {
	var nodes []agentstream.Node
	for _, b := range p.records {
		nodes = append(nodes, b.Nodes()...)
	}
	return nodes
}

// Blocks returns the records in arrival order. The returned blocks are owned
// by the parser.
func (p *Parser) Blocks() []*agentstream.Block {
	return append([]*agentstream.Block(nil), p.records...)
}

// Reset clears every record, cursor and buffered partial line.
func (p *Parser) Reset() {
	p.records = nil
	p.thinking, p.text, p.tool, p.result = nil, nil, nil, nil
	p.lines.Reset()
}
