// Package rawevent parses streams of raw structured events
// (message_start, content_block_start/delta/stop, message_delta/stop).
package rawevent

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/aurosoni/agentstream"
)

// Parser accumulates raw events into blocks keyed by offset+index.
//
// A message_start that arrives while blocks already exist moves the offset to
// one past the highest key, so a turn that carries several messages (e.g. an
// automatic tool round-trip) keeps the earlier blocks in order.
type Parser struct {
	blocks map[int]*agentstream.Block
	offset int
	lines  agentstream.LineBuffer
	log    logrus.FieldLogger
}

// New returns an empty raw-event parser.
func New() *Parser {
	return &Parser{
		blocks: make(map[int]*agentstream.Block),
		log:    agentstream.Logger("rawevent"),
	}
}

// Format returns agentstream.FormatRaw.
func (p *Parser) Format() agentstream.Format {
	return agentstream.FormatRaw
}

// Ingest accepts one or more newline-delimited JSON events. An incomplete
// trailing line is buffered until the rest arrives.
func (p *Parser) Ingest(chunk string) {
	for _, line := range p.lines.Write(chunk) {
		p.IngestEvent([]byte(line))
	}
}

// IngestEvent applies exactly one event. Anything that does not decode, and
// any event type the parser does not consume, is ignored.
func (p *Parser) IngestEvent(data []byte) {
	ev, ok := decodeEvent(data)
	if !ok {
		p.log.WithField("event", truncate(string(data), 64)).Debug("ignoring undecodable event")
		return
	}

	switch ev.Type {
	case eventMessageStart:
		if len(p.blocks) > 0 {
			p.offset = p.maxKey() + 1
		}

	case eventContentBlockStart:
		p.start(ev)

	case eventContentBlockDelta:
		p.delta(ev)

	case eventContentBlockStop:
		p.stop(ev)

	case eventError:
		p.appendError(ev)

	case eventMessageDelta, eventMessageStop, eventPing:
		// Message-level metadata; nothing to render.

	default:
		p.log.WithField("event_type", ev.Type).Debug("ignoring unknown event type")
	}
}

func (p *Parser) start(ev event) {
	key := p.offset + ev.Index
	wire := ev.block()
	reg := agentstream.GetTagRegistry()

	var b *agentstream.Block
	switch ev.BlockType {
	case "text":
		b = agentstream.NewBlock(agentstream.BlockKindText, ev.BlockType)
		b.AppendContent(ev.Text)

	case "thinking":
		b = agentstream.NewBlock(agentstream.BlockKindThinking, ev.BlockType)
		b.AppendContent(ev.Thinking)

	case "tool_use", "server_tool_use", "mcp_tool_use":
		kind := agentstream.BlockKindServerToolCall
		if ev.BlockType == "tool_use" {
			kind = agentstream.BlockKindToolCall
		}
		b = agentstream.NewBlock(kind, ev.BlockType)
		b.ID = ev.ID
		b.Name = ev.Name
		// Starts usually carry "input": {}; only a populated object counts.
		if input := wire.Get("input"); input.IsObject() && len(input.Map()) > 0 {
			b.StartInput = input.Raw
		}

	default:
		kind := agentstream.BlockKindGeneric
		if reg.IsDynamicToolResult(ev.BlockType) {
			kind = agentstream.BlockKindServerToolResult
		}
		b = agentstream.NewBlock(kind, ev.BlockType)
		b.ID = firstString(wire, "tool_use_id", "id")
		b.Name = wire.Get("name").String()
		if kind == agentstream.BlockKindServerToolResult {
			b.ToolType = reg.ToolType(ev.BlockType)
		}
		if content := wire.Get("content"); content.Exists() {
			b.Payload = content.Raw
		} else if text := wire.Get("text"); text.Exists() {
			b.AppendContent(text.String())
		}
	}

	p.blocks[key] = b
	p.log.WithFields(logrus.Fields{"index": key, "kind": b.Kind}).Debug("block started")
}

func (p *Parser) delta(ev event) {
	key := p.offset + ev.Index
	b, ok := p.blocks[key]
	if !ok {
		p.log.WithField("index", key).Debug("ignoring delta for unknown block")
		return
	}

	switch ev.DeltaType {
	case deltaText, deltaThinking:
		b.AppendContent(ev.DeltaText)
	case deltaInputJSON:
		b.AppendArguments(ev.PartialJSON)
	case deltaCitations:
		if c := ev.raw.Get("delta.citation"); c.IsObject() {
			b.AddCitation(agentstream.CitationFromJSON(c, "type"))
		}
	case deltaSignature:
		// Signatures verify thinking upstream; they are not rendered.
	default:
		p.log.WithField("delta_type", ev.DeltaType).Debug("ignoring unknown delta type")
	}
}

func (p *Parser) stop(ev event) {
	key := p.offset + ev.Index
	b, ok := p.blocks[key]
	if !ok {
		p.log.WithField("index", key).Debug("ignoring stop for unknown block")
		return
	}

	b.Finish()

	// The stop event carries the full citation list when present.
	if list := ev.raw.Get("content_block.citations"); list.IsArray() {
		citations := make([]agentstream.Citation, 0, len(list.Array()))
		for _, c := range list.Array() {
			citations = append(citations, agentstream.CitationFromJSON(c, "type"))
		}
		b.Citations = citations
	}
}

func (p *Parser) appendError(ev event) {
	b := agentstream.NewBlock(agentstream.BlockKindError, eventError)
	if msg := ev.raw.Get("error.message"); msg.Exists() {
		b.AppendContent(msg.String())
	} else {
		b.Payload = ev.raw.Get("error").Raw
	}
	b.Finish()

	key := p.offset
	if len(p.blocks) > 0 {
		key = p.maxKey() + 1
	}
	p.blocks[key] = b
}

func (p *Parser) maxKey() int {
	top, first := 0, true
	for k := range p.blocks {
		if first || k > top {
			top, first = k, false
		}
	}
	return top
}

// Materialize renders every block in ascending key order.
func (p *Parser) Materialize() []agentstream.Node {
	var nodes []agentstream.Node
	for _, b := range p.Blocks() {
		nodes = append(nodes, b.Nodes()...)
	}
	return nodes
}

// Blocks returns the accumulators in ascending key order. The returned
// blocks are owned by the parser.
func (p *Parser) Blocks() []*agentstream.Block {
	keys := make([]int, 0, len(p.blocks))
	for k := range p.blocks {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]*agentstream.Block, 0, len(keys))
	for _, k := range keys {
		out = append(out, p.blocks[k])
	}
	return out
}

// Reset clears all blocks, the offset and any buffered partial line.
func (p *Parser) Reset() {
	p.blocks = make(map[int]*agentstream.Block)
	p.offset = 0
	p.lines.Reset()
}

func firstString(obj gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
