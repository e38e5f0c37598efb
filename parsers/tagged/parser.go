// Package tagged parses tag-based streaming text such as
//
//	<content-block-thinking>...</content-block-thinking>
//	<content-block-text>...</content-block-text>
//
// The whole buffer is re-tokenized on every Materialize call; no incremental
// tokenizer state is kept between reads.
package tagged

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aurosoni/agentstream"
)

// Parser accumulates tag-based stream text.
type Parser struct {
	buf      strings.Builder
	registry *agentstream.TagRegistry
	log      logrus.FieldLogger
}

// Option configures a Parser.
type Option func(*Parser)

// WithRegistry makes the parser use r instead of the global tag registry.
func WithRegistry(r *agentstream.TagRegistry) Option {
	return func(p *Parser) {
		p.registry = r
	}
}

// New returns an empty tag-based parser.
func New(opts ...Option) *Parser {
	p := &Parser{log: agentstream.Logger("tagged")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) tags() *agentstream.TagRegistry {
	if p.registry != nil {
		return p.registry
	}
	return agentstream.GetTagRegistry()
}

// Format returns agentstream.FormatXML.
func (p *Parser) Format() agentstream.Format {
	return agentstream.FormatXML
}

// Ingest appends chunk to the buffer verbatim.
func (p *Parser) Ingest(chunk string) {
	p.buf.WriteString(chunk)
}

// Buffer returns the accumulated text.
func (p *Parser) Buffer() string {
	return p.buf.String()
}

// Reset clears the buffer.
func (p *Parser) Reset() {
	p.buf.Reset()
}

// Materialize tokenizes the whole buffer and normalizes the result:
// backend tag spellings become canonical names, tool-call arguments are
// decoded into a pretty-printed child, dynamically named tool results become
// server_tool_result, and verbatim sections are restored. Framing elements
// and whitespace-only top-level text are dropped.
func (p *Parser) Materialize() []agentstream.Node {
	reg := p.tags()
	open, close := reg.Verbatim()
	src, v := extractVerbatim(p.buf.String(), open, close)

	var out []agentstream.Node
	for _, n := range reg.Tokenize(src) {
		if n.IsText() {
			content := v.restore(n.Content)
			if strings.TrimSpace(content) == "" {
				continue
			}
			out = append(out, agentstream.Text(content))
			continue
		}

		switch reg.Canonical(n.Tag) {
		case agentstream.TagMetaInit, agentstream.TagMetaFinal:
			continue
		}
		out = append(out, p.normalize(reg, v, n))
	}
	return out
}

func (p *Parser) normalize(reg *agentstream.TagRegistry, v *verbatim, n agentstream.Node) agentstream.Node {
	if n.IsText() {
		return agentstream.Text(v.restore(n.Content))
	}

	tag := reg.Canonical(n.Tag)

	attrs := make(map[string]string, len(n.Attrs))
	for k, val := range n.Attrs {
		attrs[k] = v.restore(val)
	}

	children := make([]agentstream.Node, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, p.normalize(reg, v, c))
	}

	switch {
	case tag == agentstream.TagToolCall || tag == agentstream.TagServerToolCall:
		if raw, ok := attrs[agentstream.AttrArguments]; ok {
			if pretty, ok := agentstream.PrettyJSON(raw); ok {
				delete(attrs, agentstream.AttrArguments)
				children = append([]agentstream.Node{agentstream.Text(pretty)}, children...)
			} else {
				p.log.WithField("tag", n.Tag).Debug("tool call arguments are not valid JSON; keeping raw attribute")
			}
		}

	case tag != agentstream.TagToolResult && reg.IsDynamicToolResult(tag):
		toolType := attrs[agentstream.AttrToolType]
		if toolType == "" {
			toolType = attrs[agentstream.AttrName]
		}
		if toolType == "" {
			toolType = reg.ToolType(tag)
		}
		attrs[agentstream.AttrToolType] = toolType
		tag = agentstream.TagServerToolResult
	}

	return agentstream.Element(tag, attrs, children...)
}
