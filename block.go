package agentstream

import "strings"

// BlockKind is the variant of a block accumulator.
type BlockKind string

// Block kind constants
const (
	BlockKindText                  BlockKind = "text"
	BlockKindThinking              BlockKind = "thinking"
	BlockKindToolCall              BlockKind = "tool_call"        // Client-executed tool invocation
	BlockKindServerToolCall        BlockKind = "server_tool_call" // Server-executed tool invocation
	BlockKindToolResult            BlockKind = "tool_result"
	BlockKindServerToolResult      BlockKind = "server_tool_result" // Result of a server-executed tool
	BlockKindAwaitingFrontendTools BlockKind = "awaiting_frontend_tools"
	BlockKindError                 BlockKind = "error"
	BlockKindMetaFiles             BlockKind = "meta_files"
	BlockKindGeneric               BlockKind = "generic" // Any other wire type, rendered under its own name
)

// Block is the working record for one content unit of a stream.
//
// It is created on first sight of a block index or envelope kind, mutated by
// later deltas, marked complete on a stop or final signal, and stays readable
// afterwards. A Block belongs to exactly one parser.
type Block struct {
	// Kind selects how the block renders
	Kind BlockKind

	// Type is the wire type the block was created from (e.g. "web_search_tool_result")
	Type string

	// Complete is set once the stream signalled the end of the block
	Complete bool

	// ID and Name identify tool calls and results
	ID   string
	Name string

	// ToolType is the server tool family of a server_tool_result ("web_search")
	ToolType string

	// Citations attached to a text block, rendered after it
	Citations []Citation

	// Images attached to a tool result, rendered after it
	Images []Image

	// Payload holds a raw JSON payload (tool results, signals); empty if none
	Payload string

	// StartInput is tool input supplied whole at block start. It is used
	// only when no argument fragments arrive.
	StartInput string

	content   strings.Builder
	arguments strings.Builder
	input     any
	inputOK   bool
}

// NewBlock returns an open block of the given kind and wire type.
func NewBlock(kind BlockKind, wireType string) *Block {
	return &Block{Kind: kind, Type: wireType}
}

// AppendContent appends a text or thinking fragment.
func (b *Block) AppendContent(s string) {
	b.content.WriteString(s)
}

// Content returns the accumulated text.
func (b *Block) Content() string {
	return b.content.String()
}

// AppendArguments appends a raw tool-argument JSON fragment.
func (b *Block) AppendArguments(s string) {
	b.arguments.WriteString(s)
}

// Arguments returns the raw argument buffer.
func (b *Block) Arguments() string {
	return b.arguments.String()
}

// Finish marks the block complete and decodes the argument buffer. A buffer
// that does not decode is kept raw; Input then reports false.
func (b *Block) Finish() {
	b.Complete = true
	if b.IsToolCall() {
		if b.arguments.Len() == 0 && b.StartInput != "" {
			b.arguments.WriteString(b.StartInput)
		}
		b.input, b.inputOK = DecodeJSON(b.arguments.String())
	}
}

// Input returns the decoded tool arguments of a completed tool call.
func (b *Block) Input() (any, bool) {
	return b.input, b.inputOK
}

// IsToolCall returns true for client and server tool invocations
func (b *Block) IsToolCall() bool {
	return b.Kind == BlockKindToolCall || b.Kind == BlockKindServerToolCall
}

// IsToolResult returns true for client and server tool results
func (b *Block) IsToolResult() bool {
	return b.Kind == BlockKindToolResult || b.Kind == BlockKindServerToolResult
}

// AddCitation attaches a citation to the block.
func (b *Block) AddCitation(c Citation) {
	b.Citations = append(b.Citations, c)
}

// AddImage attaches an image to the block.
func (b *Block) AddImage(img Image) {
	b.Images = append(b.Images, img)
}

// argumentText is the displayed tool input: raw while streaming, re-encoded
// once complete and decodable.
func (b *Block) argumentText() string {
	raw := b.arguments.String()
	if !b.Complete || !b.inputOK {
		return raw
	}
	if pretty, ok := PrettyJSON(raw); ok {
		return pretty
	}
	return raw
}

// resultText is the displayed result: a JSON payload when one was supplied,
// otherwise the accumulated text.
func (b *Block) resultText() string {
	if b.Payload != "" {
		return PayloadText(b.Payload)
	}
	return b.content.String()
}

func (b *Block) toolAttrs() map[string]string {
	attrs := make(map[string]string, 3)
	if b.ID != "" {
		attrs[AttrID] = b.ID
	}
	if b.Name != "" {
		attrs[AttrName] = b.Name
	}
	return attrs
}

// Nodes renders the block. Text blocks re-run the tokenizer over their
// content so tags embedded in free text (e.g. a chart) become elements.
// A partial trailing tag is held back only while the block is open.
func (b *Block) Nodes() []Node {
	switch b.Kind {
	case BlockKindText:
		tokenize := Tokenize
		if b.Complete {
			tokenize = TokenizeComplete
		}
		out := []Node{Element(TagText, nil, tokenize(b.Content())...)}
		if len(b.Citations) > 0 {
			out = append(out, CitationsNode(b.Citations))
		}
		return out

	case BlockKindThinking:
		return []Node{Element(TagThinking, nil, textChild(b.Content())...)}

	case BlockKindToolCall, BlockKindServerToolCall:
		tag := TagToolCall
		if b.Kind == BlockKindServerToolCall {
			tag = TagServerToolCall
		}
		return []Node{Element(tag, b.toolAttrs(), textChild(b.argumentText())...)}

	case BlockKindToolResult:
		return b.withImages(Element(TagToolResult, b.toolAttrs(), textChild(b.resultText())...))

	case BlockKindServerToolResult:
		attrs := b.toolAttrs()
		attrs[AttrToolType] = b.serverToolType()
		return b.withImages(Element(TagServerToolResult, attrs, textChild(b.resultText())...))

	case BlockKindAwaitingFrontendTools:
		return []Node{Element(TagAwaitingFrontendTools, map[string]string{AttrData: PayloadJSON(b.Payload)})}

	case BlockKindMetaFiles:
		return []Node{Element(TagMetaFiles, map[string]string{AttrData: PayloadJSON(b.Payload)})}

	case BlockKindError:
		return []Node{Element(TagError, nil, textChild(b.resultText())...)}

	default:
		tag := b.Type
		if tag == "" {
			tag = string(b.Kind)
		}
		attrs := b.toolAttrs()
		if b.Name == "" {
			attrs[AttrName] = tag
		}
		return []Node{Element(tag, attrs, textChild(b.resultText())...)}
	}
}

// textChild returns s as a single text child, or no children when s is empty.
func textChild(s string) []Node {
	if s == "" {
		return nil
	}
	return []Node{Text(s)}
}

func (b *Block) withImages(n Node) []Node {
	out := make([]Node, 0, 1+len(b.Images))
	out = append(out, n)
	for _, img := range b.Images {
		out = append(out, img.Node())
	}
	return out
}

func (b *Block) serverToolType() string {
	if b.ToolType != "" {
		return b.ToolType
	}
	reg := GetTagRegistry()
	if b.Name != "" {
		return reg.ToolType(b.Name)
	}
	if b.Type != TagServerToolResult && reg.IsDynamicToolResult(b.Type) {
		return reg.ToolType(b.Type)
	}
	return ""
}
