package agentstream

import "sort"

// NodeType discriminates the two node shapes of a materialized tree.
type NodeType string

const (
	NodeTypeText    NodeType = "text"
	NodeTypeElement NodeType = "element"
)

// Canonical element names produced by every parser.
// Renderers must treat any other tag as a generic container.
const (
	TagText                  = "text"
	TagThinking              = "thinking"
	TagToolCall              = "tool_call"
	TagServerToolCall        = "server_tool_call"
	TagToolResult            = "tool_result"
	TagServerToolResult      = "server_tool_result"
	TagCitations             = "citations"
	TagCitation              = "citation"
	TagImage                 = "image"
	TagError                 = "error"
	TagMetaFiles             = "meta_files"
	TagMetaInit              = "meta_init"
	TagMetaFinal             = "meta_final"
	TagAwaitingFrontendTools = "awaiting_frontend_tools"
	TagChart                 = "chart"
	TagTable                 = "table"
)

// Attribute names shared across parsers.
const (
	AttrID        = "id"
	AttrName      = "name"
	AttrToolType  = "toolType"
	AttrArguments = "arguments"
	AttrData      = "data"
	AttrSrc       = "src"
	AttrMediaType = "media_type"
)

// Node is the unit of output.
//
// A text node carries Content only. An element node carries Tag, Attrs and
// Children. Nodes are built fresh on every materialization; callers may keep
// or mutate them without affecting the parser that produced them.
type Node struct {
	Type     NodeType          `json:"type"`
	Content  string            `json:"content,omitempty"`
	Tag      string            `json:"tag,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// Text returns a text node.
func Text(content string) Node {
	return Node{Type: NodeTypeText, Content: content}
}

// Element returns an element node. Empty attribute maps and child lists are
// stored as nil so that equal trees compare equal with reflect.DeepEqual.
func Element(tag string, attrs map[string]string, children ...Node) Node {
	if len(attrs) == 0 {
		attrs = nil
	}
	if len(children) == 0 {
		children = nil
	}
	return Node{Type: NodeTypeElement, Tag: tag, Attrs: attrs, Children: children}
}

// IsText returns true if this is a text node
func (n Node) IsText() bool {
	return n.Type == NodeTypeText
}

// IsElement returns true if this is an element node
func (n Node) IsElement() bool {
	return n.Type == NodeTypeElement
}

// Attr returns the named attribute and whether it is present.
func (n Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// AttrNames returns the attribute names in sorted order.
func (n Node) AttrNames() []string {
	names := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// TextContent concatenates the content of every text node below n.
func (n Node) TextContent() string {
	if n.IsText() {
		return n.Content
	}
	var out string
	for _, c := range n.Children {
		out += c.TextContent()
	}
	return out
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	if n.Attrs != nil {
		out.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	if n.Children != nil {
		out.Children = CloneNodes(n.Children)
	}
	return out
}

// CloneNodes deep-copies a node list.
func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// Citation references a source from a text block.
//
// Locator fields are kept as decoded strings so that a zero document index or
// page number is distinguishable from an absent one.
type Citation struct {
	// Type is the wire citation type (e.g. "char_location", "web_search_result_location")
	Type string `json:"citation_type,omitempty"`

	// CitedText is the cited excerpt, rendered as the citation's text child
	CitedText string `json:"cited_text,omitempty"`

	DocumentIndex   string `json:"document_index,omitempty"`
	DocumentTitle   string `json:"document_title,omitempty"`
	StartPageNumber string `json:"start_page_number,omitempty"`
	EndPageNumber   string `json:"end_page_number,omitempty"`
	StartCharIndex  string `json:"start_char_index,omitempty"`
	EndCharIndex    string `json:"end_char_index,omitempty"`
	URL             string `json:"url,omitempty"`
	Title           string `json:"title,omitempty"`
}

// Attrs returns the non-empty locator attributes of the citation.
func (c Citation) Attrs() map[string]string {
	attrs := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			attrs[k] = v
		}
	}
	set("citation_type", c.Type)
	set("document_index", c.DocumentIndex)
	set("document_title", c.DocumentTitle)
	set("start_page_number", c.StartPageNumber)
	set("end_page_number", c.EndPageNumber)
	set("start_char_index", c.StartCharIndex)
	set("end_char_index", c.EndCharIndex)
	set("url", c.URL)
	set("title", c.Title)
	return attrs
}

// Node renders the citation as a "citation" element.
func (c Citation) Node() Node {
	var children []Node
	if c.CitedText != "" {
		children = append(children, Text(c.CitedText))
	}
	return Element(TagCitation, c.Attrs(), children...)
}

// CitationsNode renders a "citations" element holding one child per citation.
func CitationsNode(citations []Citation) Node {
	children := make([]Node, 0, len(citations))
	for _, c := range citations {
		children = append(children, c.Node())
	}
	return Element(TagCitations, nil, children...)
}

// Image is an image descriptor attached to a tool result.
type Image struct {
	Src       string `json:"src"`
	MediaType string `json:"media_type,omitempty"`
}

// Node renders the image as an "image" element.
func (i Image) Node() Node {
	return Element(TagImage, map[string]string{
		AttrSrc:       i.Src,
		AttrMediaType: i.MediaType,
	})
}
