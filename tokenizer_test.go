package agentstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Node
	}{
		{
			name:     "plain text",
			input:    "Hello! How can I help?",
			expected: []Node{Text("Hello! How can I help?")},
		},
		{
			name:     "empty input",
			input:    "",
			expected: nil,
		},
		{
			name:     "non-whitelisted tags stay one text node",
			input:    "<outer><inner>nested</inner></outer>",
			expected: []Node{Text("<outer><inner>nested</inner></outer>")},
		},
		{
			name:     "literal tags coalesce with surrounding text",
			input:    "a<b>c</b>d",
			expected: []Node{Text("a<b>c</b>d")},
		},
		{
			name:     "structural element",
			input:    "<thinking>hmm</thinking>",
			expected: []Node{Element(TagThinking, nil, Text("hmm"))},
		},
		{
			name:  "embedded presentation tag",
			input: `see <chart type="bar">data</chart> end`,
			expected: []Node{
				Text("see "),
				Element(TagChart, map[string]string{"type": "bar"}, Text("data")),
				Text(" end"),
			},
		},
		{
			name:     "unmatched closing tag is literal",
			input:    "hello</thinking>",
			expected: []Node{Text("hello</thinking>")},
		},
		{
			name:     "dangling open element keeps its children",
			input:    "<thinking>partial",
			expected: []Node{Element(TagThinking, nil, Text("partial"))},
		},
		{
			name:  "closing tag pops intermediate elements",
			input: "<text>a<chart>b</text>c",
			expected: []Node{
				Element(TagText, nil, Text("a"), Element(TagChart, nil, Text("b"))),
				Text("c"),
			},
		},
		{
			name:  "all quoting styles",
			input: `<tool_call id="a" name='b' x=1 flag></tool_call>`,
			expected: []Node{
				Element(TagToolCall, map[string]string{"id": "a", "name": "b", "x": "1", "flag": ""}),
			},
		},
		{
			name:  "entity decoded attributes",
			input: `<citation title="a &amp; b &quot;c&quot;">x</citation>`,
			expected: []Node{
				Element(TagCitation, map[string]string{"title": `a & b "c"`}, Text("x")),
			},
		},
		{
			name:  "self-closing element",
			input: `<image src="https://example.com/a.png" media_type="image/png"/>`,
			expected: []Node{
				Element(TagImage, map[string]string{"src": "https://example.com/a.png", "media_type": "image/png"}),
			},
		},
		{
			name:     "self-closing after unquoted value",
			input:    `<image src=a/>tail`,
			expected: []Node{Element(TagImage, map[string]string{"src": "a"}), Text("tail")},
		},
		{
			name:     "dynamic tool result name",
			input:    "<web_search_tool_result>r</web_search_tool_result>",
			expected: []Node{Element("web_search_tool_result", nil, Text("r"))},
		},
		{
			name:     "truncated structural tag name is held back",
			input:    "Hello <content-block-te",
			expected: []Node{Text("Hello ")},
		},
		{
			name:     "truncated structural tag attributes are held back",
			input:    `x<tool_call id="a`,
			expected: []Node{Text("x")},
		},
		{
			name:     "truncated literal tag is shown",
			input:    "<div cla",
			expected: []Node{Text("<div cla")},
		},
		{
			name:     "comparison operator is text",
			input:    "a < b",
			expected: []Node{Text("a < b")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokenize(tt.input))
		})
	}
}

func TestTokenizeComplete_KeepsTrailingTagText(t *testing.T) {
	tests := map[string]string{
		"if n<t":                "if n<t",
		"see a<c":               "see a<c",
		"x<e":                   "x<e",
		"use <table":            "use <table",
		`x<tool_call id="a`:     `x<tool_call id="a`,
		"Hello <content-block-": "Hello <content-block-",
	}
	for input, want := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, []Node{Text(want)}, TokenizeComplete(input))
		})
	}
}

func TestTokenizeComplete_StructureUnchanged(t *testing.T) {
	input := "a <chart>1</chart> b <text>open"
	assert.Equal(t, Tokenize(input), TokenizeComplete(input))
}

func TestTokenize_NeverPanics(t *testing.T) {
	inputs := []string{
		"<", "</", "<>", "</>", "<<<>>>", "<text", "<text ", `<text a="`, "</text></text>",
		"<text><thinking></text></thinking>", "<a b='c\">", "<text/>", "\x00<text>\xff",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Tokenize(in) }, "input %q", in)
	}
}

func TestParseAttributes(t *testing.T) {
	attrs := ParseAttributes(` a="1" b='2' c=3 d a="dup" e="&lt;x&gt;"`)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3", "d": "", "e": "<x>"}, attrs)
	assert.Nil(t, ParseAttributes("   "))
}
