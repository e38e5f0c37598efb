package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurosoni/agentstream"
	"github.com/aurosoni/agentstream/lorem"
)

func feed(t *testing.T, chunks []string) []agentstream.Node {
	t.Helper()
	p := New()
	for _, c := range chunks {
		p.Ingest(c)
		p.Materialize()
	}
	return p.Materialize()
}

func parse(lines ...string) *Parser {
	p := New()
	for _, l := range lines {
		p.Ingest(l + "\n")
	}
	return p
}

func TestParser_ThinkingAndText(t *testing.T) {
	nodes := feed(t, lorem.ThinkingAndText().Chunks(agentstream.FormatJSON, 6))

	assert.Equal(t, []agentstream.Node{
		agentstream.Element(agentstream.TagThinking, nil, agentstream.Text("Let me think about this.")),
		agentstream.Element(agentstream.TagText, nil, agentstream.Text("Hello! How can I help?")),
	}, nodes)
}

func TestParser_Calculator(t *testing.T) {
	nodes := feed(t, lorem.Calculator().Chunks(agentstream.FormatJSON, 10))

	assert.Equal(t, []agentstream.Node{
		agentstream.Element(agentstream.TagToolCall,
			map[string]string{agentstream.AttrID: "tool_001", agentstream.AttrName: "calculator"},
			agentstream.Text("{\n  \"expression\": \"5 * (3 + 2/4)\"\n}"),
		),
		agentstream.Element(agentstream.TagToolResult,
			map[string]string{agentstream.AttrID: "tool_001"},
			agentstream.Text("17.5"),
		),
	}, nodes)
}

func TestParser_ToolCallStreamingShowsRawArguments(t *testing.T) {
	p := parse(
		`{"type":"tool_call","id":"t1","name":"calc","final":false,"delta":"{\"a\":"}`,
		`{"type":"tool_call","final":false,"delta":"1"}`,
	)

	nodes := p.Materialize()
	require.Len(t, nodes, 1)
	assert.Equal(t, `{"a":1`, nodes[0].TextContent())

	p.Ingest(`{"type":"tool_call","final":true,"delta":"}"}` + "\n")
	nodes = p.Materialize()
	assert.Equal(t, "{\n  \"a\": 1\n}", nodes[0].TextContent())

	blocks := p.Blocks()
	require.Len(t, blocks, 1)
	input, ok := blocks[0].Input()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, input)
}

func TestParser_MalformedToolCall(t *testing.T) {
	nodes := feed(t, lorem.MalformedToolCall().Chunks(agentstream.FormatJSON, 4))

	require.Len(t, nodes, 1)
	assert.Equal(t, agentstream.TagToolCall, nodes[0].Tag)
	assert.Equal(t, "{bad json", nodes[0].TextContent())
}

func TestParser_WebSearch(t *testing.T) {
	nodes := feed(t, lorem.WebSearch().Chunks(agentstream.FormatJSON, 32))
	require.Len(t, nodes, 4)

	assert.Equal(t, agentstream.TagServerToolCall, nodes[0].Tag)
	assert.Equal(t, "web_search", nodes[0].Attrs[agentstream.AttrName])

	assert.Equal(t, agentstream.TagServerToolResult, nodes[1].Tag)
	assert.Equal(t, "web_search", nodes[1].Attrs[agentstream.AttrToolType])
	assert.Contains(t, nodes[1].TextContent(), `"url": "https://example.com/lorem"`)

	assert.Equal(t, agentstream.TagText, nodes[2].Tag)
	assert.Equal(t, agentstream.TagCitations, nodes[3].Tag)
	require.Len(t, nodes[3].Children, 1)
	cite := nodes[3].Children[0]
	assert.Equal(t, "web_search_result_location", cite.Attrs["citation_type"])
	assert.Equal(t, "Cicero, 45 BC", cite.TextContent())
}

func TestParser_ServerResultToolTypeFromName(t *testing.T) {
	p := parse(`{"type":"server_tool_result","id":"s1","name":"code_execution_tool_result","final":true,"delta":"ok"}`)

	nodes := p.Materialize()
	require.Len(t, nodes, 1)
	assert.Equal(t, "code_execution", nodes[0].Attrs[agentstream.AttrToolType])
}

func TestParser_AwaitingFrontendTools(t *testing.T) {
	nodes := feed(t, lorem.AwaitingFrontendTools().Chunks(agentstream.FormatJSON, 16))
	require.Len(t, nodes, 2)
	assert.Equal(t, agentstream.TagAwaitingFrontendTools, nodes[1].Tag)

	var pending []map[string]any
	require.NoError(t, json.Unmarshal([]byte(nodes[1].Attrs[agentstream.AttrData]), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "pick_color", pending[0]["name"])
}

func TestParser_DoubleEncodedSignal(t *testing.T) {
	p := parse(`{"type":"meta_files","final":true,"delta":"{\"files\":[\"a.txt\"]}"}`)

	nodes := p.Materialize()
	require.Len(t, nodes, 1)
	assert.Equal(t, `{"files":["a.txt"]}`, nodes[0].Attrs[agentstream.AttrData])
}

func TestParser_Error(t *testing.T) {
	p := parse(`{"type":"error","final":true,"delta":"rate limited"}`)
	assert.Equal(t, []agentstream.Node{
		agentstream.Element(agentstream.TagError, nil, agentstream.Text("rate limited")),
	}, p.Materialize())
}

func TestParser_CitationWithoutText(t *testing.T) {
	p := parse(`{"type":"citation","final":true,"citation_type":"page_location","document_index":1,"start_page_number":3,"delta":"quoted"}`)

	nodes := p.Materialize()
	require.Len(t, nodes, 2)
	assert.Equal(t, agentstream.Element(agentstream.TagText, nil), nodes[0])
	require.Len(t, nodes[1].Children, 1)
	assert.Equal(t, "1", nodes[1].Children[0].Attrs["document_index"])
	assert.Equal(t, "3", nodes[1].Children[0].Attrs["start_page_number"])
	assert.Equal(t, "quoted", nodes[1].Children[0].TextContent())
}

func TestParser_Images(t *testing.T) {
	t.Run("open result", func(t *testing.T) {
		p := parse(
			`{"type":"tool_result","id":"t1","final":false,"delta":"see"}`,
			`{"type":"tool_result_image","src":"a.png","media_type":"image/png"}`,
			`{"type":"tool_result","final":true,"delta":""}`,
		)
		nodes := p.Materialize()
		require.Len(t, nodes, 2)
		assert.Equal(t, agentstream.TagToolResult, nodes[0].Tag)
		assert.Equal(t, agentstream.TagImage, nodes[1].Tag)
		assert.Equal(t, "a.png", nodes[1].Attrs[agentstream.AttrSrc])
	})

	t.Run("latest completed result", func(t *testing.T) {
		p := parse(
			`{"type":"tool_result","id":"t1","final":true,"delta":"one"}`,
			`{"type":"text","final":true,"delta":"between"}`,
			`{"type":"tool_result_image","src":"b.png"}`,
		)
		nodes := p.Materialize()
		require.Len(t, nodes, 3)
		assert.Equal(t, agentstream.TagImage, nodes[1].Tag)
		assert.Equal(t, agentstream.TagText, nodes[2].Tag)
	})

	t.Run("no result yet", func(t *testing.T) {
		p := parse(
			`{"type":"tool_result_image","id":"t9","src":"c.png"}`,
			`{"type":"tool_result","id":"t9","final":true,"delta":"late"}`,
		)
		nodes := p.Materialize()
		require.Len(t, nodes, 2)
		assert.Equal(t, agentstream.Element(agentstream.TagToolResult,
			map[string]string{agentstream.AttrID: "t9"},
			agentstream.Text("late"),
		), nodes[0])
		assert.Equal(t, "c.png", nodes[1].Attrs[agentstream.AttrSrc])
	})
}

func TestParser_SharedToolCursor(t *testing.T) {
	p := parse(
		`{"type":"tool_call","id":"t1","name":"x","final":false,"delta":"{\"a\":"}`,
		`{"type":"server_tool_call","final":true,"delta":"1}"}`,
		`{"type":"server_tool_call","id":"t2","name":"web_search","final":true,"delta":"{}"}`,
	)

	nodes := p.Materialize()
	require.Len(t, nodes, 2)
	assert.Equal(t, agentstream.Element(agentstream.TagToolCall,
		map[string]string{agentstream.AttrID: "t1", agentstream.AttrName: "x"},
		agentstream.Text("{\n  \"a\": 1\n}"),
	), nodes[0])
	assert.Equal(t, agentstream.TagServerToolCall, nodes[1].Tag)
	assert.Equal(t, "t2", nodes[1].Attrs[agentstream.AttrID])

	for _, b := range p.Blocks() {
		assert.True(t, b.Complete)
	}
}

func TestParser_SharedResultCursor(t *testing.T) {
	p := parse(
		`{"type":"tool_result","id":"a","final":false,"delta":"x"}`,
		`{"type":"server_tool_result","id":"b","final":true,"delta":"y"}`,
	)

	nodes := p.Materialize()
	require.Len(t, nodes, 1)
	assert.Equal(t, agentstream.Element(agentstream.TagToolResult,
		map[string]string{agentstream.AttrID: "a"},
		agentstream.Text("xy"),
	), nodes[0])
	assert.True(t, p.Blocks()[0].Complete)
}

func TestParser_StructuredToolResultIsPrettyPrinted(t *testing.T) {
	p := parse(
		`{"type":"tool_result","id":"t1","final":false,"delta":{"rows":[1,2]}}`,
		`{"type":"tool_result","final":true,"delta":""}`,
	)

	nodes := p.Materialize()
	require.Len(t, nodes, 1)
	assert.Equal(t, "{\n  \"rows\": [\n    1,\n    2\n  ]\n}", nodes[0].TextContent())

	p = parse(`{"type":"server_tool_result","name":"code_execution_tool_result","final":true,"delta":["ok"]}`)
	nodes = p.Materialize()
	require.Len(t, nodes, 1)
	assert.Equal(t, "[\n  \"ok\"\n]", nodes[0].TextContent())
}

func TestParser_EmptyNonFinalFragmentOpensNothing(t *testing.T) {
	p := parse(`{"type":"text","final":false,"delta":""}`)
	assert.Empty(t, p.Materialize())
}

func TestParser_MetaHandler(t *testing.T) {
	var got []string
	p := New(WithMetaHandler(func(kind, payload string) {
		got = append(got, kind+"="+payload)
	}))
	p.Ingest(`{"type":"meta_init","delta":{"format":"json"}}` + "\n")
	p.Ingest(`{"type":"meta_final","delta":{"message_history":[]}}` + "\n")

	assert.Equal(t, []string{
		`meta_init={"format":"json"}`,
		`meta_final={"message_history":[]}`,
	}, got)
	assert.Empty(t, p.Materialize())
}

func TestParser_IgnoresNoise(t *testing.T) {
	p := parse(
		`not json`,
		`[1,2]`,
		`{"type":"heartbeat"}`,
		`data: {"type":"text","final":true,"delta":"kept"}`,
	)
	assert.Equal(t, []agentstream.Node{
		agentstream.Element(agentstream.TagText, nil, agentstream.Text("kept")),
	}, p.Materialize())
}

func TestParser_Reset(t *testing.T) {
	p := New()
	p.Ingest(`{"type":"text","final":false,"delta":"a"}` + "\n" + `{"type":"text"`)
	p.Reset()
	p.Ingest(`{"type":"text","final":true,"delta":"b"}` + "\n")

	assert.Equal(t, []agentstream.Node{
		agentstream.Element(agentstream.TagText, nil, agentstream.Text("b")),
	}, p.Materialize())
}

func TestParser_Format(t *testing.T) {
	assert.Equal(t, agentstream.FormatJSON, New().Format())
}

func TestParser_Convergence(t *testing.T) {
	gen := lorem.NewGenerator()
	scripts := map[string]lorem.Script{
		"thinking and text": lorem.ThinkingAndText(),
		"calculator":        lorem.Calculator(),
		"web search":        lorem.WebSearch(),
		"frontend tools":    lorem.AwaitingFrontendTools(),
		"generated":         gen.Script(lorem.Options{Blocks: 4, Thinking: true, Tools: true, Citations: true}),
	}

	for name, script := range scripts {
		t.Run(name, func(t *testing.T) {
			expected := feed(t, script.Chunks(agentstream.FormatJSON, 0))
			require.NotEmpty(t, expected)
			for _, size := range []int{1, 7, 33, 512} {
				assert.Equal(t, expected, feed(t, script.Chunks(agentstream.FormatJSON, size)), "chunk size %d", size)
			}
		})
	}
}
