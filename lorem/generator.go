package lorem

import (
	"fmt"

	loremgen "github.com/bozaro/golorem"

	"github.com/aurosoni/agentstream"
	"github.com/aurosoni/agentstream/framing"
)

// Options shapes a generated script.
type Options struct {
	// Blocks is the number of text blocks (default 3)
	Blocks int

	// Thinking prepends a thinking block
	Thinking bool

	// Tools follows each text block with a tool call and its result
	Tools bool

	// Citations attaches a citation to every text block
	Citations bool

	// Model, when set, adds a meta_init header naming it and a meta_final trailer
	Model string
}

// Generator produces lorem ipsum scripts. Text is random; structure is fixed
// by Options.
type Generator struct {
	gen *loremgen.Lorem
}

// NewGenerator creates a new lorem ipsum script generator.
func NewGenerator() *Generator {
	return &Generator{gen: loremgen.New()}
}

// toolCalls rotate through generated scripts. The arguments include markup
// characters so every encoding has to escape them.
var toolCalls = []struct {
	name      string
	arguments string
}{
	{name: "grep_corpus", arguments: `{"pattern":"lorem|ipsum","limit":5}`},
	{name: "render_chart", arguments: `{"kind":"bar","series":[3,1,4],"caption":"x < y & z"}`},
	{name: "fetch_page", arguments: `{"url":"https://example.com/lorem?page=2","timeout_ms":1500}`},
}

// Script generates a turn: [thinking] then Blocks x (text [tool_call tool_result]).
func (g *Generator) Script(opts Options) Script {
	blocks := opts.Blocks
	if blocks <= 0 {
		blocks = 3
	}

	var s Script
	if opts.Model != "" {
		s.Header = &framing.Metadata{
			UserQuery: g.gen.Sentence(3, 8),
			AgentUUID: "lorem-agent",
			Model:     opts.Model,
		}
		s.Trailer = map[string]any{"message_history": []any{}}
	}

	if opts.Thinking {
		s.Steps = append(s.Steps, Step{
			Kind: agentstream.BlockKindThinking,
			Text: g.gen.Paragraph(1, 2),
		})
	}

	for i := 0; i < blocks; i++ {
		text := Step{Kind: agentstream.BlockKindText, Text: g.gen.Sentence(5, 15)}
		if opts.Citations {
			text.Citations = []agentstream.Citation{{
				Type:          "char_location",
				CitedText:     g.gen.Sentence(3, 6),
				DocumentIndex: fmt.Sprint(i),
				DocumentTitle: g.gen.Word(4, 8),
			}}
		}
		s.Steps = append(s.Steps, text)

		if !opts.Tools {
			continue
		}
		call := toolCalls[i%len(toolCalls)]
		id := fmt.Sprintf("toolu_lorem_%03d", i+1)
		s.Steps = append(s.Steps,
			Step{Kind: agentstream.BlockKindToolCall, ID: id, Name: call.name, Arguments: call.arguments},
			Step{Kind: agentstream.BlockKindToolResult, ID: id, Text: g.gen.Sentence(3, 10)},
		)
	}
	return s
}
