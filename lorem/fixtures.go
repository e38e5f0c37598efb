package lorem

import "github.com/aurosoni/agentstream"

// ThinkingAndText is a turn with one thinking block followed by one text block.
func ThinkingAndText() Script {
	return Script{Steps: []Step{
		{Kind: agentstream.BlockKindThinking, Text: "Let me think about this."},
		{Kind: agentstream.BlockKindText, Text: "Hello! How can I help?"},
	}}
}

// Calculator is a turn with one client tool call and its result.
func Calculator() Script {
	return Script{Steps: []Step{
		{
			Kind:      agentstream.BlockKindToolCall,
			ID:        "tool_001",
			Name:      "calculator",
			Arguments: `{"expression":"5 * (3 + 2/4)"}`,
		},
		{Kind: agentstream.BlockKindToolResult, ID: "tool_001", Text: "17.5"},
	}}
}

// MalformedToolCall is a completed tool call whose arguments are not JSON.
func MalformedToolCall() Script {
	return Script{Steps: []Step{
		{Kind: agentstream.BlockKindToolCall, ID: "tool_002", Name: "broken", Arguments: "{bad json"},
	}}
}

// AwaitingFrontendTools is a turn that pauses for one frontend tool.
func AwaitingFrontendTools() Script {
	return Script{Steps: []Step{
		{Kind: agentstream.BlockKindText, Text: "Opening the picker."},
		{
			Kind:    agentstream.BlockKindAwaitingFrontendTools,
			Payload: `[{"tool_use_id":"toolu_front_1","name":"pick_color","input":{"palette":"warm"}}]`,
		},
	}}
}

// WebSearch is a turn with a server tool call and its dynamically named result.
func WebSearch() Script {
	return Script{Steps: []Step{
		{Kind: agentstream.BlockKindServerToolCall, ID: "srvtoolu_1", Name: "web_search", Arguments: `{"query":"lorem ipsum origin"}`},
		{
			Kind:     agentstream.BlockKindServerToolResult,
			ID:       "srvtoolu_1",
			ToolType: "web_search",
			Payload:  `[{"type":"web_search_result","title":"Lorem ipsum","url":"https://example.com/lorem"}]`,
		},
		{
			Kind: agentstream.BlockKindText,
			Text: "It dates back to Cicero.",
			Citations: []agentstream.Citation{{
				Type:      "web_search_result_location",
				CitedText: "Cicero, 45 BC",
				URL:       "https://example.com/lorem",
				Title:     "Lorem ipsum",
			}},
		},
	}}
}
