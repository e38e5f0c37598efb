package rawevent

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"
)

// Raw event discriminators
const (
	eventMessageStart      = "message_start"
	eventContentBlockStart = "content_block_start"
	eventContentBlockDelta = "content_block_delta"
	eventContentBlockStop  = "content_block_stop"
	eventMessageDelta      = "message_delta"
	eventMessageStop       = "message_stop"
	eventPing              = "ping"
	eventError             = "error"
)

// Delta discriminators
const (
	deltaText      = "text_delta"
	deltaThinking  = "thinking_delta"
	deltaInputJSON = "input_json_delta"
	deltaCitations = "citations_delta"
	deltaSignature = "signature_delta"
)

// event is a decoded raw event, flattened across the event variants.
type event struct {
	Type  string
	Index int

	// content_block_start
	BlockType string
	Text      string
	Thinking  string
	ID        string
	Name      string

	// content_block_delta
	DeltaType   string
	DeltaText   string
	PartialJSON string

	// raw keeps the full event for fields the SDK does not model
	// (tool result content, stop-event citations, error bodies)
	raw gjson.Result
}

// decodeEvent decodes one JSON event. Transport "data:" prefixes are
// tolerated. The boolean is false for anything that is not a JSON object.
func decodeEvent(data []byte) (event, bool) {
	data = trimTransportPrefix(data)
	if len(data) == 0 || data[0] != '{' || !gjson.ValidBytes(data) {
		return event{}, false
	}

	raw := gjson.ParseBytes(data)
	ev := event{
		Type:  raw.Get("type").String(),
		Index: int(raw.Get("index").Int()),
		raw:   raw,
	}

	var union anthropic.MessageStreamEventUnion
	if err := json.Unmarshal(data, &union); err != nil {
		ev.fromJSON()
		return ev, true
	}
	ev.fromSDK(union)
	return ev, true
}

// fromSDK fills the flattened fields from the SDK event union.
func (ev *event) fromSDK(union anthropic.MessageStreamEventUnion) {
	switch e := union.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		ev.Index = int(e.Index)
		ev.BlockType = string(e.ContentBlock.Type)
		ev.Text = e.ContentBlock.Text
		ev.Thinking = e.ContentBlock.Thinking
		ev.ID = e.ContentBlock.ID
		ev.Name = e.ContentBlock.Name

	case anthropic.ContentBlockDeltaEvent:
		ev.Index = int(e.Index)
		ev.DeltaType = string(e.Delta.Type)
		switch ev.DeltaType {
		case deltaText:
			ev.DeltaText = e.Delta.Text
		case deltaThinking:
			ev.DeltaText = e.Delta.Thinking
		case deltaInputJSON:
			ev.PartialJSON = e.Delta.PartialJSON
		}

	case anthropic.ContentBlockStopEvent:
		ev.Index = int(e.Index)

	default:
		// message_start, message_delta, message_stop carry nothing the parser
		// reads; anything else is decoded from the raw JSON.
		ev.fromJSON()
	}

	// Block types the SDK does not know decode with empty fields.
	if ev.Type == eventContentBlockStart && ev.BlockType == "" {
		ev.fromJSON()
	}
	if ev.Type == eventContentBlockDelta && ev.DeltaType == "" {
		ev.fromJSON()
	}
}

// fromJSON fills the flattened fields from the raw JSON alone.
func (ev *event) fromJSON() {
	switch ev.Type {
	case eventContentBlockStart:
		block := ev.raw.Get("content_block")
		ev.BlockType = block.Get("type").String()
		ev.Text = block.Get("text").String()
		ev.Thinking = block.Get("thinking").String()
		ev.ID = block.Get("id").String()
		ev.Name = block.Get("name").String()

	case eventContentBlockDelta:
		delta := ev.raw.Get("delta")
		ev.DeltaType = delta.Get("type").String()
		switch ev.DeltaType {
		case deltaText:
			ev.DeltaText = delta.Get("text").String()
		case deltaThinking:
			ev.DeltaText = delta.Get("thinking").String()
		case deltaInputJSON:
			ev.PartialJSON = delta.Get("partial_json").String()
		}
	}
}

// block returns the content_block object of the raw event.
func (ev *event) block() gjson.Result {
	return ev.raw.Get("content_block")
}

func trimTransportPrefix(data []byte) []byte {
	s := strings.TrimSpace(string(data))
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		s = strings.TrimSpace(rest)
	}
	return []byte(s)
}
