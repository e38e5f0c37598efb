package agentstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestPrettyJSON(t *testing.T) {
	pretty, ok := PrettyJSON(`{"b":1,"a":[1,2]}`)
	assert.True(t, ok)
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": [\n    1,\n    2\n  ]\n}", pretty)

	pretty, ok = PrettyJSON(`{"expression":"5 * (3 + 2/4)"}`)
	assert.True(t, ok)
	assert.Equal(t, "{\n  \"expression\": \"5 * (3 + 2/4)\"\n}", pretty)

	raw, ok := PrettyJSON("{bad json")
	assert.False(t, ok)
	assert.Equal(t, "{bad json", raw)

	_, ok = PrettyJSON("   ")
	assert.False(t, ok)
}

func TestPayloadText(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"string passes through", `"17.5"`, "17.5"},
		{"number", `17.5`, "17.5"},
		{"object is pretty-printed", `{"a":1}`, "{\n  \"a\": 1\n}"},
		{"not json", "plain text", "plain text"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PayloadText(tt.raw))
		})
	}
}

func TestPayloadJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"empty is null", "", "null"},
		{"compacted", `{ "a" : [1, 2] }`, `{"a":[1,2]}`},
		{"double-encoded is unwrapped", `"[{\"name\":\"x\"}]"`, `[{"name":"x"}]`},
		{"plain string stays a string", `"just a string"`, `"just a string"`},
		{"invalid input is encoded", "not json", `"not json"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := PayloadJSON(tt.raw)
			assert.Equal(t, tt.expected, out)
			assert.True(t, gjson.Valid(out))
		})
	}
}

func TestLineBuffer(t *testing.T) {
	var b LineBuffer

	assert.Equal(t, []string{`{"a":1}`}, b.Write("{\"a\":1}\n{\"b\""))
	assert.Equal(t, `{"b"`, b.Pending())

	// A complete object needs no trailing newline.
	assert.Equal(t, []string{`{"b":2}`}, b.Write(`:2}`))
	assert.Empty(t, b.Pending())

	// Blank lines are skipped; scalars wait for their newline.
	assert.Empty(t, b.Write("\n\n12"))
	assert.Equal(t, []string{"12"}, b.Write("\n"))

	b.Write(`{"c":`)
	b.Reset()
	assert.Empty(t, b.Pending())
}

func TestCitationFromJSON(t *testing.T) {
	obj := gjson.Parse(`{"type":"char_location","cited_text":"x","document_index":0,"document_title":"Doc","start_char_index":5,"end_char_index":"9"}`)
	c := CitationFromJSON(obj, "type")

	assert.Equal(t, Citation{
		Type:           "char_location",
		CitedText:      "x",
		DocumentIndex:  "0",
		DocumentTitle:  "Doc",
		StartCharIndex: "5",
		EndCharIndex:   "9",
	}, c)

	env := gjson.Parse(`{"type":"citation","citation_type":"page_location","start_page_number":1}`)
	c = CitationFromJSON(env, "citation_type")
	assert.Equal(t, "page_location", c.Type)
	assert.Equal(t, "1", c.StartPageNumber)
}
