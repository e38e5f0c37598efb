package lorem

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/aurosoni/agentstream"
	"github.com/aurosoni/agentstream/framing"
)

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"abc"}, Split("abc", 0))
	assert.Equal(t, []string{"abc"}, Split("abc", 10))
	assert.Equal(t, []string{"ab", "cd", "e"}, Split("abcde", 2))
}

func TestSplit_KeepsRunesWhole(t *testing.T) {
	text := "héllo wörld ✓ done"
	for _, size := range []int{1, 2, 3, 5} {
		parts := Split(text, size)
		assert.Equal(t, text, strings.Join(parts, ""), "size %d", size)
		for _, p := range parts {
			assert.True(t, utf8.ValidString(p), "size %d split a rune: %q", size, p)
		}
	}
}

func TestEncode_RawIsEventPerLine(t *testing.T) {
	out := Calculator().Encode(agentstream.FormatRaw)
	lines := strings.Split(strings.TrimSpace(out), "\n")

	require.NotEmpty(t, lines)
	assert.Equal(t, "message_start", gjson.Get(lines[0], "type").String())
	assert.Equal(t, "message_stop", gjson.Get(lines[len(lines)-1], "type").String())
	for _, l := range lines {
		assert.True(t, gjson.Valid(l), l)
	}
}

func TestEncode_EnvelopeFramesEveryRecord(t *testing.T) {
	out := ThinkingAndText().Encode(agentstream.FormatJSON)

	var finals []string
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		env := gjson.Parse(l)
		assert.Equal(t, "lorem", env.Get("agent").String())
		if env.Get("final").Bool() {
			finals = append(finals, env.Get("type").String())
		}
	}
	assert.Equal(t, []string{"thinking", "text"}, finals)
}

func TestEncode_Framing(t *testing.T) {
	s := Calculator()
	s.Header = &framing.Metadata{Model: "m"}
	s.Trailer = map[string]any{"message_history": []any{}}

	out := s.Encode(agentstream.FormatXML)
	meta, err := framing.ParseHeader(out)
	require.NoError(t, err)
	assert.Equal(t, agentstream.FormatXML, meta.Format)
	assert.Equal(t, "m", meta.Model)

	tr, err := framing.ParseTrailer(out)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(tr.MessageHistory))

	assert.Empty(t, s.Header.Format, "Encode must not modify the script header")
}

func TestEncode_TaggedUsesVerbatimForMarkup(t *testing.T) {
	s := Script{Steps: []Step{{Kind: agentstream.BlockKindText, Text: "a < b"}}}
	assert.Equal(t, "<content-block-text><![CDATA[a < b]]></content-block-text>\n", s.Encode(agentstream.FormatXML))
}

func TestGenerator_Script(t *testing.T) {
	g := NewGenerator()
	s := g.Script(Options{Blocks: 3, Thinking: true, Tools: true, Citations: true, Model: "lorem-1"})

	require.NotNil(t, s.Header)
	assert.Equal(t, "lorem-1", s.Header.Model)
	assert.NotNil(t, s.Trailer)

	require.Len(t, s.Steps, 1+3*3)
	assert.Equal(t, agentstream.BlockKindThinking, s.Steps[0].Kind)

	for i := 0; i < 3; i++ {
		text, call, result := s.Steps[1+i*3], s.Steps[2+i*3], s.Steps[3+i*3]
		assert.Equal(t, agentstream.BlockKindText, text.Kind)
		assert.NotEmpty(t, text.Text)
		require.Len(t, text.Citations, 1)

		assert.Equal(t, agentstream.BlockKindToolCall, call.Kind)
		assert.True(t, gjson.Valid(call.Arguments))
		assert.Equal(t, agentstream.BlockKindToolResult, result.Kind)
		assert.Equal(t, call.ID, result.ID)
	}
	assert.Equal(t, "grep_corpus", s.Steps[2].Name)
	assert.Equal(t, "render_chart", s.Steps[5].Name)
	assert.Equal(t, "toolu_lorem_001", s.Steps[2].ID)
}

func TestGenerator_Defaults(t *testing.T) {
	s := NewGenerator().Script(Options{})
	assert.Nil(t, s.Header)
	assert.Nil(t, s.Trailer)
	require.Len(t, s.Steps, 3)
	for _, st := range s.Steps {
		assert.Equal(t, agentstream.BlockKindText, st.Kind)
		assert.Empty(t, st.Citations)
	}
}

func TestDelay(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, Delay("lorem-slow"))
	assert.Equal(t, 33*time.Millisecond, Delay("lorem-fast"))
	assert.Equal(t, 100*time.Millisecond, Delay("lorem-medium"))
	assert.Equal(t, 100*time.Millisecond, Delay(""))
	assert.Zero(t, Delay("instant"))
}

func TestStream(t *testing.T) {
	script := ThinkingAndText()
	var got []string
	for c := range script.Stream(context.Background(), agentstream.FormatXML, 10, 0) {
		got = append(got, c)
	}
	assert.Equal(t, script.Chunks(agentstream.FormatXML, 10), got)
}

func TestStream_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := ThinkingAndText().Stream(ctx, agentstream.FormatXML, 1, time.Hour)

	<-ch
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}
