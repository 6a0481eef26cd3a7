package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	md, err := Encode([]Message{
		{Role: RoleUser, Parts: []Part{{Type: PartText, Text: "2+2=?"}}},
		{Role: RoleAssistant, Parts: []Part{
			{Type: PartReasoning, Text: "simple sum"},
			{Type: PartText, Text: "4"},
		}},
	})
	require.NoError(t, err)
	want := "--- message ---\nrole: user\n---\n2+2=?\n\n" +
		"--- message ---\nrole: assistant\n---\n<think>\nsimple sum\n</think>\n4"
	assert.Equal(t, want, md)
}

func TestDecodeRoundTrip(t *testing.T) {
	in := []Message{
		{Role: RoleUser, Parts: []Part{{Type: PartText, Text: "How do I list files?"}}},
		{Role: RoleAssistant, Parts: []Part{
			{Type: PartReasoning, Text: "shell question"},
			{Type: PartText, Text: "Use:\n\n```sh\nls -la\n```"},
			{Type: "tool-run", Fields: map[string]any{"type": "tool-run", "toolCallId": "c1", "state": "done"}},
		}},
	}
	md, err := Encode(in)
	require.NoError(t, err)

	out := Decode(md)
	require.Len(t, out, 2)
	for i := range out {
		assert.NotEmpty(t, out[i].ID)
		assert.Equal(t, in[i].Role, out[i].Role)
		assert.Equal(t, in[i].Parts, out[i].Parts)
	}
	assert.NotEqual(t, out[0].ID, out[1].ID)
}

func TestDecodeDefaultsAndBlankBlocks(t *testing.T) {
	out := Decode("\n--- message ---\n\n--- message ---\njust text\n")
	require.Len(t, out, 1)
	assert.Equal(t, RoleUser, out[0].Role)
	assert.Equal(t, "just text", out[0].Text())

	assert.Empty(t, Decode(""))
}

func TestDecodeMissingThinkStart(t *testing.T) {
	out := Decode("--- message ---\nrole: assistant\n---\npondering\nstill pondering</think>\nanswer")
	require.Len(t, out, 1)
	assert.Equal(t, []Part{
		{Type: PartReasoning, Text: "pondering\nstill pondering"},
		{Type: PartText, Text: "answer"},
	}, out[0].Parts)
}

func TestDecodeBrokenToolJSON(t *testing.T) {
	out := Decode("--- message ---\nrole: assistant\n---\n***tool***\n```json\n{not json\n```")
	require.Len(t, out, 1)
	assert.Equal(t, []Part{{Type: PartText, Text: "{not json"}}, out[0].Parts)
}

func TestPartJSON(t *testing.T) {
	var parts []Part
	require.NoError(t, json.Unmarshal([]byte(`[
		{"type":"text","text":"hi"},
		{"type":"dynamic-tool","toolName":"search","input":{"q":"go"}}
	]`), &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, Part{Type: PartText, Text: "hi"}, parts[0])
	assert.True(t, parts[1].IsTool())
	assert.Equal(t, "search", parts[1].Fields["toolName"])

	data, err := json.Marshal(parts[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","text":"hi"}`, string(data))
}
