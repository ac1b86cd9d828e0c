package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDirectiveFencedBlock(t *testing.T) {
	reply := "Let me search for that.\n\n```json\n" +
		`{"thought": "Need the rate limit", "action": "rag_search", "action_input": {"query": "rate limit", "top_k": 3}}` +
		"\n```\nDone."

	directive := parseDirective(reply)
	assert.Equal(t, "Need the rate limit", directive.Thought)
	assert.Equal(t, "rag_search", directive.Action)
	assert.Equal(t, "rate limit", directive.ActionInput["query"])
	assert.Equal(t, float64(3), directive.ActionInput["top_k"])
	assert.False(t, directive.Respond())
}

func TestParseDirectiveWholeReply(t *testing.T) {
	reply := `{"thought": "I know this", "action": "respond", "response": "The answer is 42."}`

	directive := parseDirective(reply)
	assert.Equal(t, "respond", directive.Action)
	assert.Equal(t, "The answer is 42.", directive.Response)
	assert.True(t, directive.Respond())
}

func TestParseDirectiveRepairsBrokenJSON(t *testing.T) {
	// Trailing comma, the most common model artifact
	reply := "```json\n" +
		`{"thought": "searching", "action": "web_search", "action_input": {"query": "go releases"},}` +
		"\n```"

	directive := parseDirective(reply)
	assert.Equal(t, "web_search", directive.Action)
	assert.Equal(t, "go releases", directive.ActionInput["query"])
}

func TestParseDirectivePlainTextFallback(t *testing.T) {
	reply := "The capital of France is Paris."

	directive := parseDirective(reply)
	assert.Equal(t, "Responding directly", directive.Thought)
	assert.Equal(t, "respond", directive.Action)
	assert.Equal(t, reply, directive.Response)
	assert.True(t, directive.Respond())
}

func TestParseDirectiveIgnoresNonDirectiveJSON(t *testing.T) {
	// Valid JSON without any directive field is treated as prose
	reply := `{"foo": "bar"}`

	directive := parseDirective(reply)
	assert.Equal(t, "respond", directive.Action)
	assert.Equal(t, reply, directive.Response)
}

func TestParseDirectiveFencedNonObject(t *testing.T) {
	reply := "```json\n[1, 2, 3]\n```"

	directive := parseDirective(reply)
	assert.Equal(t, "respond", directive.Action)
	assert.Equal(t, reply, directive.Response)
}

func TestParseDirectiveResponseWithoutAction(t *testing.T) {
	reply := `{"thought": "done", "response": "Here you go."}`

	directive := parseDirective(reply)
	assert.Equal(t, "", directive.Action)
	assert.True(t, directive.Respond())
}
