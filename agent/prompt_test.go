package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt([]Definition{
		searchDefinition("rag_search"),
		{Name: "ping", Description: "Liveness probe."},
	})

	assert.NotContains(t, prompt, "{tool_definitions}")
	assert.Contains(t, prompt, "- rag_search: Search things.\n  Parameters: query: string (required), top_k: number")
	assert.Contains(t, prompt, "- ping: Liveness probe.\n  Parameters: none")
	assert.Contains(t, prompt, "[Source N]")
}

func TestBuildSystemPromptWithoutTools(t *testing.T) {
	prompt := BuildSystemPrompt(nil)
	assert.NotContains(t, prompt, "{tool_definitions}")
}

func TestToolResultMessage(t *testing.T) {
	message := toolResultMessage("rag_search", "[Source 1: plan.pdf]\nThe limit is 100.")
	assert.Contains(t, message, "Tool 'rag_search' returned:")
	assert.Contains(t, message, "[Source 1: plan.pdf]\nThe limit is 100.")
	assert.Contains(t, message, "cite your sources using [Source N] notation")
}

func TestToolFailureMessage(t *testing.T) {
	message := toolFailureMessage("web_search", errors.New("connection refused"))
	assert.Equal(t, "Tool 'web_search' failed: connection refused. Please try a different approach or respond without the tool.", message)
}
