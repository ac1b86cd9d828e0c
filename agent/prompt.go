package agent

import (
	"fmt"
	"strings"
)

// agentSystemPrompt instructs the model to answer as a JSON directive,
// either dispatching a tool or responding directly, and to cite sources
// with [Source N] markers. {tool_definitions} is replaced per call; the
// replies it teaches are what parseDirective understands.
var agentSystemPrompt = `You are a helpful AI assistant with access to a knowledge base of documents and web search capabilities.

Your capabilities:
1. Search through uploaded documents to find relevant information
2. Search the web for current information
3. Read full document contents when needed

When answering questions:
- Draw on relevant information from available sources
- **Always cite your sources** using the format [Source N] where N matches the source number from search results
- Be accurate and acknowledge when you don't have enough information
- Be conversational but informative

## Citation Rules
When you use information from the document search (rag_search), you MUST cite it:
- Use [Source 1], [Source 2], etc. matching the source numbers in the search results
- Place citations immediately after the relevant claim or quote
- Example: "The project deadline is December 15th [Source 1]."
- If multiple sources support a claim, cite all of them: "Revenue increased by 20% [Source 1, Source 3]."

You have access to the following tools:
{tool_definitions}

To use a tool, respond with a JSON object in this format:
` + "```json" + `
{
    "thought": "Your reasoning about what to do",
    "action": "tool_name",
    "action_input": {
        "param1": "value1",
        "param2": "value2"
    }
}
` + "```" + `

If you don't need to use a tool and can answer directly, respond with:
` + "```json" + `
{
    "thought": "I can answer this directly",
    "action": "respond",
    "response": "Your response here"
}
` + "```" + `

Always think step by step about whether you need to use tools.`

const toolResultPrompt = `Tool '%s' returned:

%s

Based on this information, please continue. You can:
1. Use another tool if you need more information
2. Respond to the user with your answer

IMPORTANT: If you used rag_search, cite your sources using [Source N] notation in your response.
For example: "According to the documentation, the API rate limit is 100 requests per minute [Source 1]."

Remember to cite your sources clearly in your response.`

// BuildSystemPrompt renders the agent system prompt with the given tool
// definitions enumerated
func BuildSystemPrompt(definitions []Definition) string {
	rendered := make([]string, 0, len(definitions))
	for _, d := range definitions {
		rendered = append(rendered, d.Prompt())
	}
	return strings.ReplaceAll(agentSystemPrompt, "{tool_definitions}", strings.Join(rendered, "\n"))
}

// toolResultMessage is the synthetic user message carrying a tool's
// output back into the conversation
func toolResultMessage(tool string, result string) string {
	return fmt.Sprintf(toolResultPrompt, tool, result)
}

// toolFailureMessage is the synthetic user message after a dispatch
// error, asking the model to recover
func toolFailureMessage(tool string, err error) string {
	return fmt.Sprintf("Tool '%s' failed: %s. Please try a different approach or respond without the tool.",
		tool, err.Error())
}
