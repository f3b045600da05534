package llm

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "web_search",
		Description: "Search the web",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search terms",
				},
				"limit": map[string]any{
					"type": "integer",
				},
			},
			Required: []string{"query"},
		},
	}
}

func TestConvertToolsToOpenAI(t *testing.T) {
	assert.Nil(t, convertToolsToOpenAI(nil))

	tools := convertToolsToOpenAI([]mcptypes.Tool{sampleTool()})
	require.Len(t, tools, 1)
}

func TestConvertToolsToAnthropic(t *testing.T) {
	assert.Nil(t, convertToolsToAnthropic(nil))

	tools := convertToolsToAnthropic([]mcptypes.Tool{sampleTool()})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "web_search", tools[0].OfTool.Name)
	assert.Equal(t, []string{"query"}, tools[0].OfTool.InputSchema.Required)
}

func TestConvertToolsToOllama(t *testing.T) {
	assert.Nil(t, convertToolsToOllama(nil))

	tools := convertToolsToOllama([]mcptypes.Tool{sampleTool()})
	require.Len(t, tools, 1)
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "web_search", tools[0].Function.Name)
	assert.Equal(t, []string{"query"}, tools[0].Function.Parameters.Required)

	query, ok := tools[0].Function.Parameters.Properties["query"]
	require.True(t, ok)
	assert.Equal(t, "Search terms", query.Description)
	assert.Contains(t, []string(query.Type), "string")
}

func TestParseToolArguments(t *testing.T) {
	args := parseToolArguments(`{"query": "gophers", "limit": 3}`)
	assert.Equal(t, "gophers", args["query"])
	assert.Equal(t, float64(3), args["limit"])

	// Malformed input degrades to an empty argument map.
	assert.Empty(t, parseToolArguments("not json"))
	assert.Empty(t, parseToolArguments(""))
}
