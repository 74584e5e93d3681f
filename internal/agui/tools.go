package agui

import "collabboard/internal/llm"

// Dashboard tool names the completion model may invoke.
const (
	ToolGenerateVisualization = "generateVisualization"
	ToolGenerateMetricCard    = "generateMetricCard"
	ToolGenerateDataTable     = "generateDataTable"
	ToolGenerateTextBlock     = "generateTextBlock"
)

// SystemPrompt steers the model toward building dashboards with the
// registered tools.
const SystemPrompt = "You are a dashboard building assistant. Use the provided tools to " +
	"create charts, metric cards, data tables and text blocks from the user's request. " +
	"Prefer calling a tool over describing what you would do."

// DashboardTools returns the tool definitions advertised on every run.
func DashboardTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		functionTool(ToolGenerateVisualization,
			"Create a chart visualization on the dashboard.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"type": map[string]interface{}{
						"type": "string",
						"enum": []string{"bar", "line", "pie", "area"},
					},
					"title": map[string]interface{}{"type": "string"},
					"data": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"label": map[string]interface{}{"type": "string"},
								"value": map[string]interface{}{"type": "number"},
							},
							"required": []string{"label", "value"},
						},
					},
				},
				"required": []string{"type", "title", "data"},
			}),
		functionTool(ToolGenerateMetricCard,
			"Create a single-number metric card.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]interface{}{"type": "string"},
					"value": map[string]interface{}{"type": "string"},
					"trend": map[string]interface{}{
						"type": "string",
						"enum": []string{"up", "down", "flat"},
					},
				},
				"required": []string{"title", "value"},
			}),
		functionTool(ToolGenerateDataTable,
			"Create a tabular data view.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":   map[string]interface{}{"type": "string"},
					"columns": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"rows": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "array"},
					},
				},
				"required": []string{"columns", "rows"},
			}),
		functionTool(ToolGenerateTextBlock,
			"Add a formatted text block.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"content": map[string]interface{}{"type": "string"},
				},
				"required": []string{"content"},
			}),
	}
}

func functionTool(name, description string, parameters map[string]interface{}) llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}
