package agui

import (
	"fmt"
	"sync"
)

// DescribeFunc renders a human-readable sentence for a completed tool
// invocation.
type DescribeFunc func(args map[string]interface{}) string

// Describer maps tool names to description renderers, with a generic
// fallback for unknown tools.
type Describer struct {
	mu    sync.RWMutex
	table map[string]DescribeFunc
}

// NewDescriber returns a describer preloaded with the dashboard tools.
func NewDescriber() *Describer {
	return &Describer{
		table: map[string]DescribeFunc{
			ToolGenerateVisualization: describeVisualization,
			ToolGenerateMetricCard:    describeMetricCard,
			ToolGenerateDataTable:     describeDataTable,
			ToolGenerateTextBlock:     describeTextBlock,
		},
	}
}

// Register installs or replaces the renderer for a tool name.
func (d *Describer) Register(toolName string, fn DescribeFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.table[toolName] = fn
}

// Describe renders the sentence for one invocation.
func (d *Describer) Describe(toolName string, args map[string]interface{}) string {
	d.mu.RLock()
	fn, ok := d.table[toolName]
	d.mu.RUnlock()

	if !ok {
		return fmt.Sprintf("Generated a %s component.", toolName)
	}
	return fn(args)
}

func describeVisualization(args map[string]interface{}) string {
	chartType, _ := args["type"].(string)
	if chartType == "" {
		chartType = "new"
	}
	if title, _ := args["title"].(string); title != "" {
		return fmt.Sprintf("Created a %s chart titled %q.", chartType, title)
	}
	return fmt.Sprintf("Created a %s chart.", chartType)
}

func describeMetricCard(args map[string]interface{}) string {
	if title, _ := args["title"].(string); title != "" {
		return fmt.Sprintf("Added a metric card showing %q.", title)
	}
	return "Added a metric card."
}

func describeDataTable(args map[string]interface{}) string {
	if title, _ := args["title"].(string); title != "" {
		return fmt.Sprintf("Added a data table titled %q.", title)
	}
	return "Added a data table."
}

func describeTextBlock(args map[string]interface{}) string {
	return "Added a text block to the dashboard."
}
