package agui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriber_VisualizationMentionsChartType(t *testing.T) {
	d := NewDescriber()

	got := d.Describe(ToolGenerateVisualization, map[string]interface{}{
		"type":  "bar",
		"title": "Sales",
	})
	assert.Contains(t, got, "bar chart")
	assert.Contains(t, got, "Sales")
}

func TestDescriber_KnownTools(t *testing.T) {
	d := NewDescriber()

	assert.Contains(t, d.Describe(ToolGenerateMetricCard, map[string]interface{}{"title": "Revenue"}), "Revenue")
	assert.Contains(t, d.Describe(ToolGenerateDataTable, nil), "data table")
	assert.Contains(t, d.Describe(ToolGenerateTextBlock, nil), "text block")
}

func TestDescriber_UnknownToolFallsBack(t *testing.T) {
	d := NewDescriber()
	assert.Equal(t, "Generated a generateGauge component.", d.Describe("generateGauge", nil))
}

func TestDescriber_RuntimeRegistrationOverrides(t *testing.T) {
	d := NewDescriber()
	d.Register("generateGauge", func(args map[string]interface{}) string {
		return "Added a gauge."
	})
	assert.Equal(t, "Added a gauge.", d.Describe("generateGauge", nil))
}
