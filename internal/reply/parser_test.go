package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSinglePythonBlock(t *testing.T) {
	raw := "  Sales peaked in March.\n\n```python\nimport matplotlib\nplt.plot(df)\n```\n"
	r := Parse(raw)

	assert.Equal(t, "Sales peaked in March.", r.Answer)
	assert.Equal(t, "import matplotlib\nplt.plot(df)", r.ChartSpec)
	assert.Equal(t, "python", r.Tag)
	assert.Empty(t, r.Warnings)
	assert.True(t, r.HasChart())
}

func TestParseChartBlock(t *testing.T) {
	raw := "India leads.\n```chart\n{\"kind\":\"bar\",\"group_by\":\"P1 Nationality\"}\n```"
	r := Parse(raw)

	assert.Equal(t, "India leads.", r.Answer)
	assert.Equal(t, `{"kind":"bar","group_by":"P1 Nationality"}`, r.ChartSpec)
	assert.Equal(t, "chart", r.Tag)
}

func TestParseNoMarker(t *testing.T) {
	r := Parse("  Just prose, no chart.  ")

	assert.Equal(t, "Just prose, no chart.", r.Answer)
	assert.Empty(t, r.ChartSpec)
	assert.False(t, r.HasChart())
	assert.Equal(t, []string{WarnNoChartBlock}, r.Warnings)
}

func TestParseUntaggedFenceIsNotAChart(t *testing.T) {
	r := Parse("Here:\n```\nplain\n```")
	assert.Equal(t, "Here:\n```\nplain\n```", r.Answer)
	assert.Empty(t, r.ChartSpec)
}

func TestParseMultipleBlocksSplitsOnFirst(t *testing.T) {
	raw := "Answer text.\n```chart\n{\"a\":1}\n```\nmore\n```python\nsecond()\n```"
	r := Parse(raw)

	assert.Equal(t, "Answer text.", r.Answer)
	assert.Equal(t, `{"a":1}`, r.ChartSpec)
	assert.Contains(t, r.Warnings, WarnExtraBlocks)
}

func TestParseUnterminatedBlock(t *testing.T) {
	r := Parse("Answer.\n```python\nplt.show()")

	assert.Equal(t, "Answer.", r.Answer)
	assert.Equal(t, "plt.show()", r.ChartSpec)
	assert.Contains(t, r.Warnings, WarnUnterminated)
}

func TestParseLeadingBlockUsesTrailingProse(t *testing.T) {
	r := Parse("```chart\n{}\n```\nRevenue grew 12%.")

	assert.Equal(t, "Revenue grew 12%.", r.Answer)
	assert.Equal(t, "{}", r.ChartSpec)
}

func TestParseEmptyBlock(t *testing.T) {
	r := Parse("Text\n```python\n```")

	assert.Equal(t, "Text", r.Answer)
	assert.False(t, r.HasChart())
	assert.Contains(t, r.Warnings, WarnEmptyChartBlock)
}

func TestParseTagBoundary(t *testing.T) {
	// "```pythonic" is not a python block
	r := Parse("x ```pythonic y")
	assert.Empty(t, r.Tag)
	assert.Equal(t, "x ```pythonic y", r.Answer)
}
