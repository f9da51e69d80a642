// Package prompt 负责把用户问题与数据集概要拼装成发送给大模型的指令。
package prompt

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"text/template"
	"time"

	"sales-voice-go/internal/dataset"
)

// 数据概要的两种生成方式
const (
	SchemaModeDtypes = "dtypes"
	SchemaModeSample = "sample"
)

// DefaultTemplate 要求模型先给出业务语言的回答，再可选地给出一个 chart 代码块。
// 代码块内是受限词汇表中的 JSON 图表请求，而不是可执行代码。
const DefaultTemplate = `You're a data assistant for a real-estate sales team. Based on the dataset summary and a question:
1. Answer in business terms, in plain prose.
2. If a chart would help, add exactly one fenced block tagged "chart" containing a JSON chart request.

Chart request fields:
- "kind": one of "bar", "line", "pie"
- "group_by": one of the columns below, or "month" to group by booking month
- "metric": a numeric column to aggregate (may be empty when agg is "count")
- "agg": one of "sum", "count", "mean"
- "top": maximum number of groups to show (optional)
- "sort": "desc" or "asc" (optional)

Available columns: {{.Columns}}

Dataset summary:
{{.Schema}}

Question: {{.Question}}

Format:
<answer>

` + "```chart" + `
{"kind": "bar", "group_by": "...", "metric": "...", "agg": "sum", "top": 10, "sort": "desc"}
` + "```" + `
`

// Summary 是传给模型用于对齐数据结构的文本概要。
type Summary struct {
	Schema  string
	Columns []string
}

// Builder 根据模板生成提示词。
type Builder struct {
	tmpl       *template.Template
	mode       string
	sampleRows int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewBuilder 创建 Builder。text 为空时使用 DefaultTemplate。
func NewBuilder(text, mode string, sampleRows int) (*Builder, error) {
	if text == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	switch mode {
	case "", SchemaModeDtypes:
		mode = SchemaModeDtypes
	case SchemaModeSample:
	default:
		return nil, fmt.Errorf("unknown schema mode %q", mode)
	}
	if sampleRows <= 0 {
		sampleRows = 5
	}
	return &Builder{
		tmpl:       tmpl,
		mode:       mode,
		sampleRows: sampleRows,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Summarize 按配置的模式生成数据概要。
func (b *Builder) Summarize(t *dataset.Table) Summary {
	s := Summary{Columns: t.Names()}
	if b.mode == SchemaModeSample {
		b.mu.Lock()
		s.Schema = t.Sample(b.sampleRows, b.rnd)
		b.mu.Unlock()
	} else {
		s.Schema = t.SchemaSummary()
	}
	return s
}

// Build 将问题与概要渲染为单条指令。
func (b *Builder) Build(question string, s Summary) (string, error) {
	quoted := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	data := struct {
		Schema   string
		Question string
		Columns  string
	}{
		Schema:   strings.TrimRight(s.Schema, "\n"),
		Question: strings.TrimSpace(question),
		Columns:  strings.Join(quoted, ", "),
	}
	var out strings.Builder
	if err := b.tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return out.String(), nil
}
