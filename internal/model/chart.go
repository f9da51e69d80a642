package model

// 图表来源
const (
	ChartSourceModel    = "model"
	ChartSourceKeyword  = "keyword"
	ChartSourceFallback = "fallback"
)

// Chart 是一次聚合后的图表数据，与具体的前端渲染方式无关。
type Chart struct {
	Kind   string    `json:"kind"` // bar、line 或 pie
	Title  string    `json:"title"`
	XLabel string    `json:"xLabel"`
	YLabel string    `json:"yLabel"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Source string    `json:"source"`
}
