package chart

import (
	"errors"
	"fmt"
	"strings"

	"sales-voice-go/internal/dataset"
	"sales-voice-go/internal/model"
)

// Strategies selectable from configuration.
const (
	StrategyModel   = "model"
	StrategyKeyword = "keyword"
)

// Notes attached to a Result when no chart, or a substitute chart, is produced.
const (
	NoteNoChartIdentified = "no chart identified"
	NoteNoRequest         = "model did not request a chart"
	NoteFallback          = "showing fallback chart"
)

// FallbackTitle is the title of the fixed monthly trend chart.
const FallbackTitle = "Fallback: Monthly Sales Trend"

// ErrFallbackUnavailable means the dataset lacks the columns the fallback chart needs.
var ErrFallbackUnavailable = errors.New("fallback chart unavailable")

// Result is the outcome of chart selection. Chart is nil when nothing could be drawn;
// Note then says why.
type Result struct {
	Chart *model.Chart
	Note  string
}

// Renderer selects and aggregates a chart for one question.
type Renderer interface {
	Render(t *dataset.Table, question, spec string) Result
	// UsesModelSpec reports whether the chart block in the model reply is consulted.
	UsesModelSpec() bool
}

// NewRenderer returns the renderer for strategy.
func NewRenderer(strategy string, topN int) (Renderer, error) {
	if topN <= 0 {
		topN = DefaultTop
	}
	switch strings.ToLower(strategy) {
	case "", StrategyModel:
		return &modelRenderer{topN: topN}, nil
	case StrategyKeyword:
		return &keywordRenderer{topN: topN}, nil
	default:
		return nil, fmt.Errorf("unknown chart strategy %q", strategy)
	}
}

// Fallback computes the monthly net sale value trend. It returns
// ErrFallbackUnavailable without touching the data when either the booking date or
// the net sale value column is missing.
func Fallback(t *dataset.Table) (*model.Chart, error) {
	for _, col := range []string{dataset.ColBookingDate, dataset.ColNetSaleValue} {
		if !t.Has(col) {
			return nil, fmt.Errorf("%w: %w", ErrFallbackUnavailable, &dataset.MissingColumnError{Column: col})
		}
	}
	c, err := Aggregate(t, Request{
		Kind:    KindLine,
		GroupBy: GroupByMonth,
		Metric:  dataset.ColNetSaleValue,
		Agg:     AggSum,
		Title:   FallbackTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFallbackUnavailable, err)
	}
	c.Source = model.ChartSourceFallback
	return c, nil
}

// modelRenderer draws what the model asked for and falls back on any failure.
type modelRenderer struct {
	topN int
}

func (r *modelRenderer) UsesModelSpec() bool { return true }

func (r *modelRenderer) Render(t *dataset.Table, _ string, spec string) Result {
	reason := NoteNoRequest
	if strings.TrimSpace(spec) != "" {
		req, err := ParseRequest(spec)
		if err == nil {
			var c *model.Chart
			c, err = Aggregate(t, req.Normalize(r.topN))
			if err == nil {
				return Result{Chart: c}
			}
		}
		reason = err.Error()
	}

	c, err := Fallback(t)
	if err != nil {
		return Result{Note: reason + "; " + err.Error()}
	}
	return Result{Chart: c, Note: reason + "; " + NoteFallback}
}

type keywordRule struct {
	keywords []string
	request  Request
}

// keywordRenderer ignores model output and picks one of the fixed aggregations.
type keywordRenderer struct {
	topN int
}

func (r *keywordRenderer) rules() []keywordRule {
	byColumn := func(col string) Request {
		return Request{Kind: KindBar, GroupBy: col, Metric: dataset.ColNetSaleValue, Agg: AggSum, Sort: SortDesc, Top: r.topN}
	}
	return []keywordRule{
		{keywords: []string{"nationality"}, request: byColumn(dataset.ColNationality)},
		{keywords: []string{"unit type"}, request: byColumn(dataset.ColUnitType)},
		{keywords: []string{"project"}, request: byColumn(dataset.ColProjectName)},
		{keywords: []string{"month", "trend"}, request: Request{Kind: KindLine, GroupBy: GroupByMonth, Metric: dataset.ColNetSaleValue, Agg: AggSum}},
	}
}

func (r *keywordRenderer) UsesModelSpec() bool { return false }

func (r *keywordRenderer) Render(t *dataset.Table, question, _ string) Result {
	q := strings.ToLower(question)
	for _, rule := range r.rules() {
		for _, kw := range rule.keywords {
			if !strings.Contains(q, kw) {
				continue
			}
			c, err := Aggregate(t, rule.request)
			if err != nil {
				return Result{Note: err.Error()}
			}
			c.Source = model.ChartSourceKeyword
			return Result{Chart: c}
		}
	}
	return Result{Note: NoteNoChartIdentified}
}
