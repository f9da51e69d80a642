// Package chart turns a closed-vocabulary chart request into aggregated chart data.
// Requests come from untrusted model output, so every field is validated against
// the loaded dataset before any aggregation runs. Nothing is ever executed.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sales-voice-go/internal/dataset"
)

// Chart kinds.
const (
	KindBar  = "bar"
	KindLine = "line"
	KindPie  = "pie"
)

// Aggregations.
const (
	AggSum   = "sum"
	AggCount = "count"
	AggMean  = "mean"
)

// Sort orders.
const (
	SortDesc = "desc"
	SortAsc  = "asc"
)

// GroupByMonth is the virtual column that buckets rows by booking month.
const GroupByMonth = "month"

// DefaultTop is the number of groups kept when a request does not say.
const DefaultTop = 10

var (
	// ErrInvalidRequest wraps every validation failure.
	ErrInvalidRequest = errors.New("invalid chart request")
	// ErrNoData is returned when no row survives the missing-value filter.
	ErrNoData = errors.New("no rows to aggregate")
)

// Request is a parameterized chart request.
type Request struct {
	Kind    string `json:"kind"`
	GroupBy string `json:"group_by"`
	Metric  string `json:"metric"`
	Agg     string `json:"agg"`
	Top     int    `json:"top"`
	Sort    string `json:"sort"`
	Title   string `json:"title,omitempty"`
}

// ParseRequest decodes a JSON chart request from a fenced block.
func ParseRequest(spec string) (Request, error) {
	var req Request
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return req, fmt.Errorf("%w: empty", ErrInvalidRequest)
	}
	if err := json.Unmarshal([]byte(spec), &req); err != nil {
		return req, fmt.Errorf("%w: not a JSON chart request: %v", ErrInvalidRequest, err)
	}
	return req, nil
}

func (r Request) byMonth() bool {
	return strings.EqualFold(r.GroupBy, GroupByMonth)
}

// Normalize fills defaults and lowercases the vocabulary fields.
func (r Request) Normalize(defaultTop int) Request {
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	r.Agg = strings.ToLower(strings.TrimSpace(r.Agg))
	r.Sort = strings.ToLower(strings.TrimSpace(r.Sort))
	r.GroupBy = strings.TrimSpace(r.GroupBy)
	r.Metric = strings.TrimSpace(r.Metric)
	if r.byMonth() {
		r.GroupBy = GroupByMonth
	}
	if r.Agg == "" {
		r.Agg = AggSum
	}
	if r.Kind == "" {
		r.Kind = KindBar
		if r.byMonth() {
			r.Kind = KindLine
		}
	}
	if r.Sort == "" {
		r.Sort = SortDesc
	}
	if r.Top == 0 && !r.byMonth() {
		r.Top = defaultTop
	}
	return r
}

// Validate checks r against the vocabulary and the table's columns.
func (r Request) Validate(t *dataset.Table) error {
	switch r.Kind {
	case KindBar, KindLine, KindPie:
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidRequest, r.Kind)
	}
	switch r.Agg {
	case AggSum, AggCount, AggMean:
	default:
		return fmt.Errorf("%w: unsupported agg %q", ErrInvalidRequest, r.Agg)
	}
	switch r.Sort {
	case SortDesc, SortAsc:
	default:
		return fmt.Errorf("%w: unsupported sort %q", ErrInvalidRequest, r.Sort)
	}
	if r.Top < 0 {
		return fmt.Errorf("%w: top must not be negative", ErrInvalidRequest)
	}

	if r.GroupBy == "" {
		return fmt.Errorf("%w: group_by is required", ErrInvalidRequest)
	}
	if r.byMonth() {
		kind, ok := t.KindOf(dataset.ColBookingDate)
		if !ok {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, &dataset.MissingColumnError{Column: dataset.ColBookingDate})
		}
		if kind != dataset.KindDate {
			return fmt.Errorf("%w: %q is not a date column", ErrInvalidRequest, dataset.ColBookingDate)
		}
	} else {
		kind, ok := t.KindOf(r.GroupBy)
		if !ok {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, &dataset.MissingColumnError{Column: r.GroupBy})
		}
		// 数值列按原始文本分组，日期列只能通过 month 分组
		if kind == dataset.KindDate {
			return fmt.Errorf("%w: cannot group by date column %q, use %q", ErrInvalidRequest, r.GroupBy, GroupByMonth)
		}
	}

	if r.Metric == "" {
		if r.Agg != AggCount {
			return fmt.Errorf("%w: metric is required for %s", ErrInvalidRequest, r.Agg)
		}
		return nil
	}
	kind, ok := t.KindOf(r.Metric)
	if !ok {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, &dataset.MissingColumnError{Column: r.Metric})
	}
	if kind != dataset.KindNumber {
		return fmt.Errorf("%w: metric %q is not numeric", ErrInvalidRequest, r.Metric)
	}
	return nil
}
