package chart

import (
	"fmt"
	"sort"
	"time"

	"sales-voice-go/internal/dataset"
	"sales-voice-go/internal/model"
)

const monthLayout = "2006-01"

// maxFilledMonths bounds zero-filling; wider spans only list months that have rows.
const maxFilledMonths = 600

type bucket struct {
	sum   float64
	count int
}

func (b bucket) value(agg string) float64 {
	switch agg {
	case AggCount:
		return float64(b.count)
	case AggMean:
		if b.count == 0 {
			return 0
		}
		return b.sum / float64(b.count)
	default:
		return b.sum
	}
}

// Aggregate validates req against t and computes the chart. Rows with a missing
// group key or metric value are skipped.
func Aggregate(t *dataset.Table, req Request) (*model.Chart, error) {
	req = req.Normalize(DefaultTop)
	if err := req.Validate(t); err != nil {
		return nil, err
	}

	var metric *dataset.Column
	if req.Metric != "" {
		metric, _ = t.Column(req.Metric)
	}

	var (
		labels []string
		values []float64
		err    error
	)
	if req.byMonth() {
		dates, _ := t.Column(dataset.ColBookingDate)
		labels, values, err = aggregateMonthly(dates, metric, req)
	} else {
		groups, _ := t.Column(req.GroupBy)
		labels, values, err = aggregateGroups(groups, metric, req)
	}
	if err != nil {
		return nil, err
	}

	c := &model.Chart{
		Kind:   req.Kind,
		Title:  req.Title,
		XLabel: groupLabel(req),
		YLabel: yLabel(req),
		Labels: labels,
		Values: values,
		Source: model.ChartSourceModel,
	}
	if c.Title == "" {
		c.Title = fmt.Sprintf("%s by %s", c.YLabel, groupLabel(req))
	}
	return c, nil
}

func aggregateGroups(groups, metric *dataset.Column, req Request) ([]string, []float64, error) {
	buckets := make(map[string]*bucket)
	for i, g := range groups.Values {
		if !g.Valid {
			continue
		}
		var v float64
		if metric != nil {
			m := metric.Values[i]
			if !m.Valid {
				continue
			}
			v = m.Num
		}
		b, ok := buckets[g.Text]
		if !ok {
			b = &bucket{}
			buckets[g.Text] = b
		}
		b.sum += v
		b.count++
	}
	if len(buckets) == 0 {
		return nil, nil, ErrNoData
	}

	type entry struct {
		label string
		value float64
	}
	entries := make([]entry, 0, len(buckets))
	for label, b := range buckets {
		entries = append(entries, entry{label: label, value: b.value(req.Agg)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].value != entries[j].value {
			if req.Sort == SortAsc {
				return entries[i].value < entries[j].value
			}
			return entries[i].value > entries[j].value
		}
		return entries[i].label < entries[j].label
	})
	if req.Top > 0 && len(entries) > req.Top {
		entries = entries[:req.Top]
	}

	labels := make([]string, len(entries))
	values := make([]float64, len(entries))
	for i, e := range entries {
		labels[i] = e.label
		values[i] = e.value
	}
	return labels, values, nil
}

// aggregateMonthly resamples by calendar month in chronological order. Months with
// no rows between the first and last booking are filled with zero for sum and count.
// Top keeps the most recent months.
func aggregateMonthly(dates, metric *dataset.Column, req Request) ([]string, []float64, error) {
	buckets := make(map[time.Time]*bucket)
	var first, last time.Time
	for i, d := range dates.Values {
		if !d.Valid {
			continue
		}
		var v float64
		if metric != nil {
			m := metric.Values[i]
			if !m.Valid {
				continue
			}
			v = m.Num
		}
		month := time.Date(d.Time.Year(), d.Time.Month(), 1, 0, 0, 0, 0, time.UTC)
		b, ok := buckets[month]
		if !ok {
			b = &bucket{}
			buckets[month] = b
		}
		b.sum += v
		b.count++
		if first.IsZero() || month.Before(first) {
			first = month
		}
		if month.After(last) {
			last = month
		}
	}
	if len(buckets) == 0 {
		return nil, nil, ErrNoData
	}

	fill := req.Agg != AggMean && monthsBetween(first, last) <= maxFilledMonths
	var labels []string
	var values []float64
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		b, ok := buckets[m]
		if !ok {
			if !fill {
				continue
			}
			b = &bucket{}
		}
		labels = append(labels, m.Format(monthLayout))
		values = append(values, b.value(req.Agg))
	}
	if req.Top > 0 && len(labels) > req.Top {
		labels = labels[len(labels)-req.Top:]
		values = values[len(values)-req.Top:]
	}
	return labels, values, nil
}

func monthsBetween(first, last time.Time) int {
	return (last.Year()-first.Year())*12 + int(last.Month()-first.Month())
}

func yLabel(req Request) string {
	switch req.Agg {
	case AggCount:
		return "Count"
	case AggMean:
		return "Average " + req.Metric
	default:
		return req.Metric
	}
}

func groupLabel(req Request) string {
	if req.byMonth() {
		return "Month"
	}
	return req.GroupBy
}
