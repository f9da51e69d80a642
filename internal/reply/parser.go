// Package reply splits a raw model reply into prose and an optional chart request.
package reply

import (
	"strings"
)

const fence = "```"

// Tags accepted after an opening fence, in priority order. "python" is recognised
// only so that its content can be rejected later; it is never executed.
var Tags = []string{"chart", "json", "python"}

// Warnings surfaced to the user alongside the answer.
const (
	WarnNoChartBlock    = "reply contained no chart block"
	WarnExtraBlocks     = "additional fenced blocks ignored"
	WarnUnterminated    = "chart block was not terminated"
	WarnEmptyChartBlock = "chart block was empty"
)

// Reply is the parsed model output.
type Reply struct {
	Answer    string
	ChartSpec string
	Tag       string
	Warnings  []string
}

// HasChart reports whether a non-empty chart block was found.
func (r Reply) HasChart() bool { return r.ChartSpec != "" }

// Parse splits raw on the first opening fence marker. Text before it is the answer
// and text up to the next closing fence is the chart spec. Any later fenced block
// is ignored. Parse never fails: without a marker the whole reply is the answer.
func Parse(raw string) Reply {
	start, tag := firstMarker(raw)
	if start < 0 {
		return Reply{
			Answer:   strings.TrimSpace(raw),
			Warnings: []string{WarnNoChartBlock},
		}
	}

	var r Reply
	r.Tag = tag
	r.Answer = strings.TrimSpace(raw[:start])

	body := raw[start+len(fence)+len(tag):]
	var rest string
	if end := strings.Index(body, fence); end >= 0 {
		rest = body[end+len(fence):]
		body = body[:end]
	} else {
		r.Warnings = append(r.Warnings, WarnUnterminated)
	}
	r.ChartSpec = strings.TrimSpace(body)
	if r.ChartSpec == "" {
		r.Warnings = append(r.Warnings, WarnEmptyChartBlock)
	}

	if strings.Contains(rest, fence) {
		r.Warnings = append(r.Warnings, WarnExtraBlocks)
		rest = rest[:strings.Index(rest, fence)]
	}
	if r.Answer == "" {
		r.Answer = strings.TrimSpace(rest)
	}
	return r
}

// firstMarker returns the offset of the earliest "```<tag>" opening marker.
func firstMarker(raw string) (int, string) {
	best, bestTag := -1, ""
	for offset := 0; offset < len(raw); {
		i := strings.Index(raw[offset:], fence)
		if i < 0 {
			break
		}
		i += offset
		after := raw[i+len(fence):]
		for _, tag := range Tags {
			if hasTagPrefix(after, tag) {
				best, bestTag = i, tag
				break
			}
		}
		if best >= 0 {
			break
		}
		offset = i + len(fence)
	}
	return best, bestTag
}

// hasTagPrefix matches tag case-insensitively when it is followed by a line break,
// whitespace, or the end of input.
func hasTagPrefix(s, tag string) bool {
	if len(s) < len(tag) || !strings.EqualFold(s[:len(tag)], tag) {
		return false
	}
	if len(s) == len(tag) {
		return true
	}
	switch s[len(tag)] {
	case '\n', '\r', ' ', '\t', '{':
		return true
	}
	return false
}
