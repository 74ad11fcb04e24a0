package main

import (
	"strconv"

	"mercator-hq/callisto/pkg/scheduler"
)

// outcomeRecord is the printable form of a scheduler outcome.
type outcomeRecord struct {
	ID         string  `json:"id"`
	Section    string  `json:"section"`
	Rcode      string  `json:"rcode"`
	Yields     int     `json:"yields"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

func newOutcomeRecord(o scheduler.Outcome) outcomeRecord {
	r := outcomeRecord{
		ID:         o.RequestID,
		Section:    o.Section,
		Rcode:      o.Result.Rcode.String(),
		Yields:     o.Yields,
		DurationMS: float64(o.Duration.Microseconds()) / 1000,
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

// outcomeTable renders outcomes as text or CSV.
type outcomeTable []outcomeRecord

func (t outcomeTable) Header() []string {
	return []string{"ID", "SECTION", "RCODE", "YIELDS", "DURATION_MS", "ERROR"}
}

func (t outcomeTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.ID,
			r.Section,
			r.Rcode,
			strconv.Itoa(r.Yields),
			strconv.FormatFloat(r.DurationMS, 'f', 3, 64),
			r.Error,
		})
	}
	return rows
}

func (t outcomeTable) failed() int {
	n := 0
	for _, r := range t {
		if r.Error != "" {
			n++
		}
	}
	return n
}
