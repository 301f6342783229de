package query

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/basalytics/basalytics/internal/event"
)

// Params is a parsed, validated query: a date window plus a filter tree.
// Both bounds are inclusive, on every query path.
type Params struct {
	From   time.Time
	To     time.Time
	Filter Filter
}

// Request is the wire form of a counting query. The filter tag is flattened
// into the request object alongside the dates:
//
//	{"from_date": "...", "to_date": "...", "and": [...]}
//
// An absent filter defaults to the empty conjunction, which matches every
// event in the window.
type Request struct {
	FromDate string
	ToDate   string
	Filter   Filter
}

type requestPayload struct {
	FromDate *string `json:"from_date"`
	ToDate   *string `json:"to_date"`
	filterPayload
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var payload requestPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if payload.FromDate == nil || payload.ToDate == nil {
		return fmt.Errorf("%w: \"from_date\" and \"to_date\" are required", ErrParse)
	}
	r.FromDate = *payload.FromDate
	r.ToDate = *payload.ToDate

	if payload.And == nil && payload.Or == nil && payload.filterPayload.Filter == nil {
		r.Filter = And()
		return nil
	}
	return r.Filter.fromPayload(payload.filterPayload)
}

// Params validates the request dates and returns executable query
// parameters.
func (r Request) Params() (Params, error) {
	from, err := event.ParseTime(r.FromDate)
	if err != nil {
		return Params{}, fmt.Errorf("%w: from_date: %v", ErrParse, err)
	}
	to, err := event.ParseTime(r.ToDate)
	if err != nil {
		return Params{}, fmt.Errorf("%w: to_date: %v", ErrParse, err)
	}
	if to.Before(from) {
		return Params{}, fmt.Errorf("%w: to_date precedes from_date", ErrParse)
	}
	return Params{From: from, To: to, Filter: r.Filter}, nil
}
