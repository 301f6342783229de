package query

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basalytics/basalytics/internal/event"
)

func TestRequestUnmarshalJSON(t *testing.T) {
	input := `{
		"from_date": "2026-08-01T00:00:00Z",
		"to_date": "2026-08-31T23:59:59Z",
		"filter": {"name": "browser", "eq": "Chrome"}
	}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(input), &req))
	assert.Equal(t, "2026-08-01T00:00:00Z", req.FromDate)
	assert.Equal(t, Leaf("browser", event.String("Chrome")), req.Filter)
}

func TestRequestDefaultsToEmptyConjunction(t *testing.T) {
	input := `{"from_date": "2026-08-01T00:00:00Z", "to_date": "2026-08-31T00:00:00Z"}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(input), &req))
	assert.Equal(t, And(), req.Filter)

	// The default filter matches any event.
	assert.True(t, req.Filter.Match("anything", func(string, event.Value) map[string]struct{} { return nil }))
}

func TestRequestUnmarshalJSONErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "missing from_date", input: `{"to_date": "2026-08-31T00:00:00Z"}`},
		{name: "missing to_date", input: `{"from_date": "2026-08-01T00:00:00Z"}`},
		{name: "bad filter", input: `{"from_date": "a", "to_date": "b", "filter": {"name": "x"}}`},
		{name: "not an object", input: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			err := json.Unmarshal([]byte(tt.input), &req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestRequestParams(t *testing.T) {
	req := Request{FromDate: "2026-08-01T00:00:00Z", ToDate: "2026-08-31T00:00:00Z", Filter: And()}
	params, err := req.Params()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), params.From)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), params.To)
}

func TestRequestParamsErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "bad from", req: Request{FromDate: "nope", ToDate: "2026-08-31T00:00:00Z"}},
		{name: "bad to", req: Request{FromDate: "2026-08-01T00:00:00Z", ToDate: "nope"}},
		{name: "inverted window", req: Request{FromDate: "2026-08-31T00:00:00Z", ToDate: "2026-08-01T00:00:00Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.req.Params()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}
