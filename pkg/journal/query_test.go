package journal

import (
	"errors"
	"testing"
	"time"
)

func TestQuery_Validate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{name: "empty", query: Query{}},
		{name: "full", query: Query{Since: &earlier, Until: &now, Method: "GET", Kind: KindStream, MinStatus: 400, Limit: 50, Offset: 10}},
		{name: "negative limit", query: Query{Limit: -1}, wantErr: true},
		{name: "limit too large", query: Query{Limit: MaxLimit + 1}, wantErr: true},
		{name: "negative offset", query: Query{Offset: -1}, wantErr: true},
		{name: "bad status", query: Query{MinStatus: 700}, wantErr: true},
		{name: "inverted range", query: Query{Since: &now, Until: &earlier}, wantErr: true},
		{name: "unknown kind", query: Query{Kind: "batch"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var qErr *QueryError
				if !errors.As(err, &qErr) {
					t.Errorf("error %T is not a *QueryError", err)
				}
			}
		})
	}
}

func TestApplyQueryDefaults(t *testing.T) {
	q := Query{Method: "get"}
	ApplyQueryDefaults(&q)

	if q.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", q.Limit, DefaultLimit)
	}
	if q.Method != "GET" {
		t.Errorf("Method = %q, want GET", q.Method)
	}
}

func TestQuery_Matches(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := ts.Add(-time.Minute)
	after := ts.Add(time.Minute)
	record := &Record{Timestamp: ts, Method: "GET", Path: "companies/7", Kind: KindStream, Status: 404}

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{name: "no filters", query: Query{}, want: true},
		{name: "inside range", query: Query{Since: &before, Until: &after}, want: true},
		{name: "range bounds inclusive", query: Query{Since: &ts, Until: &ts}, want: true},
		{name: "before since", query: Query{Since: &after}, want: false},
		{name: "after until", query: Query{Until: &before}, want: false},
		{name: "method", query: Query{Method: "POST"}, want: false},
		{name: "path prefix", query: Query{PathPrefix: "companies"}, want: true},
		{name: "path prefix mismatch", query: Query{PathPrefix: "Companies"}, want: false},
		{name: "kind", query: Query{Kind: KindForward}, want: false},
		{name: "min status", query: Query{MinStatus: 400}, want: true},
		{name: "min status above", query: Query{MinStatus: 500}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(record); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
