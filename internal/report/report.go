package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/parsamap/raahgir/internal/storage"
)

// Summary contains aggregated metrics about a collection session.
type Summary struct {
	TotalPlaces   int
	TotalErrors   int
	NotFound      int
	WithRating    int
	WithAddress   int
	WithPhone     int
	ErrorsByKind  map[string]int
	ByCategory    map[string]int
	AverageRating float64
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}

// GenerateSummary processes a slice of place records into summary metrics.
func GenerateSummary(records []*storage.PlaceRecord) Summary {
	s := Summary{
		ErrorsByKind: make(map[string]int),
		ByCategory:   make(map[string]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	ratingSum := 0.0
	for _, r := range records {
		s.TotalPlaces++
		switch r.FetchError {
		case "":
			// enriched successfully
		case "NOT_FOUND":
			s.NotFound++
			s.ErrorsByKind[r.FetchError]++
		default:
			s.TotalErrors++
			s.ErrorsByKind[r.FetchError]++
		}
		if r.Rating != nil {
			s.WithRating++
			ratingSum += *r.Rating
		}
		if r.Address != "" {
			s.WithAddress++
		}
		if r.Phone != "" {
			s.WithPhone++
		}
		if r.Category != "" {
			s.ByCategory[r.Category]++
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	if s.WithRating > 0 {
		s.AverageRating = ratingSum / float64(s.WithRating)
	}
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encoding summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Raahgir Session Summary
-----------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Total Places:  {{.TotalPlaces}}
Not Found:     {{.NotFound}}
Fetch Errors:  {{.TotalErrors}}
With Rating:   {{.WithRating}}{{if gt .WithRating 0}} (avg {{printf "%.2f" .AverageRating}}){{end}}
With Address:  {{.WithAddress}}
With Phone:    {{.WithPhone}}

Categories:
{{- range $name, $count := .ByCategory}}
  {{$name}}: {{$count}}
{{- else}}
  None
{{- end}}

Errors:
{{- range $kind, $count := .ErrorsByKind}}
  {{$kind}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parsing template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: rendering summary: %w", err)
	}

	return nil
}
