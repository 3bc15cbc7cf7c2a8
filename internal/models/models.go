package models

import (
	"strings"
	"time"
)

// GoodServiceSeverity is the TfL severity reported when a line runs normally.
const GoodServiceSeverity = 10

// DateLayout is the calendar-day format used for metric keys and storage.
const DateLayout = "2006-01-02"

// LineStatusRecord is one status condition reported for a line at fetch time.
// Nil pointers mean the field was absent or could not be parsed.
type LineStatusRecord struct {
	LineID                    string
	LineName                  string
	StatusSeverity            *int
	StatusSeverityDescription string
	Reason                    *string
	FromDate                  *time.Time
	ToDate                    *time.Time
	Created                   *time.Time
	Modified                  *time.Time
}

// IsDisruption reports whether the record describes anything other than good service.
// Records without a numeric severity are never disruptions.
func (r LineStatusRecord) IsDisruption() bool {
	return r.StatusSeverity != nil && *r.StatusSeverity < GoodServiceSeverity
}

// StopPoint maps a line to one stop it serves
type StopPoint struct {
	LineID      string
	StopPointID string
}

// StopReference is static stop metadata keyed by ATCO code
type StopReference struct {
	ATCOCode   string
	CommonName string
	Street     string
	Town       string
	Longitude  *float64
	Latitude   *float64
}

// MetricsRow is the per-line, per-day output handed to sinks.
// Uptime fields are computed across the whole run for the line, so every
// date row of a line carries the same values.
type MetricsRow struct {
	LineID            string    `json:"lineId"`
	Date              time.Time `json:"date"`
	AvgDelayDuration  float64   `json:"avgDelayDuration"`
	DelayFrequency    int       `json:"delayFrequency"`
	AffectedStopCount int       `json:"affectedStopCount"`
	GoodServiceCount  int       `json:"goodServiceCount"`
	TotalReports      int       `json:"totalReports"`
	UptimePercentage  float64   `json:"uptimePercentage"`
}

// DateString returns the row's date as YYYY-MM-DD
func (m MetricsRow) DateString() string {
	return m.Date.Format(DateLayout)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	DateLayout,
}

// ParseTimestamp parses the timestamp shapes returned by the TfL API.
// Values without a zone are taken as UTC. Returns nil for empty or unparseable input.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// CalendarDay truncates t to midnight UTC of its own wall-clock date
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
