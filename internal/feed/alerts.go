// Package feed publishes disrupted bus lines as a GTFS-realtime Alerts feed.
package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"

	"github.com/tfl-bus-metrics/poller/internal/models"
)

// busRouteType is the GTFS route_type for bus services
const busRouteType int32 = 3

func ptr[T any](v T) *T { return &v }

// BuildAlertFeed converts every disrupted status record into an Alert entity.
// Records at good service or without a severity are left out.
func BuildAlertFeed(records []models.LineStatusRecord, now time.Time) *gtfs.FeedMessage {
	entities := make([]*gtfs.FeedEntity, 0)
	perLine := make(map[string]int)

	for _, rec := range records {
		if !rec.IsDisruption() {
			continue
		}

		n := perLine[rec.LineID]
		perLine[rec.LineID] = n + 1

		entities = append(entities, &gtfs.FeedEntity{
			Id:    ptr(fmt.Sprintf("line-%s-%d", rec.LineID, n)),
			Alert: toAlert(rec),
		})
	}

	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: ptr("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           ptr(uint64(now.Unix())),
		},
		Entity: entities,
	}
}

func toAlert(rec models.LineStatusRecord) *gtfs.Alert {
	alert := &gtfs.Alert{
		InformedEntity: []*gtfs.EntitySelector{{
			RouteId:   ptr(rec.LineID),
			RouteType: ptr(busRouteType),
		}},
		Cause:      gtfs.Alert_UNKNOWN_CAUSE.Enum(),
		Effect:     effectFor(rec.StatusSeverityDescription).Enum(),
		HeaderText: translated(headerFor(rec)),
	}

	if rec.Reason != nil && *rec.Reason != "" {
		alert.DescriptionText = translated(*rec.Reason)
	}

	if period := activePeriod(rec); period != nil {
		alert.ActivePeriod = []*gtfs.TimeRange{period}
	}
	return alert
}

func headerFor(rec models.LineStatusRecord) string {
	if rec.StatusSeverityDescription == "" {
		return fmt.Sprintf("Line %s: disruption", rec.LineID)
	}
	return fmt.Sprintf("Line %s: %s", rec.LineID, rec.StatusSeverityDescription)
}

func translated(text string) *gtfs.TranslatedString {
	return &gtfs.TranslatedString{
		Translation: []*gtfs.TranslatedString_Translation{{
			Text:     ptr(text),
			Language: ptr("en"),
		}},
	}
}

func activePeriod(rec models.LineStatusRecord) *gtfs.TimeRange {
	var period gtfs.TimeRange
	if rec.FromDate != nil && rec.FromDate.Unix() > 0 {
		period.Start = ptr(uint64(rec.FromDate.Unix()))
	}
	if rec.ToDate != nil && rec.ToDate.Unix() > 0 {
		period.End = ptr(uint64(rec.ToDate.Unix()))
	}
	if period.Start == nil && period.End == nil {
		return nil
	}
	return &period
}

// effectFor maps a TfL severity description onto the closest GTFS-RT effect
func effectFor(description string) gtfs.Alert_Effect {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "part suspended"), strings.Contains(d, "part closure"),
		strings.Contains(d, "reduced service"):
		return gtfs.Alert_REDUCED_SERVICE
	case strings.Contains(d, "suspended"), strings.Contains(d, "closed"),
		strings.Contains(d, "not running"):
		return gtfs.Alert_NO_SERVICE
	case strings.Contains(d, "delays"):
		return gtfs.Alert_SIGNIFICANT_DELAYS
	case strings.Contains(d, "diverted"):
		return gtfs.Alert_DETOUR
	case strings.Contains(d, "special service"), strings.Contains(d, "change of frequency"):
		return gtfs.Alert_MODIFIED_SERVICE
	default:
		return gtfs.Alert_UNKNOWN_EFFECT
	}
}

// WriteAlertFeed writes the feed to path through a temporary file.
// A ".txt" path gets protobuf text format; anything else gets the binary wire format.
func WriteAlertFeed(path string, msg *gtfs.FeedMessage) error {
	var data []byte
	var err error
	if filepath.Ext(path) == ".txt" {
		data, err = prototext.MarshalOptions{Multiline: true}.Marshal(msg)
	} else {
		data, err = proto.Marshal(msg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal alert feed: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", tmp, path, err)
	}
	return nil
}
