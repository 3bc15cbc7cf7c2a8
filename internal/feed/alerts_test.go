package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"

	"github.com/tfl-bus-metrics/poller/internal/models"
)

func sampleRecords() []models.LineStatusRecord {
	from := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	to := from.Add(30 * time.Minute)
	reason := "Roadworks on Brixton Road"
	six, ten := 6, 10

	return []models.LineStatusRecord{
		{LineID: "3", StatusSeverity: &six, StatusSeverityDescription: "Severe Delays", Reason: &reason, FromDate: &from, ToDate: &to},
		{LineID: "3", StatusSeverity: &ten, StatusSeverityDescription: "Good Service"},
		{LineID: "N9", StatusSeverityDescription: "Unknown"},
		{LineID: "3", StatusSeverity: &six, StatusSeverityDescription: "Diverted"},
	}
}

func TestBuildAlertFeed(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	msg := BuildAlertFeed(sampleRecords(), now)

	assert.Equal(t, "2.0", msg.GetHeader().GetGtfsRealtimeVersion())
	assert.Equal(t, gtfs.FeedHeader_FULL_DATASET, msg.GetHeader().GetIncrementality())
	assert.Equal(t, uint64(now.Unix()), msg.GetHeader().GetTimestamp())

	require.Len(t, msg.GetEntity(), 2)

	first := msg.GetEntity()[0]
	assert.Equal(t, "line-3-0", first.GetId())
	alert := first.GetAlert()
	require.NotNil(t, alert)
	assert.Equal(t, gtfs.Alert_SIGNIFICANT_DELAYS, alert.GetEffect())
	require.Len(t, alert.GetInformedEntity(), 1)
	assert.Equal(t, "3", alert.GetInformedEntity()[0].GetRouteId())
	assert.Equal(t, int32(3), alert.GetInformedEntity()[0].GetRouteType())
	assert.Equal(t, "Line 3: Severe Delays", alert.GetHeaderText().GetTranslation()[0].GetText())
	assert.Equal(t, "Roadworks on Brixton Road", alert.GetDescriptionText().GetTranslation()[0].GetText())
	require.Len(t, alert.GetActivePeriod(), 1)
	assert.Equal(t, uint64(1735718400), alert.GetActivePeriod()[0].GetStart())
	assert.Equal(t, uint64(1735720200), alert.GetActivePeriod()[0].GetEnd())

	second := msg.GetEntity()[1]
	assert.Equal(t, "line-3-1", second.GetId())
	assert.Equal(t, gtfs.Alert_DETOUR, second.GetAlert().GetEffect())
	assert.Nil(t, second.GetAlert().GetDescriptionText())
	assert.Empty(t, second.GetAlert().GetActivePeriod())
}

func TestBuildAlertFeedNoDisruptions(t *testing.T) {
	msg := BuildAlertFeed(nil, time.Now())
	assert.NotNil(t, msg.GetHeader())
	assert.Empty(t, msg.GetEntity())
}

func TestEffectFor(t *testing.T) {
	tests := map[string]gtfs.Alert_Effect{
		"Minor Delays":    gtfs.Alert_SIGNIFICANT_DELAYS,
		"Severe Delays":   gtfs.Alert_SIGNIFICANT_DELAYS,
		"Part Suspended":  gtfs.Alert_REDUCED_SERVICE,
		"Reduced Service": gtfs.Alert_REDUCED_SERVICE,
		"Suspended":       gtfs.Alert_NO_SERVICE,
		"Service Closed":  gtfs.Alert_NO_SERVICE,
		"Not Running":     gtfs.Alert_NO_SERVICE,
		"Diverted":        gtfs.Alert_DETOUR,
		"Special Service": gtfs.Alert_MODIFIED_SERVICE,
		"Issues Reported": gtfs.Alert_UNKNOWN_EFFECT,
		"":                gtfs.Alert_UNKNOWN_EFFECT,
	}
	for description, want := range tests {
		t.Run(description, func(t *testing.T) {
			assert.Equal(t, want, effectFor(description))
		})
	}
}

func TestWriteAlertFeedBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "alerts.pb")
	msg := BuildAlertFeed(sampleRecords(), time.Now())

	require.NoError(t, WriteAlertFeed(path, msg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded gtfs.FeedMessage
	require.NoError(t, proto.Unmarshal(data, &decoded))
	assert.True(t, proto.Equal(msg, &decoded))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteAlertFeedText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.txt")
	msg := BuildAlertFeed(sampleRecords(), time.Now())

	require.NoError(t, WriteAlertFeed(path, msg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SIGNIFICANT_DELAYS")

	var decoded gtfs.FeedMessage
	require.NoError(t, prototext.Unmarshal(data, &decoded))
	assert.Len(t, decoded.GetEntity(), 2)
}
