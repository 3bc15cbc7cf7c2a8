package static

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadReference(t *testing.T) {
	dir := t.TempDir()
	stops := writeFile(t, dir, "Stops.csv", "\ufeffATCOCode,NaptanCode,CommonName,Street,Town,Longitude,Latitude\n"+
		"490000077A,74433,Brixton Station,Brixton Road,Brixton,-0.1146,51.4626\n"+
		"490000077B,74434,Brixton Station,,Brixton,,\n")
	points := writeFile(t, dir, "stop_points.csv", "lineId,stopPointId,commonName\n"+
		"3,490000077A,Brixton Station\n"+
		"3,490000077B,Brixton Station\n"+
		"N3,,\n")

	ref, err := LoadReference(stops, points)
	require.NoError(t, err)

	require.Len(t, ref.Stops, 2)
	first := ref.Stops[0]
	assert.Equal(t, "490000077A", first.ATCOCode, "BOM must not leak into the first column name")
	assert.Equal(t, "Brixton Station", first.CommonName)
	assert.Equal(t, "Brixton Road", first.Street)
	require.NotNil(t, first.Longitude)
	assert.InDelta(t, -0.1146, *first.Longitude, 1e-9)
	assert.Nil(t, ref.Stops[1].Latitude)

	require.Len(t, ref.StopPoints, 3)
	assert.Equal(t, "3", ref.StopPoints[0].LineID)
	assert.Equal(t, "490000077A", ref.StopPoints[0].StopPointID)
	assert.Equal(t, "N3", ref.StopPoints[2].LineID)
	assert.Empty(t, ref.StopPoints[2].StopPointID)
}

func TestParseStopsSkipsRowsWithoutCode(t *testing.T) {
	stops, err := parseStops(strings.NewReader("ATCOCode,CommonName\n,Nowhere\nX1,Somewhere\n"))
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Equal(t, "X1", stops[0].ATCOCode)
}

func TestParseStopPointsMissingColumn(t *testing.T) {
	_, err := parseStopPoints(strings.NewReader("line,stop\n3,A\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "lineId"`)
}

func TestParseEmptyFile(t *testing.T) {
	_, err := parseStops(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadReferenceMissingFile(t *testing.T) {
	dir := t.TempDir()
	points := writeFile(t, dir, "stop_points.csv", "lineId,stopPointId\n")

	_, err := LoadReference(filepath.Join(dir, "nope.csv"), points)
	assert.Error(t, err)
}
