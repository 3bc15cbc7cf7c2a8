package static

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/tfl-bus-metrics/poller/internal/models"
)

// Reference holds the static tables joined against live line status
type Reference struct {
	StopPoints []models.StopPoint
	Stops      []models.StopReference
}

// LoadReference reads the stops table and the line→stop-point table.
// Both files are read fresh on every call; nothing is cached.
func LoadReference(stopsPath, stopPointsPath string) (*Reference, error) {
	stops, err := LoadStops(stopsPath)
	if err != nil {
		return nil, err
	}

	stopPoints, err := LoadStopPoints(stopPointsPath)
	if err != nil {
		return nil, err
	}

	log.Printf("Reference: loaded %d stops, %d line stop points", len(stops), len(stopPoints))
	return &Reference{StopPoints: stopPoints, Stops: stops}, nil
}

// LoadStops reads a stops CSV keyed by ATCOCode (NaPTAN column names)
func LoadStops(path string) ([]models.StopReference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stops file: %w", err)
	}
	defer f.Close()

	return parseStops(f)
}

// LoadStopPoints reads a CSV with lineId and stopPointId columns
func LoadStopPoints(path string) ([]models.StopPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stop points file: %w", err)
	}
	defer f.Close()

	return parseStopPoints(f)
}

func parseStops(r io.Reader) ([]models.StopReference, error) {
	reader, idx, err := newReader(r, "ATCOCode")
	if err != nil {
		return nil, fmt.Errorf("failed to read stops header: %w", err)
	}

	var stops []models.StopReference
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		code := getField(record, idx, "ATCOCode")
		if code == "" {
			skipped++
			continue
		}

		stops = append(stops, models.StopReference{
			ATCOCode:   code,
			CommonName: getField(record, idx, "CommonName"),
			Street:     getField(record, idx, "Street"),
			Town:       getField(record, idx, "Town"),
			Longitude:  floatField(record, idx, "Longitude"),
			Latitude:   floatField(record, idx, "Latitude"),
		})
	}

	if skipped > 0 {
		log.Printf("Reference: skipped %d malformed stop rows", skipped)
	}
	return stops, nil
}

func parseStopPoints(r io.Reader) ([]models.StopPoint, error) {
	reader, idx, err := newReader(r, "lineId", "stopPointId")
	if err != nil {
		return nil, fmt.Errorf("failed to read stop points header: %w", err)
	}

	var points []models.StopPoint
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		lineID := getField(record, idx, "lineId")
		if lineID == "" {
			skipped++
			continue
		}

		// An empty stopPointId is kept: the line still joins, with no stop
		points = append(points, models.StopPoint{
			LineID:      lineID,
			StopPointID: getField(record, idx, "stopPointId"),
		})
	}

	if skipped > 0 {
		log.Printf("Reference: skipped %d malformed stop point rows", skipped)
	}
	return points, nil
}

// newReader reads the header row and checks that the required columns exist
func newReader(r io.Reader, required ...string) (*csv.Reader, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errors.New("file is empty")
	}
	if err != nil {
		return nil, nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idx := makeIndex(header)
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", col)
		}
	}
	return reader, idx, nil
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

func floatField(record []string, idx map[string]int, field string) *float64 {
	v, err := strconv.ParseFloat(getField(record, idx, field), 64)
	if err != nil {
		return nil
	}
	return &v
}
