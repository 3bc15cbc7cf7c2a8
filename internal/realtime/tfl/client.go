package tfl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/tfl-bus-metrics/poller/internal/models"
)

// DefaultBaseURL is the public TfL Unified API
const DefaultBaseURL = "https://api.tfl.gov.uk"

// Client talks to the TfL Unified API through a shared Requester
type Client struct {
	baseURL   string
	requester *Requester
}

// NewClient creates a TfL client. All requests made by the client, including
// those issued concurrently by FetchAll, go through requester's rate limiter.
func NewClient(baseURL string, requester *Requester) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		requester: requester,
	}
}

// ListBusLines returns the IDs of every bus line in response order.
// Any failure yields an empty slice: there is simply nothing to fetch.
func (c *Client) ListBusLines(ctx context.Context) []string {
	body, err := c.requester.GetJSON(ctx, c.baseURL+"/Line/Mode/bus")
	if err != nil {
		log.Printf("TfL: failed to list bus lines: %v", err)
		return []string{}
	}

	var lines []map[string]interface{}
	if err := json.Unmarshal(body, &lines); err != nil {
		log.Printf("TfL: unexpected line list shape: %v", err)
		return []string{}
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if id := stringVal(line["id"]); id != "" {
			ids = append(ids, id)
		}
	}

	log.Printf("TfL: discovered %d bus lines", len(ids))
	return ids
}

// statusURL builds the status endpoint for one line
func (c *Client) statusURL(lineID string) string {
	return fmt.Sprintf("%s/Line/%s/Status", c.baseURL, url.PathEscape(lineID))
}

// FetchLineStatus fetches and parses the current status of one line.
// An error means no data could be obtained for the line.
func (c *Client) FetchLineStatus(ctx context.Context, lineID string) ([]models.LineStatusRecord, error) {
	body, err := c.requester.GetJSON(ctx, c.statusURL(lineID))
	if err != nil {
		return nil, err
	}

	records, err := parseLineStatus(body)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].LineID == "" {
			records[i].LineID = lineID
		}
	}
	return records, nil
}

// parseLineStatus turns a /Line/{id}/Status response into records.
// Only the first envelope is read, as the endpoint is queried for a single line.
func parseLineStatus(body []byte) ([]models.LineStatusRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var envelopes []map[string]interface{}
	if err := dec.Decode(&envelopes); err != nil {
		return nil, fmt.Errorf("failed to parse line status: %w", err)
	}
	if len(envelopes) == 0 {
		return nil, nil
	}

	env := envelopes[0]
	lineID := stringVal(env["id"])
	lineName := stringVal(env["name"])
	created := models.ParseTimestamp(stringVal(env["created"]))
	modified := models.ParseTimestamp(stringVal(env["modified"]))

	statuses, _ := env["lineStatuses"].([]interface{})
	records := make([]models.LineStatusRecord, 0, len(statuses))
	for _, raw := range statuses {
		status, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		rec := models.LineStatusRecord{
			LineID:                    lineID,
			LineName:                  lineName,
			StatusSeverity:            intPtr(status["statusSeverity"]),
			StatusSeverityDescription: stringVal(status["statusSeverityDescription"]),
			Reason:                    stringPtr(status["reason"]),
			Created:                   created,
			Modified:                  modified,
		}

		// Only the first validity period is kept; later ones are dropped
		if periods, ok := status["validityPeriods"].([]interface{}); ok && len(periods) > 0 {
			if first, ok := periods[0].(map[string]interface{}); ok {
				rec.FromDate = models.ParseTimestamp(stringVal(first["fromDate"]))
				rec.ToDate = models.ParseTimestamp(stringVal(first["toDate"]))
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

func stringVal(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func stringPtr(v interface{}) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

// intPtr coerces JSON numbers and numeric strings to an int; anything else is nil
func intPtr(v interface{}) *int {
	var n json.Number
	switch val := v.(type) {
	case json.Number:
		n = val
	case string:
		n = json.Number(strings.TrimSpace(val))
	case float64:
		n = json.Number(fmt.Sprint(val))
	default:
		return nil
	}

	if i, err := n.Int64(); err == nil {
		out := int(i)
		return &out
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		out := int(f)
		return &out
	}
	return nil
}
