package metrics

import (
	"sort"
	"time"

	"github.com/tfl-bus-metrics/poller/internal/models"
)

// joinedRow is one status record after both reference joins.
// stop and ref are nil when the corresponding join found no match.
type joinedRow struct {
	record *models.LineStatusRecord
	stop   *models.StopPoint
	ref    *models.StopReference
}

func (r joinedRow) stopPointID() string {
	if r.stop == nil {
		return ""
	}
	return r.stop.StopPointID
}

// dailyKey groups delay metrics per line and calendar day
type dailyKey struct {
	lineID string
	date   time.Time
}

type dailyAcc struct {
	duration  RunningStats
	frequency int
	stops     map[string]struct{}
}

type uptimeAcc struct {
	good  int
	total int
}

func (u uptimeAcc) percentage() float64 {
	if u.total == 0 {
		return 0
	}
	return float64(u.good) / float64(u.total) * 100
}

// Aggregate joins status records with the reference tables and reduces them
// to one MetricsRow per (line, day) that saw at least one delay.
//
// Delay metrics are daily; good_service_count, total_reports and uptime are
// computed per line across the whole input and repeated on every day row of
// that line. Records without a created timestamp count toward uptime only.
func Aggregate(records []models.LineStatusRecord, stopPoints []models.StopPoint, stopRefs []models.StopReference) []models.MetricsRow {
	if len(records) == 0 {
		return []models.MetricsRow{}
	}

	joined := join(records, stopPoints, stopRefs)

	daily := make(map[dailyKey]*dailyAcc)
	uptime := make(map[string]*uptimeAcc)

	for _, row := range joined {
		rec := row.record

		u := uptime[rec.LineID]
		if u == nil {
			u = &uptimeAcc{}
			uptime[rec.LineID] = u
		}
		u.total++
		if rec.StatusSeverity != nil && *rec.StatusSeverity == models.GoodServiceSeverity {
			u.good++
		}

		if !rec.IsDisruption() || rec.Created == nil {
			continue
		}

		key := dailyKey{lineID: rec.LineID, date: models.CalendarDay(*rec.Created)}
		acc := daily[key]
		if acc == nil {
			acc = &dailyAcc{stops: make(map[string]struct{})}
			daily[key] = acc
		}

		acc.frequency++
		if minutes, ok := delayMinutes(rec); ok {
			acc.duration.Add(minutes)
		}
		if id := row.stopPointID(); id != "" {
			acc.stops[id] = struct{}{}
		}
	}

	rows := make([]models.MetricsRow, 0, len(daily))
	for key, acc := range daily {
		row := models.MetricsRow{
			LineID:            key.lineID,
			Date:              key.date,
			AvgDelayDuration:  acc.duration.Mean(),
			DelayFrequency:    acc.frequency,
			AffectedStopCount: len(acc.stops),
		}
		if u, ok := uptime[key.lineID]; ok {
			row.GoodServiceCount = u.good
			row.TotalReports = u.total
			row.UptimePercentage = u.percentage()
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LineID != rows[j].LineID {
			return rows[i].LineID < rows[j].LineID
		}
		return rows[i].Date.Before(rows[j].Date)
	})
	return rows
}

// join performs both left joins. A record matching k stop points yields k
// rows; a stop point matching m references yields m rows.
func join(records []models.LineStatusRecord, stopPoints []models.StopPoint, stopRefs []models.StopReference) []joinedRow {
	pointsByLine := make(map[string][]*models.StopPoint)
	for i := range stopPoints {
		sp := &stopPoints[i]
		pointsByLine[sp.LineID] = append(pointsByLine[sp.LineID], sp)
	}

	refsByCode := make(map[string][]*models.StopReference)
	for i := range stopRefs {
		ref := &stopRefs[i]
		refsByCode[ref.ATCOCode] = append(refsByCode[ref.ATCOCode], ref)
	}

	var rows []joinedRow
	for i := range records {
		rec := &records[i]

		points := pointsByLine[rec.LineID]
		if len(points) == 0 {
			rows = append(rows, joinedRow{record: rec})
			continue
		}

		for _, sp := range points {
			refs := refsByCode[sp.StopPointID]
			if sp.StopPointID == "" || len(refs) == 0 {
				rows = append(rows, joinedRow{record: rec, stop: sp})
				continue
			}
			for _, ref := range refs {
				rows = append(rows, joinedRow{record: rec, stop: sp, ref: ref})
			}
		}
	}
	return rows
}

// delayMinutes is toDate minus fromDate in minutes. Negative spans are kept.
func delayMinutes(rec *models.LineStatusRecord) (float64, bool) {
	if rec.FromDate == nil || rec.ToDate == nil {
		return 0, false
	}
	return rec.ToDate.Sub(*rec.FromDate).Minutes(), true
}

// Summary describes an aggregated run for logging
type Summary struct {
	Lines      int
	Days       int
	Rows       int
	MeanUptime float64
}

// Summarize counts the distinct lines and days in rows.
// MeanUptime averages each line's uptime once.
func Summarize(rows []models.MetricsRow) Summary {
	lines := make(map[string]struct{})
	days := make(map[time.Time]struct{})
	var uptime RunningStats

	for _, row := range rows {
		days[row.Date] = struct{}{}
		if _, seen := lines[row.LineID]; seen {
			continue
		}
		lines[row.LineID] = struct{}{}
		uptime.Add(row.UptimePercentage)
	}

	return Summary{
		Lines:      len(lines),
		Days:       len(days),
		Rows:       len(rows),
		MeanUptime: uptime.Mean(),
	}
}
