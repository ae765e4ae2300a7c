package formatter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"queue-twin/history"
	"queue-twin/models"
)

// HistoryData holds prepared history rows used by all formatters
type HistoryData struct {
	Rows []TickRow
}

// TickRow pairs one snapshot with its display forecast
type TickRow struct {
	Time              string        `json:"time"`
	QueueLength       int           `json:"queue_length"`
	AgentCount        int           `json:"agent_count"`
	ArrivalRate       int           `json:"arrival_rate"`
	BreachProbability int           `json:"breach_probability"`
	CompletedCount    int           `json:"completed_count"`
	BreachCount       int           `json:"breach_count"`
	Forecast          ForecastRange `json:"forecast"`
	Critical          *CriticalInfo `json:"critical,omitempty"`
}

// ForecastRange is the projected queue band for a tick
type ForecastRange struct {
	Lower     float64 `json:"lower"`
	Predicted float64 `json:"predicted"`
	Upper     float64 `json:"upper"`
}

// CriticalInfo marks a tick at or above the critical breach threshold
type CriticalInfo struct {
	Threshold   int `json:"threshold"`
	Probability int `json:"probability"`
}

// prepareHistoryData derives one row per snapshot, oldest first.
// A threshold <= 0 disables critical marking.
func prepareHistoryData(snapshots []models.QueueSnapshot, threshold int) *HistoryData {
	rows := make([]TickRow, len(snapshots))
	for i, s := range snapshots {
		fp := history.Forecast(s)
		rows[i] = TickRow{
			Time:              s.Timestamp.Format("15:04:05"),
			QueueLength:       s.QueueLength,
			AgentCount:        s.AgentCount,
			ArrivalRate:       s.ArrivalRate,
			BreachProbability: s.ProjectedBreachProbability,
			CompletedCount:    s.CompletedCount,
			BreachCount:       s.BreachCount,
			Forecast: ForecastRange{
				Lower:     fp.LowerBound,
				Predicted: fp.Predicted,
				Upper:     fp.UpperBound,
			},
		}

		if threshold > 0 && s.ProjectedBreachProbability > threshold {
			rows[i].Critical = &CriticalInfo{
				Threshold:   threshold,
				Probability: s.ProjectedBreachProbability,
			}
		}
	}

	return &HistoryData{Rows: rows}
}

// FormatText returns the text representation of the history
func FormatText(snapshots []models.QueueSnapshot, threshold int) string {
	data := prepareHistoryData(snapshots, threshold)
	if len(data.Rows) == 0 {
		return "no snapshots recorded\n"
	}

	var sb strings.Builder
	for _, row := range data.Rows {
		sb.WriteString(formatTextLine(row))
		sb.WriteString("\n")

		// Add critical warning if exists
		if row.Critical != nil {
			sb.WriteString(fmt.Sprintf("  ⚠️  CRITICAL: breach probability %d%% > %d%% (queue=%d, agents=%d)\n",
				row.Critical.Probability, row.Critical.Threshold, row.QueueLength, row.AgentCount))
		}
	}

	return sb.String()
}

// FormatJSON returns the JSON representation of the history
func FormatJSON(snapshots []models.QueueSnapshot, threshold int) string {
	data := prepareHistoryData(snapshots, threshold)
	jsonBytes, _ := json.MarshalIndent(data.Rows, "", "  ")
	return string(jsonBytes)
}

// FormatCSV returns the CSV representation of the history
func FormatCSV(snapshots []models.QueueSnapshot, threshold int) string {
	data := prepareHistoryData(snapshots, threshold)
	var sb strings.Builder
	writer := csv.NewWriter(&sb)

	// Write header
	writer.Write([]string{
		"Time", "Queue Length", "Agents", "Arrival Rate", "Breach Probability",
		"Completed", "Breaches", "Forecast Lower", "Forecast Predicted", "Forecast Upper", "Critical",
	})

	for _, row := range data.Rows {
		writeRowToCSV(writer, row)
	}

	writer.Flush()
	return sb.String()
}

// writeRowToCSV writes a single tick's data to CSV
func writeRowToCSV(writer *csv.Writer, row TickRow) {
	critical := "No"
	if row.Critical != nil {
		critical = "Yes"
	}

	writer.Write([]string{
		row.Time,
		fmt.Sprintf("%d", row.QueueLength),
		fmt.Sprintf("%d", row.AgentCount),
		fmt.Sprintf("%d", row.ArrivalRate),
		fmt.Sprintf("%d", row.BreachProbability),
		fmt.Sprintf("%d", row.CompletedCount),
		fmt.Sprintf("%d", row.BreachCount),
		formatFloat(row.Forecast.Lower),
		formatFloat(row.Forecast.Predicted),
		formatFloat(row.Forecast.Upper),
		critical,
	})
}

// formatTextLine formats a single tick line for text output
func formatTextLine(row TickRow) string {
	return fmt.Sprintf("%s : queue=%d ; agents=%d ; risk=%d%% ; completed=%d ; breaches=%d ; forecast=[%s, %s, %s]",
		row.Time, row.QueueLength, row.AgentCount, row.BreachProbability,
		row.CompletedCount, row.BreachCount,
		formatFloat(row.Forecast.Lower), formatFloat(row.Forecast.Predicted), formatFloat(row.Forecast.Upper))
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
