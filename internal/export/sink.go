// Package export writes analytics reports to disk as CSV views plus a
// combined JSON report.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rumor-tracing/ledger-indexer/internal/analytics"
)

const (
	statsFile        = "rumor_statistics.csv"
	trendsFile       = "event_trends.csv"
	correlationsFile = "event_correlations.csv"
	reportFile       = "analysis_report.json"
)

// Sink writes each report into a fixed directory, replacing the previous
// cycle's files. Writes go through a temp file and rename so a reader
// never sees a half-written file.
type Sink struct {
	dir string
	log *slog.Logger
}

// NewSink creates a sink writing into dir, creating it if needed.
func NewSink(dir string, log *slog.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Sink{dir: dir, log: log}, nil
}

// Write exports the report as three CSV views and one JSON document.
func (s *Sink) Write(report *analytics.Report) error {
	if err := s.writeCSV(statsFile, statsRows(report)); err != nil {
		return err
	}
	if err := s.writeCSV(trendsFile, trendRows(report)); err != nil {
		return err
	}
	if err := s.writeCSV(correlationsFile, correlationRows(report)); err != nil {
		return err
	}
	if err := s.writeJSON(reportFile, report); err != nil {
		return err
	}

	s.log.Info("report exported", "report_id", report.ID, "dir", s.dir)
	return nil
}

func statsRows(report *analytics.Report) [][]string {
	rows := [][]string{{"source_type", "count", "avg_length", "avg_words", "avg_verification_time"}}
	for _, st := range report.BySourceType {
		rows = append(rows, []string{
			string(st.SourceType),
			strconv.FormatInt(st.Count, 10),
			formatFloat(st.AvgLength),
			formatFloat(st.AvgWords),
			formatFloat(st.AvgLatency),
		})
	}
	return rows
}

func trendRows(report *analytics.Report) [][]string {
	rows := [][]string{{"hour", "event_kind", "count"}}
	for _, b := range report.HourlyTrend {
		rows = append(rows, []string{
			b.Hour.UTC().Format(time.RFC3339),
			string(b.Kind),
			strconv.FormatInt(b.Count, 10),
		})
	}
	return rows
}

func correlationRows(report *analytics.Report) [][]string {
	rows := [][]string{{"event_kind_a", "event_kind_b", "pair_count"}}
	for _, c := range report.Correlations {
		rows = append(rows, []string{
			string(c.KindA),
			string(c.KindB),
			strconv.FormatInt(c.Count, 10),
		})
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (s *Sink) writeCSV(name string, rows [][]string) error {
	return s.writeAtomic(name, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.WriteAll(rows); err != nil {
			return fmt.Errorf("write csv rows: %w", err)
		}
		return w.Error()
	})
}

func (s *Sink) writeJSON(name string, report *analytics.Report) error {
	return s.writeAtomic(name, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	})
}

func (s *Sink) writeAtomic(name string, fill func(*os.File) error) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
