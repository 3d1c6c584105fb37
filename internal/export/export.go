package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-portfolio/internal/activity"
)

// Format is the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options selects which activity entries are exported and where.
type Options struct {
	Format    Format
	StartTime time.Time // entries without a timestamp are excluded when set
	EndTime   time.Time
	Status    activity.Status // empty means any
	Source    activity.Source // empty means any
	OutputDir string
}

// ActivityExporter writes the merged activity feed to disk.
type ActivityExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewActivityExporter(logger *zap.Logger) *ActivityExporter {
	return &ActivityExporter{
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// Summary holds counts over exported entries.
type Summary struct {
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Pending   int        `json:"pending"`
	OnChain   int        `json:"onchain"`
	Local     int        `json:"local"`
	Undated   int        `json:"undated"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Export writes the entries that match options, keeping feed order, and
// returns the output path.
func (ae *ActivityExporter) Export(wallet string, entries []activity.Entry, options Options) (string, error) {
	filtered := filterEntries(entries, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no activity matches the export criteria")
	}

	if options.OutputDir == "" {
		options.OutputDir = "."
	}
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, ae.filename(wallet, options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = ae.exportToJSON(wallet, filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	ae.logger.Info("Activity exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func filterEntries(entries []activity.Entry, options Options) []activity.Entry {
	var filtered []activity.Entry
	for _, e := range entries {
		if !options.StartTime.IsZero() || !options.EndTime.IsZero() {
			if !e.HasTimestamp() {
				continue
			}
			if !options.StartTime.IsZero() && e.Timestamp.Before(options.StartTime) {
				continue
			}
			if !options.EndTime.IsZero() && e.Timestamp.After(options.EndTime) {
				continue
			}
		}
		if options.Status != "" && e.Status != options.Status {
			continue
		}
		if options.Source != "" && e.Source != options.Source {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func (ae *ActivityExporter) filename(wallet string, options Options) string {
	prefix := "activity_all"
	if options.Status != "" {
		prefix = "activity_" + string(options.Status)
	}
	if len(wallet) >= 8 {
		prefix += "_" + wallet[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, ae.now().Format("20060102_150405"), options.Format)
}

var csvHeaders = []string{"timestamp", "label", "status", "source", "detail", "signature", "link", "id"}

func toCSV(e activity.Entry) []string {
	ts := ""
	if e.HasTimestamp() {
		ts = e.Timestamp.UTC().Format(time.RFC3339)
	}
	return []string{ts, e.Label, string(e.Status), string(e.Source), e.Detail, e.Signature, e.Link, e.ID}
}

func exportToCSV(entries []activity.Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, e := range entries {
		if err := writer.Write(toCSV(e)); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", e.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

type jsonEntry struct {
	ID        string     `json:"id"`
	Timestamp *time.Time `json:"timestamp"`
	Label     string     `json:"label"`
	Detail    string     `json:"detail,omitempty"`
	Status    string     `json:"status"`
	Source    string     `json:"source"`
	Link      string     `json:"link,omitempty"`
	Signature string     `json:"signature,omitempty"`
}

func (ae *ActivityExporter) exportToJSON(wallet string, entries []activity.Entry, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	out := make([]jsonEntry, 0, len(entries))
	for _, e := range entries {
		je := jsonEntry{
			ID:        e.ID,
			Label:     e.Label,
			Detail:    e.Detail,
			Status:    string(e.Status),
			Source:    string(e.Source),
			Link:      e.Link,
			Signature: e.Signature,
		}
		if e.HasTimestamp() {
			ts := e.Timestamp.UTC()
			je.Timestamp = &ts
		}
		out = append(out, je)
	}

	exportData := struct {
		ExportTime time.Time   `json:"export_time"`
		Wallet     string      `json:"wallet"`
		Summary    Summary     `json:"summary"`
		Entries    []jsonEntry `json:"entries"`
	}{
		ExportTime: ae.now().UTC(),
		Wallet:     wallet,
		Summary:    Summarize(entries),
		Entries:    out,
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summarize counts entries by status and source and finds the dated range.
func Summarize(entries []activity.Entry) Summary {
	s := Summary{Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case activity.StatusSuccess:
			s.Succeeded++
		case activity.StatusError:
			s.Failed++
		case activity.StatusPending:
			s.Pending++
		}
		switch e.Source {
		case activity.SourceOnchain:
			s.OnChain++
		case activity.SourceLocal:
			s.Local++
		}

		if !e.HasTimestamp() {
			s.Undated++
			continue
		}
		ts := e.Timestamp.UTC()
		if s.StartDate == nil || ts.Before(*s.StartDate) {
			start := ts
			s.StartDate = &start
		}
		if s.EndDate == nil || ts.After(*s.EndDate) {
			end := ts
			s.EndDate = &end
		}
	}
	return s
}
