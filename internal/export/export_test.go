package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-portfolio/internal/activity"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

var exportTime = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestExporter() *ActivityExporter {
	ae := NewActivityExporter(zap.NewNop())
	ae.now = func() time.Time { return exportTime }
	return ae
}

func testFeed() []activity.Entry {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return []activity.Entry{
		{ID: "sig3", Timestamp: base.Add(2 * time.Hour), Label: "Swap", Status: activity.StatusSuccess,
			Source: activity.SourceOnchain, Signature: "sig3", Link: "https://solscan.io/tx/sig3", Detail: "Slot 30"},
		{ID: "sig2", Timestamp: base.Add(time.Hour), Label: "Send", Status: activity.StatusError,
			Source: activity.SourceOnchain, Signature: "sig2", Detail: "Slot 20: custom program error: 0x1"},
		{ID: "local-1", Timestamp: base, Label: "Swap", Status: activity.StatusPending, Source: activity.SourceLocal},
		{ID: "sig1", Label: "Transaction", Status: activity.StatusSuccess, Source: activity.SourceOnchain, Signature: "sig1"},
	}
}

func TestExportCSV(t *testing.T) {
	dir := t.TempDir()
	path, err := newTestExporter().Export(testWallet, testFeed(), Options{Format: FormatCSV, OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "activity_all_9WzDXwBb_20250301_093000.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, csvHeaders, records[0])
	assert.Equal(t, []string{"2025-03-01T10:00:00Z", "Swap", "success", "onchain", "Slot 30", "sig3", "https://solscan.io/tx/sig3", "sig3"}, records[1])
	assert.Equal(t, "", records[4][0], "unknown timestamps export as empty")
}

func TestExportJSON(t *testing.T) {
	path, err := newTestExporter().Export(testWallet, testFeed(), Options{Format: FormatJSON, OutputDir: t.TempDir()})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Wallet  string      `json:"wallet"`
		Summary Summary     `json:"summary"`
		Entries []jsonEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, testWallet, doc.Wallet)
	require.Len(t, doc.Entries, 4)
	assert.Equal(t, "sig3", doc.Entries[0].ID)
	assert.Nil(t, doc.Entries[3].Timestamp)
	assert.Equal(t, 4, doc.Summary.Total)
	assert.Equal(t, 1, doc.Summary.Undated)
	assert.True(t, strings.Contains(string(data), `"timestamp": null`))
}

func TestExportFilters(t *testing.T) {
	ae := newTestExporter()
	feed := testFeed()

	tests := []struct {
		name    string
		options Options
		want    []string
	}{
		{"status", Options{Status: activity.StatusSuccess}, []string{"sig3", "sig1"}},
		{"source", Options{Source: activity.SourceLocal}, []string{"local-1"}},
		{"time range drops undated", Options{StartTime: time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)}, []string{"sig3", "sig2"}},
		{"end time", Options{EndTime: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}, []string{"local-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterEntries(feed, tt.options)
			ids := make([]string, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := ae.Export(testWallet, feed, Options{Format: FormatCSV, Status: "unknown", OutputDir: t.TempDir()})
	assert.Error(t, err)

	_, err = ae.Export(testWallet, feed, Options{Format: "xml", OutputDir: t.TempDir()})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize(testFeed())
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 3, s.OnChain)
	assert.Equal(t, 1, s.Local)
	assert.Equal(t, 1, s.Undated)
	require.NotNil(t, s.StartDate)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), *s.StartDate)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), *s.EndDate)

	empty := Summarize(nil)
	assert.Zero(t, empty.Total)
	assert.Nil(t, empty.StartDate)
}
