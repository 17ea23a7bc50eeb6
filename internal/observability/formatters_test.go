package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/luckin/internal/db"
	"github.com/jonathan/luckin/internal/harvest"
	"github.com/jonathan/luckin/internal/ranking"
	"github.com/jonathan/luckin/internal/types"
)

func TestPrintBox_FixedWidth(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", "short\n"+strings.Repeat("é", 200))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	for _, line := range lines {
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), line)
	}
	assert.Equal(t, 200, strings.Count(buf.String(), "é"), "long lines wrap instead of truncating")
	assert.Len(t, lines, 8)
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected []string
	}{
		{name: "fits", input: "short line", width: 20, expected: []string{"short line"}},
		{name: "breaks at space", input: "alpha beta gamma", width: 11, expected: []string{"alpha beta", "gamma"}},
		{name: "keeps indent", input: "    one two three", width: 12, expected: []string{"    one two", "    three"}},
		{name: "hard split", input: "abcdefghij", width: 4, expected: []string{"abcd", "efgh", "ij"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, wrap(tt.input, tt.width))
		})
	}
}

func TestPrintHarvestReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	p.PrintHarvestReport(&harvest.Report{
		RunID:      uuid.MustParse("7f1f8f6e-3c55-4c39-9d77-1d1f8fbbd001"),
		Source:     "amazon",
		StartedAt:  start,
		FinishedAt: start.Add(42 * time.Second),
		Pages: []harvest.PageReport{
			{Index: 0, Status: harvest.PageFull, Items: 10},
			{Index: 1, Status: harvest.PageFailed, Err: errors.New("navigation failed")},
		},
		StopReason:  harvest.StopPageError,
		Accumulated: 10,
		Saved:       db.InsertResult{Inserted: 7, Duplicates: 3},
	})

	out := buf.String()
	assert.Contains(t, out, "HARVEST AMAZON")
	assert.Contains(t, out, "page_error after 2 page(s) in 42s")
	assert.Contains(t, out, "navigation failed")
	assert.Contains(t, out, "Inserted:   7")
	assert.Contains(t, out, "Duplicates: 3")
}

func TestPrintHarvestReport_Suspect(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintHarvestReport(&harvest.Report{
		Source:     "rogers",
		Pages:      []harvest.PageReport{{Index: 0, Status: harvest.PageNoResults, Suspect: true}},
		StopReason: harvest.StopNoResults,
	})
	assert.Contains(t, buf.String(), "layout changed or blocked?")
	assert.NotContains(t, buf.String(), "...")
}

func TestPrintRanking(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRanking("python, sql", &ranking.Result{
		Retrieved: 50,
		Evaluated: make([]types.Candidate, 10),
		Ranked: []types.Candidate{{
			Posting: types.Posting{
				Title:    "Data Engineer",
				Company:  "Amazon",
				Location: "Toronto, ON, CAN",
				URL:      "https://www.amazon.jobs/en/jobs/1",
			},
			Relevance: &types.Relevance{Score: 0.87, Explanation: "Python pipelines and SQL warehousing."},
		}},
		CacheHits: 2,
		Failures:  1,
	})

	out := buf.String()
	assert.Contains(t, out, "50 retrieved, 10 evaluated (2 cached, 1 failed)")
	assert.Contains(t, out, "#1  0.87  Data Engineer")
	assert.Contains(t, out, "Amazon · Toronto, ON, CAN")
	assert.Contains(t, out, "Python pipelines and SQL warehousing.")
}

func TestPrintRanking_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRanking("cobol", &ranking.Result{Ranked: []types.Candidate{}})
	assert.Contains(t, buf.String(), "No relevant postings found.")

	buf.Reset()
	NewPrinter(&buf).PrintRanking("cobol", nil)
	assert.Empty(t, buf.String())
}

func TestPrintSources(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSources([]harvest.Source{harvest.AmazonToronto(), harvest.RogersCareers()})

	out := buf.String()
	assert.Contains(t, out, "amazon (Amazon Jobs)")
	assert.Contains(t, out, "rogers (Rogers Careers)")
	assert.Contains(t, out, "up to 18 pages, 3s between pages")
}

func TestPrintHarvestReport_PageErrorShowsCause(t *testing.T) {
	longURL := "https://www.amazon.jobs/en/search?offset=10&result_limit=10&sort=relevant&country=CAN&city=Toronto"
	var buf bytes.Buffer
	NewPrinter(&buf).PrintHarvestReport(&harvest.Report{
		Source: "amazon",
		Pages: []harvest.PageReport{{
			Index:  1,
			URL:    longURL,
			Status: harvest.PageFailed,
			Err: &harvest.PageError{
				Source: "amazon", Page: 1, URL: longURL,
				Err: errors.New("navigation failed: net::ERR_TIMED_OUT"),
			},
		}},
		StopReason: harvest.StopPageError,
	})

	out := buf.String()
	assert.Contains(t, out, "navigation failed: net::ERR_TIMED_OUT")
	assert.NotContains(t, out, longURL)
}
