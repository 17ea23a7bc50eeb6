// Package observability renders human-readable summaries for the CLI.
package observability

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/luckin/internal/harvest"
	"github.com/jonathan/luckin/internal/ranking"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)
	for _, line := range strings.Split(content, "\n") {
		for _, part := range wrap(line, boxWidth-4) {
			fmt.Fprintf(p.out, "│ %s │\n", pad(part, boxWidth-4))
		}
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// pad right-pads s to width runes. Callers wrap first.
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// wrap splits s into lines of at most width runes, breaking at spaces where
// possible. Continuation lines keep the leading indent of s.
func wrap(s string, width int) []string {
	runes := []rune(s)
	if len(runes) <= width {
		return []string{s}
	}

	indent := 0
	for indent < len(runes) && runes[indent] == ' ' {
		indent++
	}
	if indent > width/2 {
		indent = 0
	}
	prefix := []rune(strings.Repeat(" ", indent))

	var lines []string
	line := runes
	for len(line) > width {
		cut := width
		for i := width; i > indent; i-- {
			if line[i] == ' ' {
				cut = i
				break
			}
		}
		lines = append(lines, strings.TrimRight(string(line[:cut]), " "))
		rest := []rune(strings.TrimLeft(string(line[cut:]), " "))
		line = append(append([]rune{}, prefix...), rest...)
	}
	return append(lines, string(line))
}

// PrintHarvestReport outputs per-page outcomes and store counts for one run.
func (p *Printer) PrintHarvestReport(report *harvest.Report) {
	if report == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run:      %s\n", report.RunID)
	fmt.Fprintf(&sb, "Stopped:  %s after %d page(s) in %s\n",
		report.StopReason, len(report.Pages), report.Duration().Round(1e6))
	sb.WriteString("\n")

	for _, page := range report.Pages {
		fmt.Fprintf(&sb, "  page %-3d %-10s items=%-3d skipped=%d\n", page.Index, page.Status, page.Items, page.Skipped)
		if page.Suspect {
			sb.WriteString("           no results on the first page (layout changed or blocked?)\n")
		}
		if page.Err != nil {
			fmt.Fprintf(&sb, "           %s\n", pageCause(page.Err))
		}
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Harvested:  %d\n", report.Accumulated)
	fmt.Fprintf(&sb, "Inserted:   %d\n", report.Saved.Inserted)
	fmt.Fprintf(&sb, "Duplicates: %d\n", report.Saved.Duplicates)
	fmt.Fprintf(&sb, "Errors:     %d", report.Saved.Errors)

	p.printBox("HARVEST "+strings.ToUpper(report.Source), sb.String())
}

// pageCause drops the source and URL a PageError repeats from the report.
func pageCause(err error) string {
	var pe *harvest.PageError
	if errors.As(err, &pe) && pe.Err != nil {
		return pe.Err.Error()
	}
	return err.Error()
}

// PrintRanking outputs the ranked postings with score and explanation.
func (p *Printer) PrintRanking(skills string, res *ranking.Result) {
	if res == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Skills:     %s\n", skills)
	fmt.Fprintf(&sb, "Candidates: %d retrieved, %d evaluated (%d cached, %d failed)\n",
		res.Retrieved, len(res.Evaluated), res.CacheHits, res.Failures)

	if len(res.Ranked) == 0 {
		sb.WriteString("\nNo relevant postings found.")
		p.printBox("RECOMMENDED JOBS", sb.String())
		return
	}

	sb.WriteString("\n")
	count := min(len(res.Ranked), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := res.Ranked[i]
		fmt.Fprintf(&sb, "#%d  %.2f  %s\n", i+1, c.Score(), c.Title)
		where := strings.Join(nonEmpty(c.Company, c.Location), " · ")
		if where != "" {
			fmt.Fprintf(&sb, "    %s\n", where)
		}
		if c.Relevance.Explanation != "" {
			fmt.Fprintf(&sb, "    %s\n", c.Relevance.Explanation)
		}
		fmt.Fprintf(&sb, "    %s\n", c.URL)
	}
	if len(res.Ranked) > maxItemsToShow {
		fmt.Fprintf(&sb, "... and %d more\n", len(res.Ranked)-maxItemsToShow)
	}

	p.printBox("RECOMMENDED JOBS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSources lists source definitions.
func (p *Printer) PrintSources(sources []harvest.Source) {
	var sb strings.Builder
	for i, src := range sources {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s (%s)\n", src.Name, src.Label)
		fmt.Fprintf(&sb, "  %s\n", src.BaseURL)
		fmt.Fprintf(&sb, "  %d per page, up to %d pages, %s between pages\n",
			src.PerPage, src.MaxPages, src.PageDelay.Std())
		fmt.Fprintf(&sb, "  container %q\n", src.Selectors.Container)
	}
	p.printBox("SOURCES", strings.TrimSuffix(sb.String(), "\n"))
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
