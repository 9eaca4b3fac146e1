// Package formatter exports unresolved-track reports to CSV, Markdown, and
// plain text, for review outside the terminal.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/akopylov/crosstune/internal/models"
)

// ExportToCSV renders unresolved matches as CSV with one row per track and
// the top stored candidate inline.
func ExportToCSV(rows []models.Match) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Source ID", "Title", "Artists", "Reason", "Artist Found", "Candidates", "Top Candidate", "Top Score"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range rows {
		topTitle, topScore := "", ""
		if len(m.Candidates) > 0 {
			top := m.Candidates[0]
			topTitle = fmt.Sprintf("%s - %s", top.Artists, top.Title)
			topScore = strconv.FormatFloat(top.Confidence(), 'f', 3, 64)
		}
		record := []string{
			m.SourceID,
			m.SourceTitle,
			models.JoinArtists(m.SourceArtists),
			m.Reason,
			strconv.FormatBool(m.ArtistMet),
			strconv.Itoa(len(m.Candidates)),
			topTitle,
			topScore,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders unresolved matches as a Markdown report with each
// track's stored candidates listed underneath it.
func ExportToMarkdown(rows []models.Match) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Unresolved Tracks\n\n")
	buf.WriteString(fmt.Sprintf("**Total**: %d\n\n", len(rows)))

	for i, m := range rows {
		buf.WriteString(fmt.Sprintf("%d. **%s - %s**", i+1, models.JoinArtists(m.SourceArtists), m.SourceTitle))
		if m.Reason != "" {
			buf.WriteString(fmt.Sprintf(" _(%s)_", m.Reason))
		}
		buf.WriteString("\n")
		for _, c := range m.Candidates {
			buf.WriteString(fmt.Sprintf("   - %s - %s [title %.2f, artist %.2f]\n",
				c.Artists, c.Title, c.TitleScore, c.ArtistScore))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText renders unresolved matches as a plain-text listing.
func ExportToText(rows []models.Match) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Unresolved tracks: %d\n\n", len(rows)))
	for i, m := range rows {
		buf.WriteString(fmt.Sprintf("%d. %s - %s", i+1, models.JoinArtists(m.SourceArtists), m.SourceTitle))
		if m.Reason != "" {
			buf.WriteString(fmt.Sprintf(" (%s)", m.Reason))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// WriteReport exports unresolved matches in the given format ("csv",
// "markdown", or "text") and writes the file, returning its path.
//
// An empty path defaults to unresolved_tracks with the format's extension.
func WriteReport(rows []models.Match, format, path string) (string, error) {
	var (
		data []byte
		ext  string
		err  error
	)
	switch format {
	case "csv":
		data, err = ExportToCSV(rows)
		ext = ".csv"
	case "markdown", "md":
		data, err = ExportToMarkdown(rows)
		ext = ".md"
	case "text", "txt":
		data, err = ExportToText(rows)
		ext = ".txt"
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
	if err != nil {
		return "", err
	}

	if path == "" {
		path = "unresolved_tracks" + ext
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
