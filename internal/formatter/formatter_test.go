package formatter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akopylov/crosstune/internal/models"
)

func sampleRows() []models.Match {
	return []models.Match{
		{
			SourceID:      "y1",
			SourceTitle:   "Группа крови",
			SourceArtists: []string{"Кино"},
			State:         models.StateUnresolved,
			Reason:        "title_mismatch",
			ArtistMet:     true,
			Candidates: []models.Candidate{
				{TargetID: "sp1", Title: "Gruppa Krovi (Live)", Artists: "Kino", TitleScore: 0.62, ArtistScore: 1.0},
				{TargetID: "sp2", Title: "Blood Type", Artists: "Kino", TitleScore: 0.21, ArtistScore: 1.0},
			},
		},
		{
			SourceID:      "y2",
			SourceTitle:   "Obscure B-Side",
			SourceArtists: []string{"Nobody", "Someone"},
			State:         models.StateUnresolved,
			Reason:        "no_results",
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleRows())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "Source ID,Title,Artists,Reason") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "Группа крови") {
			t.Errorf("CSV missing Cyrillic title")
		}
		if !strings.Contains(output, "Kino - Gruppa Krovi (Live)") {
			t.Errorf("CSV missing top candidate")
		}
		if !strings.Contains(output, "0.620") {
			t.Errorf("CSV missing top candidate score")
		}
		if !strings.Contains(output, "no_results") {
			t.Errorf("CSV missing reason")
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleRows())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "# Unresolved Tracks") {
			t.Errorf("Markdown missing title")
		}
		if !strings.Contains(output, "**Total**: 2") {
			t.Errorf("Markdown missing total")
		}
		if !strings.Contains(output, "Kino - Gruppa Krovi (Live) [title 0.62, artist 1.00]") {
			t.Errorf("Markdown missing candidate line, got: %s", output)
		}
		if !strings.Contains(output, "Nobody, Someone - Obscure B-Side") {
			t.Errorf("Markdown missing multi-artist track")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleRows())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "Unresolved tracks: 2") {
			t.Errorf("text missing count")
		}
		if !strings.Contains(output, "1. Кино - Группа крови (title_mismatch)") {
			t.Errorf("text missing first entry, got: %s", output)
		}
	})
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteReport(sampleRows(), "csv", filepath.Join(dir, "report.csv"))
	if err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "Source ID") {
		t.Errorf("written report missing headers")
	}

	if _, err := WriteReport(sampleRows(), "yaml", ""); err == nil {
		t.Error("expected error for unknown format")
	}
}
