package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akopylov/crosstune/internal/models"
	"github.com/akopylov/crosstune/internal/shared"
)

// mockSource is an in-memory services.SourceService.
type mockSource struct {
	likes     []models.SourceTrack
	playlists []models.SourcePlaylist
}

func (m *mockSource) SyncLikes(ctx context.Context, existing []models.SourceTrack) ([]models.SourceTrack, error) {
	return m.likes, nil
}

func (m *mockSource) SyncPlaylists(ctx context.Context, existing []models.SourcePlaylist) ([]models.SourcePlaylist, error) {
	return m.playlists, nil
}

func (m *mockSource) Name() string { return "MockSource" }

// mockTarget is an in-memory services.TargetService.
type mockTarget struct {
	searchResults map[string][]models.TargetSong
	liked         []string
}

func (m *mockTarget) FetchLibrary(ctx context.Context, knownIDs map[string]bool) ([]models.TargetSong, error) {
	return nil, nil
}

func (m *mockTarget) Search(ctx context.Context, query string) ([]models.TargetSong, error) {
	for key, songs := range m.searchResults {
		if strings.Contains(query, key) {
			return songs, nil
		}
	}
	return nil, nil
}

func (m *mockTarget) Like(ctx context.Context, trackIDs []string) error {
	m.liked = append(m.liked, trackIDs...)
	return nil
}

func (m *mockTarget) CreatePlaylist(ctx context.Context, name string) (string, error) {
	return "tp1", nil
}

func (m *mockTarget) AddToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	return nil
}

func (m *mockTarget) Name() string { return "MockTarget" }

func newTestRunner(t *testing.T, source *mockSource, target *mockTarget) (*Runner, *bytes.Buffer) {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	output := &bytes.Buffer{}
	opts := RunnerOpts{
		Config: shared.DefaultConfig(),
		DB:     db,
		Logger: shared.NewLogger(output),
		Output: output,
	}
	if source != nil {
		opts.Source = source
	}
	if target != nil {
		opts.Target = target
	}
	return NewRunner(opts), output
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner defaults", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		if runner.logger == nil {
			t.Error("expected default logger to be set")
		}
		if runner.output != os.Stdout {
			t.Error("expected output to default to os.Stdout")
		}
	})

	t.Run("NewRunner with dependencies", func(t *testing.T) {
		config := shared.DefaultConfig()
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Output: output})
		if runner.config != config {
			t.Error("expected config to be set")
		}
		if runner.output != output {
			t.Error("expected output to be set")
		}
	})
}

func TestFetchCommand(t *testing.T) {
	source := &mockSource{
		likes: []models.SourceTrack{
			{ID: "y1", Title: "Yesterday", Artists: []string{"The Beatles"}},
			{ID: "y2", Title: "Help!", Artists: []string{"The Beatles"}},
		},
		playlists: []models.SourcePlaylist{
			{ID: "pl1", Name: "Rock", Tracks: []models.SourceTrack{
				{ID: "y1", Title: "Yesterday", Artists: []string{"The Beatles"}},
			}},
		},
	}
	runner, output := newTestRunner(t, source, nil)

	cmd := fetchCommand(runner)
	if err := cmd.Run(context.Background(), []string{"fetch"}); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if !strings.Contains(output.String(), "Liked tracks: 2 (2 new)") {
		t.Errorf("missing likes summary, got: %s", output.String())
	}
	if !strings.Contains(output.String(), "Playlists: 1 (1 tracks)") {
		t.Errorf("missing playlists summary, got: %s", output.String())
	}

	likes, err := runner.sources.ListLikes()
	if err != nil || len(likes) != 2 {
		t.Errorf("snapshot not persisted: %v %v", likes, err)
	}
}

func TestLikedCommand(t *testing.T) {
	source := &mockSource{
		likes: []models.SourceTrack{
			{ID: "y1", Title: "Yesterday", Artists: []string{"The Beatles"}},
		},
	}
	target := &mockTarget{
		searchResults: map[string][]models.TargetSong{
			"Yesterday": {{ID: "sp1", URI: "spotify:track:sp1", Title: "Yesterday", Artists: []string{"The Beatles"}}},
		},
	}
	runner, output := newTestRunner(t, source, target)

	if err := fetchCommand(runner).Run(context.Background(), []string{"fetch"}); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if err := likedCommand(runner).Run(context.Background(), []string{"liked"}); err != nil {
		t.Fatalf("liked failed: %v", err)
	}

	if len(target.liked) != 1 || target.liked[0] != "sp1" {
		t.Errorf("liked = %v, want [sp1]", target.liked)
	}
	if !strings.Contains(output.String(), "Accepted:    1") {
		t.Errorf("missing run summary, got: %s", output.String())
	}

	m, err := runner.matches.Get("y1")
	if err != nil || m == nil || m.State != models.StateApplied {
		t.Errorf("match not applied: %+v %v", m, err)
	}
}

func TestStatsCommand(t *testing.T) {
	runner, output := newTestRunner(t, nil, nil)
	if err := runner.ensureDatabase(); err != nil {
		t.Fatalf("ensureDatabase: %v", err)
	}
	runner.sources.ReplaceLikes([]models.SourceTrack{
		{ID: "y1", Title: "A", Artists: []string{"X"}},
		{ID: "y2", Title: "B", Artists: []string{"Y"}},
	})
	runner.matches.Upsert(&models.Match{
		SourceID: "y1", SourceTitle: "A", SourceArtists: []string{"X"},
		State: models.StateApplied, TargetID: "sp1", Source: models.SourceAPISearch,
	})

	if err := statsCommand(runner).Run(context.Background(), []string{"stats"}); err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	if !strings.Contains(output.String(), "Source tracks: 2") {
		t.Errorf("missing totals, got: %s", output.String())
	}
	if !strings.Contains(output.String(), "Applied:       1 (50.0%)") {
		t.Errorf("missing applied line, got: %s", output.String())
	}
}

func TestReportCommand(t *testing.T) {
	runner, output := newTestRunner(t, nil, nil)
	if err := runner.ensureDatabase(); err != nil {
		t.Fatalf("ensureDatabase: %v", err)
	}
	runner.matches.Upsert(&models.Match{
		SourceID: "y1", SourceTitle: "Obscure", SourceArtists: []string{"Nobody"},
		State: models.StateUnresolved, Reason: "no_results",
	})

	path := filepath.Join(t.TempDir(), "report.md")
	err := reportCommand(runner).Run(context.Background(),
		[]string{"report", "--format", "markdown", "-o", path})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "Nobody - Obscure") {
		t.Errorf("report missing track, got: %s", data)
	}
	if !strings.Contains(output.String(), "Wrote 1 unresolved tracks") {
		t.Errorf("missing confirmation, got: %s", output.String())
	}
}
