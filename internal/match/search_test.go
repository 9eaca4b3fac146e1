package match

import (
	"context"
	"strings"
	"testing"

	"github.com/akopylov/crosstune/internal/models"
)

type mockSearcher struct {
	results map[string][]models.TargetSong
	queries []string
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]models.TargetSong, error) {
	m.queries = append(m.queries, query)
	for key, songs := range m.results {
		if strings.Contains(query, key) {
			return songs, nil
		}
	}
	return nil, nil
}

func TestSearchMatchLatin(t *testing.T) {
	searcher := &mockSearcher{results: map[string][]models.TargetSong{
		"Yesterday": {
			{ID: "sp1", URI: "spotify:track:sp1", Title: "Yesterday - Remastered 2009", Artists: []string{"The Beatles"}},
			{ID: "sp9", URI: "spotify:track:sp9", Title: "Tomorrow Never Knows", Artists: []string{"The Beatles"}},
		},
	}}

	track := models.SourceTrack{ID: "y1", Title: "Yesterday", Artists: []string{"The Beatles"}}
	outcome, err := SearchMatch(context.Background(), searcher, track)
	if err != nil {
		t.Fatalf("SearchMatch: %v", err)
	}

	if len(searcher.queries) != 1 {
		t.Errorf("issued %d queries, want 1 for Latin metadata", len(searcher.queries))
	}
	if !outcome.Accepted() {
		t.Fatal("expected acceptance")
	}
	if outcome.Best.TargetID != "sp1" {
		t.Errorf("best = %s, want sp1", outcome.Best.TargetID)
	}
	if outcome.Best.TitleScore < MatchThreshold {
		t.Errorf("truncation-adjusted title score %v, want >= %v", outcome.Best.TitleScore, MatchThreshold)
	}
}

func TestSearchMatchCyrillicSecondQuery(t *testing.T) {
	// No transliteration-equivalent library match exists; the transliterated
	// search query finds the Latin-spelled release.
	searcher := &mockSearcher{results: map[string][]models.TargetSong{
		"Gruppa": {
			{ID: "sp2", URI: "spotify:track:sp2", Title: "Gruppa Krovi", Artists: []string{"Kino"}},
		},
	}}

	track := models.SourceTrack{ID: "y1", Title: "Группа крови", Artists: []string{"Кино"}}
	outcome, err := SearchMatch(context.Background(), searcher, track)
	if err != nil {
		t.Fatalf("SearchMatch: %v", err)
	}

	if len(searcher.queries) != 2 {
		t.Fatalf("issued %d queries, want 2 for Cyrillic metadata", len(searcher.queries))
	}
	if !outcome.Accepted() {
		t.Fatalf("expected acceptance, best=%+v", outcome.Best)
	}
	if outcome.Best.TargetID != "sp2" {
		t.Errorf("best = %s, want sp2", outcome.Best.TargetID)
	}
	if outcome.Best.ArtistScore < MatchThreshold {
		t.Errorf("artist score %v, want >= %v", outcome.Best.ArtistScore, MatchThreshold)
	}
}

func TestSearchMatchMergesDuplicates(t *testing.T) {
	song := models.TargetSong{ID: "sp2", URI: "spotify:track:sp2", Title: "Gruppa Krovi", Artists: []string{"Kino"}}
	searcher := &mockSearcher{results: map[string][]models.TargetSong{
		"крови":  {song},
		"Gruppa": {song},
	}}

	track := models.SourceTrack{ID: "y1", Title: "Группа крови", Artists: []string{"Кино"}}
	outcome, err := SearchMatch(context.Background(), searcher, track)
	if err != nil {
		t.Fatalf("SearchMatch: %v", err)
	}
	if len(outcome.Candidates) != 1 {
		t.Errorf("kept %d candidates, want 1 after merge by target id", len(outcome.Candidates))
	}
}

func TestSearchMatchCapsCandidates(t *testing.T) {
	songs := []models.TargetSong{
		{ID: "c1", Title: "Yesterday", Artists: []string{"The Beatles"}},
		{ID: "c2", Title: "Yesterday (Live)", Artists: []string{"The Beatles"}},
		{ID: "c3", Title: "Yesterday - Mono", Artists: []string{"The Beatles"}},
		{ID: "c4", Title: "Yesterdays", Artists: []string{"The Beatles"}},
		{ID: "c5", Title: "Yesterday Once More", Artists: []string{"Carpenters"}},
		{ID: "c6", Title: "Not Yesterday", Artists: []string{"Nobody"}},
		{ID: "c7", Title: "Something Else", Artists: []string{"Nobody"}},
	}
	searcher := &mockSearcher{results: map[string][]models.TargetSong{"Yesterday": songs}}

	track := models.SourceTrack{ID: "y1", Title: "Yesterday", Artists: []string{"The Beatles"}}
	outcome, err := SearchMatch(context.Background(), searcher, track)
	if err != nil {
		t.Fatalf("SearchMatch: %v", err)
	}

	if len(outcome.Candidates) != CandidatesToStore {
		t.Fatalf("kept %d candidates, want %d", len(outcome.Candidates), CandidatesToStore)
	}
	for i := 1; i < len(outcome.Candidates); i++ {
		if outcome.Candidates[i].Confidence() > outcome.Candidates[i-1].Confidence() {
			t.Fatal("candidates not ranked by confidence")
		}
	}
	if outcome.Best.TargetID != outcome.Candidates[0].TargetID {
		t.Error("best candidate must be the top-ranked one")
	}
}

func TestSearchMatchNoResults(t *testing.T) {
	searcher := &mockSearcher{results: map[string][]models.TargetSong{}}

	track := models.SourceTrack{ID: "y1", Title: "Obscure B-Side", Artists: []string{"Nobody"}}
	outcome, err := SearchMatch(context.Background(), searcher, track)
	if err != nil {
		t.Fatalf("SearchMatch: %v", err)
	}
	if outcome.Best != nil || len(outcome.Candidates) != 0 {
		t.Errorf("outcome = %+v, want empty", outcome)
	}
	if outcome.Accepted() {
		t.Error("empty outcome must not be accepted")
	}
}
