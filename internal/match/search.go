package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/akopylov/crosstune/internal/models"
)

// Searcher is the slice of the target service the search matcher needs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.TargetSong, error)
}

// SearchOutcome is the scored result of searching for one source track.
type SearchOutcome struct {
	// Best is the top-confidence candidate, nil when the search returned
	// nothing at all.
	Best *models.Candidate
	// Candidates holds up to CandidatesToStore results ranked by confidence,
	// persisted for manual resolution when Best misses the threshold.
	Candidates []models.Candidate
}

// Accepted reports whether the best candidate clears the match threshold on
// both scores.
func (o SearchOutcome) Accepted() bool {
	return o.Best != nil && o.Best.Confidence() >= MatchThreshold
}

// BuildQuery renders the structured track search query.
func BuildQuery(title, artist string) string {
	return fmt.Sprintf("track:%s artist:%s", title, artist)
}

// SearchMatch issues a structured search for one source track and scores the
// returned candidates.
//
// When the track's metadata is Cyrillic a second query with the
// transliterated title and artist is issued and the candidate sets merged,
// keeping the higher confidence per target id. Candidates are ranked by
// min(title score, artist score).
func SearchMatch(ctx context.Context, s Searcher, track models.SourceTrack) (SearchOutcome, error) {
	artist := track.FirstArtist()

	queries := []string{BuildQuery(track.Title, artist)}
	if HasCyrillic(track.Title) || HasCyrillic(artist) {
		trTitle := track.Title
		if tr, ok := Transliterate(track.Title); ok {
			trTitle = tr
		}
		trArtist := artist
		if tr, ok := Transliterate(artist); ok {
			trArtist = tr
		}
		queries = append(queries, BuildQuery(trTitle, trArtist))
	}

	seen := make(map[string]models.Candidate)
	for _, query := range queries {
		songs, err := s.Search(ctx, query)
		if err != nil {
			return SearchOutcome{}, err
		}
		for _, c := range scoreCandidates(track, songs) {
			prev, ok := seen[c.TargetID]
			if !ok || c.Confidence() > prev.Confidence() {
				seen[c.TargetID] = c
			}
		}
	}

	if len(seen) == 0 {
		return SearchOutcome{}, nil
	}

	ranked := make([]models.Candidate, 0, len(seen))
	for _, c := range seen {
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence() > ranked[j].Confidence()
	})
	if len(ranked) > CandidatesToStore {
		ranked = ranked[:CandidatesToStore]
	}

	best := ranked[0]
	return SearchOutcome{Best: &best, Candidates: ranked}, nil
}

// scoreCandidates scores raw search results against the source track.
func scoreCandidates(track models.SourceTrack, songs []models.TargetSong) []models.Candidate {
	candidates := make([]models.Candidate, 0, len(songs))
	for _, song := range songs {
		candidates = append(candidates, models.Candidate{
			TargetID:    song.ID,
			TargetURI:   song.URI,
			Title:       song.Title,
			Artists:     models.JoinArtists(song.Artists),
			TitleScore:  round3(TitleSimilarity(track.Title, song.Title)),
			ArtistScore: round3(ArtistSimilarity(track, song.Artists)),
		})
	}
	return candidates
}
