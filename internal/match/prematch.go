package match

import (
	"time"

	"github.com/akopylov/crosstune/internal/models"
)

// Prematch resolves source tracks against the indexed target library without
// issuing any search call.
//
// A pre-matched track is already present in the target library, so the
// resulting Match goes straight to the applied state: there is no remote
// operation left to confirm. Tracks the index cannot resolve are returned
// unchanged for the search matcher.
func Prematch(tracks []models.SourceTrack, ix *LibraryIndex) (matched []models.Match, unmatched []models.SourceTrack) {
	now := time.Now().UTC()

	for _, track := range tracks {
		song, titleScore, artistScore, ok := ix.Resolve(track)
		if !ok {
			unmatched = append(unmatched, track)
			continue
		}

		matched = append(matched, models.Match{
			SourceID:      track.ID,
			SourceTitle:   track.Title,
			SourceArtists: track.Artists,
			Position:      track.Position,
			State:         models.StateApplied,
			TargetID:      song.ID,
			TargetURI:     song.URI,
			TargetTitle:   song.Title,
			TargetArtists: song.Artists,
			TitleScore:    round3(titleScore),
			ArtistScore:   round3(artistScore),
			Source:        models.SourceLibraryPrematch,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	return matched, unmatched
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
