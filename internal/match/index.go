package match

import (
	"github.com/akopylov/crosstune/internal/models"
)

// LibraryIndex answers pre-match lookups over one batch of target-library
// songs without any network call.
//
// Two structures back it: a title multimap for the O(1) exact-title fast path
// (which short-circuits the vast majority of matches) and an artist bucket
// map that bounds the fuzzy fallback scan to a single artist's discography
// rather than the whole catalog. Cyrillic titles and artists are indexed
// under their transliterated keys too, so either spelling lands on the same
// bucket.
type LibraryIndex struct {
	titles  map[string][]models.TargetSong
	artists map[string][]models.TargetSong
	size    int
}

// BuildIndex builds a LibraryIndex from a batch of target songs.
func BuildIndex(songs []models.TargetSong) *LibraryIndex {
	ix := &LibraryIndex{
		titles:  make(map[string][]models.TargetSong, len(songs)),
		artists: make(map[string][]models.TargetSong),
		size:    len(songs),
	}

	for _, song := range songs {
		for _, key := range titleKeys(song.Title) {
			ix.titles[key] = append(ix.titles[key], song)
		}

		seen := make(map[string]bool)
		for _, artist := range song.Artists {
			for _, key := range artistKeys(artist) {
				if seen[key] {
					continue
				}
				seen[key] = true
				ix.artists[key] = append(ix.artists[key], song)
			}
		}
	}

	return ix
}

// Size returns the number of songs the index was built from.
func (ix *LibraryIndex) Size() int { return ix.size }

// Resolve attempts to match a source track against the indexed library.
//
// Phase 1 looks the normalized title up directly; an exact title hit scores
// 1.0 on title by definition and only needs the artist similarity to clear
// the threshold. Phase 2 falls back to the primary artist's bucket and
// scores every song in it; both scores must clear the threshold and the best
// min(title, artist) wins.
func (ix *LibraryIndex) Resolve(track models.SourceTrack) (models.TargetSong, float64, float64, bool) {
	if song, artistScore, ok := ix.titleLookup(track); ok {
		return song, 1.0, artistScore, true
	}
	return ix.artistScan(track)
}

func (ix *LibraryIndex) titleLookup(track models.SourceTrack) (models.TargetSong, float64, bool) {
	var best models.TargetSong
	bestScore := 0.0
	found := false

	for _, key := range titleKeys(track.Title) {
		for _, song := range ix.titles[key] {
			score := ArtistSimilarity(track, song.Artists)
			if score >= MatchThreshold && score > bestScore {
				best, bestScore, found = song, score, true
			}
		}
	}

	return best, bestScore, found
}

func (ix *LibraryIndex) artistScan(track models.SourceTrack) (models.TargetSong, float64, float64, bool) {
	primary := track.FirstArtist()
	if primary == "" {
		return models.TargetSong{}, 0, 0, false
	}

	seen := make(map[string]bool)
	var candidates []models.TargetSong
	for _, key := range artistKeys(primary) {
		for _, song := range ix.artists[key] {
			if !seen[song.ID] {
				seen[song.ID] = true
				candidates = append(candidates, song)
			}
		}
	}

	var best models.TargetSong
	bestCombined, bestTitle, bestArtist := 0.0, 0.0, 0.0
	found := false

	for _, song := range candidates {
		titleScore := TitleSimilarity(track.Title, song.Title)
		artistScore := ArtistSimilarity(track, song.Artists)
		combined := titleScore
		if artistScore < combined {
			combined = artistScore
		}
		if combined >= MatchThreshold && combined > bestCombined {
			best, bestCombined, bestTitle, bestArtist, found = song, combined, titleScore, artistScore, true
		}
	}

	if !found {
		return models.TargetSong{}, 0, 0, false
	}
	return best, bestTitle, bestArtist, true
}
