package match

import (
	"github.com/agnivade/levenshtein"

	"github.com/akopylov/crosstune/internal/models"
)

const (
	// MatchThreshold is the minimum similarity both the title and artist
	// scores must reach for an automatic match.
	MatchThreshold = 0.7
	// CandidatesToStore caps the candidate list kept per unresolved track.
	CandidatesToStore = 5
)

// Similarity computes a normalized edit-distance similarity in [0,1] between
// two strings after canonicalization.
//
// Suffix annotations are handled by also scoring the longer string truncated
// to the shorter one's length and keeping the better result, so "Yesterday"
// vs "Yesterday - Remastered 2009" scores 1.0. Two empty strings score 1.0
// (identical inputs always score 1.0); empty vs non-empty scores 0.
func Similarity(a, b string) float64 {
	na, nb := []rune(Normalize(a)), []rune(Normalize(b))

	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen == 0 {
		return 1.0
	}

	full := 1 - float64(levenshtein.ComputeDistance(string(na), string(nb)))/float64(maxLen)

	minLen := len(na)
	if len(nb) < minLen {
		minLen = len(nb)
	}
	if minLen > 0 && maxLen > minLen {
		truncated := 1 - float64(levenshtein.ComputeDistance(string(na[:minLen]), string(nb[:minLen])))/float64(minLen)
		if truncated > full {
			return truncated
		}
	}
	return full
}

// TitleSimilarity scores a source title against a target title, trying the
// transliterated source form as well and keeping the higher score.
func TitleSimilarity(sourceTitle, targetTitle string) float64 {
	score := Similarity(sourceTitle, targetTitle)
	if tr, ok := Transliterate(sourceTitle); ok {
		if s := Similarity(tr, targetTitle); s > score {
			score = s
		}
	}
	return score
}

// ArtistSimilarity scores the best-aligned artist pair between a source
// track and a target song. Both sides contribute their original and
// transliterated forms; the maximum pairwise similarity wins.
func ArtistSimilarity(track models.SourceTrack, targetArtists []string) float64 {
	primary := track.FirstArtist()
	if primary == "" {
		return 0
	}
	sourceForms := forms(primary)

	var targetForms []string
	for _, a := range targetArtists {
		targetForms = append(targetForms, forms(a)...)
	}

	best := 0.0
	for _, sf := range sourceForms {
		for _, tf := range targetForms {
			if s := Similarity(sf, tf); s > best {
				best = s
			}
		}
	}
	return best
}
