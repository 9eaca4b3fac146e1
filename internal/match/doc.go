// Package match implements track reconciliation between catalogs that share
// no common identifier.
//
// Matching works on normalized free-text metadata. [Normalize] canonicalizes
// titles and artist names, [Transliterate] bridges Cyrillic and Latin
// spellings, and [Similarity] computes a truncation-aware edit-distance score
// in [0,1]. A [LibraryIndex] built over the target library answers the fast
// pre-match path: an O(1) exact-title lookup resolves the bulk of tracks, an
// artist-bucket fuzzy scan catches the remainder, and only tracks neither
// phase resolves go to the remote search matcher.
//
// A composite match requires both the title score and the artist score to
// reach [MatchThreshold]; the confidence of a match is the minimum of the
// two.
package match
