package models

import (
	"fmt"
	"strings"
	"time"
)

// MatchState enumerates the lifecycle states of a liked-track migration.
//
// Absence of a row is the implicit "unseen" state. Transitions:
// unseen → pending|unresolved, pending → applied, unresolved → pending
// (re-resolution) or no_match (terminal).
type MatchState string

const (
	StatePending    MatchState = "pending"
	StateApplied    MatchState = "applied"
	StateUnresolved MatchState = "unresolved"
	StateNoMatch    MatchState = "no_match"
)

// MatchSource enumerates how a resolved match was produced.
type MatchSource string

const (
	SourceLibraryPrematch MatchSource = "library_prematch"
	SourceAPISearch       MatchSource = "api_search"
	SourceManualResolve   MatchSource = "manual_resolve"
	SourceFavsCrossref    MatchSource = "favs_crossref"
	SourcePlaylistCross   MatchSource = "playlist_crosslike"
)

// SourceTrack is an immutable snapshot of a track on the source service.
// Position preserves the source catalog's insertion order (0 = newest).
type SourceTrack struct {
	ID       string
	Title    string
	Artists  []string
	Position int
}

// FirstArtist returns the primary artist, or "" when metadata is missing.
func (t SourceTrack) FirstArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return strings.TrimSpace(t.Artists[0])
}

// Incomplete reports whether the track lacks the metadata needed for matching.
func (t SourceTrack) Incomplete() bool {
	return strings.TrimSpace(t.Title) == "" || t.FirstArtist() == ""
}

// SourcePlaylist is a snapshot of a source playlist with its ordered tracks.
type SourcePlaylist struct {
	ID     string
	Name   string
	Tracks []SourceTrack
}

// TargetSong is a song in the target service's catalog.
type TargetSong struct {
	ID      string
	URI     string
	Title   string
	Artists []string
	AddedAt time.Time
}

// Candidate is a scored search result stored for manual resolution.
type Candidate struct {
	TargetID    string  `json:"target_id"`
	TargetURI   string  `json:"target_uri"`
	Title       string  `json:"title"`
	Artists     string  `json:"artists"`
	TitleScore  float64 `json:"title_score"`
	ArtistScore float64 `json:"artist_score"`
}

// Confidence is the composite score: both components must clear the match
// threshold, so the minimum is the binding one.
func (c Candidate) Confidence() float64 {
	if c.TitleScore < c.ArtistScore {
		return c.TitleScore
	}
	return c.ArtistScore
}

// Match is the persisted state machine record for one source track.
type Match struct {
	SourceID      string
	SourceTitle   string
	SourceArtists []string
	Position      int

	State MatchState

	TargetID      string
	TargetURI     string
	TargetTitle   string
	TargetArtists []string
	TitleScore    float64
	ArtistScore   float64
	Source        MatchSource

	// Reason explains an unresolved state: no_results, title_mismatch, api_error.
	Reason     string
	Candidates []Candidate
	// ArtistMet marks unresolved tracks whose artist appears among resolved
	// matches, making them the best retry candidates.
	ArtistMet bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Confidence returns min(title score, artist score).
func (m *Match) Confidence() float64 {
	if m.TitleScore < m.ArtistScore {
		return m.TitleScore
	}
	return m.ArtistScore
}

// Validate checks state/field consistency before persisting.
func (m *Match) Validate() error {
	if m.SourceID == "" {
		return fmt.Errorf("match has no source id")
	}
	switch m.State {
	case StatePending, StateApplied:
		if m.TargetID == "" {
			return fmt.Errorf("%s match %s has no target id", m.State, m.SourceID)
		}
	case StateUnresolved, StateNoMatch:
		if m.TargetID != "" {
			return fmt.Errorf("%s match %s carries a target id", m.State, m.SourceID)
		}
	default:
		return fmt.Errorf("unknown match state %q", m.State)
	}
	return nil
}

// PoolMatch is an entry in the playlist track pool, shared across playlists
// and with the liked-tracks migration so a track is never searched twice.
type PoolMatch struct {
	SourceID   string
	Matched    bool
	TargetID   string
	TargetURI  string
	TitleScore float64
	ArtistScore float64
	Source     MatchSource
	Candidates []Candidate
}

// Resolvable reports whether the entry is unmatched but has stored candidates
// for manual resolution.
func (p *PoolMatch) Resolvable() bool {
	return !p.Matched && len(p.Candidates) > 0
}

// PlaylistMapping links a source playlist to its target counterpart.
// SyncedTrackIDs grows monotonically; sync never removes entries.
type PlaylistMapping struct {
	SourcePlaylistID string
	Name             string
	TargetPlaylistID string
	SyncedTrackIDs   []string
}

// HasSynced reports whether the given source track id was already added to
// the target playlist.
func (p *PlaylistMapping) HasSynced(sourceTrackID string) bool {
	for _, id := range p.SyncedTrackIDs {
		if id == sourceTrackID {
			return true
		}
	}
	return false
}

// JoinArtists renders an artist list in its comma-joined storage and display
// form.
func JoinArtists(artists []string) string {
	return strings.Join(artists, ", ")
}

// SplitArtists parses the comma-joined storage form back into a list,
// dropping empty segments.
func SplitArtists(s string) []string {
	var artists []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			artists = append(artists, part)
		}
	}
	return artists
}
