// Package models defines the domain records for the catalog migration.
//
// Two categories of types:
//
// 1. Catalog snapshots, immutable once fetched:
//   - [SourceTrack] : a liked or playlist track on the source service (Yandex Music)
//   - [SourcePlaylist] : a source playlist with its ordered tracks
//   - [TargetSong] : a song in the target service's library (Spotify)
//
// 2. Mutable migration state, persisted through internal/repositories and
// written only after the corresponding remote operation is confirmed:
//   - [Match] : the per-source-track state machine record (pending, applied, unresolved, no_match)
//   - [PoolMatch] : the playlist track pool entry shared across playlists
//   - [PlaylistMapping] : source playlist → target playlist with the add-only synced set
//
// A source track id appears in exactly one [Match] row; its State field
// encodes where the track currently sits in the migration.
package models
