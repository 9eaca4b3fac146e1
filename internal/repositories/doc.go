// Package repositories provides the persistence layer for migration state.
//
// Every mutable record the migration produces funnels through a typed upsert
// here; nothing else writes the database. Each repository covers one concern:
//
//   - [SourceRepository] : source catalog snapshots (liked tracks, playlists)
//   - [MatchRepository] : the per-track liked-migration state machine
//   - [PoolRepository] : the playlist track pool shared across playlists
//   - [MappingRepository] : source→target playlist links and their add-only synced sets
//
// Records are keyed by source-catalog ids, so re-running any flow upserts
// over its previous rows instead of duplicating them.
package repositories
