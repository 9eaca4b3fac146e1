// Package tasks implements the migration engines.
//
// The core abstraction is [Engine], which owns the persistence repositories
// and the target-service client and exposes one method per long-running
// operation: liked-tracks migration, playlist sync, unresolved retry, and
// the statistics collectors behind the stats command.
//
// Every operation is resumable: all intermediate decisions are persisted
// through the repositories before the next remote call, so an interrupted
// run picks up where it left off. Operations emit progress updates via
// channels for non-blocking status reporting to the CLI layer.
package tasks
