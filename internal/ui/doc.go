// Package ui implements the interactive terminal picker for manual track
// resolution using bubbletea's Elm architecture.
//
// The picker is a two-level workflow:
//  1. [TrackListView] : Browse unresolved tracks with stored candidates
//  2. [CandidateListView] : Pick a candidate, or mark the track unmatchable
//
// The [Model] implements bubbletea's standard Init/Update/View pattern.
// Resolution side effects (liking the pick, flipping the state machine row)
// run as tea commands through the [Actions] callbacks, keeping the view loop
// non-blocking.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, x, q) with
// contextual help via charmbracelet/bubbles/help.
package ui
