package ui

// resolvedMsg reports the outcome of one resolution side effect.
type resolvedMsg struct {
	sourceID string
	noMatch  bool
	err      error
}
