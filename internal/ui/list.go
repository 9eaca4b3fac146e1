package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/akopylov/crosstune/internal/models"
)

var (
	_ list.Item = trackItem{}
	_ list.Item = candidateItem{}
)

// trackItem wraps a [ResolveEntry] to implement [list.Item].
type trackItem struct {
	entry ResolveEntry
}

func (i trackItem) FilterValue() string { return i.entry.Title }
func (i trackItem) Title() string {
	return fmt.Sprintf("%s - %s", i.entry.Artists, i.entry.Title)
}
func (i trackItem) Description() string {
	desc := fmt.Sprintf("%d candidates", len(i.entry.Candidates))
	if i.entry.Reason != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.entry.Reason)
	}
	return desc
}

// candidateItem wraps a [models.Candidate] to implement [list.Item].
type candidateItem struct {
	candidate models.Candidate
}

func (i candidateItem) FilterValue() string { return i.candidate.Title }
func (i candidateItem) Title() string {
	return fmt.Sprintf("%s - %s", i.candidate.Artists, i.candidate.Title)
}
func (i candidateItem) Description() string {
	return fmt.Sprintf("title %.2f • artist %.2f", i.candidate.TitleScore, i.candidate.ArtistScore)
}
