package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/akopylov/crosstune/internal/models"
)

// ViewState represents the current view in the resolver.
type ViewState int

const (
	TrackListView ViewState = iota
	CandidateListView
	ResultView
)

// ResolveEntry is one unresolved track offered for manual resolution.
type ResolveEntry struct {
	SourceID   string
	Title      string
	Artists    string
	Reason     string
	Candidates []models.Candidate
}

// Actions connect the resolver to the migration engine. Apply confirms a
// candidate pick; NoMatch marks the track terminally unmatchable.
type Actions struct {
	Apply   func(ctx context.Context, sourceID string, pick models.Candidate) error
	NoMatch func(sourceID string) error
}

// Model is the resolver's bubbletea model.
type Model struct {
	ctx     context.Context
	view    ViewState
	actions Actions

	width  int
	height int

	entries   []ResolveEntry
	selected  *ResolveEntry
	trackList list.Model
	candList  list.Model

	applied   int
	noMatched int
	status    string
	err       error

	help help.Model
	keys keyMap
}

// NewModel builds a resolver over the given unresolved entries.
func NewModel(ctx context.Context, entries []ResolveEntry, actions Actions) *Model {
	m := &Model{
		ctx:     ctx,
		view:    TrackListView,
		actions: actions,
		entries: entries,
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.trackList = list.New(trackItems(entries), list.NewDefaultDelegate(), 0, 0)
	m.trackList.Title = "Unresolved Tracks"
	if len(entries) == 0 {
		m.view = ResultView
	}
	return m
}

// Applied returns how many tracks were resolved to a candidate.
func (m *Model) Applied() int { return m.applied }

// NoMatched returns how many tracks were marked unmatchable.
func (m *Model) NoMatched() int { return m.noMatched }

func trackItems(entries []ResolveEntry) []list.Item {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = trackItem{entry: e}
	}
	return items
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		if m.view == CandidateListView {
			m.candList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case CandidateListView:
			return m.handleCandidateListKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case resolvedMsg:
		if msg.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Failed: %v", msg.err))
			m.view = TrackListView
			return m, nil
		}
		if msg.noMatch {
			m.noMatched++
			m.status = styles.warn.Render("Marked as no match")
		} else {
			m.applied++
			m.status = styles.ok.Render("Resolved")
		}
		m.removeEntry(msg.sourceID)
		if len(m.entries) == 0 {
			m.view = ResultView
		} else {
			m.view = TrackListView
		}
		return m, nil
	}

	return m.updateLists(msg)
}

func (m *Model) View() string {
	switch m.view {
	case TrackListView:
		return m.renderTrackList()
	case CandidateListView:
		return m.renderCandidateList()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if item, ok := m.trackList.SelectedItem().(trackItem); ok {
			entry := item.entry
			m.selected = &entry
			items := make([]list.Item, len(entry.Candidates))
			for i, c := range entry.Candidates {
				items[i] = candidateItem{candidate: c}
			}
			m.candList = list.New(items, list.NewDefaultDelegate(), 0, 0)
			m.candList.Title = fmt.Sprintf("Candidates for '%s - %s'", entry.Artists, entry.Title)
			m.candList.SetSize(m.width-4, m.height-8)
			m.view = CandidateListView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleCandidateListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = TrackListView
		m.selected = nil
		return m, nil
	case "x":
		return m, m.markNoMatch(m.selected.SourceID)
	case "enter":
		if item, ok := m.candList.SelectedItem().(candidateItem); ok {
			return m, m.applyPick(m.selected.SourceID, item.candidate)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.candList, cmd = m.candList.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "enter", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	case CandidateListView:
		m.candList, cmd = m.candList.Update(msg)
	}
	return m, cmd
}

func (m *Model) applyPick(sourceID string, pick models.Candidate) tea.Cmd {
	return func() tea.Msg {
		err := m.actions.Apply(m.ctx, sourceID, pick)
		return resolvedMsg{sourceID: sourceID, err: err}
	}
}

func (m *Model) markNoMatch(sourceID string) tea.Cmd {
	return func() tea.Msg {
		err := m.actions.NoMatch(sourceID)
		return resolvedMsg{sourceID: sourceID, noMatch: true, err: err}
	}
}

func (m *Model) removeEntry(sourceID string) {
	for i, e := range m.entries {
		if e.SourceID == sourceID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	m.selected = nil
	m.trackList.SetItems(trackItems(m.entries))
}

func (m *Model) renderTrackList() string {
	out := m.trackList.View()
	if m.status != "" {
		out += "\n" + m.status
	}
	return fmt.Sprintf("%s\n\n%s", out, m.help.ShortHelpView(m.keys.FullHelp()[0]))
}

func (m *Model) renderCandidateList() string {
	return fmt.Sprintf("%s\n\n%s", m.candList.View(),
		m.help.ShortHelpView(m.keys.FullHelp()[1]))
}

func (m *Model) renderResult() string {
	title := styles.title.Render("Resolution Complete")
	info := fmt.Sprintf("\nResolved: %d\nNo match: %d\nRemaining: %d\n",
		m.applied, m.noMatched, len(m.entries))
	return fmt.Sprintf("%s\n%s\n%s", title, info,
		styles.help.Render("press q to exit"))
}
