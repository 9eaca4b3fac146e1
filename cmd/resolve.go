package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/akopylov/crosstune/internal/models"
	"github.com/akopylov/crosstune/internal/ui"
)

// Resolve opens the interactive picker over tracks the matcher left
// undecided. With --pool it operates on playlist pool entries, which are
// resolved without liking anything; otherwise on liked-track rows, where a
// pick is liked on Spotify immediately.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureConfig(cmd); err != nil {
		return err
	}
	if err := r.ensureEngine(ctx); err != nil {
		return err
	}

	var entries []ui.ResolveEntry
	var actions ui.Actions

	if cmd.Bool("pool") {
		poolEntries, tracks, err := r.engine.PoolResolvable()
		if err != nil {
			return err
		}
		for _, p := range poolEntries {
			t := tracks[p.SourceID]
			entries = append(entries, ui.ResolveEntry{
				SourceID:   p.SourceID,
				Title:      t.Title,
				Artists:    models.JoinArtists(t.Artists),
				Candidates: p.Candidates,
			})
		}
		actions = ui.Actions{
			Apply: func(_ context.Context, sourceID string, pick models.Candidate) error {
				return r.engine.ResolvePool(sourceID, pick)
			},
			NoMatch: r.engine.MarkPoolNoMatch,
		}
	} else {
		rows, err := r.engine.Resolvable()
		if err != nil {
			return err
		}
		for _, m := range rows {
			entries = append(entries, ui.ResolveEntry{
				SourceID:   m.SourceID,
				Title:      m.SourceTitle,
				Artists:    models.JoinArtists(m.SourceArtists),
				Reason:     m.Reason,
				Candidates: m.Candidates,
			})
		}
		actions = ui.Actions{
			Apply:   r.engine.ResolveLiked,
			NoMatch: r.engine.MarkNoMatch,
		}
	}

	if len(entries) == 0 {
		return r.writePlain("Nothing to resolve\n")
	}

	model := ui.NewModel(ctx, entries, actions)
	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return err
	}

	if m, ok := final.(*ui.Model); ok {
		r.writePlain("Resolved %d tracks, marked %d as no match\n", m.Applied(), m.NoMatched())
	}
	return nil
}
