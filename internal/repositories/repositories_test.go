package repositories

import (
	"testing"

	"github.com/akopylov/crosstune/internal/models"
	"github.com/akopylov/crosstune/internal/shared"
)

func testDB(t *testing.T) *MatchRepository {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewMatchRepository(db)
}

func TestSourceRepositorySnapshotReplace(t *testing.T) {
	repo := NewSourceRepository(testDB(t).db)

	first := []models.SourceTrack{
		{ID: "y1", Title: "Yesterday", Artists: []string{"The Beatles"}},
		{ID: "y2", Title: "Группа крови", Artists: []string{"Кино"}},
	}
	if err := repo.ReplaceLikes(first); err != nil {
		t.Fatalf("ReplaceLikes: %v", err)
	}

	// A later fetch replaces the snapshot wholesale, including position.
	second := []models.SourceTrack{
		{ID: "y3", Title: "Help!", Artists: []string{"The Beatles"}},
		{ID: "y1", Title: "Yesterday", Artists: []string{"The Beatles"}},
	}
	if err := repo.ReplaceLikes(second); err != nil {
		t.Fatalf("ReplaceLikes again: %v", err)
	}

	got, err := repo.ListLikes()
	if err != nil {
		t.Fatalf("ListLikes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("snapshot holds %d tracks, want 2", len(got))
	}
	if got[0].ID != "y3" || got[0].Position != 0 {
		t.Errorf("newest track = %s at %d, want y3 at 0", got[0].ID, got[0].Position)
	}
	if got[1].ID != "y1" || got[1].Position != 1 {
		t.Errorf("second track = %s at %d, want y1 at 1", got[1].ID, got[1].Position)
	}
}

func TestSourceRepositoryPlaylists(t *testing.T) {
	repo := NewSourceRepository(testDB(t).db)

	playlists := []models.SourcePlaylist{
		{
			ID:   "pl1",
			Name: "Rock",
			Tracks: []models.SourceTrack{
				{ID: "y1", Title: "Yesterday", Artists: []string{"The Beatles"}},
				{ID: "y2", Title: "Группа крови", Artists: []string{"Кино"}},
			},
		},
		{ID: "pl2", Name: "Empty"},
	}
	if err := repo.ReplacePlaylists(playlists); err != nil {
		t.Fatalf("ReplacePlaylists: %v", err)
	}

	got, err := repo.ListPlaylists()
	if err != nil {
		t.Fatalf("ListPlaylists: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d playlists, want 2", len(got))
	}
	if got[0].Name != "Rock" || len(got[0].Tracks) != 2 {
		t.Errorf("playlist %q has %d tracks, want Rock with 2", got[0].Name, len(got[0].Tracks))
	}
	if got[0].Tracks[1].Artists[0] != "Кино" {
		t.Errorf("artists round-trip = %v", got[0].Tracks[1].Artists)
	}
	if len(got[1].Tracks) != 0 {
		t.Errorf("empty playlist round-tripped with %d tracks", len(got[1].Tracks))
	}
}

func TestMatchRepositoryUpsertAndGet(t *testing.T) {
	repo := testDB(t)

	m := &models.Match{
		SourceID:      "y1",
		SourceTitle:   "Yesterday",
		SourceArtists: []string{"The Beatles"},
		Position:      3,
		State:         models.StatePending,
		TargetID:      "sp1",
		TargetURI:     "spotify:track:sp1",
		TargetTitle:   "Yesterday - Remastered 2009",
		TargetArtists: []string{"The Beatles"},
		TitleScore:    1.0,
		ArtistScore:   0.85,
		Source:        models.SourceAPISearch,
		Candidates: []models.Candidate{
			{TargetID: "sp1", Title: "Yesterday - Remastered 2009", TitleScore: 1.0, ArtistScore: 0.85},
		},
	}
	if err := repo.Upsert(m); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.Get("y1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored match")
	}
	if got.State != models.StatePending || got.TargetID != "sp1" {
		t.Errorf("got state=%s target=%s", got.State, got.TargetID)
	}
	if len(got.SourceArtists) != 1 || got.SourceArtists[0] != "The Beatles" {
		t.Errorf("artists round-trip = %v", got.SourceArtists)
	}
	if len(got.Candidates) != 1 || got.Candidates[0].TargetID != "sp1" {
		t.Errorf("candidates round-trip = %+v", got.Candidates)
	}

	missing, err := repo.Get("nope")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("Get missing = %+v, want nil", missing)
	}
}

func TestMatchRepositoryRejectsInvalid(t *testing.T) {
	repo := testDB(t)

	// A pending match without a target id must never reach the database.
	err := repo.Upsert(&models.Match{SourceID: "y1", State: models.StatePending})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestMatchRepositoryStateTransitions(t *testing.T) {
	repo := testDB(t)

	unresolved := &models.Match{
		SourceID:    "y1",
		SourceTitle: "Obscure B-Side",
		State:       models.StateUnresolved,
		Reason:      "no_results",
	}
	if err := repo.Upsert(unresolved); err != nil {
		t.Fatalf("Upsert unresolved: %v", err)
	}

	// Manual resolution replaces the row, moving the track to pending.
	resolved := &models.Match{
		SourceID:    "y1",
		SourceTitle: "Obscure B-Side",
		State:       models.StatePending,
		TargetID:    "sp7",
		TargetURI:   "spotify:track:sp7",
		Source:      models.SourceManualResolve,
	}
	if err := repo.Upsert(resolved); err != nil {
		t.Fatalf("Upsert resolved: %v", err)
	}

	if err := repo.MarkApplied([]string{"y1"}); err != nil {
		t.Fatalf("MarkApplied: %v", err)
	}

	got, err := repo.Get("y1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != models.StateApplied {
		t.Errorf("state = %s, want applied", got.State)
	}
	if got.Reason != "" {
		t.Errorf("reason survived re-resolution: %q", got.Reason)
	}

	counts, err := repo.CountByState()
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if counts[models.StateApplied] != 1 || counts[models.StateUnresolved] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

func TestMatchRepositoryMarkAppliedOnlyPending(t *testing.T) {
	repo := testDB(t)

	applied := &models.Match{
		SourceID: "y1", SourceTitle: "a", State: models.StateApplied,
		TargetID: "sp1", Source: models.SourceLibraryPrematch,
	}
	noMatch := &models.Match{
		SourceID: "y2", SourceTitle: "b", State: models.StateNoMatch,
	}
	for _, m := range []*models.Match{applied, noMatch} {
		if err := repo.Upsert(m); err != nil {
			t.Fatalf("Upsert %s: %v", m.SourceID, err)
		}
	}

	// Ids not in pending are left untouched rather than erroring.
	if err := repo.MarkApplied([]string{"y1", "y2", "y3"}); err != nil {
		t.Fatalf("MarkApplied: %v", err)
	}

	got, err := repo.Get("y2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != models.StateNoMatch {
		t.Errorf("no_match row transitioned to %s", got.State)
	}
}

func TestMatchRepositoryListByStateOrder(t *testing.T) {
	repo := testDB(t)

	// Position 0 is the newest track; pending work drains oldest first.
	rows := []*models.Match{
		{SourceID: "y1", SourceTitle: "newest", Position: 0, State: models.StatePending, TargetID: "sp1", Source: models.SourceAPISearch},
		{SourceID: "y2", SourceTitle: "middle", Position: 1, State: models.StatePending, TargetID: "sp2", Source: models.SourceAPISearch},
		{SourceID: "y3", SourceTitle: "oldest", Position: 2, State: models.StatePending, TargetID: "sp3", Source: models.SourceAPISearch},
		{SourceID: "y4", SourceTitle: "other", Position: 3, State: models.StateUnresolved},
	}
	for _, m := range rows {
		if err := repo.Upsert(m); err != nil {
			t.Fatalf("Upsert %s: %v", m.SourceID, err)
		}
	}

	pending, err := repo.ListByState(models.StatePending)
	if err != nil {
		t.Fatalf("ListByState: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("got %d pending, want 3", len(pending))
	}
	for i, want := range []string{"y3", "y2", "y1"} {
		if pending[i].SourceID != want {
			t.Errorf("pending[%d] = %s, want %s", i, pending[i].SourceID, want)
		}
	}
}

func TestMatchRepositorySets(t *testing.T) {
	repo := testDB(t)

	rows := []*models.Match{
		{SourceID: "y1", SourceTitle: "a", State: models.StateApplied, TargetID: "sp1", Source: models.SourceLibraryPrematch},
		{SourceID: "y2", SourceTitle: "b", State: models.StatePending, TargetID: "sp2", Source: models.SourceAPISearch},
		{SourceID: "y3", SourceTitle: "c", State: models.StateUnresolved, Reason: "title_mismatch"},
		{SourceID: "y4", SourceTitle: "d", State: models.StateNoMatch},
	}
	for _, m := range rows {
		if err := repo.Upsert(m); err != nil {
			t.Fatalf("Upsert %s: %v", m.SourceID, err)
		}
	}

	seen, err := repo.SeenIDs()
	if err != nil {
		t.Fatalf("SeenIDs: %v", err)
	}
	if len(seen) != 4 || !seen["y3"] {
		t.Errorf("seen = %v", seen)
	}

	resolved, err := repo.ResolvedTargetIDs()
	if err != nil {
		t.Fatalf("ResolvedTargetIDs: %v", err)
	}
	if len(resolved) != 2 || !resolved["sp1"] || !resolved["sp2"] {
		t.Errorf("resolved targets = %v, want sp1 and sp2 only", resolved)
	}
}

func TestMatchRepositoryArtistMet(t *testing.T) {
	repo := testDB(t)

	m := &models.Match{SourceID: "y1", SourceTitle: "a", State: models.StateUnresolved, Reason: "no_results"}
	if err := repo.Upsert(m); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.SetArtistMet("y1", true); err != nil {
		t.Fatalf("SetArtistMet: %v", err)
	}

	got, err := repo.Get("y1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.ArtistMet {
		t.Error("artist_met flag not persisted")
	}
}

func TestPoolRepository(t *testing.T) {
	repo := NewPoolRepository(testDB(t).db)

	matched := &models.PoolMatch{
		SourceID: "y1", Matched: true, TargetID: "sp1", TargetURI: "spotify:track:sp1",
		TitleScore: 0.95, ArtistScore: 0.9, Source: models.SourceAPISearch,
	}
	unmatched := &models.PoolMatch{
		SourceID: "y2",
		Candidates: []models.Candidate{
			{TargetID: "sp8", Title: "Close Call", TitleScore: 0.6, ArtistScore: 0.9},
		},
	}
	noCandidates := &models.PoolMatch{SourceID: "y3"}
	for _, p := range []*models.PoolMatch{matched, unmatched, noCandidates} {
		if err := repo.Upsert(p); err != nil {
			t.Fatalf("Upsert %s: %v", p.SourceID, err)
		}
	}

	got, err := repo.Get("y1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || !got.Matched || got.TargetID != "sp1" {
		t.Errorf("got = %+v", got)
	}

	resolvable, err := repo.Resolvable()
	if err != nil {
		t.Fatalf("Resolvable: %v", err)
	}
	if len(resolvable) != 1 || resolvable[0].SourceID != "y2" {
		t.Errorf("resolvable = %+v, want only y2", resolvable)
	}

	// Resolving y2 later upserts over the unmatched verdict.
	unmatched.Matched = true
	unmatched.TargetID = "sp8"
	unmatched.Source = models.SourceManualResolve
	if err := repo.Upsert(unmatched); err != nil {
		t.Fatalf("Upsert resolved: %v", err)
	}
	pool, err := repo.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pool) != 3 {
		t.Fatalf("pool holds %d entries, want 3", len(pool))
	}
}

func TestPoolRepositoryRejectsMatchedWithoutTarget(t *testing.T) {
	repo := NewPoolRepository(testDB(t).db)
	if err := repo.Upsert(&models.PoolMatch{SourceID: "y1", Matched: true}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestMappingRepository(t *testing.T) {
	repo := NewMappingRepository(testDB(t).db)

	m := &models.PlaylistMapping{SourcePlaylistID: "pl1", Name: "Rock", TargetPlaylistID: "tp1"}
	if err := repo.Upsert(m); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := repo.AddSynced("pl1", []string{"y1", "y2"}); err != nil {
		t.Fatalf("AddSynced: %v", err)
	}
	// Duplicates from an interrupted run are ignored.
	if err := repo.AddSynced("pl1", []string{"y2", "y3"}); err != nil {
		t.Fatalf("AddSynced again: %v", err)
	}

	got, err := repo.Get("pl1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored mapping")
	}
	if len(got.SyncedTrackIDs) != 3 {
		t.Errorf("synced = %v, want 3 unique ids", got.SyncedTrackIDs)
	}
	if !got.HasSynced("y2") || got.HasSynced("y9") {
		t.Error("HasSynced membership wrong")
	}

	// Renaming the source playlist keeps the synced set.
	m.Name = "Rock Classics"
	if err := repo.Upsert(m); err != nil {
		t.Fatalf("Upsert rename: %v", err)
	}
	all, err := repo.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].Name != "Rock Classics" || len(all[0].SyncedTrackIDs) != 3 {
		t.Errorf("list = %+v", all)
	}

	missing, err := repo.Get("nope")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("Get missing = %+v, want nil", missing)
	}
}
