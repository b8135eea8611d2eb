package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rna3dhub/motifatlas/internal/events"
	"github.com/rna3dhub/motifatlas/internal/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := New(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func group(name, handle string, version int, kind types.ChangeKind, members ...string) types.NamedGroup {
	return types.NamedGroup{
		Name:     name,
		LoopType: types.LoopInternal,
		Members:  members,
		Identity: types.Identity{Handle: handle, Version: version, Kind: kind, Comment: "c"},
	}
}

func testRelease(id string, motifs ...types.NamedGroup) *types.Release {
	return &types.Release{
		ID:          id,
		LoopType:    types.LoopInternal,
		Date:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Description: "test " + id,
		Motifs:      motifs,
	}
}

func TestCreateAndGetRelease(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	g1 := group("Group_1", "00001", 2, types.KindUpdated, "IL_1ABC_003", "IL_1ABC_001")
	g1.Signature = "cWW-tSH-cWW"
	g1.Parents = []types.MotifID{
		{Type: types.LoopInternal, Handle: "00001", Version: 1},
		{Type: types.LoopInternal, Handle: "00777", Version: 4},
	}
	g2 := group("Group_2", "00002", 1, types.KindNew, "IL_2XYZ_010")
	rel := testRelease("1.0", g1, g2)

	require.NoError(t, s.CreateRelease(ctx, rel))

	got, err := s.GetRelease(ctx, types.LoopInternal, "1.0")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "test 1.0", got.Description)
	assert.True(t, rel.Date.Equal(got.Date))
	require.Len(t, got.Motifs, 2)

	assert.Equal(t, "Group_1", got.Motifs[0].Name)
	assert.Equal(t, []string{"IL_1ABC_003", "IL_1ABC_001"}, got.Motifs[0].Members, "member order is preserved")
	assert.Equal(t, g1.Parents, got.Motifs[0].Parents)
	assert.Equal(t, "cWW-tSH-cWW", got.Motifs[0].Signature)
	assert.Equal(t, g1.Identity, got.Motifs[0].Identity)
	assert.Equal(t, types.LoopInternal, got.Motifs[1].LoopType)
	assert.Empty(t, got.Motifs[1].Parents)

	missing, err := s.GetRelease(ctx, types.LoopInternal, "9.9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateReleaseRejectsExistingID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRelease(ctx, testRelease("0.1", group("a", "00001", 1, types.KindNew, "IL_1ABC_001"))))
	err := s.CreateRelease(ctx, testRelease("0.1", group("b", "00002", 1, types.KindNew, "IL_1ABC_002")))
	require.ErrorIs(t, err, types.ErrReleaseExists)

	got, err := s.GetRelease(ctx, types.LoopInternal, "0.1")
	require.NoError(t, err)
	require.Len(t, got.Motifs, 1)
	assert.Equal(t, "00001", got.Motifs[0].Identity.Handle)

	// The same id is fine for another loop type
	hl := testRelease("0.1", group("h", "00003", 1, types.KindNew, "HL_1ABC_001"))
	hl.LoopType = types.LoopHairpin
	hl.Motifs[0].LoopType = types.LoopHairpin
	require.NoError(t, s.CreateRelease(ctx, hl))
}

func TestCreateReleaseRollsBackOnFailure(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	// A loop listed twice in one motif violates the member key half way
	// through the insert.
	bad := testRelease("0.1",
		group("a", "00001", 1, types.KindNew, "IL_1ABC_001"),
		group("b", "00002", 1, types.KindNew, "IL_1ABC_002", "IL_1ABC_002"))
	require.Error(t, s.CreateRelease(ctx, bad))

	got, err := s.GetRelease(ctx, types.LoopInternal, "0.1")
	require.NoError(t, err)
	assert.Nil(t, got)

	handles, err := s.KnownHandles(ctx)
	require.NoError(t, err)
	assert.Empty(t, handles, "handles from the failed release must not persist")

	require.NoError(t, s.CreateRelease(ctx, testRelease("0.1", group("a", "00001", 1, types.KindNew, "IL_1ABC_001"))))
}

func TestCreateReleaseValidates(t *testing.T) {
	s := newTestStorage(t)
	err := s.CreateRelease(context.Background(), testRelease("one", group("a", "00001", 1, types.KindNew, "x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLatestAndListReleasesUseNumericOrder(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, id := range []string{"0.10", "0.9", "1.0", "0.2"} {
		require.NoError(t, s.CreateRelease(ctx, testRelease(id, group("a", "00001", 1, types.KindNew, "IL_1ABC_001"))))
	}

	latest, err := s.LatestRelease(ctx, types.LoopInternal)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "1.0", latest.ID)

	infos, err := s.ListReleases(ctx, types.LoopInternal)
	require.NoError(t, err)
	var ids []string
	for _, info := range infos {
		ids = append(ids, info.ID)
		assert.Equal(t, 1, info.Motifs)
	}
	assert.Equal(t, []string{"0.2", "0.9", "0.10", "1.0"}, ids)

	none, err := s.LatestRelease(ctx, types.LoopJunction)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestKnownHandlesAndNamingState(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRelease(ctx, testRelease("0.1",
		group("a", "00001", 1, types.KindNew, "IL_1ABC_001", "IL_1ABC_002"),
		group("b", "00002", 1, types.KindNew, "IL_1ABC_003"))))

	updated := group("a", "00001", 2, types.KindUpdated, "IL_1ABC_001", "IL_1ABC_002", "IL_1ABC_004")
	updated.Parents = []types.MotifID{{Type: types.LoopInternal, Handle: "00001", Version: 1}}
	require.NoError(t, s.CreateRelease(ctx, testRelease("0.2",
		updated,
		group("b", "00002", 1, types.KindExact, "IL_1ABC_003"),
		group("c", "00003", 1, types.KindNew, "IL_1ABC_005"))))

	handles, err := s.KnownHandles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"00001", "00002", "00003"}, types.SortedKeys(handles))

	state, err := s.NamingState(ctx, types.LoopInternal)
	require.NoError(t, err)
	require.Contains(t, state, "00001")
	assert.Len(t, state["00001"], 2)
	assert.Equal(t, "0.1", state["00001"][1].Release)
	assert.Equal(t, []string{"IL_1ABC_001", "IL_1ABC_002", "IL_1ABC_004"}, state["00001"][2].Members)
	assert.Equal(t, []string{"IL_00001.1"}, state["00001"][2].Parents)
	assert.Equal(t, "0.1", state["00002"][1].Release, "exact matches keep their first recording")
}

func TestEventsRoundTripAndCleanup(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	runID := events.NewRunID()
	started, err := events.NewStageEvent(runID, events.EventTypeStageStarted, "search", events.SeverityInfo, "searching", events.StageData{})
	require.NoError(t, err)
	failed, err := events.NewStageEvent(runID, events.EventTypeStageFailed, "search", events.SeverityError, "batch failed",
		events.StageData{Error: "boom"})
	require.NoError(t, err)
	failed.Timestamp = started.Timestamp.Add(time.Millisecond)
	require.NoError(t, s.RecordEvent(ctx, started))
	require.NoError(t, s.RecordEvent(ctx, failed))

	old, err := events.NewStageEvent("old-run", events.EventTypeStageCompleted, "load", events.SeverityInfo, "old", events.StageData{Items: 3})
	require.NoError(t, err)
	old.Timestamp = time.Now().AddDate(0, 0, -40)
	require.NoError(t, s.RecordEvent(ctx, old))

	got, err := s.GetEvents(ctx, events.EventFilter{RunID: runID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, events.EventTypeStageStarted, got[0].Type)
	data, err := got[1].GetStageData()
	require.NoError(t, err)
	assert.Equal(t, "boom", data.Error)

	errorsOnly, err := s.GetEvents(ctx, events.EventFilter{Severity: events.SeverityError})
	require.NoError(t, err)
	assert.Len(t, errorsOnly, 1)

	deleted, err := s.CleanupEvents(ctx, 30, 90, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	all, err := s.GetEvents(ctx, events.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.CleanupEvents(ctx, -1, 90, 10)
	assert.Error(t, err)
}

func TestRecordEventValidates(t *testing.T) {
	s := newTestStorage(t)
	err := s.RecordEvent(context.Background(), &events.PipelineEvent{ID: "x"})
	assert.Error(t, err)
}

func TestConfig(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	v, err := s.GetConfig(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetConfig(ctx, "cutoff", "0.5"))
	require.NoError(t, s.SetConfig(ctx, "cutoff", "0.4"))
	v, err = s.GetConfig(ctx, "cutoff")
	require.NoError(t, err)
	assert.Equal(t, "0.4", v)
}

func TestOnDiskDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".atlas", "atlas.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	version, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	require.NoError(t, s.CreateRelease(ctx, testRelease("0.1", group("a", "00001", 1, types.KindNew, "IL_1ABC_001"))))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	latest, err := s.LatestRelease(ctx, types.LoopInternal)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "0.1", latest.ID)
}
