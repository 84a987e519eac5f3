package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun() *Run {
	return &Run{
		Seed:          42,
		Seeded:        true,
		Width:         300,
		Height:        300,
		TargetSize:    10,
		TrainFraction: 0.8,
		TrainRows:     15,
		TestRows:      4,
		OutDir:        "/data/shards",
		Classes: []Class{
			{Label: 0, Name: "agn", Dir: "/data/agn", ClipSigma: 3, Sources: 3, Rotations: 3, Augmented: 9},
			{Label: 1, Name: "point_source", Dir: "/data/ps", ClipSigma: 1, Sources: 5, Rotations: 2, Augmented: 10},
		},
	}
}

func TestRecordAndLoadRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, s.RecordPrepare(ctx, run))
	require.NotEmpty(t, run.ID)
	require.False(t, run.CreatedAt.IsZero())

	got, err := s.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Classes, got.Classes)
	assert.Equal(t, run.Seed, got.Seed)
	assert.True(t, got.Seeded)
	assert.Equal(t, 15, got.TrainRows)
	assert.Equal(t, 4, got.TestRows)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
}

func TestRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Run(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := sampleRun()
		run.ID = []string{"a", "b", "c"}[i]
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.RecordPrepare(ctx, run))
	}

	all, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	latest, err := s.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "c", latest[0].ID)
}

func TestDuplicateRunRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := sampleRun()
	run.Classes = append(run.Classes, run.Classes[0])
	require.Error(t, s.RecordPrepare(ctx, run))

	_, err := s.Run(ctx, run.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordEvaluation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := sampleRun()
	require.NoError(t, s.RecordPrepare(ctx, run))

	ev := &Evaluation{RunID: run.ID, Steps: 200, MeanLoss: 0.4, Correct: 3, Total: 4, Accuracy: 0.75}
	require.NoError(t, s.RecordEvaluation(ctx, ev))
	require.NotEmpty(t, ev.ID)

	evs, err := s.Evaluations(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, 0.75, evs[0].Accuracy)
	assert.Equal(t, 200, evs[0].Steps)

	err = s.RecordEvaluation(ctx, &Evaluation{RunID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	run := sampleRun()
	require.NoError(t, s.RecordPrepare(context.Background(), run))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Run(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, got.Classes, 2)
}
