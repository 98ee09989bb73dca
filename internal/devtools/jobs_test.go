package devtools

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishedJob(finishedAgo time.Duration) *Job {
	job := newJob("git-status")
	job.StartedAt = time.Now().Add(-finishedAgo - time.Second)
	done := time.Now().Add(-finishedAgo)
	job.status = JobSucceeded
	job.finishedAt = &done
	return job
}

func TestStoreEvictsExpiredJobs(t *testing.T) {
	store := NewStore(time.Minute, 10)

	old := finishedJob(2 * time.Minute)
	require.NoError(t, store.add(old))
	fresh := finishedJob(0)
	require.NoError(t, store.add(fresh))

	// Adding triggers TTL eviction of the expired entry.
	require.NoError(t, store.add(newJob("test")))

	_, err := store.Get(old.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestStoreCapEvictsOldestFinished(t *testing.T) {
	store := NewStore(time.Hour, 2)

	oldest := finishedJob(10 * time.Minute)
	newer := finishedJob(time.Minute)
	require.NoError(t, store.add(oldest))
	require.NoError(t, store.add(newer))

	require.NoError(t, store.add(newJob("test")))

	_, err := store.Get(oldest.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = store.Get(newer.ID)
	assert.NoError(t, err)
}

func TestStoreRefusesWhenFullOfRunningJobs(t *testing.T) {
	store := NewStore(time.Hour, 2)

	for i := 0; i < 2; i++ {
		require.NoError(t, store.add(newJob("test")))
	}

	err := store.add(newJob("test"))
	assert.Error(t, err)
}

func TestStoreListNewestFirst(t *testing.T) {
	store := NewStore(time.Hour, 10)

	first := newJob("git-status")
	first.StartedAt = time.Now().Add(-time.Minute)
	second := newJob("git-log")
	require.NoError(t, store.add(first))
	require.NoError(t, store.add(second))

	jobs := store.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestJobLogAndSubscribe(t *testing.T) {
	job := newJob("git-status")

	job.append("line one")

	lines, cancel := job.Subscribe()
	defer cancel()

	job.append("line two")
	assert.Equal(t, "line two", <-lines)

	assert.Equal(t, "line one\nline two\n", string(job.Log()))

	job.finish(0, nil)
	_, open := <-lines
	assert.False(t, open)
	snap := job.Snapshot()
	assert.Equal(t, JobSucceeded, snap.Status)
	require.NotNil(t, snap.FinishedAt)
}

// Marshaling a job while its run goroutine is still writing must yield a
// consistent view; the race detector flags this if served state ever aliases
// live fields.
func TestSnapshotConsistentWhileRunning(t *testing.T) {
	job := newJob("test")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			job.append("line")
		}
		job.finish(0, nil)
	}()

	for {
		snap := job.Snapshot()
		_, err := json.Marshal(snap)
		require.NoError(t, err)
		if snap.FinishedAt != nil {
			assert.Equal(t, JobSucceeded, snap.Status)
			assert.Equal(t, 0, snap.ExitCode)
			break
		}
	}
	<-done
}

func TestRunnerRejectsUnknownAction(t *testing.T) {
	runner := NewRunner(NewStore(time.Hour, 4))

	_, err := runner.Start("rm-rf")
	assert.Error(t, err)
}
