package scheduler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestService() *Service {
	return NewService(arbor.NewLogger()).(*Service)
}

func TestRegisterJob_DuplicateNameErrors(t *testing.T) {
	s := newTestService()
	require.NoError(t, s.RegisterJob("poll-dlqs", "*/5 * * * *", func() error { return nil }))

	err := s.RegisterJob("poll-dlqs", "*/5 * * * *", func() error { return nil })
	assert.Error(t, err)
}

func TestTriggerCollectionNow_RunsEnabledJobsSynchronously(t *testing.T) {
	s := newTestService()

	ran := false
	require.NoError(t, s.RegisterJob("poll-dlqs", "*/5 * * * *", func() error {
		ran = true
		return nil
	}))

	require.NoError(t, s.TriggerCollectionNow())
	assert.True(t, ran)

	status, err := s.GetJobStatus("poll-dlqs")
	require.NoError(t, err)
	require.NotNil(t, status.LastRun)
	assert.Empty(t, status.LastError)
}

func TestTriggerCollectionNow_SkipsDisabledJobs(t *testing.T) {
	s := newTestService()

	ran := false
	require.NoError(t, s.RegisterJob("poll-dlqs", "*/5 * * * *", func() error {
		ran = true
		return nil
	}))
	require.NoError(t, s.DisableJob("poll-dlqs"))

	require.NoError(t, s.TriggerCollectionNow())
	assert.False(t, ran)
}

func TestExecuteJob_RecordsHandlerError(t *testing.T) {
	s := newTestService()
	require.NoError(t, s.RegisterJob("poll-dlqs", "*/5 * * * *", func() error {
		return fmt.Errorf("queue unavailable")
	}))

	require.NoError(t, s.TriggerCollectionNow())

	status, err := s.GetJobStatus("poll-dlqs")
	require.NoError(t, err)
	assert.Equal(t, "queue unavailable", status.LastError)
}

func TestExecuteJob_RecoversFromPanicAndRecordsIt(t *testing.T) {
	s := newTestService()
	require.NoError(t, s.RegisterJob("poll-dlqs", "*/5 * * * *", func() error {
		panic("boom")
	}))

	require.NoError(t, s.TriggerCollectionNow())

	status, err := s.GetJobStatus("poll-dlqs")
	require.NoError(t, err)
	assert.Contains(t, status.LastError, "boom")
	assert.False(t, status.IsRunning)
}

func TestEnableJob_ReEnablesADisabledJob(t *testing.T) {
	s := newTestService()
	require.NoError(t, s.RegisterJob("poll-dlqs", "*/5 * * * *", func() error { return nil }))
	require.NoError(t, s.DisableJob("poll-dlqs"))
	require.NoError(t, s.EnableJob("poll-dlqs"))

	status, err := s.GetJobStatus("poll-dlqs")
	require.NoError(t, err)
	assert.True(t, status.Enabled)
}

func TestGetJobStatus_UnknownJobErrors(t *testing.T) {
	s := newTestService()
	_, err := s.GetJobStatus("does-not-exist")
	assert.Error(t, err)
}

func TestStartStop_TracksRunningState(t *testing.T) {
	s := newTestService()
	assert.False(t, s.IsRunning())

	require.NoError(t, s.Start("*/5 * * * *"))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start("*/5 * * * *"))

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestGetAllJobStatuses_ReturnsOneEntryPerRegisteredJob(t *testing.T) {
	s := newTestService()
	require.NoError(t, s.RegisterJob("poll-dlqs", "*/5 * * * *", func() error { return nil }))
	require.NoError(t, s.RegisterJob("reindex", "0 * * * *", func() error { return nil }))

	statuses := s.GetAllJobStatuses()
	require.Len(t, statuses, 2)
	assert.Contains(t, statuses, "poll-dlqs")
	assert.Contains(t, statuses, "reindex")
}
