package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCampaign(t *testing.T) (*Campaign, time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 13, 8, 0, 0, 0, time.UTC)
	c := NewCampaign(uuid.New(), uuid.New(), "sick", 30*time.Minute, 15, now)
	return c, now
}

func addOutreach(t *testing.T, c *Campaign, now time.Time) CandidateOutreach {
	t.Helper()
	o := CandidateOutreach{
		OutreachID: uuid.New(),
		WorkerID:   uuid.New(),
		Address:    "3035551234",
		SentAt:     now,
	}
	require.NoError(t, c.AddOutreach(o, now))
	return o
}

func TestCampaignLifecycle(t *testing.T) {
	t.Parallel()

	c, now := newTestCampaign(t)
	assert.Equal(t, CampaignStatusPending, c.Status)
	assert.False(t, c.Terminal())

	c.Start(now)
	assert.Equal(t, CampaignStatusInProgress, c.Status)
	require.NotNil(t, c.StartedAt)

	// Start is idempotent once in progress.
	firstStart := *c.StartedAt
	c.Start(now.Add(time.Minute))
	assert.Equal(t, firstStart, *c.StartedAt)
}

func TestAddOutreach(t *testing.T) {
	t.Parallel()

	c, now := newTestCampaign(t)
	c.Start(now)

	o := addOutreach(t, c, now)
	assert.Equal(t, 1, c.ContactedCount)
	assert.Equal(t, ResponseNoResponse, c.Outreach[0].Response)
	assert.Equal(t, c.CampaignID, c.Outreach[0].CampaignID)

	err := c.AddOutreach(o, now)
	assert.ErrorIs(t, err, ErrConflict, "same worker contacted twice")

	require.NoError(t, c.Escalate("manual", now))
	err = c.AddOutreach(CandidateOutreach{WorkerID: uuid.New()}, now)
	assert.ErrorIs(t, err, ErrCampaignClosed)
	assert.Equal(t, 1, c.ContactedCount)
}

func TestAddOutreachMaxContacts(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	c := NewCampaign(uuid.New(), uuid.New(), "sick", 30*time.Minute, 2, now)
	c.Start(now)
	addOutreach(t, c, now)
	addOutreach(t, c, now)

	err := c.AddOutreach(CandidateOutreach{WorkerID: uuid.New()}, now)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 2, c.ContactedCount)
}

func TestRecordResponseCounts(t *testing.T) {
	t.Parallel()

	c, now := newTestCampaign(t)
	c.Start(now)
	accepter := addOutreach(t, c, now)
	decliner := addOutreach(t, c, now)
	waverer := addOutreach(t, c, now)

	require.NoError(t, c.RecordResponse(accepter.WorkerID, ResponseAccepted, "yes", now))
	require.NoError(t, c.RecordResponse(decliner.WorkerID, ResponseDeclined, "no", now))
	require.NoError(t, c.RecordResponse(waverer.WorkerID, ResponseAmbiguous, "what time?", now))

	assert.Equal(t, 3, c.RespondedCount)
	assert.Equal(t, 1, c.AcceptedCount)
	assert.Equal(t, 1, c.DeclinedCount)
	assert.Equal(t, 1, c.PendingCount(), "ambiguous stays pending")

	// The clarification round resolves the ambiguous reply without double
	// counting responded.
	require.NoError(t, c.RecordResponse(waverer.WorkerID, ResponseDeclined, "no", now))
	assert.Equal(t, 3, c.RespondedCount)
	assert.Equal(t, 2, c.DeclinedCount)
	assert.Equal(t, 0, c.PendingCount())

	// A decided outreach keeps its first decision.
	require.NoError(t, c.RecordResponse(decliner.WorkerID, ResponseAccepted, "actually yes", now))
	assert.Equal(t, 1, c.AcceptedCount)
	got, ok := c.OutreachFor(decliner.WorkerID)
	require.True(t, ok)
	assert.Equal(t, ResponseDeclined, got.Response)
}

func TestRecordResponseUnknownWorker(t *testing.T) {
	t.Parallel()

	c, now := newTestCampaign(t)
	c.Start(now)
	err := c.RecordResponse(uuid.New(), ResponseAccepted, "yes", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkWinnerSingleWinner(t *testing.T) {
	t.Parallel()

	c, now := newTestCampaign(t)
	c.Start(now)
	first := addOutreach(t, c, now)
	second := addOutreach(t, c, now)

	require.NoError(t, c.MarkWinner(first.WorkerID, now))
	assert.Equal(t, CampaignStatusFilled, c.Status)
	require.NotNil(t, c.WinnerWorkerID)
	assert.Equal(t, first.WorkerID, *c.WinnerWorkerID)
	got, _ := c.OutreachFor(first.WorkerID)
	assert.True(t, got.IsWinner)

	// Same winner again is a no-op; a different winner is rejected and the
	// original is never overwritten.
	assert.NoError(t, c.MarkWinner(first.WorkerID, now))
	err := c.MarkWinner(second.WorkerID, now)
	assert.ErrorIs(t, err, ErrCampaignClosed)
	assert.Equal(t, first.WorkerID, *c.WinnerWorkerID)
	got, _ = c.OutreachFor(second.WorkerID)
	assert.False(t, got.IsWinner)
}

func TestTerminalTransitionsRejected(t *testing.T) {
	t.Parallel()

	c, now := newTestCampaign(t)
	c.Start(now)
	require.NoError(t, c.Escalate("nobody accepted", now))

	assert.ErrorIs(t, c.Cancel(now), ErrCampaignClosed)
	assert.ErrorIs(t, c.Expire(now), ErrCampaignClosed)
	assert.ErrorIs(t, c.Escalate("again", now), ErrCampaignClosed)
	assert.ErrorIs(t, c.RecordResponse(uuid.New(), ResponseAccepted, "yes", now), ErrCampaignClosed)
	assert.Equal(t, "nobody accepted", c.EscalationReason)
}

func TestTimedOut(t *testing.T) {
	t.Parallel()

	c, now := newTestCampaign(t)
	assert.False(t, c.TimedOut(now.Add(time.Hour)), "pending never times out")

	c.Start(now)
	assert.False(t, c.TimedOut(now.Add(29*time.Minute)))
	assert.True(t, c.TimedOut(now.Add(31*time.Minute)))

	// An acceptance holds the campaign open past the window.
	o := addOutreach(t, c, now)
	require.NoError(t, c.RecordResponse(o.WorkerID, ResponseAccepted, "yes", now))
	assert.False(t, c.TimedOut(now.Add(31*time.Minute)))
}
