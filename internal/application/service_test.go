package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caregrid/dispatch-service/internal/adapters/cache"
	"github.com/caregrid/dispatch-service/internal/classify"
	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/caregrid/dispatch-service/internal/ports"
)

// --- fakes -----------------------------------------------------------------

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*domain.Campaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[uuid.UUID]*domain.Campaign)}
}

func cloneCampaign(c *domain.Campaign) *domain.Campaign {
	cp := *c
	cp.Outreach = append([]domain.CandidateOutreach(nil), c.Outreach...)
	if c.WinnerWorkerID != nil {
		w := *c.WinnerWorkerID
		cp.WinnerWorkerID = &w
	}
	return &cp
}

func (r *fakeCampaignRepo) Create(_ context.Context, campaign *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[campaign.CampaignID]; ok {
		return domain.ErrConflict
	}
	r.campaigns[campaign.CampaignID] = cloneCampaign(campaign)
	return nil
}

func (r *fakeCampaignRepo) Get(_ context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneCampaign(c), nil
}

func (r *fakeCampaignRepo) GetByAssignment(_ context.Context, assignmentID uuid.UUID) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Campaign
	for _, c := range r.campaigns {
		if c.AssignmentID != assignmentID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return cloneCampaign(latest), nil
}

func (r *fakeCampaignRepo) Update(_ context.Context, campaign *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.campaigns[campaign.CampaignID]
	if !ok {
		return domain.ErrNotFound
	}
	// Same guard as the postgres adapter: a terminal row is never overwritten.
	if stored.Terminal() {
		return domain.ErrConflict
	}
	r.campaigns[campaign.CampaignID] = cloneCampaign(campaign)
	return nil
}

func (r *fakeCampaignRepo) ListByStatus(_ context.Context, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Campaign, 0)
	for _, c := range r.campaigns {
		if c.Status == status && len(out) < limit {
			out = append(out, cloneCampaign(c))
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) FindOpenByAddress(_ context.Context, normalizedAddress string) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.campaigns {
		if c.Status != domain.CampaignStatusInProgress {
			continue
		}
		for i := range c.Outreach {
			if classify.NormalizeAddress(c.Outreach[i].Address) == normalizedAddress {
				return cloneCampaign(c), nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeCampaignRepo) FindRecentByAddress(_ context.Context, normalizedAddress string) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.Campaign
	for _, c := range r.campaigns {
		for i := range c.Outreach {
			if classify.NormalizeAddress(c.Outreach[i].Address) != normalizedAddress {
				continue
			}
			if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
				latest = c
			}
			break
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return cloneCampaign(latest), nil
}

type fakeRoster struct {
	mu          sync.Mutex
	client      domain.Client
	assignments map[uuid.UUID]domain.Assignment
	workers     []domain.Worker
	calloffs    int
}

func (r *fakeRoster) GetClient(_ context.Context, clientID uuid.UUID) (domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client.ClientID != clientID {
		return domain.Client{}, domain.ErrNotFound
	}
	return r.client, nil
}

func (r *fakeRoster) GetAssignment(_ context.Context, assignmentID uuid.UUID) (domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[assignmentID]
	if !ok {
		return domain.Assignment{}, domain.ErrNotFound
	}
	return a, nil
}

func (r *fakeRoster) GetWorkersAvailable(_ context.Context, date time.Time, excludeIDs []uuid.UUID) ([]domain.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	excluded := make(map[uuid.UUID]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}
	out := make([]domain.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		if _, skip := excluded[w.WorkerID]; skip {
			continue
		}
		if w.Active && w.AvailableOn(date.Weekday()) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *fakeRoster) AssignWorker(_ context.Context, assignmentID, workerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[assignmentID]
	if !ok {
		return domain.ErrNotFound
	}
	if a.Status == domain.AssignmentStatusAssigned || a.Cancelled {
		return domain.ErrConflict
	}
	a.Status = domain.AssignmentStatusAssigned
	a.WorkerID = &workerID
	r.assignments[assignmentID] = a
	return nil
}

func (r *fakeRoster) RecordCalloff(_ context.Context, assignmentID, _ uuid.UUID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[assignmentID]
	if !ok {
		return domain.ErrNotFound
	}
	a.WorkerID = nil
	a.Status = domain.AssignmentStatusOpen
	r.assignments[assignmentID] = a
	r.calloffs++
	return nil
}

func (r *fakeRoster) setCancelled(assignmentID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.assignments[assignmentID]
	a.Cancelled = true
	r.assignments[assignmentID] = a
}

type sentMessage struct {
	Address string
	Text    string
}

type fakeMessenger struct {
	mu     sync.Mutex
	sent   []sentMessage
	failTo map[string]bool
}

func (m *fakeMessenger) Send(_ context.Context, address, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[address] {
		return "", fmt.Errorf("%w: carrier rejected send", domain.ErrDependencyUnavailable)
	}
	m.sent = append(m.sent, sentMessage{Address: address, Text: text})
	return uuid.NewString(), nil
}

func (m *fakeMessenger) countMatching(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if strings.Contains(s.Text, substr) {
			n++
		}
	}
	return n
}

func (m *fakeMessenger) sentTo(address string) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, 0)
	for _, s := range m.sent {
		if s.Address == address {
			out = append(out, s)
		}
	}
	return out
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []ports.OutboxEvent
}

func (o *fakeOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return nil
}

func (o *fakeOutbox) FetchUnpublished(_ context.Context, _ int) ([]ports.OutboxRecord, error) {
	return nil, nil
}
func (o *fakeOutbox) MarkPublished(_ context.Context, _ uuid.UUID, _ time.Time) error { return nil }
func (o *fakeOutbox) MarkFailed(_ context.Context, _ uuid.UUID, _ string, _ time.Time) error {
	return nil
}

func (o *fakeOutbox) eventTypes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.events))
	for _, e := range o.events {
		out = append(out, e.EventType)
	}
	return out
}

// --- harness ---------------------------------------------------------------

type testEnv struct {
	service      *Service
	campaigns    *fakeCampaignRepo
	roster       *fakeRoster
	messenger    *fakeMessenger
	outbox       *fakeOutbox
	lock         *cache.LocalAssignmentLock
	assignmentID uuid.UUID
	calloffID    uuid.UUID

	escalMu   sync.Mutex
	escalated []uuid.UUID
}

// newTestEnv builds a roster with numWorkers strong candidates plus the
// worker who called off, and one Saturday shift starting startIn from now.
func newTestEnv(t *testing.T, cfg Config, numWorkers int, startIn time.Duration) *testEnv {
	t.Helper()

	clientID := uuid.New()
	assignmentID := uuid.New()
	calloffID := uuid.New()

	allWeekdays := []time.Weekday{
		time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday,
	}
	workers := make([]domain.Worker, 0, numWorkers+1)
	for i := 0; i < numWorkers; i++ {
		workers = append(workers, domain.Worker{
			WorkerID:             uuid.New(),
			FirstName:            fmt.Sprintf("Worker%d", i),
			Phone:                fmt.Sprintf("303555%04d", i),
			City:                 "aurora",
			Active:               true,
			WeeklyHoursCommitted: 20,
			WeeklyHoursCap:       40,
			PriorClientIDs:       []uuid.UUID{clientID},
			AvailableWeekdays:    allWeekdays,
			ResponseRate:         0.90,
			Rating:               4.8,
			Reliability:          0.97,
			HiredAt:              time.Now().UTC().AddDate(-2, 0, 0),
		})
	}
	workers = append(workers, domain.Worker{
		WorkerID:          calloffID,
		FirstName:         "CallsOff",
		Phone:             "3035559999",
		City:              "aurora",
		Active:            true,
		WeeklyHoursCap:    40,
		AvailableWeekdays: allWeekdays,
	})

	start := time.Now().UTC().Add(startIn)
	roster := &fakeRoster{
		client: domain.Client{ClientID: clientID, FirstName: "Margaret", City: "aurora"},
		assignments: map[uuid.UUID]domain.Assignment{
			assignmentID: {
				AssignmentID: assignmentID,
				ClientID:     clientID,
				WorkerID:     &calloffID,
				Status:       domain.AssignmentStatusAssigned,
				StartAt:      start,
				EndAt:        start.Add(4 * time.Hour),
			},
		},
		workers: workers,
	}

	env := &testEnv{
		campaigns:    newFakeCampaignRepo(),
		roster:       roster,
		messenger:    &fakeMessenger{failTo: make(map[string]bool)},
		outbox:       &fakeOutbox{},
		lock:         cache.NewLocalAssignmentLock(),
		assignmentID: assignmentID,
		calloffID:    calloffID,
	}
	env.service = NewService(Dependencies{
		Config:    cfg,
		Campaigns: env.campaigns,
		Roster:    env.roster,
		Messenger: env.messenger,
		Lock:      env.lock,
		Outbox:    env.outbox,
		OnEscalation: func(_ context.Context, c *domain.Campaign) {
			env.escalMu.Lock()
			env.escalated = append(env.escalated, c.CampaignID)
			env.escalMu.Unlock()
		},
	})
	return env
}

func smallWaveConfig() Config {
	return Config{
		CampaignTimeout:     30 * time.Minute,
		MaxContacts:         15,
		FirstWaveSize:       3,
		FirstWaveMin:        2,
		SecondWaveThreshold: 2,
		SecondWaveSize:      2,
		LockTTL:             time.Second,
		UrgentWindow:        4 * time.Hour,
	}
}

func (env *testEnv) phoneOf(t *testing.T, resp CampaignResponse, idx int) string {
	t.Helper()
	require.Greater(t, len(resp.Outreach), idx)
	return resp.Outreach[idx].Address
}

// --- tests -----------------------------------------------------------------

func TestProcessCalloffSendsFirstWave(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)

	assert.Equal(t, string(domain.CampaignStatusInProgress), resp.Status)
	assert.Equal(t, 3, resp.ContactedCount, "first wave capped at FirstWaveSize")
	assert.Equal(t, "sick", resp.CalloffReason)

	for _, o := range resp.Outreach {
		assert.NotEqual(t, env.calloffID.String(), o.WorkerID, "calloff worker never re-offered")
		assert.Equal(t, 1, o.MatchTier)
	}
	assert.Empty(t, env.messenger.sentTo("3035559999"))
	assert.Equal(t, 3, env.messenger.countMatching("Open shift"))
}

func TestProcessCalloffDuplicateConflicts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	_, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)

	_, err = env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestProcessCalloffEmptyPoolEscalates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 0, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)

	assert.Equal(t, string(domain.CampaignStatusEscalated), resp.Status)
	assert.Equal(t, "no available candidates", resp.EscalationReason)
	assert.Contains(t, env.outbox.eventTypes(), "campaign.escalated")
	env.escalMu.Lock()
	defer env.escalMu.Unlock()
	assert.Len(t, env.escalated, 1)
}

func TestProcessCalloffAllSendsFailEscalates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 3, 48*time.Hour)
	for _, w := range env.roster.workers {
		env.messenger.failTo[w.Phone] = true
	}
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)

	assert.Equal(t, string(domain.CampaignStatusEscalated), resp.Status)
	assert.Equal(t, "offer delivery failed for all candidates", resp.EscalationReason)
}

func TestUrgentShiftGetsUrgentPrefix(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 2, 2*time.Hour)
	_, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	assert.Equal(t, 2, env.messenger.countMatching("URGENT: Open shift"))

	distant := newTestEnv(t, smallWaveConfig(), 2, 72*time.Hour)
	_, err = distant.service.ProcessCalloff(context.Background(), distant.assignmentID, distant.calloffID, "sick")
	require.NoError(t, err)
	assert.Equal(t, 0, distant.messenger.countMatching("URGENT"))
}

func TestAcceptanceFillsCampaign(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	campaignID := uuid.MustParse(resp.CampaignID)

	declinePhone := env.phoneOf(t, resp, 1)
	reply, err := env.service.ProcessResponse(context.Background(), campaignID, declinePhone, "no")
	require.NoError(t, err)
	assert.Equal(t, string(domain.ResponseDeclined), reply.Classification)

	winnerPhone := env.phoneOf(t, resp, 0)
	reply, err = env.service.ProcessResponse(context.Background(), campaignID, winnerPhone, "yes")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, reply.Outcome)

	final, err := env.service.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CampaignStatusFilled), final.Status)
	assert.Equal(t, resp.Outreach[0].WorkerID, final.WinnerWorkerID)

	assignment, err := env.roster.GetAssignment(context.Background(), env.assignmentID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusAssigned, assignment.Status)
	require.NotNil(t, assignment.WorkerID)
	assert.Equal(t, final.WinnerWorkerID, assignment.WorkerID.String())

	// Winner gets a confirmation; the decliner gets a filled notice; the
	// silent third candidate is left alone.
	assert.Equal(t, 1, env.messenger.countMatching("You're confirmed"))
	assert.Equal(t, 1, env.messenger.countMatching("has been filled"))
	assert.Len(t, env.messenger.sentTo(env.phoneOf(t, resp, 2)), 1, "non-responder only got the offer")

	assert.Contains(t, env.outbox.eventTypes(), "campaign.filled")
}

func TestLateAcceptanceAfterFilled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	campaignID := uuid.MustParse(resp.CampaignID)

	_, err = env.service.ProcessResponse(context.Background(), campaignID, env.phoneOf(t, resp, 0), "yes")
	require.NoError(t, err)

	late, err := env.service.ProcessResponse(context.Background(), campaignID, env.phoneOf(t, resp, 2), "yes")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyFilled, late.Outcome)
	assert.NotEmpty(t, env.messenger.sentTo(env.phoneOf(t, resp, 2)))
}

func TestConcurrentAcceptancesSingleWinner(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	campaignID := uuid.MustParse(resp.CampaignID)
	require.Equal(t, 3, len(resp.Outreach))

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := make(map[AcceptanceOutcome]int)
	confirmedWorker := ""

	for i := range resp.Outreach {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			reply, err := env.service.ProcessResponse(context.Background(), campaignID, resp.Outreach[idx].Address, "yes")
			if err != nil {
				return
			}
			mu.Lock()
			outcomes[reply.Outcome]++
			if reply.Outcome == OutcomeConfirmed {
				confirmedWorker = reply.WorkerID
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[OutcomeConfirmed], "exactly one acceptance wins, outcomes: %v", outcomes)
	assert.Zero(t, outcomes[OutcomeRecorded])

	assignment, err := env.roster.GetAssignment(context.Background(), env.assignmentID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusAssigned, assignment.Status)
	require.NotNil(t, assignment.WorkerID)
	assert.Equal(t, confirmedWorker, assignment.WorkerID.String())
}

func TestStaleSnapshotCannotReopenFilledCampaign(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	campaignID := uuid.MustParse(resp.CampaignID)

	// A slow handler loads the campaign before anyone accepts.
	stale, err := env.campaigns.Get(context.Background(), campaignID)
	require.NoError(t, err)

	_, err = env.service.ProcessResponse(context.Background(), campaignID, env.phoneOf(t, resp, 0), "yes")
	require.NoError(t, err)

	// The slow handler resumes with its pre-fill snapshot. It must observe
	// the fill on its in-lock reload, not write the snapshot back.
	late, err := env.service.processReply(context.Background(), stale, env.phoneOf(t, resp, 1), "yes")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyFilled, late.Outcome)

	lateDecline, err := env.service.processReply(context.Background(), stale, env.phoneOf(t, resp, 2), "no")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCampaignClosed, lateDecline.Outcome)

	final, err := env.service.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CampaignStatusFilled), final.Status)
	assert.Equal(t, resp.Outreach[0].WorkerID, final.WinnerWorkerID)
	assert.Zero(t, final.DeclinedCount)

	// The store refuses a stale write outright.
	assert.ErrorIs(t, env.campaigns.Update(context.Background(), stale), domain.ErrConflict)
}

func TestReplyWhileLockHeldGetsTryAgain(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	campaignID := uuid.MustParse(resp.CampaignID)
	phone := env.phoneOf(t, resp, 0)

	token, acquired, err := env.lock.TryAcquire(context.Background(), env.assignmentID, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// Any decision reply waits out an in-flight arbitration; nothing is
	// recorded against the campaign meanwhile.
	reply, err := env.service.ProcessResponse(context.Background(), campaignID, phone, "no")
	require.NoError(t, err)
	assert.Equal(t, OutcomeTryAgain, reply.Outcome)

	mid, err := env.service.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Zero(t, mid.DeclinedCount)

	require.NoError(t, env.lock.Release(context.Background(), env.assignmentID, token))
	reply, err = env.service.ProcessResponse(context.Background(), campaignID, phone, "no")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, reply.Outcome)
}

func TestDeclinesTriggerSecondWave(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	campaignID := uuid.MustParse(resp.CampaignID)

	// One decline leaves two pending, at the threshold: no refill yet.
	_, err = env.service.ProcessResponse(context.Background(), campaignID, env.phoneOf(t, resp, 0), "no")
	require.NoError(t, err)
	mid, err := env.service.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, 3, mid.ContactedCount)

	// The second decline drops pending below the threshold and pulls two more
	// candidates from the reserve pool.
	_, err = env.service.ProcessResponse(context.Background(), campaignID, env.phoneOf(t, resp, 1), "can't make it, sorry")
	require.NoError(t, err)
	after, err := env.service.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, 5, after.ContactedCount)
	assert.Equal(t, 2, after.DeclinedCount)

	// Nobody is ever contacted twice.
	seen := make(map[string]bool)
	for _, o := range after.Outreach {
		assert.False(t, seen[o.WorkerID], "worker %s contacted twice", o.WorkerID)
		seen[o.WorkerID] = true
	}
}

func TestAmbiguousReplyGetsOneClarification(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	campaignID := uuid.MustParse(resp.CampaignID)
	phone := env.phoneOf(t, resp, 0)

	reply, err := env.service.ProcessResponse(context.Background(), campaignID, phone, "what time?")
	require.NoError(t, err)
	assert.Equal(t, string(domain.ResponseAmbiguous), reply.Classification)
	assert.Equal(t, 1, env.messenger.countMatching("Just to confirm"))

	// A second ambiguous reply does not restate the offer again.
	_, err = env.service.ProcessResponse(context.Background(), campaignID, phone, "how many hours is it")
	require.NoError(t, err)
	assert.Equal(t, 1, env.messenger.countMatching("Just to confirm"))

	// The clarification resolving to yes wins the shift.
	final, err := env.service.ProcessResponse(context.Background(), campaignID, phone, "yes")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, final.Outcome)
}

func TestRouteInboundReplyNormalizesAddress(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)

	phone := env.phoneOf(t, resp, 0)
	formatted := fmt.Sprintf("+1 (%s) %s-%s", phone[:3], phone[3:6], phone[6:])
	reply, err := env.service.RouteInboundReply(context.Background(), formatted, "yes")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, reply.Outcome)
	assert.Equal(t, resp.CampaignID, reply.CampaignID)
}

func TestRouteInboundReplyAfterCampaignFilled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)

	_, err = env.service.ProcessResponse(context.Background(), uuid.MustParse(resp.CampaignID), env.phoneOf(t, resp, 0), "yes")
	require.NoError(t, err)

	// No open campaign matches the sender anymore; the webhook falls back to
	// the closed one and answers the late acceptance.
	silentPhone := env.phoneOf(t, resp, 2)
	late, err := env.service.RouteInboundReply(context.Background(), silentPhone, "yes")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyFilled, late.Outcome)
	assert.Len(t, env.messenger.sentTo(silentPhone), 2, "offer plus filled notice")

	// The winner checking in again is recognized, not told the shift is gone.
	again, err := env.service.RouteInboundReply(context.Background(), env.phoneOf(t, resp, 0), "yes")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, again.Outcome)
}

func TestRouteInboundReplyUnknownSender(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	_, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)

	_, err = env.service.RouteInboundReply(context.Background(), "3039990000", "yes")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckTimeoutsEscalatesOnlyElapsed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	campaignID := uuid.MustParse(resp.CampaignID)

	// Inside the window: untouched.
	swept, err := env.service.CheckTimeouts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, swept)

	// Rewind the start so the window has elapsed.
	env.campaigns.mu.Lock()
	stored := env.campaigns.campaigns[campaignID]
	past := time.Now().UTC().Add(-31 * time.Minute)
	stored.StartedAt = &past
	env.campaigns.mu.Unlock()

	swept, err = env.service.CheckTimeouts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	final, err := env.service.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CampaignStatusEscalated), final.Status)
	assert.Contains(t, final.EscalationReason, "no accepted responses")
	assert.Contains(t, env.outbox.eventTypes(), "campaign.escalated")
}

func TestCheckTimeoutsExpiresAtShiftStart(t *testing.T) {
	t.Parallel()

	// Shift starts in two minutes; negotiation window is much longer.
	env := newTestEnv(t, smallWaveConfig(), 5, 2*time.Minute)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	campaignID := uuid.MustParse(resp.CampaignID)

	env.roster.mu.Lock()
	a := env.roster.assignments[env.assignmentID]
	a.StartAt = time.Now().UTC().Add(-time.Minute)
	env.roster.assignments[env.assignmentID] = a
	env.roster.mu.Unlock()

	swept, err := env.service.CheckTimeouts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	final, err := env.service.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CampaignStatusExpired), final.Status)
}

func TestHandleAssignmentCancelled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	resp, err := env.service.ProcessCalloff(context.Background(), env.assignmentID, env.calloffID, "sick")
	require.NoError(t, err)
	env.roster.setCancelled(env.assignmentID)

	payload := fmt.Sprintf(`{"event_type":"assignment.cancelled","data":{"assignment_id":%q}}`, env.assignmentID)
	require.NoError(t, env.service.HandleAssignmentCancelled(context.Background(), []byte(payload)))

	final, err := env.service.GetCampaign(context.Background(), uuid.MustParse(resp.CampaignID))
	require.NoError(t, err)
	assert.Equal(t, string(domain.CampaignStatusCancelled), final.Status)

	// An acceptance arriving after external cancellation never books the shift.
	late, err := env.service.ProcessResponse(context.Background(), uuid.MustParse(resp.CampaignID), env.phoneOf(t, resp, 0), "yes")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCampaignClosed, late.Outcome)
}

func TestHandleAssignmentCancelledUnknownAssignment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, smallWaveConfig(), 5, 48*time.Hour)
	payload := fmt.Sprintf(`{"data":{"assignment_id":%q}}`, uuid.New())
	assert.NoError(t, env.service.HandleAssignmentCancelled(context.Background(), []byte(payload)))

	err := env.service.HandleAssignmentCancelled(context.Background(), []byte(`{"data":{}}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
