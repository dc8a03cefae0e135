package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/lead"
	"github.com/nexus/backend/internal/domain/shared"
	"github.com/nexus/backend/internal/infrastructure/queue"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeLeadRepo struct {
	leads map[uuid.UUID]*lead.Lead
}

func newFakeLeadRepo(leads ...*lead.Lead) *fakeLeadRepo {
	repo := &fakeLeadRepo{leads: make(map[uuid.UUID]*lead.Lead)}
	for _, l := range leads {
		repo.leads[l.ID] = l
	}
	return repo
}

func (r *fakeLeadRepo) FindByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	l, ok := r.leads[id]
	if !ok {
		return nil, fmt.Errorf("lead %s: %w", id, shared.ErrNotFound)
	}
	return l, nil
}

func (r *fakeLeadRepo) FindByPhone(ctx context.Context, phone string) (*lead.Lead, error) {
	for _, l := range r.leads {
		if l.Phone == phone {
			return l, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLeadRepo) FindAll(ctx context.Context, filter shared.Filter) ([]lead.Lead, error) {
	return nil, nil
}

func (r *fakeLeadRepo) FindByStatus(ctx context.Context, status lead.LeadStatus, filter shared.Filter) ([]lead.Lead, error) {
	return nil, nil
}

func (r *fakeLeadRepo) Save(ctx context.Context, l *lead.Lead) error {
	r.leads[l.ID] = l
	return nil
}

func (r *fakeLeadRepo) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	return int64(len(r.leads)), nil
}

type recordKey struct {
	leadID   uuid.UUID
	platform integration.Platform
}

type fakeRecordRepo struct {
	records map[recordKey]*integration.SyncRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[recordKey]*integration.SyncRecord)}
}

func (r *fakeRecordRepo) GetOrCreate(ctx context.Context, leadID uuid.UUID, platform integration.Platform) (*integration.SyncRecord, error) {
	key := recordKey{leadID, platform}
	if rec, ok := r.records[key]; ok {
		return rec, nil
	}
	rec := integration.NewSyncRecord(leadID, platform)
	r.records[key] = rec
	return rec, nil
}

func (r *fakeRecordRepo) Save(ctx context.Context, record *integration.SyncRecord) error {
	r.records[recordKey{record.LeadID, record.Platform}] = record
	return nil
}

func (r *fakeRecordRepo) FindByLeadAndPlatform(ctx context.Context, leadID uuid.UUID, platform integration.Platform) (*integration.SyncRecord, error) {
	rec, ok := r.records[recordKey{leadID, platform}]
	if !ok {
		return nil, integration.ErrSyncRecordNotFound
	}
	return rec, nil
}

func (r *fakeRecordRepo) FindByExternalID(ctx context.Context, platform integration.Platform, externalID string) (*integration.SyncRecord, error) {
	for _, rec := range r.records {
		if rec.Platform == platform && rec.ExternalID == externalID {
			return rec, nil
		}
	}
	return nil, integration.ErrSyncRecordNotFound
}

func (r *fakeRecordRepo) FindByLead(ctx context.Context, leadID uuid.UUID) ([]integration.SyncRecord, error) {
	var out []integration.SyncRecord
	for _, rec := range r.records {
		if rec.LeadID == leadID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeRecordRepo) DeleteByLead(ctx context.Context, leadID uuid.UUID) error {
	for key := range r.records {
		if key.leadID == leadID {
			delete(r.records, key)
		}
	}
	return nil
}

func (r *fakeRecordRepo) get(t *testing.T, leadID uuid.UUID, platform integration.Platform) *integration.SyncRecord {
	t.Helper()
	rec, ok := r.records[recordKey{leadID, platform}]
	require.True(t, ok, "no sync record for %s/%s", leadID, platform)
	return rec
}

type fakeMessageRepo struct {
	logs []*integration.MessageLog
}

func (r *fakeMessageRepo) Save(ctx context.Context, log *integration.MessageLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeMessageRepo) FindByWAMessageID(ctx context.Context, waMessageID string) (*integration.MessageLog, error) {
	for _, log := range r.logs {
		if log.WAMessageID == waMessageID {
			return log, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeMessageRepo) FindByLead(ctx context.Context, leadID uuid.UUID) ([]integration.MessageLog, error) {
	return nil, nil
}

func (r *fakeMessageRepo) UpdateStatus(ctx context.Context, waMessageID string, status integration.MessageStatus) error {
	return nil
}

type fakeOptOuts struct {
	phones map[string]bool
}

func newFakeOptOuts() *fakeOptOuts {
	return &fakeOptOuts{phones: make(map[string]bool)}
}

func (s *fakeOptOuts) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	return s.phones[phone], nil
}

func (s *fakeOptOuts) MarkOptedOut(ctx context.Context, phone string) error {
	s.phones[phone] = true
	return nil
}

type fakeAdapter struct {
	platform   integration.Platform
	configured bool

	createErr  error
	stageErr   error
	externalID string

	createCalls int
	stageCalls  int
	lastStatus  lead.LeadStatus
}

func (a *fakeAdapter) Platform() integration.Platform { return a.platform }
func (a *fakeAdapter) Configured() bool               { return a.configured }

func (a *fakeAdapter) FindByPhone(ctx context.Context, phone string) (string, error) {
	return "", nil
}

func (a *fakeAdapter) CreateOrUpdate(ctx context.Context, l *lead.Lead) (string, error) {
	a.createCalls++
	if a.createErr != nil {
		return "", a.createErr
	}
	return a.externalID, nil
}

func (a *fakeAdapter) UpdateStage(ctx context.Context, externalID string, status lead.LeadStatus) error {
	a.stageCalls++
	a.lastStatus = status
	return a.stageErr
}

type fakeSender struct {
	configured bool
	sendErr    error
	messageID  string
	sendCalls  int
	templates  []string
}

func (s *fakeSender) Platform() integration.Platform { return integration.PlatformWhatsApp }
func (s *fakeSender) Configured() bool               { return s.configured }

func (s *fakeSender) SendTemplate(ctx context.Context, l *lead.Lead, template string) (string, error) {
	s.sendCalls++
	s.templates = append(s.templates, template)
	if s.sendErr != nil {
		return "", s.sendErr
	}
	return s.messageID, nil
}

type fakeConversions struct {
	configured  bool
	sendErr     error
	leadCalls   int
	schedCalls  int
	purchCalls  int
	lastRevenue int64
}

func (s *fakeConversions) Platform() integration.Platform { return integration.PlatformMeta }
func (s *fakeConversions) Configured() bool               { return s.configured }

func (s *fakeConversions) SendLeadEvent(ctx context.Context, l *lead.Lead) error {
	s.leadCalls++
	return s.sendErr
}

func (s *fakeConversions) SendScheduleEvent(ctx context.Context, l *lead.Lead) error {
	s.schedCalls++
	return s.sendErr
}

func (s *fakeConversions) SendPurchaseEvent(ctx context.Context, l *lead.Lead, revenue int64) error {
	s.purchCalls++
	s.lastRevenue = revenue
	return s.sendErr
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type handlerHarness struct {
	leads       *fakeLeadRepo
	records     *fakeRecordRepo
	messages    *fakeMessageRepo
	optOuts     *fakeOptOuts
	hubspot     *fakeAdapter
	zoho        *fakeAdapter
	messenger   *fakeSender
	conversions *fakeConversions
	set         *HandlerSet
	registry    *queue.Registry
}

func newHarness(t *testing.T, leads ...*lead.Lead) *handlerHarness {
	t.Helper()
	h := &handlerHarness{
		leads:       newFakeLeadRepo(leads...),
		records:     newFakeRecordRepo(),
		messages:    &fakeMessageRepo{},
		optOuts:     newFakeOptOuts(),
		hubspot:     &fakeAdapter{platform: integration.PlatformHubSpot, configured: true, externalID: "hs-1"},
		zoho:        &fakeAdapter{platform: integration.PlatformZoho, configured: true, externalID: "zoho-1"},
		messenger:   &fakeSender{configured: true, messageID: "wamid.1"},
		conversions: &fakeConversions{configured: true},
	}
	h.set = NewHandlerSet(
		h.leads, h.records, h.messages, h.optOuts,
		h.hubspot, h.zoho, h.messenger, h.conversions,
		zap.NewNop(),
	)
	h.registry = queue.NewRegistry()
	h.set.Register(h.registry, DefaultRetryPolicy())
	return h
}

func (h *handlerHarness) run(t *testing.T, name string, args Args) integration.Outcome {
	t.Helper()
	spec, err := h.registry.Lookup(name)
	require.NoError(t, err)
	return spec.Handler.Execute(context.Background(), newArgsJob(t, name, args))
}

func newArgsJob(t *testing.T, name string, args Args) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(args)
	require.NoError(t, err)
	return queue.NewJob(name, payload, 3, 0)
}

// ---------------------------------------------------------------------------
// CRM jobs
// ---------------------------------------------------------------------------

func TestCRMPush_Success(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)

	outcome := h.run(t, JobHubSpotPush, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSuccess, outcome.Code)
	assert.Equal(t, "hs-1", outcome.ExternalID)

	rec := h.records.get(t, l.ID, integration.PlatformHubSpot)
	assert.Equal(t, integration.SyncStatusSuccess, rec.Status)
	assert.Equal(t, "hs-1", rec.ExternalID)
	assert.Equal(t, 1, rec.SyncCount)
}

func TestCRMPush_NotConfiguredSkips(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)
	h.hubspot.configured = false

	outcome := h.run(t, JobHubSpotPush, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSkipped, outcome.Code)
	assert.Zero(t, h.hubspot.createCalls)

	rec := h.records.get(t, l.ID, integration.PlatformHubSpot)
	assert.Equal(t, integration.SyncStatusSkipped, rec.Status)
}

func TestCRMPush_RemoteFailureRetries(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)
	h.hubspot.createErr = integration.ErrPlatformUnavailable

	outcome := h.run(t, JobHubSpotPush, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeRetryable, outcome.Code)

	rec := h.records.get(t, l.ID, integration.PlatformHubSpot)
	assert.Equal(t, integration.SyncStatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "unavailable")
}

func TestCRMPush_LeadGoneIsTerminal(t *testing.T) {
	h := newHarness(t)

	outcome := h.run(t, JobHubSpotPush, Args{LeadID: uuid.New()})

	assert.Equal(t, integration.OutcomeTerminal, outcome.Code)
	assert.Zero(t, h.hubspot.createCalls)
}

func TestCRMPush_ThreeAttemptsKeepOneRecord(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)
	h.zoho.createErr = integration.ErrPlatformUnavailable

	h.run(t, JobZohoPush, Args{LeadID: l.ID})
	h.run(t, JobZohoPush, Args{LeadID: l.ID})
	h.zoho.createErr = nil
	outcome := h.run(t, JobZohoPush, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSuccess, outcome.Code)
	rec := h.records.get(t, l.ID, integration.PlatformZoho)
	assert.Equal(t, integration.SyncStatusSuccess, rec.Status)
	assert.Equal(t, "zoho-1", rec.ExternalID)
	assert.Equal(t, 3, rec.SyncCount)
	assert.Empty(t, rec.ErrorMessage)
}

func TestCRMPush_RedeliveryKeepsOneRemoteRecord(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)

	first := h.run(t, JobHubSpotPush, Args{LeadID: l.ID})
	second := h.run(t, JobHubSpotPush, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSuccess, first.Code)
	assert.Equal(t, integration.OutcomeSuccess, second.Code)
	assert.Equal(t, 1, h.hubspot.createCalls)
	assert.Equal(t, 1, h.hubspot.stageCalls)

	rec := h.records.get(t, l.ID, integration.PlatformHubSpot)
	assert.Equal(t, "hs-1", rec.ExternalID)
	assert.Equal(t, 2, rec.SyncCount)
}

func TestCRMStage_UpdatesExistingRecord(t *testing.T) {
	l := capturedLead(t)
	require.NoError(t, l.ChangeStatus(lead.StatusContacted))
	h := newHarness(t, l)

	h.run(t, JobHubSpotPush, Args{LeadID: l.ID})
	outcome := h.run(t, JobHubSpotUpdateStage, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSuccess, outcome.Code)
	assert.Equal(t, 1, h.hubspot.stageCalls)
	assert.Equal(t, lead.StatusContacted, h.hubspot.lastStatus)

	rec := h.records.get(t, l.ID, integration.PlatformHubSpot)
	assert.Equal(t, "hs-1", rec.ExternalID)
	assert.Equal(t, 2, rec.SyncCount)
}

func TestCRMStage_PushesWhenNoExternalID(t *testing.T) {
	l := capturedLead(t)
	require.NoError(t, l.ChangeStatus(lead.StatusContacted))
	h := newHarness(t, l)

	outcome := h.run(t, JobHubSpotUpdateStage, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSuccess, outcome.Code)
	assert.Equal(t, 1, h.hubspot.createCalls)
	assert.Zero(t, h.hubspot.stageCalls)
}

// ---------------------------------------------------------------------------
// Messaging jobs
// ---------------------------------------------------------------------------

func TestSendMessage_Welcome(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)

	outcome := h.run(t, JobWhatsAppWelcome, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSuccess, outcome.Code)
	assert.Equal(t, []string{"lead_welcome"}, h.messenger.templates)

	require.Len(t, h.messages.logs, 1)
	assert.Equal(t, integration.MessageStatusSent, h.messages.logs[0].Status)
	assert.Equal(t, "wamid.1", h.messages.logs[0].WAMessageID)
}

func TestSendMessage_FollowupSkipsWhenNoLongerNew(t *testing.T) {
	l := capturedLead(t)
	require.NoError(t, l.ChangeStatus(lead.StatusContacted))
	h := newHarness(t, l)

	outcome := h.run(t, JobWhatsAppFollowup, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSkipped, outcome.Code)
	assert.Zero(t, h.messenger.sendCalls)
}

func TestSendMessage_FollowupSendsWhenStillNew(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)

	outcome := h.run(t, JobWhatsAppFollowup, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSuccess, outcome.Code)
	assert.Equal(t, []string{"lead_followup"}, h.messenger.templates)
}

func TestSendMessage_OptedOutLeadSkips(t *testing.T) {
	l := capturedLead(t)
	l.MarkOptedOut()
	h := newHarness(t, l)

	outcome := h.run(t, JobWhatsAppWelcome, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSkipped, outcome.Code)
	assert.Zero(t, h.messenger.sendCalls)

	require.Len(t, h.messages.logs, 1)
	assert.Equal(t, integration.MessageStatusOptedOut, h.messages.logs[0].Status)
}

func TestSendMessage_PlatformOptOutMarksLead(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)
	h.messenger.sendErr = integration.ErrRecipientOptedOut

	outcome := h.run(t, JobWhatsAppWelcome, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSkipped, outcome.Code)
	assert.True(t, l.OptedOut)

	opted, err := h.optOuts.IsOptedOut(context.Background(), l.Phone)
	require.NoError(t, err)
	assert.True(t, opted)
}

func TestSendMessage_TransientFailureRetries(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)
	h.messenger.sendErr = errors.New("upstream 500")

	outcome := h.run(t, JobWhatsAppWelcome, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeRetryable, outcome.Code)
	require.Len(t, h.messages.logs, 1)
	assert.Equal(t, integration.MessageStatusFailed, h.messages.logs[0].Status)
}

func TestSendMessage_NotConfiguredSkips(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)
	h.messenger.configured = false

	outcome := h.run(t, JobWhatsAppWelcome, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSkipped, outcome.Code)
	rec := h.records.get(t, l.ID, integration.PlatformWhatsApp)
	assert.Equal(t, integration.SyncStatusSkipped, rec.Status)
}

// ---------------------------------------------------------------------------
// Attribution jobs
// ---------------------------------------------------------------------------

func TestConversion_LeadEvent(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)

	outcome := h.run(t, JobMetaLead, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSuccess, outcome.Code)
	assert.Equal(t, 1, h.conversions.leadCalls)
}

func TestConversion_PurchaseCarriesRevenue(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)

	outcome := h.run(t, JobMetaPurchase, Args{LeadID: l.ID, Revenue: 35_000_000})

	assert.Equal(t, integration.OutcomeSuccess, outcome.Code)
	assert.Equal(t, int64(35_000_000), h.conversions.lastRevenue)
}

func TestConversion_ErasedLeadSkips(t *testing.T) {
	l := capturedLead(t)
	l.ErasePII()
	h := newHarness(t, l)

	outcome := h.run(t, JobMetaLead, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeSkipped, outcome.Code)
	assert.Zero(t, h.conversions.leadCalls)
}

func TestConversion_FailureRetries(t *testing.T) {
	l := capturedLead(t)
	h := newHarness(t, l)
	h.conversions.sendErr = integration.ErrPlatformRequestFailed

	outcome := h.run(t, JobMetaSchedule, Args{LeadID: l.ID})

	assert.Equal(t, integration.OutcomeRetryable, outcome.Code)
	rec := h.records.get(t, l.ID, integration.PlatformMeta)
	assert.Equal(t, integration.SyncStatusFailed, rec.Status)
}
