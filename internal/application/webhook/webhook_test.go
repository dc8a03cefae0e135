package webhook

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	leadapp "github.com/nexus/backend/internal/application/lead"
	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/lead"
	"github.com/nexus/backend/internal/domain/shared"
)

type fakeLeadRepo struct {
	leads map[uuid.UUID]*lead.Lead
	saved int
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: make(map[uuid.UUID]*lead.Lead)}
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
	var out []lead.Lead
	for _, l := range r.leads {
		out = append(out, *l)
	}
	return out, nil
}

func (r *fakeLeadRepo) FindByStatus(ctx context.Context, status lead.LeadStatus, filter shared.Filter) ([]lead.Lead, error) {
	return nil, nil
}

func (r *fakeLeadRepo) Save(ctx context.Context, l *lead.Lead) error {
	r.leads[l.ID] = l
	r.saved++
	l.ClearDomainEvents()
	return nil
}

func (r *fakeLeadRepo) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	return int64(len(r.leads)), nil
}

type fakeRecordRepo struct {
	byExternal map[string]*integration.SyncRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{byExternal: make(map[string]*integration.SyncRecord)}
}

func (r *fakeRecordRepo) seed(leadID uuid.UUID, platform integration.Platform, externalID string) {
	record := integration.NewSyncRecord(leadID, platform)
	record.MarkSuccess(externalID)
	r.byExternal[string(platform)+"/"+externalID] = record
}

func (r *fakeRecordRepo) GetOrCreate(ctx context.Context, leadID uuid.UUID, platform integration.Platform) (*integration.SyncRecord, error) {
	return integration.NewSyncRecord(leadID, platform), nil
}

func (r *fakeRecordRepo) Save(ctx context.Context, record *integration.SyncRecord) error {
	return nil
}

func (r *fakeRecordRepo) FindByLeadAndPlatform(ctx context.Context, leadID uuid.UUID, platform integration.Platform) (*integration.SyncRecord, error) {
	return nil, integration.ErrSyncRecordNotFound
}

func (r *fakeRecordRepo) FindByExternalID(ctx context.Context, platform integration.Platform, externalID string) (*integration.SyncRecord, error) {
	record, ok := r.byExternal[string(platform)+"/"+externalID]
	if !ok {
		return nil, integration.ErrSyncRecordNotFound
	}
	return record, nil
}

func (r *fakeRecordRepo) FindByLead(ctx context.Context, leadID uuid.UUID) ([]integration.SyncRecord, error) {
	return nil, nil
}

func (r *fakeRecordRepo) DeleteByLead(ctx context.Context, leadID uuid.UUID) error {
	return nil
}

type fakeMessageLog struct {
	logs    map[string]*integration.MessageLog
	updates []string
}

func newFakeMessageLog() *fakeMessageLog {
	return &fakeMessageLog{logs: make(map[string]*integration.MessageLog)}
}

func (r *fakeMessageLog) seed(leadID uuid.UUID, waMessageID string) {
	log := integration.NewMessageLog(leadID, integration.MessageTypeWelcome, "lead_welcome")
	log.MarkSent(waMessageID)
	r.logs[waMessageID] = log
}

func (r *fakeMessageLog) Save(ctx context.Context, log *integration.MessageLog) error {
	if log.WAMessageID != "" {
		r.logs[log.WAMessageID] = log
	}
	return nil
}

func (r *fakeMessageLog) FindByWAMessageID(ctx context.Context, waMessageID string) (*integration.MessageLog, error) {
	log, ok := r.logs[waMessageID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return log, nil
}

func (r *fakeMessageLog) FindByLead(ctx context.Context, leadID uuid.UUID) ([]integration.MessageLog, error) {
	return nil, nil
}

func (r *fakeMessageLog) UpdateStatus(ctx context.Context, waMessageID string, status integration.MessageStatus) error {
	log, ok := r.logs[waMessageID]
	if !ok {
		return shared.ErrNotFound
	}
	log.Status = status
	r.updates = append(r.updates, waMessageID)
	return nil
}

type fakeOptOutCache struct {
	phones []string
}

func (c *fakeOptOutCache) MarkOptedOut(ctx context.Context, phone string) error {
	c.phones = append(c.phones, phone)
	return nil
}

type scriptedDedup struct{ first bool }

func (d *scriptedDedup) FirstSeen(ctx context.Context, key string) (bool, error) {
	return d.first, nil
}

func newLeadService(leads *fakeLeadRepo, records *fakeRecordRepo, dedup leadapp.DedupGuard) *leadapp.Service {
	return leadapp.NewService(leads, records, nil, nil, dedup, zap.NewNop())
}

func seedLead(t *testing.T, repo *fakeLeadRepo, status lead.LeadStatus) *lead.Lead {
	t.Helper()
	l, err := lead.NewLead(lead.NewLeadInput{
		Name:    "Asha Verma",
		Phone:   "9876543210",
		Source:  "google-ads",
		Consent: true,
	})
	require.NoError(t, err)
	require.NoError(t, l.ChangeStatus(status))
	l.ClearDomainEvents()
	repo.leads[l.ID] = l
	return l
}
