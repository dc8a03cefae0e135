package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexus/backend/internal/domain/lead"
)

type fakeFetcher struct {
	submissions map[string]*LeadSubmission
	err         error
}

func (f *fakeFetcher) FetchLeadForm(ctx context.Context, leadgenID string) (*LeadSubmission, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.submissions[leadgenID]
	if !ok {
		return nil, errors.New("leadgen not found")
	}
	return s, nil
}

func TestMetaLeadsReconcilerCapturesSubmission(t *testing.T) {
	leads := newFakeLeadRepo()
	records := newFakeRecordRepo()
	fetcher := &fakeFetcher{submissions: map[string]*LeadSubmission{
		"lg-1": {
			FullName: "Rohan Mehta",
			Phone:    "98111-22333",
			Email:    "rohan@example.com",
			FormID:   "form-77",
			AdID:     "ad-42",
		},
	}}

	r := NewMetaLeadsReconciler(fetcher, newLeadService(leads, records, nil), zap.NewNop())

	require.NoError(t, r.HandleLeadgen(context.Background(), "lg-1"))

	require.Len(t, leads.leads, 1)
	for _, l := range leads.leads {
		assert.Equal(t, "Rohan Mehta", l.Name)
		assert.Equal(t, "919811122333", l.Phone)
		assert.Equal(t, "rohan@example.com", l.Email)
		assert.Equal(t, "meta-ads", l.Source)
		assert.Equal(t, "facebook", l.UTMSource)
		assert.Equal(t, "lead-ad", l.UTMMedium)
		assert.Equal(t, "form-77", l.UTMCampaign)
		assert.Equal(t, lead.StatusNew, l.Status)
		assert.True(t, l.Consent)
	}
}

func TestMetaLeadsReconcilerIgnoresEmptyLeadgenID(t *testing.T) {
	leads := newFakeLeadRepo()
	records := newFakeRecordRepo()
	fetcher := &fakeFetcher{err: errors.New("must not be called")}

	r := NewMetaLeadsReconciler(fetcher, newLeadService(leads, records, nil), zap.NewNop())

	require.NoError(t, r.HandleLeadgen(context.Background(), ""))
	assert.Empty(t, leads.leads)
}

func TestMetaLeadsReconcilerSkipsDuplicateSubmission(t *testing.T) {
	leads := newFakeLeadRepo()
	records := newFakeRecordRepo()
	fetcher := &fakeFetcher{submissions: map[string]*LeadSubmission{
		"lg-1": {FullName: "Rohan Mehta", Phone: "9811122333"},
	}}

	r := NewMetaLeadsReconciler(fetcher, newLeadService(leads, records, &scriptedDedup{first: false}), zap.NewNop())

	require.NoError(t, r.HandleLeadgen(context.Background(), "lg-1"))
	assert.Empty(t, leads.leads)
}

func TestMetaLeadsReconcilerSkipsMalformedSubmission(t *testing.T) {
	leads := newFakeLeadRepo()
	records := newFakeRecordRepo()
	fetcher := &fakeFetcher{submissions: map[string]*LeadSubmission{
		"lg-1": {FullName: "Rohan Mehta", Phone: "12"},
	}}

	r := NewMetaLeadsReconciler(fetcher, newLeadService(leads, records, nil), zap.NewNop())

	require.NoError(t, r.HandleLeadgen(context.Background(), "lg-1"))
	assert.Empty(t, leads.leads)
}

func TestMetaLeadsReconcilerPropagatesFetchError(t *testing.T) {
	leads := newFakeLeadRepo()
	records := newFakeRecordRepo()
	fetchErr := errors.New("graph api unavailable")
	fetcher := &fakeFetcher{err: fetchErr}

	r := NewMetaLeadsReconciler(fetcher, newLeadService(leads, records, nil), zap.NewNop())

	err := r.HandleLeadgen(context.Background(), "lg-1")
	assert.ErrorIs(t, err, fetchErr)
}
