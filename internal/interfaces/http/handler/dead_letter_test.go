package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	syncapp "github.com/nexus/backend/internal/application/sync"
	"github.com/nexus/backend/internal/domain/integration"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDeadLetterRepo struct {
	entries map[uuid.UUID]*integration.DeadLetterEntry
}

func newFakeDeadLetterRepo() *fakeDeadLetterRepo {
	return &fakeDeadLetterRepo{entries: map[uuid.UUID]*integration.DeadLetterEntry{}}
}

func (f *fakeDeadLetterRepo) Record(_ context.Context, entry *integration.DeadLetterEntry) error {
	f.entries[entry.ID] = entry
	return nil
}

func (f *fakeDeadLetterRepo) FindByID(_ context.Context, id uuid.UUID) (*integration.DeadLetterEntry, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, integration.ErrDeadLetterNotFound
	}
	return entry, nil
}

func (f *fakeDeadLetterRepo) ListUnresolved(_ context.Context, limit int) ([]integration.DeadLetterEntry, error) {
	var out []integration.DeadLetterEntry
	for _, e := range f.entries {
		if e.Resolved {
			continue
		}
		out = append(out, *e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeDeadLetterRepo) MarkResolved(_ context.Context, id uuid.UUID) error {
	entry, ok := f.entries[id]
	if !ok {
		return integration.ErrDeadLetterNotFound
	}
	entry.MarkResolved()
	return nil
}

func (f *fakeDeadLetterRepo) CountUnresolved(_ context.Context) (int64, error) {
	var n int64
	for _, e := range f.entries {
		if !e.Resolved {
			n++
		}
	}
	return n, nil
}

type enqueuedJob struct {
	Name string
	Args interface{}
}

type fakeEnqueuer struct {
	jobs []enqueuedJob
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, name string, args interface{}, _ time.Duration) error {
	f.jobs = append(f.jobs, enqueuedJob{Name: name, Args: args})
	return nil
}

func newDeadLetterTestRouter(t *testing.T) (*gin.Engine, *fakeDeadLetterRepo, *fakeEnqueuer) {
	t.Helper()
	repo := newFakeDeadLetterRepo()
	enqueuer := &fakeEnqueuer{}
	svc := syncapp.NewDeadLetterService(repo, enqueuer, zap.NewNop())
	h := NewDeadLetterHandler(svc)

	router := gin.New()
	router.GET("/admin/dead-letters", h.List)
	router.POST("/admin/dead-letters/:id/resolve", h.Resolve)
	return router, repo, enqueuer
}

func seedDeadLetter(repo *fakeDeadLetterRepo) *integration.DeadLetterEntry {
	entry := integration.NewDeadLetterEntry(
		uuid.New(),
		integration.PlatformZoho,
		"zoho.push",
		[]byte(`{"lead_id": "00000000-0000-0000-0000-000000000001"}`),
		"token refresh failed",
		5,
	)
	repo.entries[entry.ID] = entry
	return entry
}

func TestDeadLetterHandlerList(t *testing.T) {
	router, repo, _ := newDeadLetterTestRouter(t)
	seedDeadLetter(repo)
	seedDeadLetter(repo)

	req := httptest.NewRequest(http.MethodGet, "/admin/dead-letters", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                 `json:"success"`
		Data    []DeadLetterResponse `json:"data"`
		Meta    *struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
	assert.Equal(t, "zoho.push", resp.Data[0].JobName)
	assert.False(t, resp.Data[0].Resolved)
}

func TestDeadLetterHandlerListExcludesResolved(t *testing.T) {
	router, repo, _ := newDeadLetterTestRouter(t)
	entry := seedDeadLetter(repo)
	entry.MarkResolved()

	req := httptest.NewRequest(http.MethodGet, "/admin/dead-letters", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

func TestDeadLetterHandlerListLimitOutOfRange(t *testing.T) {
	router, _, _ := newDeadLetterTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/dead-letters?limit=5000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeadLetterHandlerResolve(t *testing.T) {
	router, repo, enqueuer := newDeadLetterTestRouter(t)
	entry := seedDeadLetter(repo)

	req := httptest.NewRequest(http.MethodPost, "/admin/dead-letters/"+entry.ID.String()+"/resolve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, repo.entries[entry.ID].Resolved)
	require.Len(t, enqueuer.jobs, 1)
	assert.Equal(t, "zoho.push", enqueuer.jobs[0].Name)
}

func TestDeadLetterHandlerResolveIdempotent(t *testing.T) {
	router, repo, enqueuer := newDeadLetterTestRouter(t)
	entry := seedDeadLetter(repo)
	entry.MarkResolved()

	req := httptest.NewRequest(http.MethodPost, "/admin/dead-letters/"+entry.ID.String()+"/resolve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, enqueuer.jobs)
}

func TestDeadLetterHandlerResolveUnknownID(t *testing.T) {
	router, _, _ := newDeadLetterTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/dead-letters/"+uuid.NewString()+"/resolve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeadLetterHandlerResolveMalformedID(t *testing.T) {
	router, _, _ := newDeadLetterTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/dead-letters/not-a-uuid/resolve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
