package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqsim/store/memory"
)

// recordingHub captures broadcast calls for assertions
type recordingHub struct {
	mu        sync.Mutex
	refreshes []string
	currents  []v1alpha1.CurrentContent
	created   []v1alpha1.Schedule
}

func (h *recordingHub) BroadcastRefresh(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshes = append(h.refreshes, message)
}

func (h *recordingHub) BroadcastCurrent(current v1alpha1.CurrentContent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currents = append(h.currents, current)
}

func (h *recordingHub) BroadcastScheduleCreated(s v1alpha1.Schedule) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, s)
}

// staticResolver answers Current with a fixed payload
type staticResolver struct {
	current v1alpha1.CurrentContent
}

func (r *staticResolver) Current(ctx context.Context) (v1alpha1.CurrentContent, error) {
	return r.current, nil
}

func newTestHandler(t *testing.T, resolver CurrentProvider) (*Handler, *memory.Repository, *recordingHub) {
	t.Helper()
	repo := memory.NewRepository()
	hub := &recordingHub{}
	if resolver == nil {
		resolver = &staticResolver{current: v1alpha1.CurrentContent{Success: true, Message: "No active schedule"}}
	}
	h := NewHandler(repo, resolver, hub, nil, nil, zerolog.New(os.Stderr))
	return h, repo, hub
}

func doJSON(t *testing.T, h *Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, req)
	return w
}

func validSchedule() v1alpha1.Schedule {
	return v1alpha1.Schedule{
		Name:      "Morning Loop",
		StartDate: "2026-01-01",
		EndDate:   "2026-12-31",
		StartTime: "08:00",
		EndTime:   "12:00",
		Priority:  5,
		IsActive:  true,
		Content:   []v1alpha1.ScheduleEntry{{ContentRef: "c-1", Order: 0}},
	}
}

func TestHealthEndpoints(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		w := doJSON(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestHandleCurrentContract(t *testing.T) {
	t.Run("with_content", func(t *testing.T) {
		h, _, _ := newTestHandler(t, &staticResolver{current: v1alpha1.CurrentContent{
			Success: true,
			Data:    &v1alpha1.ContentItem{ID: "c-1", Title: "Welcome"},
		}})

		w := doJSON(t, h, http.MethodGet, "/api/v1alpha1/schedules/current", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp v1alpha1.CurrentContentResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Data)
		assert.Equal(t, "c-1", resp.Data.ID)
	})

	t.Run("empty_schedule_is_success_with_null_data", func(t *testing.T) {
		h, _, _ := newTestHandler(t, nil)

		w := doJSON(t, h, http.MethodGet, "/api/v1alpha1/schedules/current", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp v1alpha1.CurrentContentResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Nil(t, resp.Data)
		assert.Equal(t, "No active schedule", resp.Message)
	})
}

func TestCreateSchedule(t *testing.T) {
	h, _, hub := newTestHandler(t, nil)

	w := doJSON(t, h, http.MethodPost, "/api/v1alpha1/schedules", validSchedule())
	require.Equal(t, http.StatusCreated, w.Code)

	var created v1alpha1.Schedule
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.UpdatedAt)

	// A create pushes a refresh hint, the created announcement, and the
	// re-resolved current answer
	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Len(t, hub.refreshes, 1)
	assert.Len(t, hub.created, 1)
	assert.Len(t, hub.currents, 1)
}

func TestCreateScheduleRejectsInvalid(t *testing.T) {
	h, repo, hub := newTestHandler(t, nil)

	s := validSchedule()
	s.StartDate = "" // fails server-side revalidation

	w := doJSON(t, h, http.MethodPost, "/api/v1alpha1/schedules", s)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error  string `json:"error"`
		Fields []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "schedule failed validation", resp.Error)
	require.NotEmpty(t, resp.Fields)
	assert.Equal(t, "startDate", resp.Fields[0].Field)

	// Nothing was stored and nothing broadcast
	list, err := repo.ListSchedules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Empty(t, hub.refreshes)
}

func TestScheduleCRUD(t *testing.T) {
	h, _, hub := newTestHandler(t, nil)

	w := doJSON(t, h, http.MethodPost, "/api/v1alpha1/schedules", validSchedule())
	require.Equal(t, http.StatusCreated, w.Code)
	var created v1alpha1.Schedule
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	w = doJSON(t, h, http.MethodGet, "/api/v1alpha1/schedules/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	updated := created
	updated.Name = "Evening Loop"
	w = doJSON(t, h, http.MethodPut, "/api/v1alpha1/schedules/"+created.ID, updated)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1alpha1/schedules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list v1alpha1.ScheduleList
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Equal(t, 1, list.TotalCount)
	assert.Equal(t, "Evening Loop", list.Items[0].Name)

	w = doJSON(t, h, http.MethodDelete, "/api/v1alpha1/schedules/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1alpha1/schedules/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// create + update + delete each notified viewers
	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Len(t, hub.refreshes, 3)
	assert.Len(t, hub.created, 1)
}

func TestMutationsOnMissingSchedule(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)

	w := doJSON(t, h, http.MethodPut, "/api/v1alpha1/schedules/ghost", validSchedule())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h, http.MethodDelete, "/api/v1alpha1/schedules/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContentEndpoints(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)

	item := v1alpha1.ContentItem{
		ID:    "c-1",
		Title: "Welcome",
		Type:  v1alpha1.ContentTypeImage,
		URL:   "https://cdn.example.com/welcome.png",
	}
	w := doJSON(t, h, http.MethodPost, "/api/v1alpha1/content", item)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1alpha1/content/c-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1alpha1/content", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []v1alpha1.ContentItem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&items))
	assert.Len(t, items, 1)
}

func TestRateLimiterGatesOnlyCurrent(t *testing.T) {
	repo := memory.NewRepository()
	denied := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	h := NewHandler(repo, &staticResolver{current: v1alpha1.CurrentContent{Success: true}}, nil, denied, nil, zerolog.New(os.Stderr))

	w := doJSON(t, h, http.MethodGet, "/api/v1alpha1/schedules/current", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// CRUD stays reachable when the poll endpoint is throttled
	w = doJSON(t, h, http.MethodGet, "/api/v1alpha1/schedules", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNoHubIsTolerated(t *testing.T) {
	repo := memory.NewRepository()
	h := NewHandler(repo, &staticResolver{current: v1alpha1.CurrentContent{Success: true}}, nil, nil, nil, zerolog.New(os.Stderr))

	w := doJSON(t, h, http.MethodPost, "/api/v1alpha1/schedules", validSchedule())
	assert.Equal(t, http.StatusCreated, w.Code)
}
