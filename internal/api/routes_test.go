package api

import (
	"context"
	"encoding/json"
	"errors"
	"loc-api/internal/backend"
	"loc-api/internal/locations"
	"loc-api/internal/store"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStats struct {
	mu     sync.Mutex
	levels map[string]int64
}

func (m *memStats) IncrStats(ctx context.Context, level string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.levels == nil {
		m.levels = map[string]int64{}
	}
	m.levels[level]++
	return nil
}

func (m *memStats) GetTotals(ctx context.Context) (*store.Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &store.Totals{ByLevel: map[string]int64{}}
	for k, v := range m.levels {
		t.ByLevel[k] = v
		t.Total += v
	}
	t.Today = t.Total
	return t, nil
}

// newServer wires the real resolver to a fake locations backend.
func newServer(t *testing.T, up bool) (*httptest.Server, *memStats, *[]string) {
	t.Helper()
	var (
		mu    sync.Mutex
		auths []string
	)
	be := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		if !up {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		q := r.URL.Query()
		var body any
		switch r.URL.Path {
		case "/api/locations/states/":
			body = map[string]any{"states": []string{"Kerala"}}
		case "/api/locations/districts/":
			body = map[string]any{"districts": []string{q.Get("state") + " Central"}}
		case "/api/locations/sub_districts/":
			body = map[string]any{"sub_districts": []string{"Kochi"}}
		case "/api/locations/villages/":
			body = map[string]any{"villages": []string{"Fort Kochi"}}
		case "/api/locations/pin_codes/":
			body = map[string]any{"pin_codes": []string{"682001"}}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(be.Close)

	res := locations.New(locations.Options{Backend: backend.NewClient(be.URL, be.Client())})
	stats := &memStats{}
	r := mux.NewRouter()
	BuildRoutes(r.PathPrefix("/api").Subrouter(), Deps{Resolver: res, Stats: stats, AdminToken: "secret"})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, stats, &auths
}

func getJSON(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func get(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return getJSON(t, req)
}

func TestStatesForwardsToken(t *testing.T) {
	srv, stats, auths := newServer(t, true)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/locations/states/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Token abc123")

	code, body := getJSON(t, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["states"], 36)
	assert.Equal(t, false, body["degraded"])
	assert.Equal(t, []any{}, body["failed_sources"])
	assert.Equal(t, []string{"Token abc123"}, *auths)
	assert.EqualValues(t, 1, stats.levels["states"])
}

func TestDistrictsRequiresState(t *testing.T) {
	srv, _, _ := newServer(t, true)
	code, body := get(t, srv.URL+"/api/locations/districts/")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "state is required", body["error"])

	code, body = get(t, srv.URL+"/api/locations/districts/?state=Andaman+and+Nicobar+Islands")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"Andaman and Nicobar Islands Central", "Nicobar", "North and Middle Andaman", "South Andaman"}, body["districts"])
}

func TestDeeperLevels(t *testing.T) {
	srv, _, _ := newServer(t, true)
	code, body := get(t, srv.URL+"/api/locations/sub_districts/?state=Kerala&district=Ernakulam")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"Kochi"}, body["sub_districts"])

	code, _ = get(t, srv.URL+"/api/locations/sub_districts/?state=Kerala")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = get(t, srv.URL+"/api/locations/villages/?state=Kerala&district=Ernakulam&sub_district=Kochi")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"Fort Kochi"}, body["villages"])

	code, _ = get(t, srv.URL+"/api/locations/villages/?state=Kerala&district=Ernakulam")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = get(t, srv.URL+"/api/locations/pin_codes/?district=Ernakulam")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"682001"}, body["pin_codes"])
}

func TestBackendDownDegrades(t *testing.T) {
	srv, _, _ := newServer(t, false)
	code, body := get(t, srv.URL+"/api/locations/pin_codes/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["degraded"])
	assert.Equal(t, []any{"400058", "400050", "400049", "411001", "411045"}, body["pin_codes"])
	assert.Equal(t, []any{locations.SourceBackendPinCodes}, body["failed_sources"])

	code, body = get(t, srv.URL+"/api/locations/states/")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["states"], 36)
	assert.Equal(t, true, body["degraded"])
}

func TestAdminEndpoints(t *testing.T) {
	srv, _, _ := newServer(t, true)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/locations/cache/refresh", nil)
	code, _ := getJSON(t, req)
	assert.Equal(t, http.StatusForbidden, code)

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/api/locations/cache/refresh", nil)
	req.Header.Set(AdminTokenHeader, "secret")
	code, body := getJSON(t, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["states"], 36)

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/locations/cache", nil)
	req.Header.Set(AdminTokenHeader, "wrong")
	code, _ = getJSON(t, req)
	assert.Equal(t, http.StatusForbidden, code)

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/locations/cache", nil)
	req.Header.Set(AdminTokenHeader, "secret")
	code, _ = getJSON(t, req)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestStatsAndHealth(t *testing.T) {
	srv, _, _ := newServer(t, true)
	get(t, srv.URL+"/api/locations/states/")
	get(t, srv.URL+"/api/locations/pin_codes/")

	code, body := get(t, srv.URL+"/api/stats")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["total"])
	assert.Equal(t, map[string]any{"states": float64(1), "pin_codes": float64(1)}, body["by_level"])

	code, body = get(t, srv.URL+"/api/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(srv.URL + "/api/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type brokenStats struct{ memStats }

func (b *brokenStats) IncrStats(ctx context.Context, level string) error {
	return errors.New("stats table missing")
}

func TestStatsFailureDoesNotFailRequest(t *testing.T) {
	res := locations.New(locations.Options{})
	r := mux.NewRouter()
	BuildRoutes(r.PathPrefix("/api").Subrouter(), Deps{Resolver: res, Stats: &brokenStats{}})
	srv := httptest.NewServer(r)
	defer srv.Close()

	code, body := get(t, srv.URL+"/api/locations/states/")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["states"], 36)
}
