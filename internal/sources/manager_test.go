package sources

import (
	"bytes"
	"context"
	"errors"
	"loc-api/internal/logger"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name  string
	body  []byte
	err   error
	delay time.Duration
}

func (s *stubSource) Name() string { return s.name }
func (s *stubSource) Fetch(ctx context.Context) ([]byte, error) {
	time.Sleep(s.delay)
	return s.body, s.err
}

func TestFetchAllKeepsRegistrationOrder(t *testing.T) {
	m := NewManager(
		&stubSource{name: "slow", body: []byte("1"), delay: 30 * time.Millisecond},
		&stubSource{name: "broken", err: errors.New("boom")},
		&stubSource{name: "fast", body: []byte("3")},
	)
	out := m.FetchAll(context.Background())
	require.Len(t, out, 3)
	assert.Equal(t, "slow", out[0].Name)
	assert.Equal(t, []byte("1"), out[0].Body)
	assert.Equal(t, "broken", out[1].Name)
	assert.Error(t, out[1].Err)
	assert.Equal(t, "fast", out[2].Name)
	assert.NoError(t, out[2].Err)
}

func TestRegisterIgnoresNil(t *testing.T) {
	m := NewManager()
	m.Register(nil)
	assert.Empty(t, m.Sources())
	assert.Empty(t, m.FetchAll(context.Background()))
}

func TestHTTPSource(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path == "/missing.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"Goa":["North Goa","South Goa"]}`))
	}))
	defer srv.Close()

	ok := NewHTTP(srv.URL+"/india.json", nil, time.Second)
	b, err := ok.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"Goa":["North Goa","South Goa"]}`, string(b))
	assert.Empty(t, auth)
	assert.Contains(t, ok.Name(), "/india.json")

	missing := NewHTTP(srv.URL+"/missing.json", srv.Client(), 0)
	_, err = missing.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSourceUnreachable(t *testing.T) {
	s := NewHTTP("http://127.0.0.1:1/none.json", nil, 500*time.Millisecond)
	_, err := s.Fetch(context.Background())
	assert.Error(t, err)
}

func TestRegisterLogsSourceURL(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.L()
	logger.Use(logger.New(&buf, "info", "json"))
	t.Cleanup(func() { logger.Use(prev) })

	const u = "https://cdn.example.com/npm/india.json"
	src := NewHTTP(u, nil, time.Second)
	assert.Equal(t, u, src.URL())
	assert.Equal(t, "cdn.example.com/npm/india.json", src.Name())

	m := NewManager(src, &stubSource{name: "stub"})
	require.Len(t, m.Sources(), 2)
	assert.Contains(t, buf.String(), `"url":"`+u+`"`)
	assert.Equal(t, 2, strings.Count(buf.String(), `"msg":"source_registered"`))
}
