//go:build test

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isseis/go-pe-scorer/internal/model"
	"github.com/isseis/go-pe-scorer/internal/scorer"
)

type fakePredictor struct {
	model   *model.Model
	verdict scorer.Verdict
	err     error
	got     []byte
	calls   int
}

func (f *fakePredictor) Predict(_ context.Context, sample []byte) (scorer.Verdict, error) {
	f.calls++
	f.got = sample
	return f.verdict, f.err
}

func (f *fakePredictor) Model() *model.Model { return f.model }

func newTestServer(p Predictor, cfg Config) *Server {
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, p)
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func TestScore_OK(t *testing.T) {
	p := &fakePredictor{
		model:   &model.Model{ID: "m1"},
		verdict: scorer.Verdict{Label: scorer.LabelMalicious, Score: 0.75, ModelID: "m1"},
	}
	rec := do(t, newTestServer(p, Config{}), http.MethodPost, "/", []byte("MZ..."))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"result":1,"score":0.75,"parse_failed":false,"cached":false,"model_id":"m1"}`, rec.Body.String())
	assert.Equal(t, []byte("MZ..."), p.got)
}

func TestScore_ParseFailure(t *testing.T) {
	p := &fakePredictor{verdict: scorer.Verdict{Label: 1, Score: 1, ParseFailed: true, ModelID: "m1"}}
	rec := do(t, newTestServer(p, Config{}), http.MethodPost, "/", []byte("garbage"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["parse_failed"])
	assert.Equal(t, 1.0, body["score"])
}

func TestScore_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		err     error
		limit   int64
		status  int
		message string
	}{
		{"too large", bytes.Repeat([]byte{'A'}, 17), nil, 16, http.StatusRequestEntityTooLarge, "sample exceeds the size limit"},
		{"no model", []byte("MZ"), scorer.ErrNoModel, 0, http.StatusServiceUnavailable, "no model loaded"},
		{"internal", []byte("MZ"), errors.New("boom"), 0, http.StatusInternalServerError, "scoring failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePredictor{err: tt.err}
			rec := do(t, newTestServer(p, Config{MaxSampleSize: tt.limit}), http.MethodPost, "/", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec)["error"])
		})
	}
}

func TestScore_EmptyBodyIsScored(t *testing.T) {
	p := &fakePredictor{verdict: scorer.Verdict{Label: scorer.LabelMalicious, Score: 1, ParseFailed: true, ModelID: "m1"}}
	rec := do(t, newTestServer(p, Config{}), http.MethodPost, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, p.got)
	assert.JSONEq(t, `{"result":1,"score":1,"parse_failed":true,"cached":false,"model_id":"m1"}`, rec.Body.String())
}

func TestScore_AtLimitIsAccepted(t *testing.T) {
	p := &fakePredictor{verdict: scorer.Verdict{ModelID: "m1"}}
	rec := do(t, newTestServer(p, Config{MaxSampleSize: 16}), http.MethodPost, "/", bytes.Repeat([]byte{'A'}, 16))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScore_WrongMethod(t *testing.T) {
	rec := do(t, newTestServer(&fakePredictor{}, Config{}), http.MethodPut, "/", []byte("x"))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	p := &fakePredictor{}
	s := newTestServer(p, Config{})

	rec := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	p.model = &model.Model{ID: "m2"}
	rec = do(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","model_id":"m2"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	scorer.NewMetrics(reg)
	s := newTestServer(&fakePredictor{}, Config{Gatherer: reg})

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "nfs_scorer_predict_seconds"))

	rec = do(t, newTestServer(&fakePredictor{}, Config{}), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPServer(t *testing.T) {
	s := newTestServer(&fakePredictor{}, Config{ListenAddr: "127.0.0.1:0"})
	hs := s.HTTPServer()
	assert.Equal(t, "127.0.0.1:0", hs.Addr)
	assert.Same(t, s, hs.Handler)
}
