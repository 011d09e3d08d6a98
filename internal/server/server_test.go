package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/vitalq/internal/assessment"
	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/metrics"
	"github.com/abhisek/vitalq/internal/store"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	yn := func(id string) catalog.Question { return catalog.Question{ID: id, Type: catalog.TypeYesNo, Weight: 1} }
	q2 := yn("q2")
	q2.Condition = &catalog.Condition{DependsOn: "q1", Equals: "yes"}
	c, err := catalog.New(catalog.Definition{Modules: []catalog.ModuleDef{
		{ID: "m1", Order: 0, Questions: []catalog.Question{yn("q1"), q2}},
		{ID: "m2", Order: 1, Questions: []catalog.Question{yn("q3")}},
	}})
	require.NoError(t, err)
	return c
}

type apiClient struct {
	t *testing.T
	h http.Handler
}

func newAPI(t *testing.T, opts ...Option) apiClient {
	t.Helper()
	e := assessment.New(testCatalog(t), store.NewMemory())
	return apiClient{t: t, h: NewHandler(e, opts...)}
}

func (c apiClient) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func (c apiClient) start(ref string) string {
	c.t.Helper()
	code, body := c.do(http.MethodPost, "/assessments", map[string]string{"clientRef": ref})
	require.Contains(c.t, []int{http.StatusCreated, http.StatusOK}, code)
	return body["assessmentId"].(string)
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "error envelope missing: %v", body)
	return e["code"].(string)
}

func questionID(t *testing.T, body map[string]any) string {
	t.Helper()
	q, ok := body["question"].(map[string]any)
	require.True(t, ok, "question missing: %v", body)
	return q["id"].(string)
}

func TestStart_CreatesThenResumes(t *testing.T) {
	api := newAPI(t)

	code, body := api.do(http.MethodPost, "/assessments", map[string]string{"clientRef": "c1"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "NOT_STARTED", body["status"])
	assert.Equal(t, "m1", body["currentModuleId"])
	assert.Equal(t, false, body["resuming"])
	id := body["assessmentId"].(string)

	code, body = api.do(http.MethodPost, "/assessments", map[string]string{"clientRef": "c1"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["assessmentId"])
	assert.Equal(t, true, body["resuming"])
}

func TestStart_RequestValidation(t *testing.T) {
	api := newAPI(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing clientRef", map[string]string{}},
		{"empty clientRef", map[string]string{"clientRef": ""}},
		{"unknown field", map[string]string{"clientRef": "c1", "extra": "x"}},
		{"too long", map[string]string{"clientRef": strings.Repeat("x", 129)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := api.do(http.MethodPost, "/assessments", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, code)
			assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))
		})
	}
}

func TestInterviewFlow(t *testing.T) {
	api := newAPI(t)
	id := api.start("c1")
	base := "/assessments/" + id

	code, body := api.do(http.MethodGet, base+"/next", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "q1", questionID(t, body))

	code, body = api.do(http.MethodPost, base+"/responses", map[string]any{"questionId": "q1", "value": "maybe"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, body))

	code, body = api.do(http.MethodPost, base+"/responses", map[string]any{"questionId": "q2", "value": "yes"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "NOT_APPLICABLE", errorCode(t, body))

	code, body = api.do(http.MethodPost, base+"/responses", map[string]any{"questionId": "q1", "value": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["accepted"])

	code, body = api.do(http.MethodPost, base+"/previous", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "q1", questionID(t, body))
	assert.Equal(t, "yes", body["previousValue"])

	code, body = api.do(http.MethodPost, base+"/previous", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["atStart"])

	for _, qid := range []string{"q1", "q2", "q3"} {
		code, body = api.do(http.MethodGet, base+"/next", nil)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, qid, questionID(t, body))
		code, _ = api.do(http.MethodPost, base+"/responses", map[string]any{"questionId": qid, "value": "yes"})
		require.Equal(t, http.StatusOK, code)
	}

	code, body = api.do(http.MethodGet, base+"/next", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["completed"])

	code, body = api.do(http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "COMPLETED", body["status"])
	assert.EqualValues(t, 3, body["questionsAsked"])
	assert.EqualValues(t, 0, body["questionsSaved"])
	assert.EqualValues(t, 100, body["completionRate"])

	code, body = api.do(http.MethodGet, base+"/responses", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["responses"], 3)

	code, body = api.do(http.MethodPost, base+"/abandon", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_COMPLETED", errorCode(t, body))
}

func TestPauseResume(t *testing.T) {
	api := newAPI(t)
	id := api.start("c1")
	base := "/assessments/" + id

	_, body := api.do(http.MethodGet, base+"/next", nil)
	pending := questionID(t, body)
	code, _ := api.do(http.MethodPost, base+"/responses", map[string]any{"questionId": pending, "value": "no"})
	require.Equal(t, http.StatusOK, code)
	_, body = api.do(http.MethodGet, base+"/next", nil)
	pending = questionID(t, body)

	code, body = api.do(http.MethodPost, base+"/pause", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PAUSED", body["status"])
	assert.EqualValues(t, 1, body["questionsAnswered"])
	assert.EqualValues(t, 66, body["progressPercentage"])

	code, body = api.do(http.MethodGet, base+"/next", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, body))

	code, body = api.do(http.MethodPost, base+"/resume", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "IN_PROGRESS", body["status"])
	assert.Equal(t, pending, questionID(t, body))

	code, body = api.do(http.MethodPost, base+"/abandon", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ABANDONED", body["status"])
}

func TestUnknownAssessment(t *testing.T) {
	api := newAPI(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/assessments/nope"},
		{http.MethodGet, "/assessments/nope/next"},
		{http.MethodPost, "/assessments/nope/pause"},
	} {
		code, body := api.do(tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, code, tc.path)
		assert.Equal(t, "NOT_FOUND", errorCode(t, body))
	}
}

type brokenEngine struct{ Engine }

func (brokenEngine) Status(context.Context, string) (assessment.Report, error) {
	return assessment.Report{}, errors.New("disk on fire")
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	h := NewHandler(brokenEngine{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assessments/a1", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"INTERNAL","message":"internal error"}}`, rec.Body.String())
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	code, body := newAPI(t, WithHealth(pinger{})).do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, _ = newAPI(t, WithHealth(pinger{err: errors.New("closed")})).do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.Transition("IN_PROGRESS")
	h := NewHandler(assessment.New(testCatalog(t), store.NewMemory()), WithMetricsHandler(m.Handler()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vitalq_")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor("not_found"))
	assert.Equal(t, http.StatusConflict, statusFor("conflict"))
	assert.Equal(t, http.StatusInternalServerError, statusFor("hint_provider"))
}
