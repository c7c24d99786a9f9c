package insights_api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"insights-filter/internal/clock"
	"insights-filter/internal/insights/loader"
	"insights-filter/internal/kafka"
	"insights-filter/internal/logger"
	"insights-filter/internal/session"
)

var evalAt = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

const listingCSV = `ID,Name,DateTime,Location,Price,LowestStubHubPrice,OOSZones,monitoring
101,Alpha Tour,2026-10-25 12:00,Arena,$10-$20,$15,"A, B,  C",Yes
102,Beta Live,2026-10-18 12:00,Hall,$40,,A,No
103,Gamma Fest,2026-09-01 12:00,Park,oops,$30,,Yes
`

type testServer struct {
	router    http.Handler
	publisher *kafka.MockProducer
	sessions  *session.Store
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	clk := clock.NewFixed(evalAt)

	l := loader.New(loader.Options{Clock: clk, Logger: log})
	sessions := session.NewStore(time.Hour, clk, log)
	publisher := kafka.NewMockProducer(kafka.Topics{TableLoaded: "loaded", ViewExported: "exported"}, log)

	h := NewHandler(l, sessions, publisher, log, maxUpload)
	h.Clock = clk

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return &testServer{router: r, publisher: publisher, sessions: sessions}
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", content))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (s *testServer) upload(t *testing.T, content string) string {
	t.Helper()
	body, ct := multipartBody(t, "file", "events.csv", content)
	rec := s.do(t, http.MethodPost, "/api/insights/tables", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		SessionID string `json:"session_id"`
		Rows      int    `json:"rows"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func TestUploadTable(t *testing.T) {
	s := newTestServer(t, 1<<20)
	body, ct := multipartBody(t, "file", "events.csv", listingCSV)
	rec := s.do(t, http.MethodPost, "/api/insights/tables", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		SessionID  string `json:"session_id"`
		Rows       int    `json:"rows"`
		Advisories []struct {
			Kind   string `json:"kind"`
			Column string `json:"column"`
		} `json:"advisories"`
		Schema struct {
			Variant string `json:"variant"`
		} `json:"schema"`
		ZoneVocabularySize int `json:"zone_vocabulary_size"`
	}
	env := decode(t, rec, &resp)
	assert.True(t, env.Success)
	assert.Equal(t, 3, resp.Rows)
	assert.Equal(t, "listing", resp.Schema.Variant)
	assert.Equal(t, 3, resp.ZoneVocabularySize)
	require.Len(t, resp.Advisories, 1)
	assert.Equal(t, "malformed_field", resp.Advisories[0].Kind)

	require.Len(t, s.publisher.Loaded(), 1)
	assert.Equal(t, resp.SessionID, s.publisher.Loaded()[0].SessionID)
	assert.Equal(t, 3, s.publisher.Loaded()[0].Rows)
}

func TestUploadTable_Rejections(t *testing.T) {
	s := newTestServer(t, 1<<20)

	body, ct := multipartBody(t, "", "", "no file here")
	rec := s.do(t, http.MethodPost, "/api/insights/tables", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, "file", "image.png", "\x89PNG\r\n\x1a\n\x00\x00")
	rec = s.do(t, http.MethodPost, "/api/insights/tables", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec, nil)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "not tabular")

	body, ct = multipartBody(t, "file", "empty.csv", "")
	rec = s.do(t, http.MethodPost, "/api/insights/tables", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, s.publisher.Loaded())
	assert.Equal(t, 0, s.sessions.Len())
}

func TestUploadTable_TooLarge(t *testing.T) {
	s := newTestServer(t, 1024)
	body, ct := multipartBody(t, "file", "events.csv", listingCSV+strings.Repeat("104,Filler,,,,,,\n", 200))
	rec := s.do(t, http.MethodPost, "/api/insights/tables", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetAndDeleteTable(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, listingCSV)

	rec := s.do(t, http.MethodGet, "/api/insights/tables/"+id, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/insights/tables/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/insights/tables/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/insights/tables/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t, 1<<20)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/insights/tables/nope/zones"},
		{http.MethodGet, "/api/insights/tables/nope/monitoring"},
		{http.MethodPost, "/api/insights/tables/nope/view"},
		{http.MethodPost, "/api/insights/tables/nope/export"},
		{http.MethodPut, "/api/insights/tables/nope/highlights"},
	} {
		rec := s.do(t, tc.method, tc.path, strings.NewReader(""), "")
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
	}
}

func TestZonesAndMonitoring(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, listingCSV)

	var zones []string
	decode(t, s.do(t, http.MethodGet, "/api/insights/tables/"+id+"/zones?search=b", nil, ""), &zones)
	assert.Equal(t, []string{"B"}, zones)

	var monitoring []string
	decode(t, s.do(t, http.MethodGet, "/api/insights/tables/"+id+"/monitoring", nil, ""), &monitoring)
	assert.Equal(t, []string{"All", "Yes", "No"}, monitoring)
}

type viewBody struct {
	Rows []struct {
		ID          string   `json:"id"`
		Highlighted bool     `json:"highlighted"`
		Days        *int     `json:"days_until_event"`
		Pct         *float64 `json:"percentage_difference"`
	} `json:"rows"`
	Count      int               `json:"count"`
	Total      int               `json:"total"`
	Columns    []json.RawMessage `json:"columns"`
	Advisories []struct {
		Kind string `json:"kind"`
	} `json:"advisories"`
}

func (v viewBody) ids() []string {
	out := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = r.ID
	}
	return out
}

func TestComputeView(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, listingCSV)

	var v viewBody
	rec := s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/view",
		strings.NewReader(`{"days":{"enabled":true,"threshold":5},"sort_by":"id","sort_desc":true}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &v)

	assert.Equal(t, []string{"102"}, v.ids())
	assert.Equal(t, 1, v.Count)
	assert.Equal(t, 3, v.Total)
	assert.NotEmpty(t, v.Columns)

	rec = s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/view", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	v = viewBody{}
	decode(t, rec, &v)
	assert.Equal(t, []string{"101", "102", "103"}, v.ids(), "empty body is the zero criteria")
	assert.Equal(t, 10, *v.Rows[0].Days)
	assert.InDelta(t, 50.0, *v.Rows[0].Pct, 1e-9)
}

func TestComputeView_InvalidStateIsAdvisory(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, listingCSV)

	var v viewBody
	rec := s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/view",
		strings.NewReader(`{"zone_count":{"enabled":true,"min":3,"max":1}}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &v)
	assert.Equal(t, 3, v.Count)
	require.Len(t, v.Advisories, 1)
	assert.Equal(t, "invalid_filter_state", v.Advisories[0].Kind)
}

func TestComputeView_Validation(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, listingCSV)

	for _, body := range []string{
		`{"secondary":"maybe"}`,
		`{"highlight":"sometimes"}`,
		`{"zone_count":{"enabled":true,"min":-1,"max":2}}`,
		`{"sort_by":` + `"` + strings.Repeat("x", 65) + `"}`,
		`{not json`,
	} {
		rec := s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/view", strings.NewReader(body), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHighlights(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, listingCSV)

	var hl HighlightsResponse
	rec := s.do(t, http.MethodPut, "/api/insights/tables/"+id+"/highlights", strings.NewReader("103\n\n101\n"), "text/plain")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &hl)
	assert.Equal(t, 2, hl.Count)

	var v viewBody
	decode(t, s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/view", strings.NewReader(`{"highlight":"exclude"}`), "application/json"), &v)
	assert.Equal(t, []string{"102"}, v.ids())

	body, ct := multipartBody(t, "file", "ids.txt", "102\n")
	rec = s.do(t, http.MethodPut, "/api/insights/tables/"+id+"/highlights", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	v = viewBody{}
	decode(t, s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/view", nil, ""), &v)
	require.Len(t, v.Rows, 3)
	assert.False(t, v.Rows[0].Highlighted)
	assert.True(t, v.Rows[1].Highlighted)
}

func TestExportView_CSV(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, listingCSV)

	rec := s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/export?format=csv&scope=ids",
		strings.NewReader(`{"secondary":"yes","sort_by":"id","sort_desc":true}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filtered_ids.csv")
	assert.Equal(t, "ID\n103\n101\n", rec.Body.String())

	require.Len(t, s.publisher.Exported(), 1)
	assert.Equal(t, 2, s.publisher.Exported()[0].Rows)
}

func TestExportView_EmptyIsHeaderOnly(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, listingCSV)

	rec := s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/export",
		strings.NewReader(`{"name_contains":"zzz"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Highlighted", rows[0][len(rows[0])-1])
}

func TestExportView_XLSX(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, listingCSV)

	rec := s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/export?format=xlsx&scope=full", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filtered_data.xlsx")

	xl, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer xl.Close()
	rows, err := xl.GetRows(xl.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestExportView_BadParams(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, listingCSV)

	rec := s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/export?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/insights/tables/"+id+"/export?scope=half", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.publisher.Exported())
}
