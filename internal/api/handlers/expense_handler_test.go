package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"gastoscan/internal/api"
	"gastoscan/internal/api/handlers"
	"gastoscan/internal/dto"
	"gastoscan/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePipeline struct {
	results []models.FileResult
	uploads []models.FileUpload
}

func (f *fakePipeline) ProcessFiles(ctx context.Context, files []models.FileUpload) []models.FileResult {
	f.uploads = files
	if f.results != nil {
		return f.results
	}
	results := make([]models.FileResult, 0, len(files))
	for _, file := range files {
		results = append(results, models.FileResult{
			Filename: file.Filename,
			Success:  true,
			Analysis: &models.ExpenseAnalysis{Amount: 100, Category: models.CategoryFood},
		})
	}
	return results
}

type fakeStore struct {
	records   []models.ExpenseRecord
	inserted  []models.ExpenseRecord
	insertErr error
	listErr   error
	searchErr error
	pingErr   error
}

func (f *fakeStore) Insert(ctx context.Context, record *models.ExpenseRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *record)
	return nil
}

func (f *fakeStore) ListAll(ctx context.Context) ([]models.ExpenseRecord, error) {
	return f.records, f.listErr
}

func (f *fakeStore) Search(ctx context.Context, query string) ([]models.ExpenseRecord, error) {
	return f.records, f.searchErr
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

type fakeAgent struct {
	resp models.QueryResponse
	err  error
}

func (f *fakeAgent) Query(ctx context.Context, userQuery string) (models.QueryResponse, error) {
	return f.resp, f.err
}

func newTestApp(pipeline handlers.DocumentPipeline, store handlers.ExpenseStore, agent handlers.QueryAgent) *fiber.App {
	handler := handlers.NewExpenseHandler(pipeline, store, agent, zap.NewNop())
	return api.SetupRouter(handler)
}

func multipartBody(t *testing.T, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range filenames {
		part, err := writer.CreateFormFile("files[]", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("file content"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestProcessFilesEndpoint(t *testing.T) {
	pipeline := &fakePipeline{}
	store := &fakeStore{}
	app := newTestApp(pipeline, store, &fakeAgent{})

	body, contentType := multipartBody(t, "a.jpg", "b.pdf")
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[dto.ProcessResponse](t, resp)
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.TotalFiles)
	assert.Equal(t, 2, out.ProcessedFiles)
	assert.InDelta(t, 200.0, out.TotalSpent, 0.001)
	assert.Len(t, out.Details, 2)
	assert.Empty(t, out.StoreErrors)
	assert.Len(t, store.inserted, 2)
}

func TestProcessFilesSkipsUnsupportedExtensions(t *testing.T) {
	pipeline := &fakePipeline{}
	app := newTestApp(pipeline, &fakeStore{}, &fakeAgent{})

	body, contentType := multipartBody(t, "good.png", "bad.exe", "notes.txt")
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, pipeline.uploads, 1)
	assert.Equal(t, "good.png", pipeline.uploads[0].Filename)
}

func TestProcessFilesNoValidFiles(t *testing.T) {
	app := newTestApp(&fakePipeline{}, &fakeStore{}, &fakeAgent{})

	body, contentType := multipartBody(t, "malware.exe")
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessFilesNoMultipart(t *testing.T) {
	app := newTestApp(&fakePipeline{}, &fakeStore{}, &fakeAgent{})

	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessFilesReportsStoreErrors(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("connection refused")}
	app := newTestApp(&fakePipeline{}, store, &fakeAgent{})

	body, contentType := multipartBody(t, "a.jpg")
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[dto.ProcessResponse](t, resp)
	assert.False(t, out.Success)
	require.Len(t, out.StoreErrors, 1)
	assert.Contains(t, out.StoreErrors[0], "a.jpg")
	assert.Contains(t, out.StoreErrors[0], "connection refused")
}

func TestProcessFilesFailedFileNotStored(t *testing.T) {
	pipeline := &fakePipeline{results: []models.FileResult{
		{Filename: "bad.jpg", Error: "file is empty or unreadable"},
	}}
	store := &fakeStore{}
	app := newTestApp(pipeline, store, &fakeAgent{})

	body, contentType := multipartBody(t, "bad.jpg")
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[dto.ProcessResponse](t, resp)
	assert.True(t, out.Success)
	assert.Equal(t, 1, out.TotalFiles)
	assert.Equal(t, 0, out.ProcessedFiles)
	assert.Empty(t, store.inserted)
}

func TestHistoryEndpoint(t *testing.T) {
	store := &fakeStore{records: []models.ExpenseRecord{
		{Amount: 150.50, Category: models.CategoryFood},
		{Amount: 45.80, Category: models.CategoryTransport},
	}}
	app := newTestApp(&fakePipeline{}, store, &fakeAgent{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[dto.HistoryResponse](t, resp)
	assert.True(t, out.Success)
	assert.Len(t, out.Analyses, 2)
	assert.InDelta(t, 196.30, out.Statistics.TotalSpent, 0.001)
}

func TestHistoryStoreError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	app := newTestApp(&fakePipeline{}, store, &fakeAgent{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSearchEndpoint(t *testing.T) {
	store := &fakeStore{records: []models.ExpenseRecord{
		{Institution: "Supermarket ABC", Amount: 150.50},
	}}
	app := newTestApp(&fakePipeline{}, store, &fakeAgent{})

	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewBufferString(`{"query":"Supermarket"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[dto.SearchResponse](t, resp)
	assert.True(t, out.Success)
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Supermarket ABC", out.Results[0].Institution)
}

func TestSearchEmptyQuery(t *testing.T) {
	app := newTestApp(&fakePipeline{}, &fakeStore{}, &fakeAgent{})

	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewBufferString(`{"query":""}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAIQueryEndpoint(t *testing.T) {
	agent := &fakeAgent{resp: models.QueryResponse{
		Answer: "You spent R$ 196.30 in total.",
		SearchResults: []models.ExpenseRecord{
			{Institution: "Supermarket ABC"},
		},
	}}
	app := newTestApp(&fakePipeline{}, &fakeStore{}, agent)

	req := httptest.NewRequest(http.MethodPost, "/api/ai-query", bytes.NewBufferString(`{"query":"how much did I spend?"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[dto.AIQueryResponse](t, resp)
	assert.True(t, out.Success)
	assert.Equal(t, "You spent R$ 196.30 in total.", out.Answer)
	assert.Len(t, out.SearchResults, 1)
}

func TestAIQueryAgentError(t *testing.T) {
	agent := &fakeAgent{err: errors.New("load history: db down")}
	app := newTestApp(&fakePipeline{}, &fakeStore{}, agent)

	req := httptest.NewRequest(http.MethodPost, "/api/ai-query", bytes.NewBufferString(`{"query":"anything"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestAIQueryEmptyQuery(t *testing.T) {
	app := newTestApp(&fakePipeline{}, &fakeStore{}, &fakeAgent{})

	req := httptest.NewRequest(http.MethodPost, "/api/ai-query", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(&fakePipeline{}, &fakeStore{}, &fakeAgent{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[dto.HealthResponse](t, resp)
	assert.Equal(t, "ok", out.Status)
	assert.True(t, out.Database)
}

func TestHealthEndpointDatabaseDown(t *testing.T) {
	store := &fakeStore{pingErr: errors.New("no connection")}
	app := newTestApp(&fakePipeline{}, store, &fakeAgent{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeJSON[dto.HealthResponse](t, resp)
	assert.Equal(t, "ok", out.Status)
	assert.False(t, out.Database)
}
