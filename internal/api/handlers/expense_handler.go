package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"gastoscan/internal/dto"
	"gastoscan/internal/models"
	"gastoscan/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
}

// DocumentPipeline processes a batch of uploaded documents.
type DocumentPipeline interface {
	ProcessFiles(ctx context.Context, files []models.FileUpload) []models.FileResult
}

// ExpenseStore is the persistence surface the handlers need.
type ExpenseStore interface {
	Insert(ctx context.Context, record *models.ExpenseRecord) error
	ListAll(ctx context.Context) ([]models.ExpenseRecord, error)
	Search(ctx context.Context, query string) ([]models.ExpenseRecord, error)
	Ping(ctx context.Context) error
}

// QueryAgent answers free-text questions over the stored history.
type QueryAgent interface {
	Query(ctx context.Context, userQuery string) (models.QueryResponse, error)
}

type ExpenseHandler struct {
	pipeline DocumentPipeline
	store    ExpenseStore
	agent    QueryAgent
	logger   *zap.Logger
}

func NewExpenseHandler(pipeline DocumentPipeline, store ExpenseStore, agent QueryAgent, logger *zap.Logger) *ExpenseHandler {
	return &ExpenseHandler{
		pipeline: pipeline,
		store:    store,
		agent:    agent,
		logger:   logger,
	}
}

// ProcessFiles handles POST /process: analyzes every uploaded file, persists
// the successful analyses and returns per-file results plus batch
// statistics. Store failures are reported per filename so partial success
// stays visible.
func (h *ExpenseHandler) ProcessFiles(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "no files uploaded"})
	}

	fileHeaders := form.File["files[]"]
	if len(fileHeaders) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "no files selected"})
	}

	var uploads []models.FileUpload
	for _, fh := range fileHeaders {
		if !allowedExtensions[strings.ToLower(filepath.Ext(fh.Filename))] {
			h.logger.Warn("skipping file with unsupported extension", zap.String("filename", fh.Filename))
			continue
		}
		uploads = append(uploads, models.FileUpload{
			Filename: fh.Filename,
			Data:     readUpload(fh, h.logger),
		})
	}
	if len(uploads) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "no valid files uploaded"})
	}

	results := h.pipeline.ProcessFiles(c.Context(), uploads)

	var storeErrors []string
	for i := range results {
		if !results[i].Success {
			continue
		}
		record := results[i].Record()
		if err := h.store.Insert(c.Context(), &record); err != nil {
			h.logger.Error("failed to store analysis",
				zap.String("filename", record.Filename), zap.Error(err))
			storeErrors = append(storeErrors, fmt.Sprintf("%s: %v", record.Filename, err))
		}
	}

	stats := service.BatchStatistics(results)
	return c.JSON(dto.ProcessResponse{
		Success:        len(storeErrors) == 0,
		TotalFiles:     stats.TotalFiles,
		ProcessedFiles: stats.ProcessedFiles,
		TotalSpent:     stats.TotalSpent,
		Categories:     stats.Categories,
		Details:        results,
		StoreErrors:    storeErrors,
	})
}

// History handles GET /api/history: the full stored history plus statistics
// recomputed over it.
func (h *ExpenseHandler) History(c *fiber.Ctx) error {
	records, err := h.store.ListAll(c.Context())
	if err != nil {
		h.logger.Error("failed to load history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.HistoryResponse{
		Success:    true,
		Analyses:   records,
		Statistics: service.CalculateStatistics(records),
	})
}

// Search handles POST /api/search: case-sensitive substring search over the
// stored history, most recent first.
func (h *ExpenseHandler) Search(c *fiber.Ctx) error {
	var req dto.SearchRequest
	if err := c.BodyParser(&req); err != nil || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "empty query"})
	}

	results, err := h.store.Search(c.Context(), req.Query)
	if err != nil {
		h.logger.Error("search failed", zap.String("query", req.Query), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SearchResponse{
		Success: true,
		Results: results,
		Count:   len(results),
	})
}

// AIQuery handles POST /api/ai-query: a free-text question answered by the
// financial query agent.
func (h *ExpenseHandler) AIQuery(c *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := c.BodyParser(&req); err != nil || req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "empty query"})
	}

	resp, err := h.agent.Query(c.Context(), req.Query)
	if err != nil {
		h.logger.Error("agent query failed", zap.String("query", req.Query), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.AIQueryResponse{
		Success:       true,
		Answer:        resp.Answer,
		SearchResults: resp.SearchResults,
		Statistics:    resp.Statistics,
	})
}

// Health handles GET /health.
func (h *ExpenseHandler) Health(c *fiber.Ctx) error {
	return c.JSON(dto.HealthResponse{
		Status:   "ok",
		Database: h.store.Ping(c.Context()) == nil,
	})
}

// readUpload drains one multipart file. Failures degrade to nil bytes, which
// the pipeline reports as a per-file failure instead of aborting the batch.
func readUpload(fh *multipart.FileHeader, logger *zap.Logger) []byte {
	src, err := fh.Open()
	if err != nil {
		logger.Warn("failed to open upload", zap.String("filename", fh.Filename), zap.Error(err))
		return nil
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		logger.Warn("failed to read upload", zap.String("filename", fh.Filename), zap.Error(err))
		return nil
	}
	return data
}
