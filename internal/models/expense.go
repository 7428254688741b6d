package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the closed set of expense classifications. Anything the
// classifier emits outside this set is normalized to CategoryOther.
type Category string

const (
	CategoryFood       Category = "food"
	CategoryTransport  Category = "transport"
	CategoryLeisure    Category = "leisure"
	CategoryHealth     Category = "health"
	CategoryEducation  Category = "education"
	CategoryHousing    Category = "housing"
	CategoryTransfer   Category = "transfer"
	CategoryInvestment Category = "investment"
	CategoryOther      Category = "other"
)

var validCategories = map[Category]bool{
	CategoryFood:       true,
	CategoryTransport:  true,
	CategoryLeisure:    true,
	CategoryHealth:     true,
	CategoryEducation:  true,
	CategoryHousing:    true,
	CategoryTransfer:   true,
	CategoryInvestment: true,
	CategoryOther:      true,
}

// NormalizeCategory lowercases a raw classifier value and maps anything
// outside the closed set to CategoryOther.
func NormalizeCategory(raw string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if validCategories[c] {
		return c
	}
	return CategoryOther
}

// Label is a single brand hint detected on a document image.
// Confidence is in the [0, 100] range.
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ExpenseAnalysis is the validated classifier output for one document.
// Field defaults: Amount 0.00, Category other, strings "N/A".
type ExpenseAnalysis struct {
	Amount       float64  `json:"amount"`
	Category     Category `json:"category"`
	DocumentDate string   `json:"date"`
	TaxID        string   `json:"tax_id"`
	Institution  string   `json:"institution"`
	Description  string   `json:"description"`
}

// ExpenseRecord is the canonical stored unit, created exactly once per
// successfully processed file. Records are immutable after insertion.
type ExpenseRecord struct {
	ID            uuid.UUID `json:"id"`
	Filename      string    `json:"filename"`
	Amount        float64   `json:"amount"`
	Category      Category  `json:"category"`
	DocumentDate  string    `json:"document_date"`
	TaxID         string    `json:"tax_id"`
	Institution   string    `json:"institution"`
	Description   string    `json:"description"`
	ExtractedText string    `json:"extracted_text"`
	Labels        []Label   `json:"labels"`
	CreatedAt     time.Time `json:"created_at"`
}

// FileUpload carries the raw bytes of one uploaded document into the pipeline.
type FileUpload struct {
	Filename string
	Data     []byte
}

// FileResult is the per-file outcome of the document pipeline. Either
// Success is true and the analysis fields are populated, or Error explains
// why the file could not be processed at all.
type FileResult struct {
	Filename      string           `json:"filename"`
	Success       bool             `json:"success"`
	ExtractedText string           `json:"extracted_text,omitempty"`
	Labels        []Label          `json:"labels,omitempty"`
	Analysis      *ExpenseAnalysis `json:"analysis,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// Record builds the expense record to persist for a successful result.
// The store assigns ID and CreatedAt on insert.
func (r FileResult) Record() ExpenseRecord {
	rec := ExpenseRecord{
		Filename:      r.Filename,
		ExtractedText: r.ExtractedText,
		Labels:        r.Labels,
	}
	if r.Analysis != nil {
		rec.Amount = r.Analysis.Amount
		rec.Category = r.Analysis.Category
		rec.DocumentDate = r.Analysis.DocumentDate
		rec.TaxID = r.Analysis.TaxID
		rec.Institution = r.Analysis.Institution
		rec.Description = r.Analysis.Description
	}
	return rec
}
