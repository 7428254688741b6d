package service

import (
	"context"

	"gastoscan/internal/models"

	"go.uber.org/zap"
)

// maxStoredTextLen caps the extracted text kept on a result at capture time.
const maxStoredTextLen = 500

// TextExtractor turns raw document bytes into plain text. Failures are
// absorbed by the adapter and surface as an empty string.
type TextExtractor interface {
	ExtractText(ctx context.Context, fileBytes []byte) string
}

// LabelDetector turns raw image bytes into a ranked list of brand hints.
// Failures are absorbed by the adapter and surface as a sentinel entry.
type LabelDetector interface {
	DetectLogos(ctx context.Context, fileBytes []byte) []models.Label
}

// ExpenseClassifier turns extracted text into a validated expense fragment.
// Failures are absorbed by the classifier and surface as the default record.
type ExpenseClassifier interface {
	AnalyzeExpense(ctx context.Context, extractedText string) models.ExpenseAnalysis
}

// DocumentProcessor orchestrates the per-file analysis sequence: text
// extraction, label detection and expense classification. Each adapter call
// is isolated; one adapter failing never prevents the others from running.
type DocumentProcessor struct {
	textract    TextExtractor
	rekognition LabelDetector
	classifier  ExpenseClassifier
	logger      *zap.Logger
}

func NewDocumentProcessor(textract TextExtractor, rekognition LabelDetector, classifier ExpenseClassifier, logger *zap.Logger) *DocumentProcessor {
	return &DocumentProcessor{
		textract:    textract,
		rekognition: rekognition,
		classifier:  classifier,
		logger:      logger,
	}
}

// ProcessFile runs the full analysis sequence for a single document. Only
// unreadable input fails the file; adapter failures degrade to defaults and
// the result is still a success. Classification always runs, even when
// extraction produced no text.
func (p *DocumentProcessor) ProcessFile(ctx context.Context, fileBytes []byte, filename string) models.FileResult {
	if len(fileBytes) == 0 {
		p.logger.Warn("skipping unreadable file", zap.String("filename", filename))
		return models.FileResult{Filename: filename, Error: "file is empty or unreadable"}
	}

	p.logger.Info("processing file", zap.String("filename", filename))

	text := p.textract.ExtractText(ctx, fileBytes)
	labels := p.rekognition.DetectLogos(ctx, fileBytes)
	analysis := p.classifier.AnalyzeExpense(ctx, text)

	p.logger.Info("file processed",
		zap.String("filename", filename),
		zap.Int("text_length", len(text)),
		zap.Int("labels", len(labels)),
		zap.Float64("amount", analysis.Amount),
		zap.String("category", string(analysis.Category)),
	)

	return models.FileResult{
		Filename:      filename,
		Success:       true,
		ExtractedText: truncate(text, maxStoredTextLen),
		Labels:        labels,
		Analysis:      &analysis,
	}
}

// ProcessFiles handles a batch strictly sequentially and order-preserving:
// output order matches input order and one file's failure never aborts its
// siblings.
func (p *DocumentProcessor) ProcessFiles(ctx context.Context, files []models.FileUpload) []models.FileResult {
	results := make([]models.FileResult, 0, len(files))
	for _, f := range files {
		results = append(results, p.ProcessFile(ctx, f.Data, f.Filename))
	}
	return results
}
