package service

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"go.uber.org/zap"
)

// TextractAPI is the subset of the Textract client used by the service.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

type TextractService struct {
	client  TextractAPI
	timeout time.Duration
	logger  *zap.Logger
}

func NewTextractService(client TextractAPI, timeout time.Duration, logger *zap.Logger) *TextractService {
	return &TextractService{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// ExtractText pulls the plain text lines out of a scanned document, one line
// per row. Extraction failures degrade to an empty string so the pipeline
// can continue with the remaining adapters.
func (s *TextractService) ExtractText(ctx context.Context, fileBytes []byte) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: fileBytes},
	})
	if err != nil {
		s.logger.Error("Textract extraction failed", zap.Error(err))
		return ""
	}

	var b strings.Builder
	for _, block := range out.Blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		b.WriteString(*block.Text)
		b.WriteString("\n")
	}
	return b.String()
}
