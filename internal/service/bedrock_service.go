package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gastoscan/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

const (
	DefaultModelID = "anthropic.claude-3-haiku-20240307-v1:0"

	anthropicVersion = "bedrock-2023-05-31"

	classifyMaxTokens   = 1000
	classifyTemperature = 0.0

	maxDescriptionLen   = 100
	descriptionFallback = "could not analyze the document"
	missingField        = "N/A"
)

// BedrockAPI is the subset of the Bedrock runtime client used by the service.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockService wraps the generative language model. It serves two distinct
// concerns: structured expense classification (AnalyzeExpense) and free-text
// completion for the query agent (Complete).
type BedrockService struct {
	client  BedrockAPI
	modelID string
	timeout time.Duration
	logger  *zap.Logger
}

func NewBedrockService(client BedrockAPI, modelID string, timeout time.Duration, logger *zap.Logger) *BedrockService {
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &BedrockService{
		client:  client,
		modelID: modelID,
		timeout: timeout,
		logger:  logger,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends a single prompt to the model and returns the first text
// block of the response.
func (s *BedrockService) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal model request: %w", err)
	}

	out, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("invoke model: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return resp.Content[0].Text, nil
}

const expensePromptTemplate = `Analyze the following text extracted from a receipt or payment proof:

%s

Provide:
1. Total amount spent (numbers with a decimal point only, example: 150.50)
2. Expense category (choose ONE of: food, transport, leisure, health, education, housing, transfer, investment, other)
3. Transaction date (dd/mm/yyyy format, use "N/A" if not found)
4. Tax ID of the company (if available, otherwise "N/A")
5. Name of the institution/merchant/company where the payment or transfer was made (extract from the text, use "N/A" if not found)
6. Short description of the expense (100 characters maximum)

IMPORTANT about categories:
- Use "transfer" for wire transfers and instant payments of any kind
- Use "investment" for financial investments, fund contributions, stocks, fixed income

IMPORTANT: Respond ONLY with a valid JSON object, no extra text before or after:
{
    "amount": "0.00",
    "category": "category",
    "date": "dd/mm/yyyy",
    "tax_id": "tax id or N/A",
    "institution": "merchant name",
    "description": "short description"
}`

// rawExpense mirrors the JSON shape requested from the model. Pointer fields
// keep missing keys distinguishable from empty values; amount stays untyped
// because models emit it as either a number or a string.
type rawExpense struct {
	Amount      any     `json:"amount"`
	Category    *string `json:"category"`
	Date        *string `json:"date"`
	TaxID       *string `json:"tax_id"`
	Institution *string `json:"institution"`
	Description *string `json:"description"`
}

// AnalyzeExpense classifies extracted text into a validated expense
// fragment. It never fails: any model or parse error degrades to the
// all-default record, and partial responses are filled in field by field.
func (s *BedrockService) AnalyzeExpense(ctx context.Context, extractedText string) models.ExpenseAnalysis {
	prompt := fmt.Sprintf(expensePromptTemplate, extractedText)
	content, err := s.Complete(ctx, prompt, classifyMaxTokens, classifyTemperature)
	if err != nil {
		s.logger.Error("expense classification failed", zap.Error(err))
		return DefaultAnalysis()
	}
	return s.parseAnalysis(content)
}

// parseAnalysis extracts the first balanced {...} substring from the raw
// model output, tolerating surrounding prose, and validates every field.
func (s *BedrockService) parseAnalysis(content string) models.ExpenseAnalysis {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		s.logger.Warn("model response contains no JSON object")
		return DefaultAnalysis()
	}

	var raw rawExpense
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		s.logger.Warn("model response is not valid JSON", zap.Error(err))
		return DefaultAnalysis()
	}

	var bad []string
	analysis := models.ExpenseAnalysis{
		Amount:       parseAmount(raw.Amount, &bad),
		Category:     models.NormalizeCategory(stringField(raw.Category, "category", string(models.CategoryOther), &bad)),
		DocumentDate: stringField(raw.Date, "date", missingField, &bad),
		TaxID:        stringField(raw.TaxID, "tax_id", missingField, &bad),
		Institution:  stringField(raw.Institution, "institution", missingField, &bad),
		Description:  truncate(stringField(raw.Description, "description", descriptionFallback, &bad), maxDescriptionLen),
	}
	if len(bad) > 0 {
		s.logger.Warn("model response fields missing or malformed, defaults applied",
			zap.Strings("fields", bad))
	}
	return analysis
}

// DefaultAnalysis is the fragment used when classification output cannot be
// trusted at all.
func DefaultAnalysis() models.ExpenseAnalysis {
	return models.ExpenseAnalysis{
		Amount:       0,
		Category:     models.CategoryOther,
		DocumentDate: missingField,
		TaxID:        missingField,
		Institution:  missingField,
		Description:  descriptionFallback,
	}
}

// parseAmount coerces the model's amount value to a non-negative float.
// Comma decimal separators are normalized to periods before parsing.
func parseAmount(v any, bad *[]string) float64 {
	switch n := v.(type) {
	case float64:
		if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			*bad = append(*bad, "amount")
			return 0
		}
		return round2(n)
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", "."), 64)
		if err != nil || f < 0 {
			*bad = append(*bad, "amount")
			return 0
		}
		return round2(f)
	default:
		*bad = append(*bad, "amount")
		return 0
	}
}

func stringField(v *string, name, fallback string, bad *[]string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		*bad = append(*bad, name)
		return fallback
	}
	return strings.TrimSpace(*v)
}
