package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gastoscan/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"go.uber.org/zap"
)

const (
	maxLabels     = 20
	minConfidence = 60
	maxTextHints  = 3

	noLogoSentinel = "no logo or brand detected"
)

var (
	logoKeywords  = []string{"logo", "brand", "text", "symbol", "trademark"}
	storeKeywords = []string{"company", "business", "store", "shop"}
)

// RekognitionAPI is the subset of the Rekognition client used by the service.
type RekognitionAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

type RekognitionService struct {
	client  RekognitionAPI
	timeout time.Duration
	logger  *zap.Logger
}

func NewRekognitionService(client RekognitionAPI, timeout time.Duration, logger *zap.Logger) *RekognitionService {
	return &RekognitionService{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// DetectLogos returns brand hints for an image as a priority cascade, not a
// union: explicit logo/brand labels first, then business-type labels, then
// the top detected text lines, then a zero-confidence sentinel. Only the
// first non-empty tier is returned. Detection failures degrade to a sentinel
// entry so the pipeline can continue.
func (s *RekognitionService) DetectLogos(ctx context.Context, fileBytes []byte) []models.Label {
	out, err := s.detectLabels(ctx, fileBytes)
	if err != nil {
		s.logger.Error("Rekognition label detection failed", zap.Error(err))
		return []models.Label{{Name: fmt.Sprintf("detection error: %v", err), Confidence: 0}}
	}

	var logos, brands []models.Label
	for _, label := range out.Labels {
		name := aws.ToString(label.Name)
		conf := round2(float64(aws.ToFloat32(label.Confidence)))
		switch {
		case matchesAny(name, logoKeywords):
			logos = append(logos, models.Label{Name: name, Confidence: conf})
		case matchesAny(name, storeKeywords):
			brands = append(brands, models.Label{Name: name, Confidence: conf})
		}
	}
	if len(logos) > 0 {
		return logos
	}
	if len(brands) > 0 {
		return brands
	}

	if lines := s.detectTextLines(ctx, fileBytes); len(lines) > 0 {
		if len(lines) > maxTextHints {
			lines = lines[:maxTextHints]
		}
		hints := make([]models.Label, 0, len(lines))
		for _, line := range lines {
			hints = append(hints, models.Label{
				Name:       fmt.Sprintf("detected text: %s...", truncate(line.Name, 30)),
				Confidence: line.Confidence,
			})
		}
		return hints
	}

	return []models.Label{{Name: noLogoSentinel, Confidence: 0}}
}

func (s *RekognitionService) detectLabels(ctx context.Context, fileBytes []byte) (*rekognition.DetectLabelsOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: fileBytes},
		MaxLabels:     aws.Int32(maxLabels),
		MinConfidence: aws.Float32(minConfidence),
	})
}

// detectTextLines returns the LINE detections of the image in detection
// order. Failures degrade to nil so the cascade falls through to the
// sentinel tier.
func (s *RekognitionService) detectTextLines(ctx context.Context, fileBytes []byte) []models.Label {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: fileBytes},
	})
	if err != nil {
		s.logger.Error("Rekognition text detection failed", zap.Error(err))
		return nil
	}

	var lines []models.Label
	for _, det := range out.TextDetections {
		if det.Type != types.TextTypesLine {
			continue
		}
		lines = append(lines, models.Label{
			Name:       aws.ToString(det.DetectedText),
			Confidence: round2(float64(aws.ToFloat32(det.Confidence))),
		})
	}
	return lines
}

func matchesAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
