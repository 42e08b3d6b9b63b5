// internal/services/classifier_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/makerden/makerden-backend/internal/config"
	"github.com/makerden/makerden-backend/internal/models"
)

// TextScan is the black-box text classifier verdict.
type TextScan struct {
	Flagged bool     `json:"flagged"`
	Summary string   `json:"summary"`
	Signals []string `json:"signals"`
}

type TextClassifier interface {
	ScanText(ctx context.Context, text string) (*TextScan, error)
}

// ImageScan is the black-box image classifier verdict. A Status other than
// "ok" routes through the configured fallback policy.
type ImageScan struct {
	Status string   `json:"status"`
	Labels []string `json:"labels"`
	Reason string   `json:"reason"`
}

type ImageClassifier interface {
	ScanImage(ctx context.Context, imageURL string) (*ImageScan, error)
}

// ClassifierService bridges the external classifiers into the report engine:
// a positive text flag becomes one high-weight system report, and image
// classifier failures are handled by policy instead of being dropped.
type ClassifierService struct {
	text    TextClassifier
	image   ImageClassifier
	reports *ReportService
	mod     *ModerationService
	policy  models.ImageFallbackPolicy
}

func NewClassifierService(text TextClassifier, image ImageClassifier, reports *ReportService, mod *ModerationService, policy models.ImageFallbackPolicy) *ClassifierService {
	if !policy.Valid() {
		policy = models.ImageFallbackQueueForReview
	}
	return &ClassifierService{
		text:    text,
		image:   image,
		reports: reports,
		mod:     mod,
		policy:  policy,
	}
}

// ScanResult reports what a scan did, so callers can render it.
type ScanResult struct {
	Flagged  bool
	Summary  string
	Signals  []string
	Reported bool
	Status   models.ModerationStatus
}

// ScanText runs the text classifier and, on a positive flag, submits a
// system-generated report for the content key. A duplicate system report is
// a no-op: each key is flagged at most once.
func (s *ClassifierService) ScanText(ctx context.Context, key models.ContentKey, contentURL, text string) (*ScanResult, error) {
	scan, err := s.text.ScanText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("text classifier failed: %w", err)
	}
	if !scan.Flagged {
		return &ScanResult{Flagged: false}, nil
	}

	result := &ScanResult{
		Flagged: true,
		Summary: scan.Summary,
		Signals: scan.Signals,
	}

	res, err := s.reports.SubmitSystem(key, contentURL, reasonFromSignals(scan.Signals), scan.Summary, scan.Signals)
	if err != nil {
		if errors.Is(err, ErrDuplicateReport) {
			return result, nil
		}
		return nil, err
	}

	result.Reported = true
	result.Status = res.Status
	return result, nil
}

// ScanImage runs the image classifier; non-ok results (including transport
// errors) are routed through the configured fallback policy.
func (s *ClassifierService) ScanImage(ctx context.Context, key models.ContentKey, imageURL string) (*ImageScan, error) {
	scan, err := s.image.ScanImage(ctx, imageURL)
	if err != nil {
		s.applyFallback(key, "image classifier unavailable")
		return &ImageScan{Status: "error", Reason: err.Error()}, nil
	}
	if scan.Status != "ok" {
		s.applyFallback(key, scan.Reason)
		return scan, nil
	}

	for _, label := range scan.Labels {
		switch label {
		case "nsfw", "gore", "violence":
			s.mod.MarkSensitive(key, "classifier label: "+label)
			return scan, nil
		}
	}
	return scan, nil
}

func (s *ClassifierService) applyFallback(key models.ContentKey, reason string) {
	switch s.policy {
	case models.ImageFallbackQueueForReview:
		if err := s.mod.AutoQueue(key); err != nil {
			logrus.WithField("content", key.String()).WithError(err).Error("Image fallback queue failed")
		}
	case models.ImageFallbackMarkSensitive:
		s.mod.MarkSensitive(key, reason)
	case models.ImageFallbackIgnore:
	}
}

func reasonFromSignals(signals []string) models.ReportReason {
	for _, signal := range signals {
		switch signal {
		case "abuse", "harassment", "hate", "threat":
			return models.ReportReasonAbuse
		}
	}
	return models.ReportReasonSpam
}

// OpenAI-backed text classifier.

const textScanPrompt = `You are a content moderation classifier for a maker community.
Review the user content and answer with strict JSON only:
{"flagged": bool, "summary": "one sentence", "signals": ["spam"|"abuse"|"harassment"|"hate"|"threat"|"scam"|"nsfw"]}
Flag only content a reasonable moderator would act on.`

type openAITextClassifier struct {
	client *openai.Client
	model  string
}

func NewOpenAITextClassifier(cfg config.ClassifierConfig) TextClassifier {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return &openAITextClassifier{
		client: openai.NewClientWithConfig(conf),
		model:  cfg.Model,
	}
}

func (c *openAITextClassifier) ScanText(ctx context.Context, text string) (*TextScan, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: textScanPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty classifier response")
	}

	var scan TextScan
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &scan); err != nil {
		return nil, fmt.Errorf("malformed classifier verdict: %w", err)
	}
	return &scan, nil
}

// HTTP image classifier client.

type httpImageClassifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPImageClassifier(endpoint string) ImageClassifier {
	return &httpImageClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpImageClassifier) ScanImage(ctx context.Context, imageURL string) (*ImageScan, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("image classifier endpoint is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint+"?url="+url.QueryEscape(imageURL), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image classifier returned %d", resp.StatusCode)
	}

	var scan ImageScan
	if err := json.NewDecoder(resp.Body).Decode(&scan); err != nil {
		return nil, fmt.Errorf("malformed image classifier response: %w", err)
	}
	if scan.Status == "" {
		scan.Status = "ok"
	}
	return &scan, nil
}
