// Package generator turns market drafts from an external content service
// into markets ready to persist.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wendao-market/internal/models"

	"github.com/go-resty/resty/v2"
)

// Generator produces one market draft per call.
type Generator interface {
	Generate(ctx context.Context) (*Draft, error)
}

// VerifyCondition is the loose wire form of a draft's verification rule.
type VerifyCondition struct {
	Type     string  `json:"type"`
	Asset    string  `json:"asset,omitempty"`
	Operator string  `json:"operator"`
	Value    float64 `json:"value"`
}

// Draft is a generated market proposal.
type Draft struct {
	Question        string          `json:"question"`
	Deadline        string          `json:"deadline"`
	DataSource      string          `json:"dataSource"`
	Icon            string          `json:"icon"`
	Type            string          `json:"type"`
	VerifyCondition VerifyCondition `json:"verifyCondition"`
}

var topicIcons = map[models.VerifyKind]string{
	models.VerifyKindPrice:    "📈",
	models.VerifyKindEconomy:  "💰",
	models.VerifyKindTech:     "⚡",
	models.VerifyKindPolitics: "🏛️",
	models.VerifyKindCompany:  "🏢",
}

const defaultIcon = "🔮"

var deadlineLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDeadline accepts RFC3339 or a bare date. Dates without a zone are UTC.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable deadline %q", models.ErrInvalidDraft, s)
}

// ToMarket validates the draft and builds an unsaved market. Unknown
// verification kinds are rejected here rather than at settlement time.
func (d *Draft) ToMarket(now time.Time) (*models.Market, error) {
	question := strings.TrimSpace(d.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", models.ErrInvalidDraft)
	}

	deadline, err := ParseDeadline(d.Deadline)
	if err != nil {
		return nil, err
	}
	if !deadline.After(now) {
		return nil, fmt.Errorf("%w: deadline %s is not in the future", models.ErrInvalidDraft, deadline.Format(time.RFC3339))
	}

	kind := d.VerifyCondition.Type
	if kind == "" {
		kind = d.Type
	}
	spec, err := models.ParseVerifySpec(kind, d.VerifyCondition.Asset, d.VerifyCondition.Operator, d.VerifyCondition.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidDraft, err)
	}

	icon := d.Icon
	if icon == "" {
		icon = topicIcons[spec.Kind()]
	}
	if icon == "" {
		icon = defaultIcon
	}

	market := &models.Market{
		Question: question,
		Icon:     icon,
		Deadline: deadline,
	}
	market.SetSpec(spec)
	return market, nil
}

// DecodeDraft parses a draft from a response body. Text around the JSON
// object, as language models tend to add, is ignored.
func DecodeDraft(body []byte) (*Draft, error) {
	start := bytes.IndexByte(body, '{')
	end := bytes.LastIndexByte(body, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", models.ErrInvalidDraft)
	}

	var draft Draft
	if err := json.Unmarshal(body[start:end+1], &draft); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidDraft, err)
	}
	return &draft, nil
}

// HTTPGenerator asks a content-generation service for a draft.
type HTTPGenerator struct {
	client *resty.Client
}

func NewHTTPGenerator(url, apiKey string, timeout time.Duration) *HTTPGenerator {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(url, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPGenerator{client: client}
}

// Generate requests one draft
func (g *HTTPGenerator) Generate(ctx context.Context) (*Draft, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"kind": "prediction_market"}).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("generator request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("generator returned %d: %s", resp.StatusCode(), resp.String())
	}
	return DecodeDraft(resp.Body())
}
