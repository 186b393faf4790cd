package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/wellness-commerce-bot/internal/catalog"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

const (
	llmTimeout   = 20 * time.Second
	llmMaxTokens = 300
)

// Responder produces the reply for messages no deterministic branch handles.
type Responder interface {
	Respond(ctx context.Context, text, userID string) string
}

// RuleResponder answers price and how-it-works questions from fixed copy, then
// asks the LLM, then falls back to the greeting. It never fails.
type RuleResponder struct {
	catalog *catalog.Catalog
	llm     LLMClient
	logger  *logging.Logger
}

// NewRuleResponder creates a responder. llm may be nil.
func NewRuleResponder(cat *catalog.Catalog, llm LLMClient, logger *logging.Logger) *RuleResponder {
	if logger == nil {
		logger = logging.Default()
	}
	return &RuleResponder{catalog: cat, llm: llm, logger: logger.Named("responder")}
}

func (r *RuleResponder) Respond(ctx context.Context, text, userID string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "precio") || strings.Contains(lower, "costo"):
		return r.catalog.PriceRule()
	case strings.Contains(lower, "cómo funciona") || strings.Contains(lower, "como funciona") || strings.Contains(lower, "qué es"):
		return r.catalog.HowItWorksRule()
	}

	if r.llm == nil {
		return r.catalog.Greeting()
	}

	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()
	resp, err := r.llm.Complete(ctx, LLMRequest{
		SystemPrompt: r.catalog.SalesPrompt(),
		Messages:     userTurn(text),
		MaxTokens:    llmMaxTokens,
	})
	if err != nil {
		r.logger.Warn("responder: llm failed, sending greeting", "user_id", userID, "error", err)
		return r.catalog.Greeting()
	}
	r.logger.Debug("responder: llm reply",
		"user_id", userID,
		"provider", resp.Provider,
		"finish_reason", resp.FinishReason,
		"tokens", resp.Tokens,
	)
	if resp.Truncated() {
		r.logger.Warn("responder: llm reply hit the token limit", "user_id", userID, "provider", resp.Provider)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return r.catalog.Greeting()
	}
	return resp.Text
}
