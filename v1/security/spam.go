package security

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gov-dx-sandbox/attribute-forms/internal/config"
)

// SpamClassifier decides whether a submission is spam. kind names the source of the content.
type SpamClassifier interface {
	IsSpam(ctx context.Context, content, kind string) (bool, error)
}

var linkPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)

// RuleSpamClassifier flags content with too many links or a blocked word
type RuleSpamClassifier struct {
	maxLinks     int
	blockedWords []string
}

func NewRuleSpamClassifier(cfg config.SpamConfig) *RuleSpamClassifier {
	words := make([]string, 0, len(cfg.BlockedWords))
	for _, w := range cfg.BlockedWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words = append(words, w)
		}
	}
	return &RuleSpamClassifier{maxLinks: cfg.MaxLinks, blockedWords: words}
}

func (c *RuleSpamClassifier) IsSpam(ctx context.Context, content, kind string) (bool, error) {
	if c.maxLinks > 0 {
		if n := len(linkPattern.FindAllStringIndex(content, -1)); n > c.maxLinks {
			slog.DebugContext(ctx, "Spam detected", "reason", "links", "count", n, "context", kind)
			return true, nil
		}
	}
	lower := strings.ToLower(content)
	for _, w := range c.blockedWords {
		if strings.Contains(lower, w) {
			slog.DebugContext(ctx, "Spam detected", "reason", "blocked_word", "context", kind)
			return true, nil
		}
	}
	return false, nil
}
