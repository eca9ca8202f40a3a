// Package filter excludes posts from the download stage by creation time and
// blocked terms.
package filter

import (
	"fmt"
	"strings"
	"time"

	"mediagrab/pkg/config"
	"mediagrab/pkg/models"
)

// Filter is a pair of AND-combined predicates over posts. A disabled
// predicate accepts everything.
type Filter struct {
	start        *time.Time
	end          *time.Time
	blockedWords []string
}

// New builds a Filter from configuration.
func New(cfg *config.FilterConfig) (*Filter, error) {
	f := &Filter{blockedWords: cfg.BlockedWords}

	if cfg.StartDate != "" {
		t, err := config.ParseFilterDate(cfg.StartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date: %w", err)
		}
		f.start = &t
	}
	if cfg.EndDate != "" {
		t, err := config.ParseFilterDate(cfg.EndDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date: %w", err)
		}
		f.end = &t
	}

	return f, nil
}

// Allow reports whether the post passes both predicates. When it does not,
// reason names the matched term or violated bound for the exclusion log.
func (f *Filter) Allow(post models.Post) (allowed bool, reason string) {
	if f.start != nil && post.CreatedAt.Before(*f.start) {
		return false, fmt.Sprintf("created %s before start bound %s",
			post.CreatedAt.Format(time.RFC3339), f.start.Format(time.RFC3339))
	}
	if f.end != nil && post.CreatedAt.After(*f.end) {
		return false, fmt.Sprintf("created %s after end bound %s",
			post.CreatedAt.Format(time.RFC3339), f.end.Format(time.RFC3339))
	}

	if word := f.firstBlockedWord(post.Text); word != "" {
		return false, fmt.Sprintf("text contains blocked term %q", word)
	}

	return true, ""
}

// firstBlockedWord returns the first configured term found in the text,
// case-insensitively, or "" when none match.
func (f *Filter) firstBlockedWord(text string) string {
	if text == "" || len(f.blockedWords) == 0 {
		return ""
	}
	lower := strings.ToLower(text)
	for _, word := range f.blockedWords {
		if word == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(word)) {
			return word
		}
	}
	return ""
}
