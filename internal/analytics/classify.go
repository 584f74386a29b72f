package analytics

import (
	"strings"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

// Keyword sets matched against the lower-cased source label. Priority is
// social, then news, then forum; first hit wins.
var (
	socialKeywords = []string{"twitter.com", "facebook.com", "weibo.com"}
	newsKeywords   = []string{"news.", "cnn.com", "bbc.com"}
	forumKeywords  = []string{"forum.", "reddit.com", "bbs."}
)

// Classify maps a free-form source label to a SourceType. It is a pure
// function so the same label always classifies the same way.
func Classify(source string) models.SourceType {
	source = strings.ToLower(source)
	switch {
	case containsAny(source, socialKeywords):
		return models.SourceSocialMedia
	case containsAny(source, newsKeywords):
		return models.SourceNewsWebsite
	case containsAny(source, forumKeywords):
		return models.SourceForum
	default:
		return models.SourceOther
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Analyze derives the per-rumor features from its content and source.
func Analyze(content, source string) models.RumorAnalysis {
	return models.RumorAnalysis{
		ContentLength: len([]rune(content)),
		WordCount:     len(strings.Fields(content)),
		SourceType:    Classify(source),
	}
}
