package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   models.SourceType
	}{
		{"weibo uppercase", "WEIBO.com/post/1", models.SourceSocialMedia},
		{"twitter", "https://twitter.com/u/status/9", models.SourceSocialMedia},
		{"facebook", "facebook.com/groups/x", models.SourceSocialMedia},
		{"news subdomain", "news.example.org", models.SourceNewsWebsite},
		{"cnn", "cnn.com/2024/article", models.SourceNewsWebsite},
		{"bbc", "www.bbc.com/zh", models.SourceNewsWebsite},
		{"forum subdomain", "forum.example.net", models.SourceForum},
		{"reddit", "reddit.com/r/rumors", models.SourceForum},
		{"bbs", "bbs.tianya.cn/post", models.SourceForum},
		{"plain domain", "example.org", models.SourceOther},
		{"empty", "", models.SourceOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.source))
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	// A label matching several sets classifies by the first set in
	// priority order: social before news before forum.
	assert.Equal(t, models.SourceSocialMedia, Classify("news.twitter.com"))
	assert.Equal(t, models.SourceNewsWebsite, Classify("forum.news.example.org"))
}

func TestAnalyze(t *testing.T) {
	a := Analyze("hello world", "weibo.com")

	assert.Equal(t, 11, a.ContentLength)
	assert.Equal(t, 2, a.WordCount)
	assert.Equal(t, models.SourceSocialMedia, a.SourceType)
	assert.Nil(t, a.VerificationLatency)
}

func TestAnalyzeMultibyte(t *testing.T) {
	// Length counts characters, not bytes.
	a := Analyze("谣言内容", "bbs.example.cn")

	assert.Equal(t, 4, a.ContentLength)
	assert.Equal(t, 1, a.WordCount)
	assert.Equal(t, models.SourceForum, a.SourceType)
}
