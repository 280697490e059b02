package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no params", "https://example.com/news/1", "https://example.com/news/1"},
		{"drops utm", "https://example.com/a?utm_source=rss&utm_medium=feed", "https://example.com/a"},
		{"keeps other params", "https://example.com/a?id=4&utm_campaign=x", "https://example.com/a?id=4"},
		{"drops fragment", "https://example.com/a#comments", "https://example.com/a"},
		{"lowercases host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"trims space", "  https://example.com/a  ", "https://example.com/a"},
		{"not a url", "not a url", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalURL(tt.in))
		})
	}
}

func TestHost(t *testing.T) {
	assert.Equal(t, "epa.gov", Host("https://www.epa.gov/rss/epa-news-releases.xml"))
	assert.Equal(t, "news.google.com", Host("https://news.google.com/rss/search?q=x"))
	assert.Equal(t, "", Host("::bad"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestHashStable(t *testing.T) {
	assert.Equal(t, Hash("https://example.com/a"), Hash("https://example.com/a"))
	assert.NotEqual(t, Hash("https://example.com/a"), Hash("https://example.com/b"))
	assert.Len(t, Hash("x"), 64)
}
