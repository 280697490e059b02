package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleArticle = &models.Article{
	ID:         1,
	Title:      "Sewage Spill Closes Beach",
	SourceName: "Coastal Daily",
	Summary:    "Untreated wastewater reached the shore.",
}

const sampleBody = "<h2>What happened</h2><p>A pump station failed and sent untreated sewage into the bay overnight.</p>"

func TestParseSectionedResponse(t *testing.T) {
	resp := "## HEADLINE: [Beach Closed After Pump Failure]\n" +
		"## META_DESCRIPTION: A pump station failure sent sewage into the bay.\n" +
		"## TAGS: sewage, #beach closure, Sewage, public health\n" +
		"## FEATURED_IMAGE_PROMPT: Closed beach with warning signs\n" +
		"## CONTENT:\n" + sampleBody + "\n<script>alert(1)</script>\n"

	post, err := NewPostProcessor().Parse(resp, sampleArticle)
	require.NoError(t, err)
	assert.Equal(t, "Beach Closed After Pump Failure", post.Headline)
	assert.Equal(t, "A pump station failure sent sewage into the bay.", post.MetaDescription)
	assert.Equal(t, []string{"sewage", "beach closure", "public health"}, post.Tags)
	assert.Equal(t, "Closed beach with warning signs", post.FeaturedImagePrompt)
	assert.Equal(t, sampleBody, post.Body)
}

func TestParseWithoutMarkers(t *testing.T) {
	resp := "```html\n" + sampleBody + "\n```"

	post, err := NewPostProcessor().Parse(resp, sampleArticle)
	require.NoError(t, err)
	assert.Equal(t, "Analysis: Sewage Spill Closes Beach", post.Headline)
	assert.Equal(t, sampleBody, post.Body)
}

func TestParseRejectsEmptyBody(t *testing.T) {
	_, err := NewPostProcessor().Parse("## HEADLINE: Title\n## CONTENT:\n<p>short</p>", sampleArticle)
	assert.Error(t, err)
}

func TestProcessTruncatesMetaDescription(t *testing.T) {
	post := &Post{Headline: "**Headline**", MetaDescription: strings.Repeat("m", 300), Body: sampleBody}
	require.NoError(t, NewPostProcessor().Process(post))
	assert.Equal(t, "Headline", post.Headline)
	assert.Len(t, []rune(post.MetaDescription), 160)
	assert.True(t, strings.HasSuffix(post.MetaDescription, "..."))
}

func TestRenderPrompt(t *testing.T) {
	pub := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	a := &models.Article{Title: "Spill\nat plant", SourceName: "EPA", Summary: "sum", PublishedAt: &pub}

	out := RenderPrompt("{title}|{source}|{date}|{summary}|{content}|{other}", a)
	assert.Equal(t, "Spill at plant|EPA|May 4, 2026|sum|sum|{other}", out)

	def := RenderPrompt("", a)
	assert.Contains(t, def, "Title: Spill at plant")
	assert.Contains(t, def, "## HEADLINE:")
}
