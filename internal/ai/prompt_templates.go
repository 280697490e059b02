package ai

import (
	"strings"

	"github.com/bilgisen/wastewatch/internal/models"
)

// SystemPrompt frames every generation request.
const SystemPrompt = "You are an expert environmental journalist specializing in wastewater treatment, " +
	"water pollution and environmental compliance. You write clear, well-researched blog posts in HTML."

// DefaultBlogPrompt uses {title}, {source}, {date}, {summary} and {content} placeholders.
const DefaultBlogPrompt = `You are a professional environmental journalist writing for a blog about wastewater treatment industry news and pollution incidents.

Based on the following news article, write a comprehensive, engaging blog post.

ARTICLE INFORMATION:
Title: {title}
Source: {source}
Date: {date}
Summary: {summary}
Full Content: {content}

BLOG POST REQUIREMENTS:
1. A headline different from the original article title
2. An introduction that hooks the reader
3. Analysis of the incident and its regulatory context
4. Environmental and public health impacts
5. Implications for the wastewater treatment industry
6. A forward-looking conclusion
7. 3-5 SEO tags
8. A meta description of 150-160 characters

FORMAT YOUR RESPONSE AS:
## HEADLINE: [Your headline]
## META_DESCRIPTION: [SEO meta description]
## TAGS: [comma-separated tags]
## FEATURED_IMAGE_PROMPT: [A description for generating a relevant featured image]
## CONTENT:
[Full blog post content in HTML format, using <h2>, <h3>, <p>, <ul>, <li>, <blockquote> tags]
`

// RenderPrompt fills a template with article fields. An empty template
// selects DefaultBlogPrompt. Unknown placeholders are left as they are.
func RenderPrompt(template string, a *models.Article) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultBlogPrompt
	}

	date := "Unknown"
	if a.PublishedAt != nil {
		date = a.PublishedAt.Format("January 2, 2006")
	}
	content := a.Content
	if content == "" {
		content = a.Summary
	}

	return strings.NewReplacer(
		"{title}", escapeForPrompt(a.Title),
		"{source}", escapeForPrompt(a.SourceName),
		"{date}", date,
		"{summary}", escapeForPrompt(a.Summary),
		"{content}", strings.TrimSpace(content),
	).Replace(template)
}

// escapeForPrompt flattens a single-line field.
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}
