package ai

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/utils"
)

// Post is the structured output of one generation.
type Post struct {
	Headline            string
	MetaDescription     string
	Tags                []string
	FeaturedImagePrompt string
	Body                string
}

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	scriptBlock    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	dangerousTag   = regexp.MustCompile(`(?i)</?(script|iframe|object|embed|link|meta|style)[^>]*>`)
	codeFence      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\n(.*?)\\n?```$")
	sectionMarker  = regexp.MustCompile(`(?i)^#{1,3}\s*(HEADLINE|META_DESCRIPTION|TAGS|FEATURED_IMAGE_PROMPT|CONTENT)\s*:\s*(.*)$`)
	bracketWrapped = regexp.MustCompile(`^\[(.*)\]$`)
)

type PostProcessor struct {
	maxHeadlineLength    int
	maxDescriptionLength int
	maxTags              int
	minBodyLength        int
}

func NewPostProcessor() *PostProcessor {
	return &PostProcessor{
		maxHeadlineLength:    200,
		maxDescriptionLength: 160,
		maxTags:              8,
		minBodyLength:        50,
	}
}

// Parse reads the "## HEADLINE:" ... "## CONTENT:" sectioned response. When
// no CONTENT marker is present the unmarked text becomes the body.
func (p *PostProcessor) Parse(response string, article *models.Article) (*Post, error) {
	text := strings.TrimSpace(strings.ReplaceAll(response, "\r\n", "\n"))
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	post := &Post{}
	var body []string
	var loose []string
	inContent := false

	for _, line := range strings.Split(text, "\n") {
		if inContent {
			body = append(body, line)
			continue
		}
		m := sectionMarker.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			loose = append(loose, line)
			continue
		}
		value := unwrap(m[2])
		switch strings.ToUpper(m[1]) {
		case "HEADLINE":
			post.Headline = value
		case "META_DESCRIPTION":
			post.MetaDescription = value
		case "TAGS":
			post.Tags = splitTags(value)
		case "FEATURED_IMAGE_PROMPT":
			post.FeaturedImagePrompt = value
		case "CONTENT":
			inContent = true
			if value != "" {
				body = append(body, value)
			}
		}
	}

	if inContent {
		post.Body = strings.TrimSpace(strings.Join(body, "\n"))
	} else {
		post.Body = strings.TrimSpace(strings.Join(loose, "\n"))
	}
	if post.Headline == "" && article != nil {
		post.Headline = "Analysis: " + article.Title
	}

	if err := p.Process(post); err != nil {
		return nil, err
	}
	return post, nil
}

// Process validates and cleans a post in place.
func (p *PostProcessor) Process(post *Post) error {
	post.Headline = p.cleanText(post.Headline)
	post.MetaDescription = p.cleanText(post.MetaDescription)
	post.FeaturedImagePrompt = p.cleanText(post.FeaturedImagePrompt)
	post.Body = p.cleanBody(post.Body)

	if post.Headline == "" {
		return fmt.Errorf("missing required field: headline")
	}
	if len([]rune(post.Body)) < p.minBodyLength {
		return fmt.Errorf("content too short, minimum %d characters required", p.minBodyLength)
	}

	post.Headline = utils.Truncate(post.Headline, p.maxHeadlineLength)
	if len([]rune(post.MetaDescription)) > p.maxDescriptionLength {
		post.MetaDescription = utils.Truncate(post.MetaDescription, p.maxDescriptionLength-3) + "..."
	}
	if len(post.Tags) > p.maxTags {
		post.Tags = post.Tags[:p.maxTags]
	}
	return nil
}

// cleanText removes unwanted characters and normalizes whitespace
func (p *PostProcessor) cleanText(s string) string {
	s = controlChars.ReplaceAllString(s, " ")
	s = strings.Trim(s, "*_ ")
	return strings.Join(strings.Fields(s), " ")
}

func (p *PostProcessor) cleanBody(body string) string {
	body = scriptBlock.ReplaceAllString(body, "")
	body = dangerousTag.ReplaceAllString(body, "")
	return strings.TrimSpace(body)
}

func unwrap(s string) string {
	s = strings.TrimSpace(s)
	if m := bracketWrapped.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

func splitTags(s string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.Trim(strings.TrimSpace(t), "#\"'")
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, t)
	}
	return tags
}
