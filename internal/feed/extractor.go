package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bilgisen/wastewatch/internal/utils"
	"github.com/go-resty/resty/v2"
)

const (
	minParagraphRunes = 30
	minContentRunes   = 100
	maxContentRunes   = 5000
)

// ContentExtractor fetches the full text behind an article link.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// PageExtractor keeps the paragraph text of an article page.
type PageExtractor struct {
	client  *resty.Client
	timeout time.Duration
}

func NewPageExtractor(timeout time.Duration) *PageExtractor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PageExtractor{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent),
		timeout: timeout,
	}
}

func (e *PageExtractor) Extract(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d from %s", resp.StatusCode(), url)
	}
	return ExtractParagraphs(resp.Body())
}

// ExtractParagraphs returns article paragraphs joined by blank lines, or ""
// when the page holds too little text to be useful.
func ExtractParagraphs(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	doc.Find("script, style, nav, header, footer, aside, form").Remove()

	scope := doc.Find("article")
	if scope.Length() == 0 {
		scope = doc.Find("main")
	}
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	var paragraphs []string
	scope.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if len([]rune(text)) > minParagraphRunes {
			paragraphs = append(paragraphs, text)
		}
	})

	content := utils.Truncate(strings.Join(paragraphs, "\n\n"), maxContentRunes)
	if len([]rune(content)) < minContentRunes {
		return "", nil
	}
	return content, nil
}
