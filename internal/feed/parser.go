package feed

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/utils"
	"github.com/mmcdole/gofeed"
)

const maxSummaryRunes = 1000

// Entry is a cleaned feed item, not yet stored.
type Entry struct {
	URL         string
	Title       string
	Summary     string
	Content     string
	PublishedAt *time.Time
}

// Parser handles cleaning and normalizing feed items
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// CleanHTML strips markup and normalizes whitespace.
func (p *Parser) CleanHTML(input string) string {
	if !strings.ContainsAny(input, "<&") {
		return strings.Join(strings.Fields(input), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return strings.Join(strings.Fields(input), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// NormalizeItem turns a gofeed item into an Entry. ok is false when the item
// has no usable link or title.
func (p *Parser) NormalizeItem(item *gofeed.Item) (Entry, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	if link == "" && strings.HasPrefix(item.GUID, "http") {
		link = strings.TrimSpace(item.GUID)
	}

	entry := Entry{
		URL:     utils.CanonicalURL(link),
		Title:   p.CleanHTML(item.Title),
		Summary: utils.Truncate(p.CleanHTML(item.Description), maxSummaryRunes),
		Content: p.CleanHTML(item.Content),
	}
	switch {
	case item.PublishedParsed != nil:
		entry.PublishedAt = item.PublishedParsed
	case item.UpdatedParsed != nil:
		entry.PublishedAt = item.UpdatedParsed
	}

	if entry.URL == "" || entry.Title == "" {
		return entry, false
	}
	return entry, true
}

// ToArticle builds a NEW article for the given source.
func (e Entry) ToArticle(src models.FeedSource) *models.Article {
	name := src.Name
	if name == "" {
		name = utils.Host(src.URL)
	}
	return &models.Article{
		SourceURL:   e.URL,
		SourceName:  name,
		Title:       e.Title,
		Summary:     e.Summary,
		Content:     e.Content,
		PublishedAt: e.PublishedAt,
		Status:      models.ArticleNew,
	}
}
