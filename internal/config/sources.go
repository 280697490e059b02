package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/utils"
	opml "github.com/gilliek/go-opml/opml"
	"gopkg.in/yaml.v3"
)

// Sources is the optional feed source file.
//
//	feeds:
//	  - name: EPA News
//	    url: https://www.epa.gov/rss/epa-news-releases.xml
//	terms:
//	  - wastewater
type Sources struct {
	Feeds []models.FeedSource `yaml:"feeds"`
	Terms []string            `yaml:"terms"`
}

// LoadSources reads a YAML (.yaml/.yml) or OPML (.opml/.xml) feed list.
func LoadSources(path string) (*Sources, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".opml", ".xml":
		return loadOPML(path)
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return nil, fmt.Errorf("unsupported feed source file %s", path)
	}
}

func loadYAML(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s Sources
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range s.Feeds {
		if s.Feeds[i].URL == "" {
			return nil, fmt.Errorf("feed %d in %s has no url", i, path)
		}
		if s.Feeds[i].Name == "" {
			s.Feeds[i].Name = utils.Host(s.Feeds[i].URL)
		}
	}
	return &s, nil
}

func loadOPML(path string) (*Sources, error) {
	doc, err := opml.NewOPMLFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse opml %s: %w", path, err)
	}
	s := &Sources{}
	collectOutlines(doc.Body.Outlines, &s.Feeds)
	return s, nil
}

func collectOutlines(outlines []opml.Outline, out *[]models.FeedSource) {
	for _, o := range outlines {
		if o.XMLURL != "" {
			name := o.Title
			if name == "" {
				name = o.Text
			}
			if name == "" {
				name = utils.Host(o.XMLURL)
			}
			*out = append(*out, models.FeedSource{Name: name, URL: o.XMLURL})
		}
		collectOutlines(o.Outlines, out)
	}
}

// DefaultFeeds are wastewater and pollution news searches.
func DefaultFeeds() []models.FeedSource {
	google := func(q string) string {
		return "https://news.google.com/rss/search?q=" + q + "&hl=en-US&gl=US&ceid=US:en"
	}
	return []models.FeedSource{
		{Name: "Google News: wastewater pollution", URL: google("wastewater+treatment+pollution")},
		{Name: "Google News: sewage spill", URL: google("sewage+spill+contamination")},
		{Name: "Google News: water pollution incident", URL: google("water+pollution+incident")},
		{Name: "Google News: discharge violation", URL: google("wastewater+discharge+violation")},
		{Name: "Google News: sewage overflow", URL: google("sewage+overflow+environmental")},
		{Name: "EPA News Releases", URL: "https://www.epa.gov/rss/epa-news-releases.xml"},
		{Name: "Water Online", URL: "https://www.wateronline.com/rss"},
		{Name: "WaterWorld", URL: "https://www.waterworld.com/rss"},
	}
}

// DefaultRelevanceTerms match case-insensitively as substrings of title + summary.
func DefaultRelevanceTerms() []string {
	return []string{
		"wastewater",
		"sewage",
		"effluent",
		"water pollution",
		"water contamination",
		"pollution incident",
		"industrial discharge",
		"clean water act",
		"water quality violation",
	}
}
