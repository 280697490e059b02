package ai

import (
	"fmt"
	"hash/fnv"
	"html"
	"strings"

	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/utils"
)

var headlinePatterns = []string{
	"Breaking: %s and What It Means for Water Quality",
	"Inside the Crisis: %s",
	"Water Watch: %s Raises Industry Alarm",
	"Environmental Alert: %s",
	"Analysis: The Growing Threat Behind %s",
}

// tagKeywords maps a keyword found in the article to a post tag.
var tagKeywords = []struct{ keyword, tag string }{
	{"sewage", "sewage"},
	{"wastewater", "wastewater treatment"},
	{"spill", "environmental spill"},
	{"overflow", "sewer overflow"},
	{"effluent", "effluent"},
	{"discharge", "industrial discharge"},
	{"pfas", "PFAS"},
	{"fine", "regulatory enforcement"},
	{"violation", "regulatory enforcement"},
	{"clean water act", "Clean Water Act"},
	{"beach", "public health"},
	{"drinking water", "drinking water"},
}

// OfflinePost builds a deterministic post from the article alone. The same
// article always yields the same post.
func OfflinePost(a *models.Article) *Post {
	h := fnv.New32a()
	_, _ = h.Write([]byte(a.Title))
	headline := fmt.Sprintf(headlinePatterns[h.Sum32()%uint32(len(headlinePatterns))], a.Title)

	summary := utils.Truncate(a.Summary, 200)
	details := a.Content
	if details == "" {
		details = a.Summary
	}
	details = utils.Truncate(details, 800)

	var b strings.Builder
	fmt.Fprintf(&b, "<p class=\"lead\"><strong>%s</strong>. %s</p>\n\n", html.EscapeString(headline), html.EscapeString(summary))
	b.WriteString("<h2>What Happened</h2>\n")
	fmt.Fprintf(&b, "<p>%s</p>\n\n", html.EscapeString(details))
	b.WriteString("<h2>Environmental Impact</h2>\n")
	b.WriteString("<p>Incidents like this test whether treatment and monitoring systems can protect public health and aquatic ecosystems. " +
		"Effects can reach drinking water supplies, recreational waters and local wildlife.</p>\n\n")
	b.WriteString("<h2>Regulatory Context</h2>\n")
	b.WriteString("<p>Facilities discharging to surface waters operate under permits that set effluent limits. " +
		"Aging infrastructure and growing demand make compliance harder for many plants.</p>\n\n")
	b.WriteString("<h2>Looking Ahead</h2>\n<ul>\n")
	b.WriteString("<li><strong>Infrastructure investment:</strong> upgrading aging treatment plants</li>\n")
	b.WriteString("<li><strong>Monitoring:</strong> real-time water quality sensors</li>\n")
	b.WriteString("<li><strong>Enforcement:</strong> consistent follow-up on permit violations</li>\n")
	b.WriteString("</ul>\n")
	if a.SourceName != "" {
		fmt.Fprintf(&b, "\n<p><em>Source: %s</em></p>\n", html.EscapeString(a.SourceName))
	}

	return &Post{
		Headline:            headline,
		MetaDescription:     utils.Truncate("Analysis of "+utils.Truncate(a.Title, 80)+". Insights on wastewater treatment impacts and environmental implications.", 160),
		Tags:                offlineTags(a),
		FeaturedImagePrompt: "Editorial photograph of a water treatment facility with pipes and flowing water, blue and green tones",
		Body:                b.String(),
	}
}

func offlineTags(a *models.Article) []string {
	text := strings.ToLower(a.Title + " " + a.Summary)
	seen := make(map[string]bool)
	var tags []string
	for _, tk := range tagKeywords {
		if strings.Contains(text, tk.keyword) && !seen[tk.tag] {
			seen[tk.tag] = true
			tags = append(tags, tk.tag)
		}
	}
	if len(tags) < 3 {
		for _, t := range []string{"water pollution", "environmental news"} {
			if !seen[t] {
				tags = append(tags, t)
			}
		}
	}
	if len(tags) > 5 {
		tags = tags[:5]
	}
	return tags
}
