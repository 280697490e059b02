package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/wastewatch/internal/models"
)

type demoArticle struct {
	url, source, title, summary, content string
	age                                  time.Duration
}

var demoArticles = []demoArticle{
	{
		url:     "https://example.com/demo/sewage-spill-closes-beach",
		source:  "Coastal Daily",
		title:   "Sewage Spill Closes Beach After Pump Station Failure",
		summary: "Health officials closed a popular beach after a pump station failure sent untreated wastewater into the bay.",
		content: "A power outage at a municipal pump station caused an overflow of untreated sewage into the bay overnight. " +
			"County health officials posted closure signs along the shoreline and started daily bacteria sampling. " +
			"The utility said crews restored power within six hours and that the plant is reviewing its backup generators.",
		age: 6 * time.Hour,
	},
	{
		url:     "https://example.com/demo/plant-fined-for-discharge",
		source:  "Regional Water Report",
		title:   "Treatment Plant Fined for Repeated Discharge Violations",
		summary: "State regulators fined a wastewater treatment plant for exceeding nitrogen limits in its effluent for eight months.",
		content: "Inspectors found that the plant exceeded permitted nitrogen limits in monthly effluent samples. " +
			"The operator agreed to a consent order that includes an upgrade of its aeration basins and quarterly reporting.",
		age: 20 * time.Hour,
	},
	{
		url:     "https://example.com/demo/industrial-discharge-river",
		source:  "River Watch",
		title:   "Industrial Discharge Turns River Orange Near Mill",
		summary: "Residents reported discoloured water downstream of a textile mill; samples point to an industrial discharge.",
		content: "Environmental officers traced the discolouration to a storm drain connected to the mill's dye house. " +
			"The company halted production on the affected line while the state investigates a possible Clean Water Act violation.",
		age: 30 * time.Hour,
	},
	{
		url:     "https://example.com/demo/pfas-found-in-effluent",
		source:  "Water Quality News",
		title:   "PFAS Detected in Effluent From Three Municipal Plants",
		summary: "A monitoring survey found PFAS compounds in effluent from three municipal plants, raising questions about treatment limits.",
		content: "The survey sampled effluent from twelve facilities. Three reported PFAS concentrations above the state screening level. " +
			"Operators said conventional treatment does not remove these compounds and that advanced treatment would need new funding.",
		age: 48 * time.Hour,
	},
	{
		url:     "https://example.com/demo/storm-overflows-rise",
		source:  "Infrastructure Today",
		title:   "Combined Sewer Overflows Rise After Record Storm Season",
		summary: "Utilities reported a sharp rise in combined sewer overflow events after a season of record rainfall.",
		content: "Older cities with combined sewers saw overflow events more than double compared with the previous year. " +
			"Several utilities are accelerating storage tunnel projects and green infrastructure to reduce sewage overflow volumes.",
		age: 72 * time.Hour,
	},
}

// SeedDemo stores the demo articles through the relevance filter. Already
// present demo URLs are left alone, so seeding twice adds nothing.
func (p *Processor) SeedDemo(ctx context.Context) (int, error) {
	seeded := 0
	for _, d := range demoArticles {
		published := p.now().Add(-d.age)
		article := &models.Article{
			SourceURL:   d.url,
			SourceName:  d.source,
			Title:       d.title,
			Summary:     d.summary,
			Content:     d.content,
			PublishedAt: &published,
			Status:      models.ArticleNew,
		}
		p.filter.Apply(article)

		created, err := p.store.UpsertArticleByURL(ctx, article)
		if err != nil {
			return seeded, fmt.Errorf("seed %s: %w", d.url, err)
		}
		if err := p.seen.MarkSeen(ctx, d.url); err != nil {
			p.log.Warn().Err(err).Str("url", d.url).Msg("Failed to mark demo url as seen")
		}
		if created {
			seeded++
		}
	}
	p.log.Info().Int("seeded", seeded).Msg("Seeded demo articles")
	return seeded, nil
}
