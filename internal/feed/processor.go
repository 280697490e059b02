package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/wastewatch/internal/cache"
	"github.com/bilgisen/wastewatch/internal/logger"
	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/storage"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Options tune ingestion.
type Options struct {
	MaxPerFeed int
	// MaxAge skips entries published earlier than now-MaxAge. Zero disables.
	MaxAge time.Duration
}

// SourceFailure is the JSON view of a failed source.
type SourceFailure struct {
	Source string `json:"source"`
	URL    string `json:"url"`
	Error  string `json:"error"`
}

// IngestResult summarizes one ingestion pass.
type IngestResult struct {
	Found    int             `json:"found"`
	New      int             `json:"new"`
	Relevant int             `json:"relevant"`
	Errors   []SourceFailure `json:"errors,omitempty"`

	sourceErrs *multierror.Error
}

// Err returns the aggregated source errors, or nil.
func (r *IngestResult) Err() error {
	return r.sourceErrs.ErrorOrNil()
}

func (r *IngestResult) addSourceError(err *models.SourceError) {
	r.sourceErrs = multierror.Append(r.sourceErrs, err)
	r.Errors = append(r.Errors, SourceFailure{Source: err.Source, URL: err.URL, Error: err.Err.Error()})
}

// Processor is the ingestion stage: fetch, normalize, dedupe, filter, store.
type Processor struct {
	store     storage.Store
	seen      cache.SeenCache
	fetcher   *Fetcher
	parser    *Parser
	filter    *RelevanceFilter
	extractor ContentExtractor
	opts      Options
	log       zerolog.Logger
	now       func() time.Time
}

// NewProcessor wires the stage. extractor may be nil to keep feed summaries only.
func NewProcessor(store storage.Store, seen cache.SeenCache, fetcher *Fetcher, filter *RelevanceFilter, extractor ContentExtractor, opts Options) *Processor {
	if opts.MaxPerFeed <= 0 {
		opts.MaxPerFeed = 10
	}
	return &Processor{
		store:     store,
		seen:      seen,
		fetcher:   fetcher,
		parser:    NewParser(),
		filter:    filter,
		extractor: extractor,
		opts:      opts,
		log:       logger.For("ingest"),
		now:       time.Now,
	}
}

// Ingest fetches all sources concurrently, then writes entries one at a time.
// A failing source is recorded in the result; only store failures abort.
func (p *Processor) Ingest(ctx context.Context, sources []models.FeedSource) (*IngestResult, error) {
	start := p.now()
	p.log.Info().Int("sources", len(sources)).Msg("Starting ingestion")

	if err := p.resetSeenIfEmpty(ctx); err != nil {
		return nil, err
	}

	result := &IngestResult{}
	fetched := p.fetcher.FetchMultipleFeeds(ctx, sources)

	for _, fr := range fetched {
		if fr.Err != nil {
			serr := &models.SourceError{Source: fr.Source.Name, URL: fr.Source.URL, Err: fr.Err}
			p.log.Warn().Err(fr.Err).Str("source", fr.Source.Name).Msg("Feed unavailable, skipping")
			result.addSourceError(serr)
			continue
		}

		entries := p.entries(fr)
		p.log.Debug().Str("source", fr.Source.Name).Int("entries", len(entries)).Msg("Fetched feed")

		for _, entry := range entries {
			if err := p.ingestEntry(ctx, fr.Source, entry, result); err != nil {
				return result, err
			}
		}
	}

	p.log.Info().
		Int("found", result.Found).
		Int("new", result.New).
		Int("relevant", result.Relevant).
		Int("failed_sources", len(result.Errors)).
		Dur("duration", p.now().Sub(start)).
		Msg("Finished ingestion")
	return result, nil
}

// resetSeenIfEmpty drops cached URLs when the store holds no articles, so a
// wiped or replaced store is refilled instead of skipped.
func (p *Processor) resetSeenIfEmpty(ctx context.Context) error {
	stats, err := p.store.CountsByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count articles: %w", err)
	}
	if stats.TotalArticles > 0 {
		return nil
	}
	if err := p.seen.Clear(ctx); err != nil {
		p.log.Warn().Err(err).Msg("Failed to clear seen cache for empty store")
	}
	return nil
}

// entries returns at most MaxPerFeed valid, recent entries of a feed.
func (p *Processor) entries(fr FetchResult) []Entry {
	if fr.Feed == nil {
		return nil
	}
	var cutoff time.Time
	if p.opts.MaxAge > 0 {
		cutoff = p.now().Add(-p.opts.MaxAge)
	}

	var out []Entry
	for _, item := range fr.Feed.Items {
		if len(out) >= p.opts.MaxPerFeed {
			break
		}
		if item == nil {
			continue
		}
		entry, ok := p.parser.NormalizeItem(item)
		if !ok {
			p.log.Debug().Str("source", fr.Source.Name).Str("title", item.Title).Msg("Skipping entry without link or title")
			continue
		}
		if !cutoff.IsZero() && entry.PublishedAt != nil && entry.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

func (p *Processor) ingestEntry(ctx context.Context, src models.FeedSource, entry Entry, result *IngestResult) error {
	result.Found++

	if seen, err := p.seen.IsSeen(ctx, entry.URL); err != nil {
		p.log.Warn().Err(err).Str("url", entry.URL).Msg("Seen cache lookup failed, falling back to store")
	} else if seen {
		return nil
	}

	article := entry.ToArticle(src)
	p.filter.Apply(article)

	created, err := p.store.UpsertArticleByURL(ctx, article)
	if err != nil {
		return fmt.Errorf("store article %s: %w", entry.URL, err)
	}
	if err := p.seen.MarkSeen(ctx, entry.URL); err != nil {
		p.log.Warn().Err(err).Str("url", entry.URL).Msg("Failed to mark url as seen")
	}
	if !created {
		return nil
	}

	result.New++
	if article.IsRelevant {
		result.Relevant++
		p.enrich(ctx, article)
	}
	p.log.Debug().
		Uint("article_id", article.ID).
		Str("status", string(article.Status)).
		Strs("matched", article.MatchedTerms).
		Msg("Stored new article")
	return nil
}

// enrich replaces short feed text with the article page body. Failures only log.
func (p *Processor) enrich(ctx context.Context, article *models.Article) {
	if p.extractor == nil || len([]rune(article.Content)) >= minContentRunes {
		return
	}
	content, err := p.extractor.Extract(ctx, article.SourceURL)
	if err != nil {
		p.log.Debug().Err(err).Str("url", article.SourceURL).Msg("Content extraction failed")
		return
	}
	if content == "" {
		return
	}
	if err := p.store.UpdateArticleContent(ctx, article.ID, content); err != nil {
		p.log.Warn().Err(err).Uint("article_id", article.ID).Msg("Failed to save extracted content")
		return
	}
	article.Content = content
}
