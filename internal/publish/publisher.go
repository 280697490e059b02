package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bilgisen/wastewatch/internal/logger"
	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/storage"
	"github.com/rs/zerolog"
)

// Result describes a publication. Simulated is true when no remote write happened.
type Result struct {
	Draft            *models.Draft `json:"post"`
	URL              string        `json:"url,omitempty"`
	Simulated        bool          `json:"simulated"`
	AlreadyPublished bool          `json:"already_published"`
	// InProgress marks a request that found the same draft being published.
	InProgress bool `json:"in_progress,omitempty"`
}

// BatchResult reports a sequential multi-draft publication.
type BatchResult struct {
	Published int           `json:"published"`
	Failed    int           `json:"failed"`
	Items     []ItemOutcome `json:"items"`
}

type ItemOutcome struct {
	DraftID   uint   `json:"draft_id"`
	URL       string `json:"url,omitempty"`
	Simulated bool   `json:"simulated"`
	Error     string `json:"error,omitempty"`
}

// Publisher is the publication stage. A nil remote means no content system is
// configured and publications are simulated.
type Publisher struct {
	store   storage.Store
	remote  ContentSystem
	timeout time.Duration
	log     zerolog.Logger

	mu       sync.Mutex
	inflight map[uint]struct{}
}

func NewPublisher(store storage.Store, remote ContentSystem, timeout time.Duration) *Publisher {
	return &Publisher{
		store:    store,
		remote:   remote,
		timeout:  timeout,
		log:      logger.For("publish"),
		inflight: make(map[uint]struct{}),
	}
}

// Configured reports whether publications reach a real content system.
func (p *Publisher) Configured() bool {
	return p.remote != nil
}

// Publish pushes a draft once. The draft is read under a per-draft guard, so
// an already published draft returns its recorded state without a remote call
// unless force is set. A concurrent request for the same draft is a no-op
// reported with InProgress. On any error the draft keeps its status.
func (p *Publisher) Publish(ctx context.Context, draftID uint, force bool) (*Result, error) {
	if !p.acquire(draftID) {
		d, err := p.store.GetDraft(ctx, draftID)
		if err != nil {
			return nil, err
		}
		res := alreadyPublished(d)
		res.AlreadyPublished = d.IsPublished()
		res.InProgress = true
		return res, nil
	}
	defer p.release(draftID)

	d, err := p.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if d.IsPublished() && !force {
		return alreadyPublished(d), nil
	}

	patch := models.DraftPatch{Force: force}
	if p.remote == nil {
		patch.RemoteID = fmt.Sprintf("simulated-%d", d.ID)
		patch.PublishSimulated = true
	} else {
		ref, err := p.push(ctx, d)
		if err != nil {
			p.log.Warn().Err(err).Uint("draft_id", d.ID).Msg("Publication failed")
			return nil, fmt.Errorf("publish draft %d: %w", d.ID, err)
		}
		patch.RemoteID = ref.ID
		patch.RemoteURL = ref.URL
	}

	updated, err := p.store.UpdateDraftStatus(ctx, d.ID, models.DraftPublished, patch)
	if errors.Is(err, models.ErrConflict) {
		current, gerr := p.store.GetDraft(ctx, d.ID)
		if gerr != nil {
			return nil, gerr
		}
		return alreadyPublished(current), nil
	}
	if err != nil {
		p.log.Error().Err(err).Uint("draft_id", d.ID).Str("remote_id", patch.RemoteID).Msg("Remote post created but draft not updated")
		return nil, fmt.Errorf("record publication of draft %d: %w", d.ID, err)
	}

	p.log.Info().
		Uint("draft_id", updated.ID).
		Str("remote_id", updated.RemoteID).
		Bool("simulated", updated.PublishSimulated).
		Msg("Draft published")
	return &Result{Draft: updated, URL: updated.RemoteURL, Simulated: updated.PublishSimulated}, nil
}

// PublishMany publishes drafts one after another; failures are reported per draft.
func (p *Publisher) PublishMany(ctx context.Context, ids []uint) *BatchResult {
	out := &BatchResult{Items: make([]ItemOutcome, 0, len(ids))}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		item := ItemOutcome{DraftID: id}
		res, err := p.Publish(ctx, id, false)
		if err != nil {
			item.Error = err.Error()
			out.Failed++
		} else {
			item.URL = res.URL
			item.Simulated = res.Simulated
			if !res.AlreadyPublished && !res.InProgress {
				out.Published++
			}
		}
		out.Items = append(out.Items, item)
	}
	return out
}

// TestConnection checks the content system credentials.
func (p *Publisher) TestConnection(ctx context.Context) (string, error) {
	if p.remote == nil {
		return "", &models.PublicationError{Kind: models.PublicationAuth, Err: errors.New("WordPress is not configured")}
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	name, err := p.remote.TestConnection(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Connected to WordPress as %s", name), nil
}

func (p *Publisher) push(ctx context.Context, d *models.Draft) (*RemoteRef, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	return p.remote.CreateDraftPost(ctx, RemotePost{
		Title:   d.Headline,
		Content: d.Body,
		Excerpt: d.MetaDescription,
		Tags:    d.Tags,
	})
}

func (p *Publisher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return context.WithCancel(ctx)
}

func (p *Publisher) acquire(id uint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[id]; busy {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

func (p *Publisher) release(id uint) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}

func alreadyPublished(d *models.Draft) *Result {
	return &Result{Draft: d, URL: d.RemoteURL, Simulated: d.PublishSimulated, AlreadyPublished: true}
}
