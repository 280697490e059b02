package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/go-resty/resty/v2"
)

// RemotePost is what gets pushed to the content system.
type RemotePost struct {
	Title   string
	Content string
	Excerpt string
	Tags    []string
}

// RemoteRef identifies a post created remotely.
type RemoteRef struct {
	ID  string
	URL string
}

// ContentSystem is the publication backend.
type ContentSystem interface {
	CreateDraftPost(ctx context.Context, post RemotePost) (*RemoteRef, error)
	TestConnection(ctx context.Context) (string, error)
}

type WordPressConfig struct {
	URL         string
	Username    string
	AppPassword string
	Timeout     time.Duration
}

// WordPressClient uses the WP REST API with application password auth.
type WordPressClient struct {
	client *resty.Client
	api    string
}

type wpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wpPost struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

type wpUser struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type wpTag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func NewWordPressClient(cfg WordPressConfig) *WordPressClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &WordPressClient{
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetBasicAuth(cfg.Username, cfg.AppPassword).
			SetHeader("Accept", "application/json"),
		api: strings.TrimRight(cfg.URL, "/") + "/wp-json/wp/v2",
	}
}

// TestConnection verifies credentials and returns the user's display name.
func (w *WordPressClient) TestConnection(ctx context.Context) (string, error) {
	var user wpUser
	var apiErr wpError
	resp, err := w.client.R().
		SetContext(ctx).
		SetResult(&user).
		SetError(&apiErr).
		Get(w.api + "/users/me")
	if err := classify(resp, err, &apiErr); err != nil {
		return "", err
	}
	return user.Name, nil
}

// CreateDraftPost creates a draft-status post. Tags are resolved best-effort.
func (w *WordPressClient) CreateDraftPost(ctx context.Context, post RemotePost) (*RemoteRef, error) {
	body := map[string]interface{}{
		"title":   post.Title,
		"content": post.Content,
		"status":  "draft",
	}
	if post.Excerpt != "" {
		body["excerpt"] = post.Excerpt
	}
	if ids := w.resolveTags(ctx, post.Tags); len(ids) > 0 {
		body["tags"] = ids
	}

	var created wpPost
	var apiErr wpError
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&created).
		SetError(&apiErr).
		Post(w.api + "/posts")
	if err := classify(resp, err, &apiErr); err != nil {
		return nil, err
	}
	if created.ID == 0 {
		return nil, &models.PublicationError{Kind: models.PublicationValidation, StatusCode: resp.StatusCode(), Err: errors.New("response carried no post id")}
	}
	return &RemoteRef{ID: strconv.Itoa(created.ID), URL: created.Link}, nil
}

// resolveTags finds or creates each tag and skips the ones that fail.
func (w *WordPressClient) resolveTags(ctx context.Context, names []string) []int {
	var ids []int
	for _, name := range names {
		if id, err := w.tagID(ctx, name); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func (w *WordPressClient) tagID(ctx context.Context, name string) (int, error) {
	var found []wpTag
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParam("search", name).
		SetResult(&found).
		Get(w.api + "/tags")
	if err := classify(resp, err, nil); err != nil {
		return 0, err
	}
	for _, t := range found {
		if strings.EqualFold(t.Name, name) {
			return t.ID, nil
		}
	}

	var created wpTag
	resp, err = w.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": name}).
		SetResult(&created).
		Post(w.api + "/tags")
	if err := classify(resp, err, nil); err != nil {
		return 0, err
	}
	return created.ID, nil
}

// classify maps a response onto the publication error kinds.
func classify(resp *resty.Response, err error, apiErr *wpError) error {
	if err != nil {
		return &models.PublicationError{Kind: models.PublicationTransport, Err: err}
	}
	if resp.IsSuccess() {
		return nil
	}

	code := resp.StatusCode()
	msg := http.StatusText(code)
	if apiErr != nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	cause := fmt.Errorf("wordpress: %s", msg)

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &models.PublicationError{Kind: models.PublicationAuth, StatusCode: code, Err: cause}
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return &models.PublicationError{Kind: models.PublicationTransport, StatusCode: code, Err: cause}
	default:
		return &models.PublicationError{Kind: models.PublicationValidation, StatusCode: code, Err: cause}
	}
}
