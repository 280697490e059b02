package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wpServer struct {
	*httptest.Server
	posts    int32
	tagPosts int32
	status   int
}

func newWPServer(t *testing.T, status int) *wpServer {
	t.Helper()
	s := &wpServer{status: status}
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wp/v2/users/me", func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		if user != "editor" || pass != "app pass" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"invalid_username","message":"Unknown username."}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":1,"name":"Editor"}`))
	})
	mux.HandleFunc("/wp-json/wp/v2/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			if r.URL.Query().Get("search") == "sewage" {
				_, _ = w.Write([]byte(`[{"id":5,"name":"Sewage"}]`))
				return
			}
			_, _ = w.Write([]byte(`[]`))
			return
		}
		atomic.AddInt32(&s.tagPosts, 1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9,"name":"new"}`))
	})
	mux.HandleFunc("/wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.posts, 1)
		w.Header().Set("Content-Type", "application/json")
		if s.status != http.StatusCreated {
			w.WriteHeader(s.status)
			_, _ = w.Write([]byte(`{"code":"rest_error","message":"rejected"}`))
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != "draft" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":321,"link":"https://blog.example.com/?p=321"}`))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *wpServer) client(password string) *WordPressClient {
	return NewWordPressClient(WordPressConfig{URL: s.URL + "/", Username: "editor", AppPassword: password, Timeout: 2 * time.Second})
}

func seedDraft(t *testing.T, store storage.Store) *models.Draft {
	t.Helper()
	ctx := context.Background()
	a := &models.Article{SourceURL: "https://example.com/a", Title: "Sewage Spill", Status: models.ArticleReadyForGeneration}
	_, err := store.UpsertArticleByURL(ctx, a)
	require.NoError(t, err)
	d := &models.Draft{ArticleID: a.ID, Headline: "Beach closed", Body: "<p>body</p>", Tags: []string{"sewage", "beaches"}}
	require.NoError(t, store.CreateDraft(ctx, d, false))
	return d
}

func TestPublishSimulatedWhenUnconfigured(t *testing.T) {
	store := storage.NewMemoryStore()
	d := seedDraft(t, store)
	p := NewPublisher(store, nil, time.Second)

	res, err := p.Publish(context.Background(), d.ID, false)
	require.NoError(t, err)
	assert.True(t, res.Simulated)
	assert.False(t, res.AlreadyPublished)
	assert.Equal(t, models.DraftPublished, res.Draft.Status)
	assert.NotEmpty(t, res.Draft.RemoteID)
	assert.True(t, res.Draft.PublishSimulated)
}

func TestPublishOnlyWritesOnce(t *testing.T) {
	wp := newWPServer(t, http.StatusCreated)
	store := storage.NewMemoryStore()
	d := seedDraft(t, store)
	p := NewPublisher(store, wp.client("app pass"), time.Second)
	ctx := context.Background()

	first, err := p.Publish(ctx, d.ID, false)
	require.NoError(t, err)
	assert.False(t, first.Simulated)
	assert.Equal(t, "https://blog.example.com/?p=321", first.URL)
	assert.Equal(t, "321", first.Draft.RemoteID)

	second, err := p.Publish(ctx, d.ID, false)
	require.NoError(t, err)
	assert.True(t, second.AlreadyPublished)
	assert.Equal(t, first.URL, second.URL)
	assert.EqualValues(t, 1, atomic.LoadInt32(&wp.posts))
	assert.EqualValues(t, 1, atomic.LoadInt32(&wp.tagPosts))

	forced, err := p.Publish(ctx, d.ID, true)
	require.NoError(t, err)
	assert.False(t, forced.AlreadyPublished)
	assert.EqualValues(t, 2, atomic.LoadInt32(&wp.posts))
}

// pausingStore blocks the first GetDraft after it has read the draft.
type pausingStore struct {
	storage.Store
	once    sync.Once
	reached chan struct{}
	resume  chan struct{}
}

func (s *pausingStore) GetDraft(ctx context.Context, id uint) (*models.Draft, error) {
	d, err := s.Store.GetDraft(ctx, id)
	s.once.Do(func() {
		close(s.reached)
		<-s.resume
	})
	return d, err
}

func TestConcurrentPublishWritesOnce(t *testing.T) {
	wp := newWPServer(t, http.StatusCreated)
	mem := storage.NewMemoryStore()
	d := seedDraft(t, mem)
	store := &pausingStore{Store: mem, reached: make(chan struct{}), resume: make(chan struct{})}
	p := NewPublisher(store, wp.client("app pass"), time.Second)
	ctx := context.Background()

	type outcome struct {
		res *Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := p.Publish(ctx, d.ID, false)
		first <- outcome{res, err}
	}()
	<-store.reached

	second, err := p.Publish(ctx, d.ID, false)
	require.NoError(t, err)
	assert.True(t, second.InProgress)
	assert.False(t, second.AlreadyPublished)

	close(store.resume)
	got := <-first
	require.NoError(t, got.err)
	assert.False(t, got.res.AlreadyPublished)
	assert.Equal(t, "321", got.res.Draft.RemoteID)

	third, err := p.Publish(ctx, d.ID, false)
	require.NoError(t, err)
	assert.True(t, third.AlreadyPublished)
	assert.False(t, third.InProgress)
	assert.EqualValues(t, 1, atomic.LoadInt32(&wp.posts))
}

func TestPublishFailuresKeepDraft(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		password  string
		kind      models.PublicationErrorKind
		retryable bool
	}{
		{"auth", http.StatusUnauthorized, "app pass", models.PublicationAuth, false},
		{"server error", http.StatusBadGateway, "app pass", models.PublicationTransport, true},
		{"rejected", http.StatusBadRequest, "app pass", models.PublicationValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wp := newWPServer(t, tt.status)
			store := storage.NewMemoryStore()
			d := seedDraft(t, store)
			p := NewPublisher(store, wp.client(tt.password), time.Second)

			_, err := p.Publish(context.Background(), d.ID, false)
			var pe *models.PublicationError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.retryable, pe.Retryable())

			got, err := store.GetDraft(context.Background(), d.ID)
			require.NoError(t, err)
			assert.Equal(t, models.DraftDraft, got.Status)
			assert.Empty(t, got.RemoteID)
		})
	}
}

func TestPublishTransportFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	d := seedDraft(t, store)
	client := NewWordPressClient(WordPressConfig{URL: "http://127.0.0.1:1", Username: "u", AppPassword: "p", Timeout: time.Second})
	p := NewPublisher(store, client, time.Second)

	_, err := p.Publish(context.Background(), d.ID, false)
	var pe *models.PublicationError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, models.PublicationTransport, pe.Kind)
}

func TestPublishUnknownDraft(t *testing.T) {
	p := NewPublisher(storage.NewMemoryStore(), nil, time.Second)
	_, err := p.Publish(context.Background(), 404, false)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestPublishMany(t *testing.T) {
	store := storage.NewMemoryStore()
	d := seedDraft(t, store)
	p := NewPublisher(store, nil, time.Second)

	res := p.PublishMany(context.Background(), []uint{d.ID, d.ID, 999})
	assert.Equal(t, 1, res.Published)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Items, 3)
	assert.NotEmpty(t, res.Items[2].Error)
}

func TestTestConnection(t *testing.T) {
	wp := newWPServer(t, http.StatusCreated)

	msg, err := NewPublisher(storage.NewMemoryStore(), wp.client("app pass"), time.Second).TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Connected to WordPress as Editor", msg)

	_, err = NewPublisher(storage.NewMemoryStore(), wp.client("wrong"), time.Second).TestConnection(context.Background())
	var pe *models.PublicationError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, models.PublicationAuth, pe.Kind)

	_, err = NewPublisher(storage.NewMemoryStore(), nil, time.Second).TestConnection(context.Background())
	assert.Error(t, err)
}
