package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bilgisen/wastewatch/internal/logger"
	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/bilgisen/wastewatch/internal/storage"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
)

const maxSlugLen = 50

var documentTmpl = template.Must(template.New("post").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="description" content="{{.MetaDescription}}">
    <title>{{.Headline}}</title>
    <style>
        body { font-family: Georgia, serif; max-width: 800px; margin: 40px auto; padding: 0 20px; line-height: 1.8; color: #333; }
        h1 { color: #1a5276; font-size: 2em; }
        h2 { color: #2471a3; margin-top: 30px; }
        blockquote { border-left: 4px solid #2471a3; padding: 10px 20px; margin: 20px 0; background: #eaf2f8; font-style: italic; }
        .meta { color: #888; font-size: 0.9em; margin-bottom: 20px; }
        .tags { margin-top: 30px; padding-top: 20px; border-top: 1px solid #ddd; }
        .tag { display: inline-block; background: #2471a3; color: white; padding: 4px 12px; border-radius: 15px; margin: 2px; font-size: 0.85em; }
    </style>
</head>
<body>
    <article>
        <h1>{{.Headline}}</h1>
        <div class="meta">Published: {{.Date}} | WasteWatch</div>
        {{.Body}}
        {{- if .Tags}}
        <div class="tags">
            <strong>Tags:</strong>
            {{range .Tags}}<span class="tag">{{.}}</span>{{end}}
        </div>
        {{- end}}
    </article>
</body>
</html>
`))

type document struct {
	Headline        string
	MetaDescription string
	Date            string
	Body            template.HTML
	Tags            []string
}

// Uploader stores an exported document remotely and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Result is returned after a draft was written to disk.
type Result struct {
	Draft     *models.Draft `json:"post"`
	FilePath  string        `json:"filepath"`
	ObjectURL string        `json:"object_url,omitempty"`
}

// Exporter renders drafts as standalone HTML documents.
type Exporter struct {
	store    storage.Store
	dir      string
	uploader Uploader
	log      zerolog.Logger
	mu       sync.Mutex
}

// NewExporter creates dir if needed. uploader may be nil.
func NewExporter(store storage.Store, dir string, uploader Uploader) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &Exporter{
		store:    store,
		dir:      dir,
		uploader: uploader,
		log:      logger.For("export"),
	}, nil
}

// Export writes the draft to disk and records the path on it.
func (e *Exporter) Export(ctx context.Context, draftID uint) (*Result, error) {
	d, err := e.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}

	data, err := Render(d)
	if err != nil {
		return nil, err
	}
	name := FileName(d)
	path := filepath.Join(e.dir, name)

	e.mu.Lock()
	err = os.WriteFile(path, data, 0o644)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to write export file: %w", err)
	}

	res := &Result{FilePath: path}
	if e.uploader != nil {
		url, err := e.uploader.Upload(ctx, "posts/"+name, data, "text/html; charset=utf-8")
		if err != nil {
			// The local file is the export of record.
			e.log.Warn().Err(err).Uint("draft_id", d.ID).Msg("Upload of exported draft failed")
		} else {
			res.ObjectURL = url
		}
	}

	updated, err := e.store.UpdateDraftStatus(ctx, d.ID, models.DraftExported, models.DraftPatch{ExportPath: path})
	if err != nil {
		return nil, err
	}
	res.Draft = updated

	e.log.Info().Uint("draft_id", d.ID).Str("path", path).Msg("Draft exported")
	return res, nil
}

// Render produces the HTML document for d. The body is trusted generated HTML.
func Render(d *models.Draft) ([]byte, error) {
	ts := d.GeneratedAt
	if ts.IsZero() {
		ts = d.CreatedAt
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	var buf bytes.Buffer
	err := documentTmpl.Execute(&buf, document{
		Headline:        d.Headline,
		MetaDescription: d.MetaDescription,
		Date:            ts.Format("January 02, 2006"),
		Body:            template.HTML(d.Body),
		Tags:            tags,
	})
	if err != nil {
		return nil, fmt.Errorf("render draft %d: %w", d.ID, err)
	}
	return buf.Bytes(), nil
}

// FileName is the headline slug, capped at 50 characters, suffixed with the
// draft id so two drafts never share a file.
func FileName(d *models.Draft) string {
	s := slug.Make(d.Headline)
	if len(s) > maxSlugLen {
		s = strings.Trim(s[:maxSlugLen], "-")
	}
	if s == "" {
		s = "post"
	}
	return fmt.Sprintf("%s-%d.html", s, d.ID)
}
