package acquire

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"aidesk/internal/models"
	"aidesk/internal/redis"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

// FetchError classifies a failed URL retrieval, keeping the underlying cause.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// LoadError classifies a failed document load, keeping the underlying cause.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load file %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Acquirer resolves raw text, URLs, or local documents into plain text for
// the dispatchers. A nil cache disables the URL text cache.
type Acquirer struct {
	client   *http.Client
	loader   *file.FileLoader
	cache    *redis.Client
	cacheTTL time.Duration
}

func New(timeout time.Duration, cache *redis.Client, cacheTTL time.Duration) (*Acquirer, error) {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	parserExt, err := parser.NewExtParser(context.Background(), &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init document parser: %w", err)
	}
	loader, err := file.NewFileLoader(context.Background(), &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &Acquirer{
		client:   &http.Client{Timeout: timeout},
		loader:   loader,
		cache:    cache,
		cacheTTL: cacheTTL,
	}, nil
}

// Acquire produces plain text for downstream processing. For SourceText it is
// the identity function, including for the empty string.
func (a *Acquirer) Acquire(ctx context.Context, source models.SummarySource, value string) (string, error) {
	switch source {
	case models.SourceText:
		return value, nil
	case models.SourceURL:
		return a.fetchURL(ctx, value)
	case models.SourceFile:
		return a.loadFile(ctx, value)
	default:
		return "", fmt.Errorf("unknown source: %s", source)
	}
}

func (a *Acquirer) fetchURL(ctx context.Context, rawURL string) (string, error) {
	if cached, ok := a.cacheGet(ctx, rawURL); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("parse markup: %w", err)}
	}
	doc.Find("script, style").Remove()

	// strings.Fields collapses every run of whitespace, embedded
	// double-space sequences included.
	text := strings.Join(strings.Fields(doc.Text()), " ")

	a.cacheSet(ctx, rawURL, text)
	return text, nil
}

func (a *Acquirer) loadFile(ctx context.Context, path string) (string, error) {
	docs, err := a.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", &LoadError{Path: path, Err: err}
	}
	var builder strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n\n")
	}
	return strings.TrimSpace(builder.String()), nil
}

// Cache failures never fail an acquisition; they only cost a refetch.

func (a *Acquirer) cacheGet(ctx context.Context, rawURL string) (string, bool) {
	if a.cache == nil {
		return "", false
	}
	text, err := a.cache.Get(ctx, cacheKey(rawURL))
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("url cache get failed: %v", err)
		}
		return "", false
	}
	return text, true
}

func (a *Acquirer) cacheSet(ctx context.Context, rawURL, text string) {
	if a.cache == nil || a.cacheTTL <= 0 {
		return
	}
	if err := a.cache.Set(ctx, cacheKey(rawURL), text, a.cacheTTL); err != nil {
		log.Printf("url cache set failed: %v", err)
	}
}

func cacheKey(rawURL string) string {
	return "acquire:url:" + rawURL
}
