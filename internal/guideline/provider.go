// Package guideline fetches the writing-style guideline document from the
// document store and caches it for the lifetime of the process.
//
// The guideline is optional: when no document identifier is configured the
// provider reports an absent guideline and the composer works without
// stylistic guidance. The upstream document rarely changes mid-session, so
// there is deliberately no invalidation; a restart picks up new content.
package guideline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	docs "google.golang.org/api/docs/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mailscribe/mailscribe/internal/config"
	"github.com/mailscribe/mailscribe/internal/fault"
	"github.com/mailscribe/mailscribe/internal/logging"
)

// Guideline is the cached writing-style document.
type Guideline struct {
	Text      string
	DocID     string
	FetchedAt time.Time
}

// Fetcher retrieves the plain text of a document by identifier.
type Fetcher interface {
	DocumentText(ctx context.Context, docID string) (string, error)
}

// Provider memoizes the guideline document. The fetch happens at most once
// per process lifetime, on first use; the first outcome (value or error) is
// what every later call sees.
type Provider struct {
	docID   string
	fetcher Fetcher
	logger  *slog.Logger

	once   sync.Once
	cached *Guideline
	err    error
}

// NewProvider creates a provider backed by the Google Docs API.
func NewProvider(cfg *config.Config, logger *slog.Logger) *Provider {
	return NewProviderWithFetcher(cfg.GuidelineDocID,
		&docsFetcher{credentialsFile: cfg.CredentialsFile}, logger)
}

// NewProviderWithFetcher creates a provider with a custom fetcher.
func NewProviderWithFetcher(docID string, fetcher Fetcher, logger *slog.Logger) *Provider {
	return &Provider{
		docID:   docID,
		fetcher: fetcher,
		logger:  logger.With(logging.Service("docs")),
	}
}

// Guideline returns the cached guideline, fetching it on first call. A nil
// guideline with a nil error means no guideline is configured.
func (p *Provider) Guideline(ctx context.Context) (*Guideline, error) {
	if p.docID == "" {
		return nil, nil
	}
	p.once.Do(func() {
		text, err := p.fetcher.DocumentText(ctx, p.docID)
		if err != nil {
			p.err = err
			p.logger.Warn("guideline fetch failed",
				logging.Operation("get_guideline"), logging.Err(err))
			return
		}
		p.cached = &Guideline{Text: text, DocID: p.docID, FetchedAt: time.Now()}
		p.logger.Info("guideline fetched",
			logging.Operation("get_guideline"), slog.Int("chars", len(text)))
	})
	return p.cached, p.err
}

// docsFetcher reads a document through the Google Docs API using a
// service-account credentials file.
type docsFetcher struct {
	credentialsFile string
}

func (f *docsFetcher) DocumentText(ctx context.Context, docID string) (string, error) {
	if f.credentialsFile == "" {
		return "", fault.New(fault.Configuration,
			"guideline document %s is configured but GOOGLE_APPLICATION_CREDENTIALS is not set", docID)
	}
	if _, err := os.Stat(f.credentialsFile); err != nil {
		return "", fault.Wrap(fault.Configuration, err,
			"document store credentials file %s is not readable", f.credentialsFile)
	}

	svc, err := docs.NewService(ctx,
		option.WithCredentialsFile(f.credentialsFile),
		option.WithScopes(docs.DocumentsReadonlyScope))
	if err != nil {
		return "", fault.Wrap(fault.Configuration, err, "document store credentials are invalid")
	}

	doc, err := svc.Documents.Get(docID).IncludeTabsContent(true).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case http.StatusUnauthorized, http.StatusForbidden:
				return "", fault.Wrap(fault.Authentication, err, "document store rejected credentials")
			case http.StatusNotFound:
				return "", fault.Wrap(fault.NotFound, err, "guideline document %s does not exist", docID)
			}
		}
		return "", fault.Wrap(fault.Connection, err, "document store unreachable")
	}

	return documentText(doc), nil
}
