package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mailscribe/mailscribe/internal/compose"
	"github.com/mailscribe/mailscribe/internal/config"
	"github.com/mailscribe/mailscribe/internal/guideline"
	"github.com/mailscribe/mailscribe/internal/mail"
)

// MailGateway is the mailbox surface the tool handlers depend on.
type MailGateway interface {
	ListUnread(ctx context.Context, max int) ([]mail.Message, error)
	GetMessage(ctx context.Context, id string) (*mail.Message, error)
	CreateDraft(ctx context.Context, targetID, body string) (string, error)
}

// GuidelineSource resolves the stored writing-style guideline.
type GuidelineSource interface {
	Guideline(ctx context.Context) (*guideline.Guideline, error)
}

// ReplyComposer generates reply text for a message.
type ReplyComposer interface {
	Compose(ctx context.Context, msg *mail.Message, g *guideline.Guideline, instruction string) (string, error)
}

// ServerContext holds the shared state for the MCP server: the mailbox
// gateway, the guideline source, the reply composer, and the registry of
// message identifiers handed out during this session.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	logger *slog.Logger

	mu        sync.RWMutex
	mailbox   MailGateway
	guideline GuidelineSource
	composer  ReplyComposer
	seenIDs   map[string]struct{}
	shutdown  bool
}

// NewServerContext creates a new server context. No credentials are checked
// here; clients are built lazily so a misconfigured deployment fails on the
// first tool call rather than at startup.
func NewServerContext(ctx context.Context, cfg *config.Config, logger *slog.Logger) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  logger,
		seenIDs: make(map[string]struct{}),
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the process configuration
func (sc *ServerContext) Config() *config.Config {
	return sc.cfg
}

// Logger returns the server logger
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Mailbox returns the mail gateway, creating it on first use.
func (sc *ServerContext) Mailbox() MailGateway {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.mailbox == nil {
		sc.mailbox = mail.NewClient(sc.cfg, sc.logger)
	}
	return sc.mailbox
}

// SetMailbox replaces the mail gateway. Used by tests.
func (sc *ServerContext) SetMailbox(m MailGateway) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.mailbox = m
}

// GuidelineSource returns the guideline source, creating it on first use.
// The provider itself guarantees the underlying document is fetched at most
// once per process.
func (sc *ServerContext) GuidelineSource() GuidelineSource {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.guideline == nil {
		sc.guideline = guideline.NewProvider(sc.cfg, sc.logger)
	}
	return sc.guideline
}

// SetGuidelineSource replaces the guideline source. Used by tests.
func (sc *ServerContext) SetGuidelineSource(g GuidelineSource) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.guideline = g
}

// Composer returns the reply composer, creating it on first use.
func (sc *ServerContext) Composer() ReplyComposer {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.composer == nil {
		sc.composer = compose.NewComposer(sc.cfg, sc.logger)
	}
	return sc.composer
}

// SetComposer replaces the reply composer. Used by tests.
func (sc *ServerContext) SetComposer(c ReplyComposer) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.composer = c
}

// RememberMessages records the identifiers of messages returned to the
// client, so a later draft request against an identifier this session never
// produced can be rejected without a mailbox round trip.
func (sc *ServerContext) RememberMessages(msgs []mail.Message) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for i := range msgs {
		sc.seenIDs[msgs[i].ID] = struct{}{}
	}
}

// KnowsMessage reports whether the identifier was handed out during this
// session.
func (sc *ServerContext) KnowsMessage(id string) bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	_, ok := sc.seenIDs[id]
	return ok
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
