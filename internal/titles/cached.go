package titles

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/agentdesk/internal/cachemanager"
	"github.com/zjrosen/agentdesk/internal/log"
	"github.com/zjrosen/agentdesk/internal/tracing"
)

// Generator produces a title for a prompt.
type Generator interface {
	GenerateTitle(ctx context.Context, prompt string) (string, error)
}

type promptKey string

func keyFor(prompt string) promptKey {
	sum := sha256.Sum256([]byte(prompt))
	return promptKey(hex.EncodeToString(sum[:]))
}

// Cached wraps a Generator with a TTL cache keyed by prompt digest and a span
// per request. Only successful titles are cached.
type Cached struct {
	rt     *cachemanager.ReadThroughCache[promptKey, string, string]
	ttl    time.Duration
	tracer trace.Tracer
}

// NewCached wraps next. A non-positive ttl disables caching.
func NewCached(next Generator, ttl time.Duration, tracer trace.Tracer) *Cached {
	if tracer == nil {
		tracer = tracing.Noop().Tracer()
	}
	cache := cachemanager.NewInMemoryCacheManager[promptKey, string]("titles", ttl, cachemanager.DefaultCleanupInterval)
	return &Cached{
		rt:     cachemanager.NewReadThroughCache[promptKey, string, string](cache, next.GenerateTitle, ttl <= 0),
		ttl:    ttl,
		tracer: tracer,
	}
}

// GenerateTitle implements Generator.
func (c *Cached) GenerateTitle(ctx context.Context, prompt string) (string, error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanTitle)
	defer span.End()

	title, hit, err := c.rt.Get(ctx, keyFor(prompt), prompt, c.ttl)
	span.SetAttributes(attribute.Bool(tracing.AttrTitleCached, hit))
	if err != nil {
		tracing.Fail(span, err)
		return "", err
	}
	log.Debug(log.CatTitle, "Generated title", "title", title, "cached", hit)
	return title, nil
}
