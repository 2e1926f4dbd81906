package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/agentdesk/internal/app"
	"github.com/zjrosen/agentdesk/internal/attach"
	"github.com/zjrosen/agentdesk/internal/bridge/channel"
	"github.com/zjrosen/agentdesk/internal/config"
	"github.com/zjrosen/agentdesk/internal/flags"
	"github.com/zjrosen/agentdesk/internal/infrastructure/sqlite"
	"github.com/zjrosen/agentdesk/internal/log"
	"github.com/zjrosen/agentdesk/internal/orchestrator"
	"github.com/zjrosen/agentdesk/internal/pubsub"
	"github.com/zjrosen/agentdesk/internal/titles"
	"github.com/zjrosen/agentdesk/internal/tracing"
	"github.com/zjrosen/agentdesk/internal/transport/wstransport"
	"github.com/zjrosen/agentdesk/internal/ui/styles"
	"github.com/zjrosen/agentdesk/internal/watcher"
)

// runtime owns every long-lived resource behind the TUI.
type runtime struct {
	provider *tracing.Provider
	db       *sqlite.DB
	channel  *channel.Channel
	conn     *pubsub.Broker[wstransport.State]
	watcher  *watcher.Watcher
	orch     *orchestrator.Orchestrator
	attach   *attach.Pipeline
	flags    *flags.Registry

	configPath string
	cancel     context.CancelFunc
	runDone    chan struct{}
}

func newRuntime(ctx context.Context, cfg config.Config, configPath string) (_ *runtime, err error) {
	ctx, cancel := context.WithCancel(ctx)
	rt := &runtime{configPath: configPath, cancel: cancel, flags: flags.New(cfg.Flags)}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	rt.provider, err = tracing.NewProvider(cfg.Tracing.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("creating tracer: %w", err)
	}
	tracer := rt.provider.Tracer()

	rt.db, err = sqlite.NewDB(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	transport := rt.startTransport(ctx, cfg.Backend)
	rt.channel = channel.New(transport, channel.WithWriteTimeout(cfg.Backend.WriteTimeout))

	opts := []orchestrator.Option{
		orchestrator.WithAllowedTools(cfg.Session.AllowedTools),
		orchestrator.WithTracer(tracer),
	}
	if rt.flags.Enabled(flags.FlagRecordCwds) {
		opts = append(opts, orchestrator.WithCwdRecorder(rt.db.CwdRepository()))
	}
	h := orchestrator.NewHandles()
	rt.orch = orchestrator.New(h, rt.channel, newTitleGenerator(cfg, tracer), opts...)
	rt.attach = attach.NewPipeline(attach.LocalFileReader{MaxBytes: cfg.Attach.MaxFileBytes}, h.Buffer, tracer)

	if configPath != "" {
		w, werr := watcher.New(watcher.DefaultConfig(configPath))
		if werr == nil {
			werr = w.Start()
		}
		if werr != nil {
			// Live reload is optional.
			log.Warn(log.CatWatcher, "Config watcher unavailable", "path", configPath, "error", werr)
		} else {
			rt.watcher = w
		}
	}
	return rt, nil
}

// startTransport picks the WebSocket client when a backend URL is set and
// the loopback otherwise.
func (rt *runtime) startTransport(ctx context.Context, backend config.BackendConfig) channel.Transport {
	if backend.URL == "" {
		log.Info(log.CatTransport, "No backend configured, using loopback")
		return channel.NewPipe()
	}

	rt.conn = pubsub.NewBroker[wstransport.State]()
	client := wstransport.NewClient(backend.URL, backend.AuthToken)
	client.WriteTimeout = backend.WriteTimeout
	conn := rt.conn
	client.OnStateChange = func(state wstransport.State, err error) {
		if err != nil {
			log.Warn(log.CatTransport, "Connection state changed", "state", state.String(), "error", err)
		}
		conn.Publish(pubsub.UpdatedEvent, state)
	}

	rt.runDone = make(chan struct{})
	go func() {
		defer close(rt.runDone)
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.ErrorErr(log.CatTransport, "Transport stopped", err)
		}
	}()
	return client
}

// newTitleGenerator uses the title service when one is configured, cached for
// titles.cache_ttl, and derives titles locally otherwise.
func newTitleGenerator(cfg config.Config, tracer trace.Tracer) orchestrator.TitleGenerator {
	if cfg.Backend.TitleURL == "" {
		return titles.FirstLine{}
	}
	gen := titles.NewHTTPGenerator(cfg.Backend.TitleURL, cfg.Backend.AuthToken, 30*time.Second)
	if cfg.Titles.CacheTTL <= 0 {
		return gen
	}
	return titles.NewCached(gen, cfg.Titles.CacheTTL, tracer)
}

// Services exposes the runtime to the root model.
func (rt *runtime) Services() app.Services {
	svc := app.Services{
		Orchestrator: rt.orch,
		Channel:      rt.channel,
		Attach:       rt.attach,
		Prompts:      rt.db.PromptRepository(),
		Cwds:         rt.db.CwdRepository(),
		Flags:        rt.flags,
		Watcher:      rt.watcher,
		Connection:   rt.conn,
		DetectDark:   styles.DetectDark,
		ConfigPath:   rt.configPath,
	}
	if rt.watcher != nil {
		path := rt.configPath
		svc.LoadConfig = func() (config.Config, error) { return loadConfig(path) }
	}
	return svc
}

// Close flushes pending sends and releases everything in reverse order.
func (rt *runtime) Close() error {
	var errs []error
	if rt.watcher != nil {
		errs = append(errs, rt.watcher.Stop())
	}
	if rt.channel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rt.channel.Flush(ctx); err != nil && !errors.Is(err, channel.ErrClosed) {
			log.Warn(log.CatBridge, "Unsent events at shutdown", "error", err)
		}
		cancel()
		errs = append(errs, rt.channel.Close())
	}
	rt.cancel()
	if rt.runDone != nil {
		<-rt.runDone
	}
	if rt.conn != nil {
		rt.conn.Close()
	}
	if rt.db != nil {
		errs = append(errs, rt.db.Close())
	}
	if rt.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, rt.provider.Shutdown(ctx))
		cancel()
	}
	return errors.Join(errs...)
}
