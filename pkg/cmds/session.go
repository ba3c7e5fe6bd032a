package cmds

import (
	"context"
	"net/http"
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/assembler"
	"github.com/go-go-golems/ragchat/pkg/chat"
	"github.com/go-go-golems/ragchat/pkg/conversation"
	"github.com/go-go-golems/ragchat/pkg/events"
	"github.com/go-go-golems/ragchat/pkg/settings"
	"github.com/go-go-golems/ragchat/pkg/telemetry"
	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Session wires a controller to the backend, the event router and the
// telemetry sinks.
type Session struct {
	ID            string
	Settings      *settings.ChatSettings
	Client        *api.Client
	Controller    *chat.Controller
	Router        *events.EventRouter
	Publisher     *events.PublisherManager
	Metrics       *telemetry.Metrics
	SystemMessage string

	tracker telemetry.Tracker
}

type sessionConfig struct {
	routerOptions []events.EventRouterOption
	history       []conversation.Message
	transport     chat.Transport
	observers     []chat.Observer
	probeBackend  bool
}

type SessionOption func(*sessionConfig)

func WithRouterOptions(options ...events.EventRouterOption) SessionOption {
	return func(c *sessionConfig) {
		c.routerOptions = append(c.routerOptions, options...)
	}
}

func WithSessionHistory(messages []conversation.Message) SessionOption {
	return func(c *sessionConfig) {
		c.history = messages
	}
}

// WithTransport replaces the HTTP client as the conversation transport.
func WithTransport(t chat.Transport) SessionOption {
	return func(c *sessionConfig) {
		c.transport = t
	}
}

func WithSessionObserver(o ...chat.Observer) SessionOption {
	return func(c *sessionConfig) {
		c.observers = append(c.observers, o...)
	}
}

// WithBackendProbe controls whether the user id and system message are
// fetched from the backend when the session is created.
func WithBackendProbe(b bool) SessionOption {
	return func(c *sessionConfig) {
		c.probeBackend = b
	}
}

func NewSession(ctx context.Context, s *settings.ChatSettings, options ...SessionOption) (*Session, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	cfg := &sessionConfig{probeBackend: true}
	for _, o := range options {
		o(cfg)
	}

	clientOptions := []api.ClientOption{api.WithTimeout(s.Timeout)}
	if s.UserAgent != "" {
		clientOptions = append(clientOptions, api.WithUserAgent(s.UserAgent))
	}
	client := api.NewClient(s.BaseURL, clientOptions...)

	ret := &Session{
		ID:       shortuuid.New(),
		Settings: s.Clone(),
		Client:   client,
	}

	if cfg.probeBackend {
		if ret.Settings.UserID == "" {
			ret.Settings.UserID = client.UserID(ctx)
		}
		sys, err := client.SystemMessage(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("could not fetch system message")
		}
		ret.SystemMessage = sys
	}

	footer, err := newFooter(ret.Settings)
	if err != nil {
		return nil, err
	}

	ret.tracker = telemetry.LogTracker{}
	if ret.Settings.TelemetryDB != "" {
		store, err := telemetry.NewSQLiteTracker(ret.Settings.TelemetryDB)
		if err != nil {
			return nil, err
		}
		ret.tracker = store
	}

	router, err := events.NewEventRouter(cfg.routerOptions...)
	if err != nil {
		_ = ret.tracker.Close()
		return nil, err
	}
	ret.Router = router
	ret.Publisher = events.NewPublisherManager()
	ret.Publisher.SubscribePublisher(events.TopicChat, router.Publisher)

	recorder := telemetry.NewRecorder(ret.tracker, telemetry.WithSystemMessage(ret.SystemMessage))
	router.AddHandler("telemetry", events.TopicChat, recorder.Handle)

	ret.Metrics = telemetry.NewMetrics()

	var transport chat.Transport = client
	if cfg.transport != nil {
		transport = cfg.transport
	}
	observers := append([]chat.Observer{
		events.NewObserver(ret.Publisher, ret.ID),
		ret.Metrics,
	}, cfg.observers...)
	ret.Controller = chat.NewController(transport,
		chat.WithFooter(footer),
		chat.WithInDomainOnly(ret.Settings.InDomainOnly),
		chat.WithConsent(ret.Settings.Consent),
		chat.WithUserID(ret.Settings.UserID),
		chat.WithHistory(cfg.history),
		chat.WithObserver(observers...),
	)

	return ret, nil
}

func newFooter(s *settings.ChatSettings) (*assembler.Footer, error) {
	if s.FooterTemplate == "" && s.SearchURL == "" && s.CommunityURL == "" {
		return assembler.MustDefaultFooter(), nil
	}
	text := s.FooterTemplate
	if text == "" {
		text = assembler.DefaultFooterTemplate
	}
	options := []assembler.FooterOption{}
	if s.SearchURL != "" {
		options = append(options, assembler.WithSearchURL(s.SearchURL))
	}
	if s.CommunityURL != "" {
		options = append(options, assembler.WithCommunityURL(s.CommunityURL))
	}
	return assembler.NewFooter(text, options...)
}

// Run runs the event router, and the metrics endpoint if configured, for as
// long as f runs. f is only called once the router is ready, so that no
// event of the session is lost.
func (s *Session) Run(ctx context.Context, f func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.Router.Run(ctx)
	})

	if s.Settings.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              s.Settings.MetricsAddr,
			Handler:           s.Metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		eg.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("serving metrics")
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, "metrics server failed")
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	eg.Go(func() error {
		defer cancel()
		select {
		case <-s.Router.Running():
		case <-ctx.Done():
			return ctx.Err()
		}
		return f(ctx)
	})

	return eg.Wait()
}

func (s *Session) Close() error {
	s.Controller.CancelAll()
	err := s.Router.Close()
	if err_ := s.tracker.Close(); err_ != nil && err == nil {
		err = err_
	}
	return err
}
