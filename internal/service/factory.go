package service

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/advflag/common/httpclient"
	"basegraph.app/advflag/core/config"
	"basegraph.app/advflag/internal/catalog"
	"basegraph.app/advflag/internal/eligibility"
	"basegraph.app/advflag/internal/eventbus"
	"basegraph.app/advflag/internal/queue"
	"basegraph.app/advflag/internal/service/correlator"
	"basegraph.app/advflag/internal/service/dispatch"
	"basegraph.app/advflag/internal/service/platform"
	"basegraph.app/advflag/internal/service/reporter"
	"basegraph.app/advflag/internal/settings"
	"basegraph.app/advflag/internal/status"
)

// Services is the process-wide object graph: one post directory, one status
// registry and one set of caches shared by every request and event.
type Services struct {
	settings    *settings.Settings
	coordinator CoordinatorService
	events      NetworkEventService
	bus         *eventbus.Bus
}

func NewServices(cfg config.Config, redisClient *redis.Client, producer queue.Producer) *Services {
	cat := catalog.Default()
	hc := httpclient.New(httpclient.WithTimeout(15 * time.Second))
	st := settings.New(settings.NewRedisStore(redisClient, "advflag:settings:"), cat.AllIDs())

	site := platform.NewClient(cfg.Platform, hc)
	chat := platform.NewChatClient(cfg.Chat, hc)
	registry := status.NewRegistry(cfg.Policy.ProbeAttempts)
	policy := eligibility.LowQualityPolicy{
		MaxScore: cfg.Policy.LowQualityMaxScore,
		MaxAge:   cfg.Policy.LowQualityMaxAge,
	}

	dispatcher := dispatch.New(dispatch.Params{
		Platform: site,
		Catalog:  cat,
		Policy:   policy,
	})

	params := CoordinatorParams{
		Catalog:    cat,
		Settings:   st,
		Dispatcher: dispatcher,
		Policy:     policy,
		IsMainSite: cfg.Platform.IsMainSite,
	}
	if cfg.Natty.Enabled() {
		params.Natty = reporter.NewNatty(reporter.NattyParams{
			Config:   cfg.Natty,
			Policy:   cfg.Policy,
			SiteURL:  site.SiteURL(),
			RoomID:   cfg.Chat.RoomID,
			HTTP:     hc,
			Chat:     chat,
			Statuses: registry,
		})
	}
	if cfg.CopyPastor.Enabled() {
		params.CopyPastor = reporter.NewCopyPastor(cfg.CopyPastor, cfg.Username, chat.UserLink(), hc)
	}
	if cfg.MetaSmoke.Enabled() {
		params.MetaSmoke = reporter.NewMetaSmoke(cfg.MetaSmoke, site.SiteURL(), st, hc)
	}
	if cfg.GenericBot.Enabled() {
		params.GenericBot = reporter.NewGenericBot(cfg.GenericBot, cfg.Username, hc)
	}

	coord := NewCoordinatorService(params, site.SiteURL())

	bus := eventbus.New()
	if params.Natty != nil {
		bus.Register(correlator.NewCorrelator(cat, params.Natty, dispatcher, st, cfg.Platform.IsMainSite))
	} else {
		slog.Info("review correlation disabled: natty is not configured")
	}
	bus.Register(correlator.NewFlagWatcher(correlator.WatcherParams{
		Catalog:   cat,
		Directory: coord,
		SelfFlags: dispatcher.SelfFlags(),
		Fanout:    dispatcher,
		Toggles:   st,
	}))

	return &Services{
		settings:    st,
		coordinator: coord,
		events:      NewNetworkEventService(producer, nil),
		bus:         bus,
	}
}

func (s *Services) Settings() *settings.Settings {
	return s.settings
}

func (s *Services) Coordinator() CoordinatorService {
	return s.coordinator
}

func (s *Services) NetworkEvents() NetworkEventService {
	return s.events
}

func (s *Services) Bus() *eventbus.Bus {
	return s.bus
}
