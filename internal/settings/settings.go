package settings

import (
	"context"
	"log/slog"
	"time"
)

const (
	KeyEnabledFlags      = "Configuration.EnabledFlags"
	KeyDefaultNoComment  = "Configuration.DefaultNoComment"
	KeyDefaultNoFlag     = "Configuration.DefaultNoFlag"
	KeyWatchFlags        = "Configuration.WatchFlags"
	KeyWatchQueues       = "Configuration.WatchQueues"
	KeyLinkDisabled      = "Configuration.LinkDisabled"
	KeyMetaSmokeDisabled = "MetaSmoke.Disabled"
	KeyMetaSmokeUserKey  = "MetaSmoke.UserKey"
)

// ReporterDisabledKey is the per-service disablement flag.
func ReporterDisabledKey(name string) string {
	return "Reporter." + name + ".Disabled"
}

// Settings is the typed read side of the store. The core only reads; writes
// come from the admin endpoints.
type Settings struct {
	store          Store
	defaultEnabled []int
}

func New(store Store, defaultEnabled []int) *Settings {
	return &Settings{store: store, defaultEnabled: defaultEnabled}
}

func (s *Settings) Store() Store {
	return s.store
}

// EnabledFlags returns the enabled flag type ids. Without a stored value every
// catalog type is enabled; the default is not written back.
func (s *Settings) EnabledFlags(ctx context.Context) map[int]bool {
	ids := s.defaultEnabled
	var stored []int
	ok, err := s.store.Get(ctx, KeyEnabledFlags, &stored)
	if err != nil {
		slog.WarnContext(ctx, "failed to read enabled flags, using defaults", "error", err)
	} else if ok {
		ids = stored
	}

	enabled := make(map[int]bool, len(ids))
	for _, id := range ids {
		enabled[id] = true
	}
	return enabled
}

// Bool reads a boolean flag. Missing or unreadable values are false.
func (s *Settings) Bool(ctx context.Context, key string) bool {
	var v bool
	if _, err := s.store.Get(ctx, key, &v); err != nil {
		slog.WarnContext(ctx, "failed to read setting", "key", key, "error", err)
		return false
	}
	return v
}

func (s *Settings) String(ctx context.Context, key string) string {
	var v string
	if _, err := s.store.Get(ctx, key, &v); err != nil {
		slog.WarnContext(ctx, "failed to read setting", "key", key, "error", err)
		return ""
	}
	return v
}

func (s *Settings) ReporterDisabled(ctx context.Context, name string) bool {
	return s.Bool(ctx, ReporterDisabledKey(name))
}

func (s *Settings) MetaSmokeToken(ctx context.Context) string {
	if s.Bool(ctx, KeyMetaSmokeDisabled) {
		return ""
	}
	return s.String(ctx, KeyMetaSmokeUserKey)
}

// Put writes a value on behalf of an admin request.
func (s *Settings) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	return s.store.Set(ctx, key, value, ttl)
}
