package correlator

import (
	"context"
	"fmt"
	"log/slog"

	"basegraph.app/advflag/common/logger"
	"basegraph.app/advflag/internal/catalog"
	"basegraph.app/advflag/internal/eventbus"
	"basegraph.app/advflag/internal/model"
	"basegraph.app/advflag/internal/service/dispatch"
	"basegraph.app/advflag/internal/service/reporter"
	"basegraph.app/advflag/internal/settings"
)

// Directory is the set of posts the coordinator has discovered.
type Directory interface {
	Post(postID int64) (model.Post, bool)
	Reporters(ctx context.Context, post model.Post) []reporter.Reporter
	RecordFlag(postID int64, kind model.ReportKind)
}

// SelfFlagged reports whether this process flagged the post itself.
type SelfFlagged interface {
	Has(postID int64) bool
}

// FlagWatcher reconciles flags raised through the platform's own UI: the flag is
// recorded and the feedback services hear about it as if it had been raised here.
type FlagWatcher struct {
	catalog   *catalog.Catalog
	directory Directory
	selfFlags SelfFlagged
	fanout    Fanout
	toggles   Toggles
	notifier  dispatch.Notifier
}

type WatcherParams struct {
	Catalog   *catalog.Catalog
	Directory Directory
	SelfFlags SelfFlagged
	Fanout    Fanout
	Toggles   Toggles
	Notifier  dispatch.Notifier
}

func NewFlagWatcher(p WatcherParams) *FlagWatcher {
	if p.Notifier == nil {
		p.Notifier = dispatch.LogNotifier()
	}
	return &FlagWatcher{
		catalog:   p.Catalog,
		directory: p.Directory,
		selfFlags: p.SelfFlags,
		fanout:    p.Fanout,
		toggles:   p.Toggles,
		notifier:  p.Notifier,
	}
}

func (w *FlagWatcher) ID() string { return "flag-watcher" }

func (w *FlagWatcher) Handles() []eventbus.EventType {
	return []eventbus.EventType{eventbus.EventFlagSubmitted}
}

func (w *FlagWatcher) Handle(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(eventbus.FlagSubmitted)
	if !ok {
		return nil
	}
	if !w.toggles.Bool(ctx, settings.KeyWatchFlags) {
		return nil
	}
	if w.selfFlags.Has(e.PostID) {
		return nil
	}

	post, ok := w.directory.Post(e.PostID)
	if !ok {
		return nil
	}
	ft, ok := w.catalog.ByReportKind(e.ReportKind)
	if !ok {
		return nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		PostID:     logger.Ptr(e.PostID),
		FlagTypeID: logger.Ptr(ft.ID),
		EventKind:  logger.Ptr(string(e.Type())),
		Component:  "advflag.flag_watcher",
	})

	w.directory.RecordFlag(e.PostID, e.ReportKind)
	w.notifier.Notify(ctx, dispatch.Notice{Level: dispatch.LevelSuccess, Message: dispatch.FlaggedMessage(e.ReportKind)})

	msgs, err := w.fanout.Feedback(ctx, ft, w.directory.Reporters(ctx, post))
	if err != nil {
		return fmt.Errorf("feedback for observed flag: %w", err)
	}

	slog.InfoContext(ctx, "observed flag reconciled", "report_kind", e.ReportKind, "messages", len(msgs))
	return nil
}
