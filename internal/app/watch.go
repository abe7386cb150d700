package app

import (
	"context"

	"github.com/artemvlas/veretino-sub000/internal/fs"
	"github.com/artemvlas/veretino-sub000/internal/vt"
	"github.com/artemvlas/veretino-sub000/internal/watch"
)

// WatchOptions configure Watch.
type WatchOptions struct {
	OnEvent func(watch.Event)
}

// WatchResult is what Watch reports on exit.
type WatchResult struct {
	Numbers *vt.Numbers
	Changes int
}

// Watch loads dbPath and follows its working folder until ctx is done.
func (a *VeretinoApp) Watch(ctx context.Context, dbPath string, o WatchOptions) (*WatchResult, error) {
	if err := a.Open(ctx, dbPath); err != nil {
		return nil, err
	}
	meta, _ := a.session.Metadata()
	root := meta.WorkingDir()

	var ignore *fs.IgnoreMatcher
	if a.cfg.Filter.IgnoreFile {
		var err error
		if ignore, err = fs.LoadIgnoreFile(a.fs, root); err != nil {
			return nil, err
		}
	}

	res := &WatchResult{}
	w, err := watch.New(a.fs, root, a.session, watch.Options{
		Debounce: a.cfg.Watch.Debounce,
		Ignore:   ignore,
		Logger:   a.logger,
		Clock:    a.clock,
		OnEvent: func(ev watch.Event) {
			res.Changes++
			if o.OnEvent != nil {
				o.OnEvent(ev)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	if err := w.Run(ctx); err != nil {
		return nil, err
	}

	res.Numbers = a.session.Numbers()
	a.logger.Info("watch stopped", "db", meta.DbPath, "changes", res.Changes)
	return res, nil
}
