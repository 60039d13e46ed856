package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/ports"
)

// reloadDebounce collapses the burst of events a single save produces.
const reloadDebounce = 250 * time.Millisecond

type reloader interface {
	Reload(ctx context.Context) error
}

// watchCorpus reloads index whenever the corpus file at path is written.
// A deleted file keeps the current corpus.
func watchCorpus(ctx context.Context, watcher ports.FileWatcher, path string, index reloader, debounce time.Duration) error {
	events, err := watcher.Watch(ctx, path)
	if err != nil {
		return err
	}

	go func() {
		var timer *time.Timer
		var fire <-chan time.Time
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Operation == ports.FileDeleted {
					log.Warn().Str("path", ev.Path).Msg("corpus file removed, keeping loaded corpus")
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if err := index.Reload(ctx); err != nil {
					log.Warn().Err(err).Msg("corpus reload failed")
				}
			}
		}
	}()

	log.Info().Str("path", path).Msg("watching corpus for changes")
	return nil
}
