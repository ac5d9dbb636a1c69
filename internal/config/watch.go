package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const debounceDelay = 250 * time.Millisecond

// Watch reloads the settings file whenever it changes and passes the result
// to onChange. Invalid files are logged and skipped. The directory is watched
// rather than the file so editors that replace the file are handled.
func Watch(ctx context.Context, path string, onChange func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer w.Close()
		var (
			timer  *time.Timer
			reload = make(chan struct{}, 1)
		)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceDelay, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("path", abs).Msg("settings watcher error")
			case <-reload:
				s, err := Load(abs)
				if err != nil {
					log.Warn().Err(err).Str("path", abs).Msg("ignoring invalid settings")
					continue
				}
				log.Info().Str("path", abs).Msg("settings reloaded")
				onChange(s)
			}
		}
	}()
	return nil
}
