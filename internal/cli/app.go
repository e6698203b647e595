// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wires configuration into a running client.

package cli

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/jeranaias/morpheus-tui/internal/audio"
	"github.com/jeranaias/morpheus-tui/internal/auth"
	"github.com/jeranaias/morpheus-tui/internal/config"
	"github.com/jeranaias/morpheus-tui/internal/coordinator"
	"github.com/jeranaias/morpheus-tui/internal/directory"
	"github.com/jeranaias/morpheus-tui/internal/logging"
	"github.com/jeranaias/morpheus-tui/internal/session"
	"github.com/jeranaias/morpheus-tui/internal/storage"
	"github.com/jeranaias/morpheus-tui/internal/stream"
)

// App holds every long-lived collaborator of one CLI invocation.
type App struct {
	Config      *config.Config
	Log         zerolog.Logger
	Tokens      auth.TokenSource
	Stream      *stream.Client
	Directory   *directory.Directory
	Audio       *audio.Client
	State       session.Store
	Coordinator *coordinator.Coordinator

	kv        *storage.KV
	logCloser io.Closer
}

// NewApp builds the client stack from cfg. Logs go to the configured file,
// or to stderr when no file is set and the caller is not full-screen.
func NewApp(cfg *config.Config, fullScreen bool) (*App, error) {
	a := &App{Config: cfg}

	if err := a.openLog(fullScreen); err != nil {
		return nil, err
	}

	a.Tokens = auth.Checked{Source: auth.NewEnvFile(cfg.Auth.TokenFile)}

	a.Stream = stream.NewClientWithConfig(&stream.ClientConfig{
		BaseURL:        cfg.Server.BaseURL,
		Path:           cfg.Server.StreamPath,
		ConnectTimeout: cfg.ConnectTimeout(),
		Logger:         logging.Component(a.Log, "stream"),
	})

	dir, err := directory.New(
		directory.NewClient(cfg.Server.BaseURL, cfg.RequestTimeout(), a.Tokens.Token),
		cfg.Directory.CacheSize,
		logging.Component(a.Log, "directory"),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Directory = dir

	kv, err := storage.OpenKV(cfg.Storage.StatePath)
	if err != nil {
		a.Close()
		return nil, &configError{err: err}
	}
	a.kv = kv
	a.State = session.NewKVStore(kv)

	opts := coordinator.Options{
		Streamer:  a.Stream,
		Directory: a.Directory,
		Tokens:    a.Tokens,
		State:     a.State,
		Classifier: audio.NewClassifier(
			cfg.Audio.Role,
			cfg.Audio.KeywordFallback,
			cfg.Audio.MinWords,
		),
		RefreshTimeout: cfg.RequestTimeout(),
		Logger:         a.Log,
	}
	if cfg.Audio.Enabled {
		a.Audio = audio.NewClient(cfg.Server.BaseURL, cfg.RequestTimeout())
		opts.Audio = a.Audio
		opts.AutoAudio = cfg.Audio.AutoGenerate
	}

	coord, err := coordinator.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Coordinator = coord

	a.Log.Debug().
		Str("base_url", cfg.Server.BaseURL).
		Str("state", kv.Path()).
		Bool("audio", cfg.Audio.Enabled).
		Msg("client ready")
	return a, nil
}

func (a *App) openLog(fullScreen bool) error {
	cfg := a.Config.Log
	if cfg.File != "" {
		log, closer, err := logging.OpenFile(cfg.File, cfg.Level, cfg.Format)
		if err != nil {
			return &configError{err: err}
		}
		a.Log, a.logCloser = log, closer
		return nil
	}
	if fullScreen {
		a.Log = zerolog.Nop()
		return nil
	}
	a.Log = logging.New(cfg.Level, cfg.Format, os.Stderr)
	return nil
}

// AudioURL returns where narration id can be fetched, or the id itself
// when audio is disabled.
func (a *App) AudioURL(id string) string {
	if a.Audio == nil {
		return id
	}
	return a.Audio.URL(id)
}

// Close stops the coordinator and releases files. It is safe to call on a
// partially built App.
func (a *App) Close() error {
	if a.Coordinator != nil {
		a.Coordinator.Close()
	}
	var err error
	if a.kv != nil {
		err = a.kv.Close()
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
	return err
}
