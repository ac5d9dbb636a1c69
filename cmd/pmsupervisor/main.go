package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carlosprados/pmcontrol/internal/agent"
	"github.com/carlosprados/pmcontrol/internal/config"
	"github.com/carlosprados/pmcontrol/internal/control"
	"github.com/carlosprados/pmcontrol/internal/logging"
	sysrt "github.com/carlosprados/pmcontrol/internal/runtime"
	"github.com/carlosprados/pmcontrol/internal/version"
)

func main() {
	settingsPath := flag.String("settings", "", "Settings file (TOML)")
	basePath := flag.String("base", "", "Directory holding the cmpackagemanager binary")
	dataPath := flag.String("data", "", "Data directory for the state snapshot")
	configPath := flag.String("config", "", "Directory holding bs.json and cm_config.json")
	httpAddr := flag.String("http", "", "HTTP listen address for local API and metrics")
	console := flag.Bool("console", false, "Also log to stderr when logging to a file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pmsupervisor %s (%s)\n", version.Version, version.Commit)
		return
	}
	if err := run(*settingsPath, *basePath, *dataPath, *configPath, *httpAddr, *console); err != nil {
		fmt.Fprintln(os.Stderr, "pmsupervisor:", err)
		os.Exit(1)
	}
}

func run(settingsPath, basePath, dataPath, configPath, httpAddr string, console bool) error {
	config.LoadDotEnvFrom(config.DefaultDotEnvDirs()...)

	s, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	override(&s.BasePath, basePath)
	override(&s.DataPath, dataPath)
	override(&s.ConfigPath, configPath)
	override(&s.HTTPAddr, httpAddr)

	logs, err := logging.Setup(logging.Options{Level: s.LogLevel, File: s.LogFile, Console: console})
	if err != nil {
		return err
	}
	defer logs.Close()

	if lim, err := sysrt.ApplyRlimits(s.OpenFiles); err != nil {
		log.Warn().Err(err).Msg("could not apply rlimits")
	} else {
		log.Debug().Uint64("nofile", lim).Msg("rlimits applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostname, _ := os.Hostname()
	pub, err := agent.BuildPublisher(s.Events, "pmsupervisor-"+hostname)
	if err != nil {
		log.Warn().Err(err).Msg("event publishing disabled")
		pub = nil
	}

	a, err := agent.New(agent.Options{Settings: s, Publisher: pub})
	if err != nil {
		return err
	}

	if settingsPath != "" {
		err := config.Watch(ctx, settingsPath, func(ns config.Settings) {
			if err := a.Apply(ns); err != nil {
				log.Warn().Err(err).Msg("settings change rejected")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("settings will not be reloaded")
		}
	}

	srv := &http.Server{Addr: s.HTTPAddr, Handler: a.Router(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", s.HTTPAddr).Str("version", version.Version).Msg("pmsupervisor starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	if res := a.Start(); res != control.Success {
		log.Error().Stringer("result", res).Msg("agent did not start")
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, draining")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown error")
	}
	if err := a.Close(); err != nil {
		log.Error().Err(err).Msg("agent close error")
	}
	log.Info().Msg("bye")
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
