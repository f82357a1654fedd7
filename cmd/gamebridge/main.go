// Copyright 2025-2026 Hexavox

package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/hexavox/gamebridge/pkg/authserver"
	"github.com/hexavox/gamebridge/pkg/bridge"
	"github.com/hexavox/gamebridge/pkg/config"
	"github.com/hexavox/gamebridge/pkg/discord"
	"github.com/hexavox/gamebridge/pkg/gameproto"
	"github.com/hexavox/gamebridge/pkg/gamews"
	"github.com/hexavox/gamebridge/pkg/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.LogLevel == "debug" {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	db, err := store.Open(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open the database")
	}
	defer db.Close()
	channels := store.NewChannels(db)
	accounts := store.NewAccounts(db, log)

	var analytics *bridge.Analytics
	if cfg.Analytics.Enabled {
		user, pass := "", ""
		if cfg.Analytics.Auth {
			user, pass = cfg.Analytics.Username, cfg.Analytics.Password
		}
		analytics = bridge.NewAnalytics(cfg.Analytics.URL, user, pass, log)
	}

	br := bridge.New(bridge.Options{
		GameUsername:      cfg.Game.Username,
		CommandPrefix:     cfg.Chat.CommandPrefix,
		MessageDelay:      cfg.Relay.MessageDelay(),
		GameMessageLimit:  cfg.Relay.GameMessageLimit,
		AvatarURLTemplate: cfg.Identity.AvatarURLTemplate,
		LinkHost:          cfg.Auth.DNSWildcard,
		Admins:            cfg.Chat.Admins,
	}, bridge.Deps{
		Channels:  channels,
		Accounts:  accounts,
		Lookup:    bridge.NewHTTPProfileLookup(cfg.Identity.LookupURL),
		Webhooks:  bridge.NewWebhookClient(log),
		Analytics: analytics,
		Log:       log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth := &authserver.Server{
		Addr:     net.JoinHostPort(cfg.Auth.BindAddr, strconv.Itoa(cfg.Auth.Port)),
		Accounts: accounts,
		Log:      log,
	}
	go func() {
		if err := auth.ListenAndServe(ctx); err != nil {
			log.Fatal().Err(err).Msg("Account link listener failed")
		}
	}()

	adapter, err := discord.New(cfg.Chat.Token, br, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create the chat session")
	}
	br.SetResponder(adapter)
	if err := adapter.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to the chat platform")
	}
	defer adapter.Close()

	lifecycle := bridge.NewLifecycle(
		br,
		&gamews.Connector{URL: cfg.Game.EventsURL, Token: cfg.Game.EventsToken, Log: log},
		&gameproto.Pinger{Host: cfg.Game.Host, Port: cfg.Game.Port},
		cfg.Relay.ProbeInterval(),
		cfg.Relay.GraceInterval(),
		log,
	)
	if err := lifecycle.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("Session loop failed")
	}
	log.Info().Msg("Shutting down")
}
