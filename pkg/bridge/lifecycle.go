// Copyright 2025-2026 Hexavox

package bridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Lifecycle owns the connect/monitor/reconnect loop for the game session.
// It probes reachability before every connection attempt so the bridge
// never hammers a server that is down.
type Lifecycle struct {
	bridge    *Bridge
	connector GameConnector
	probe     LivenessProbe

	probeInterval time.Duration
	graceInterval time.Duration

	disconnects chan error
	log         zerolog.Logger
}

func NewLifecycle(b *Bridge, connector GameConnector, probe LivenessProbe, probeInterval, graceInterval time.Duration, log zerolog.Logger) *Lifecycle {
	l := &Lifecycle{
		bridge:        b,
		connector:     connector,
		probe:         probe,
		probeInterval: probeInterval,
		graceInterval: graceInterval,
		disconnects:   make(chan error, 1),
		log:           log.With().Str("component", "lifecycle").Logger(),
	}
	b.setDisconnectFunc(l.notifyDisconnect)
	return l
}

func (l *Lifecycle) notifyDisconnect(err error) {
	select {
	case l.disconnects <- err:
	default:
	}
}

// Run drives the session loop until ctx is cancelled.
func (l *Lifecycle) Run(ctx context.Context) error {
	for {
		if err := l.waitReachable(ctx); err != nil {
			return err
		}
		session, err := l.connector.Connect(ctx, l.bridge)
		if err != nil {
			l.log.Error().Err(err).Msg("Failed to connect to the game server")
			if err := sleepCtx(ctx, l.graceInterval); err != nil {
				return err
			}
			continue
		}
		l.bridge.attachSession(session)
		l.log.Info().Msg("Connected to the game server")

		select {
		case <-ctx.Done():
			l.bridge.detachSession()
			session.Close()
			return ctx.Err()
		case err := <-l.disconnects:
			l.log.Warn().Err(err).Msg("Lost the game session, reconnecting")
			l.bridge.detachSession()
			session.Close()
		}
		if err := sleepCtx(ctx, l.graceInterval); err != nil {
			return err
		}
	}
}

// waitReachable blocks until a liveness probe succeeds.
func (l *Lifecycle) waitReachable(ctx context.Context) error {
	for {
		err := l.probe.Ping(ctx)
		if err == nil {
			return nil
		}
		l.log.Debug().Err(err).Msg("The game server appears to be offline")
		if err := sleepCtx(ctx, l.probeInterval); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
