// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamplay/internal/bus"
	xglog "github.com/ManuGH/streamplay/internal/log"
	"github.com/ManuGH/streamplay/internal/playback"
)

const publishTimeout = 2 * time.Second

// publisher serializes envelopes of one session onto its bus topic.
type publisher struct {
	id     string
	bus    bus.Bus
	seq    atomic.Uint64
	logger zerolog.Logger
}

func (p *publisher) publish(env Envelope) error {
	env.SessionID = p.id
	env.Seq = p.seq.Add(1)
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", env.Type, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.bus.Publish(ctx, Topic(p.id), raw); err != nil {
		p.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "session.publish_failed").
			Str("type", string(env.Type)).
			Msg("failed to publish envelope")
		return err
	}
	return nil
}

func (p *publisher) directive(d Directive) {
	_ = p.publish(Envelope{Type: EnvelopeDirective, Directive: &d})
}

// busMedia forwards media operations to the client as directives.
type busMedia struct{ p *publisher }

func (m busMedia) Load(src string, gen playback.Generation) {
	m.p.directive(Directive{Op: OpLoad, Source: src, Generation: gen})
}

func (m busMedia) Play()  { m.p.directive(Directive{Op: OpPlay}) }
func (m busMedia) Pause() { m.p.directive(Directive{Op: OpPause}) }

func (m busMedia) Seek(seconds float64, gen playback.Generation) {
	m.p.directive(Directive{Op: OpSeek, Generation: gen, Seconds: &seconds})
}

func (m busMedia) SetVolume(volume float64, muted bool) {
	m.p.directive(Directive{Op: OpSetVolume, Volume: &volume, Muted: &muted})
}

func (m busMedia) SetSubtitle(src string) {
	m.p.directive(Directive{Op: OpSetSubtitle, Source: src})
}

// busHost relays fullscreen requests. The client confirms with a
// fullscreen_change signal; a request that cannot be delivered counts as
// refused.
type busHost struct{ p *publisher }

func (h busHost) RequestFullscreen() error {
	return h.p.publish(Envelope{Type: EnvelopeDirective, Directive: &Directive{Op: OpRequestFullscreen}})
}

func (h busHost) ExitFullscreen() error {
	return h.p.publish(Envelope{Type: EnvelopeDirective, Directive: &Directive{Op: OpExitFullscreen}})
}

type busNotifier struct{ p *publisher }

func (n busNotifier) Notify(notice playback.Notice) {
	_ = n.p.publish(Envelope{Type: EnvelopeNotice, Notice: &notice})
}
