// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamplay/internal/fsm"
	xglog "github.com/ManuGH/streamplay/internal/log"
	"github.com/ManuGH/streamplay/internal/metrics"
)

// DefaultControlsHideDelay is the inactivity period after which controls
// hide while playing.
const DefaultControlsHideDelay = 3 * time.Second

// Config wires a Controller to its collaborators.
type Config struct {
	Session Session
	Media   MediaElement
	Host    Host     // optional; nil denies every fullscreen request
	Notify  Notifier // optional

	// OnFinished is invoked once per playback when the content ends.
	OnFinished func(contentID string)
	// OnChange receives a snapshot after every state mutation.
	OnChange func(State)

	Autoplay        bool
	InitialQuality  string  // "" means QualityAuto
	InitialSubtitle string  // "" means disabled
	StartAt         float64 // resume position in seconds
	Volume          *float64
	Muted           bool

	ControlsHideDelay time.Duration
	Clock             Clock
	Logger            *zerolog.Logger
}

// pendingSeek is the deferred "seek after ready" continuation. It only
// applies to the source generation it was captured for.
type pendingSeek struct {
	gen      Generation
	seconds  float64
	fraction float64
	// byFraction is set when the target was chosen before the duration was
	// known (seek during the initial load).
	byFraction bool
}

func (p pendingSeek) target(duration float64) float64 {
	t := p.seconds
	if p.byFraction {
		t = p.fraction * duration
	}
	if duration > 0 && t > duration {
		t = duration
	}
	if t < 0 {
		t = 0
	}
	return t
}

// Controller owns the state of one visible player. Instances share no
// timers or state.
type Controller struct {
	mu sync.Mutex

	session  Session
	media    MediaElement
	host     Host
	notifier Notifier
	onFinish func(string)
	onChange func(State)
	clock    Clock
	delay    time.Duration
	logger   zerolog.Logger

	phase *fsm.Machine[Phase, event]
	st    State

	// mediaPosition is the media clock position in seconds; st.PlayedSeconds
	// is what the scrubber displays and diverges from it while seeking.
	mediaPosition float64
	pending       *pendingSeek
	startAt       float64

	finishedNotified bool
	resumePlaying    bool // play intent at the moment of failure
	lastErr          *LoadError

	timer      Timer
	timerToken uint64

	closed  bool
	effects []func()
	dirty   bool

	// Delivery tickets are drawn under mu; effects and change callbacks
	// run strictly in ticket order.
	ticket     uint64
	deliverMu  sync.Mutex
	deliverCnd *sync.Cond
	served     uint64
}

// NewController validates the session and returns an Idle controller.
func NewController(cfg Config) (*Controller, error) {
	if err := validateSession(cfg.Session); err != nil {
		return nil, err
	}
	if cfg.Media == nil {
		return nil, fmt.Errorf("playback: media element is required")
	}

	quality := cfg.InitialQuality
	if quality == "" {
		quality = QualityAuto
	}
	if quality != QualityAuto {
		if _, ok := cfg.Session.quality(quality); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownQuality, quality)
		}
	}
	if cfg.InitialSubtitle != "" {
		if _, ok := cfg.Session.subtitle(cfg.InitialSubtitle); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSubtitle, cfg.InitialSubtitle)
		}
	}

	volume := 1.0
	if cfg.Volume != nil {
		if *cfg.Volume < 0 || *cfg.Volume > 1 || *cfg.Volume != *cfg.Volume {
			return nil, ErrInvalidVolume
		}
		volume = *cfg.Volume
	}

	c := &Controller{
		session:  cfg.Session,
		media:    cfg.Media,
		host:     cfg.Host,
		notifier: cfg.Notify,
		onFinish: cfg.OnFinished,
		onChange: cfg.OnChange,
		clock:    cfg.Clock,
		delay:    cfg.ControlsHideDelay,
		phase:    newPhaseMachine(),
		startAt:  cfg.StartAt,
	}
	c.deliverCnd = sync.NewCond(&c.deliverMu)
	if c.host == nil {
		c.host = noHost{}
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	if c.delay <= 0 {
		c.delay = DefaultControlsHideDelay
	}
	if cfg.Logger != nil {
		c.logger = cfg.Logger.With().Str(xglog.FieldContentID, cfg.Session.ContentID).Logger()
	} else {
		c.logger = xglog.WithComponent("playback").With().Str(xglog.FieldContentID, cfg.Session.ContentID).Logger()
	}

	c.st = State{
		ContentID:       cfg.Session.ContentID,
		Phase:           PhaseIdle,
		CurrentQuality:  quality,
		ActiveSubtitle:  cfg.InitialSubtitle,
		IsPlaying:       cfg.Autoplay,
		Volume:          volume,
		IsMuted:         cfg.Muted || volume == 0,
		ControlsVisible: true,
	}
	return c, nil
}

func validateSession(s Session) error {
	if s.ContentID == "" {
		return fmt.Errorf("%w: content id is required", ErrInvalidSession)
	}
	if len(s.QualityOptions) == 0 {
		return fmt.Errorf("%w: at least one quality option is required", ErrInvalidSession)
	}
	seen := make(map[string]struct{}, len(s.QualityOptions))
	for _, q := range s.QualityOptions {
		if q.Label == "" || q.SourceURL == "" {
			return fmt.Errorf("%w: quality option needs label and source", ErrInvalidSession)
		}
		if q.Label == QualityAuto {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidSession, QualityAuto)
		}
		if _, dup := seen[q.Label]; dup {
			return fmt.Errorf("%w: duplicate quality label %q", ErrInvalidSession, q.Label)
		}
		seen[q.Label] = struct{}{}
	}
	for _, t := range s.SubtitleTracks {
		if t.SourceURL == "" {
			return fmt.Errorf("%w: subtitle track needs a source", ErrInvalidSession)
		}
	}
	return nil
}

// Start resolves the source for the selected quality and moves Idle → Loading.
func (c *Controller) Start() error {
	return c.do(func() error {
		if c.closed {
			return ErrClosed
		}
		if c.st.Phase != PhaseIdle {
			return ErrAlreadyStarted
		}
		c.st.Generation++
		c.st.Source = c.session.sourceFor(c.st.CurrentQuality)
		if c.startAt > 0 {
			c.pending = &pendingSeek{gen: c.st.Generation, seconds: c.startAt}
			c.mediaPosition = c.startAt
			c.st.PlayedSeconds = c.startAt
		}
		if err := c.fireLocked(evResolve); err != nil {
			return err
		}

		gen, src := c.st.Generation, c.st.Source
		vol, muted, sub := c.st.Volume, c.st.IsMuted, c.st.ActiveSubtitle
		c.effect(func() {
			c.media.SetVolume(vol, muted)
			if sub != "" {
				c.media.SetSubtitle(sub)
			}
			c.media.Load(src, gen)
		})
		c.logger.Info().
			Str(xglog.FieldEvent, "playback.started").
			Str(xglog.FieldQuality, c.st.CurrentQuality).
			Uint64(xglog.FieldGeneration, uint64(gen)).
			Float64(xglog.FieldPosition, c.startAt).
			Msg("playback source resolved")
		return nil
	})
}

// State returns a snapshot of the player.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// Session returns the resources the controller was created with.
func (c *Controller) Session() Session {
	return c.session
}

// ResumePosition is the position a later session should continue from:
// the pending re-seek target while a source is loading, the media clock
// otherwise.
func (c *Controller) ResumePosition() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return c.pending.target(c.st.DurationSeconds)
	}
	return c.mediaPosition
}

// Close detaches the controller (viewer navigated away). In-flight
// continuations are invalidated and later signals are ignored.
func (c *Controller) Close() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.st
	}
	c.closed = true
	c.st.Generation++
	c.st.Revision++
	c.pending = nil
	c.stopTimerLocked()
	c.logger.Debug().
		Str(xglog.FieldEvent, "playback.closed").
		Uint64(xglog.FieldGeneration, uint64(c.st.Generation)).
		Msg("playback controller closed")
	return c.st
}

// do runs fn under the lock, then executes collected effects and the change
// callback outside of it so collaborators may read the controller. Deliveries
// of concurrent calls keep the order in which their mutations were applied.
// Collaborators must not issue commands from inside a delivery.
func (c *Controller) do(fn func() error) error {
	c.mu.Lock()
	err := fn()
	fx := c.effects
	c.effects = nil
	changed := c.dirty
	c.dirty = false
	if changed {
		c.st.Revision++
	}
	snap := c.st
	notify := changed && c.onChange != nil
	if len(fx) == 0 && !notify {
		c.mu.Unlock()
		return err
	}
	ticket := c.ticket
	c.ticket++
	c.mu.Unlock()

	c.awaitTurn(ticket)
	defer c.endTurn()
	for _, f := range fx {
		f()
	}
	if notify {
		c.onChange(snap)
	}
	return err
}

func (c *Controller) awaitTurn(ticket uint64) {
	c.deliverMu.Lock()
	for c.served != ticket {
		c.deliverCnd.Wait()
	}
	c.deliverMu.Unlock()
}

func (c *Controller) endTurn() {
	c.deliverMu.Lock()
	c.served++
	c.deliverCnd.Broadcast()
	c.deliverMu.Unlock()
}

func (c *Controller) effect(f func()) {
	c.effects = append(c.effects, f)
}

func (c *Controller) touch() {
	c.dirty = true
}

func (c *Controller) fireLocked(ev event) error {
	from := c.st.Phase
	to, err := c.phase.Fire(ev)
	if err != nil {
		c.logger.Error().Err(err).
			Str(xglog.FieldEvent, "playback.invalid_transition").
			Str(xglog.FieldPhase, string(from)).
			Msg("rejected phase transition")
		return err
	}
	c.st.Phase = to
	c.touch()
	metrics.IncTransition(string(from), string(to))
	c.logger.Debug().
		Str(xglog.FieldEvent, "playback.transition").
		Str(xglog.FieldOldPhase, string(from)).
		Str(xglog.FieldNewPhase, string(to)).
		Str("trigger", string(ev)).
		Msg("phase transition")
	return nil
}

// staleLocked reports whether a media signal must be ignored because the
// controller is closed or the signal belongs to a superseded source.
func (c *Controller) staleLocked(gen Generation, signal string) bool {
	if c.closed {
		return true
	}
	if gen != 0 && gen != c.st.Generation {
		metrics.IncStaleSignal(signal)
		c.logger.Debug().
			Str(xglog.FieldEvent, "playback.stale_signal").
			Str("signal", signal).
			Uint64(xglog.FieldGeneration, uint64(gen)).
			Uint64("current_generation", uint64(c.st.Generation)).
			Msg("ignoring signal from superseded source")
		return true
	}
	return false
}
