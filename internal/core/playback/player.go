// Package playback runs a resolved song through a player state machine
// and reports each transition to observers.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/project-dream/dreamaudio/internal/core/resolver"
)

// State is the player's position in its lifecycle
type State string

const (
	StateIdle     State = "idle"
	StateLoaded   State = "loaded"
	StatePlaying  State = "playing"
	StatePaused   State = "paused"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

const chunkSize = 32 * 1024

// ErrInvalidTransition is returned when an action does not apply to the
// current state, e.g. Pause while nothing plays.
var ErrInvalidTransition = errors.New("invalid playback transition")

// Resolver picks the source for a song
type Resolver interface {
	Resolve(ctx context.Context, song resolver.Song) resolver.Choice
}

// Opener starts reading an audio URL
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Player plays one song at a time into sink
type Player struct {
	resolver Resolver
	opener   Opener
	sink     io.Writer

	mu        sync.Mutex
	state     State
	song      resolver.Song
	choice    resolver.Choice
	position  int64
	total     int64
	resume    chan struct{} // closed while playing
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	stopping  bool
	observers []Observer
}

// NewPlayer creates an idle player
func NewPlayer(r Resolver, o Opener, sink io.Writer) *Player {
	return &Player{
		resolver: r,
		opener:   o,
		sink:     sink,
		state:    StateIdle,
		total:    -1,
	}
}

// Subscribe registers an observer for all future events
func (p *Player) Subscribe(o Observer) {
	p.mu.Lock()
	p.observers = append(p.observers, o)
	p.mu.Unlock()
}

// State returns the current state
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Load stops whatever is playing and resolves song. Resolution never
// fails; the returned choice may be a fallback track.
func (p *Player) Load(ctx context.Context, song resolver.Song) resolver.Choice {
	p.Stop()

	choice := p.resolver.Resolve(ctx, song)

	p.mu.Lock()
	p.state = StateLoaded
	p.song = song
	p.choice = choice
	p.position = 0
	p.total = -1
	p.err = nil
	p.mu.Unlock()

	p.emit(EventLoaded, nil)
	return choice
}

// Play starts a loaded song or resumes a paused one. Playback continues
// in the background until the source ends, fails, or ctx is cancelled.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StatePaused:
		p.state = StatePlaying
		close(p.resume)
		p.mu.Unlock()
		p.emit(EventPlaying, nil)
		return nil
	case StateLoaded:
	default:
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: play from %s", ErrInvalidTransition, state)
	}
	url := p.choice.URL
	p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	body, total, err := p.opener.Open(runCtx, url)
	if err != nil {
		cancel()
		p.fail(err)
		return err
	}

	resume := make(chan struct{})
	close(resume)
	done := make(chan struct{})

	p.mu.Lock()
	p.state = StatePlaying
	p.total = total
	p.resume = resume
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.emit(EventPlaying, nil)
	go p.run(runCtx, body, done)
	return nil
}

// Pause holds playback at the current position
func (p *Player) Pause() error {
	p.mu.Lock()
	if p.state != StatePlaying {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, state)
	}
	p.state = StatePaused
	p.resume = make(chan struct{})
	p.mu.Unlock()

	p.emit(EventPaused, nil)
	return nil
}

// Stop abandons the current song and returns to idle. No event is sent.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.stopping = cancel != nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	p.mu.Lock()
	p.state = StateIdle
	p.stopping = false
	p.mu.Unlock()
}

// Wait blocks until the current playback ends and returns its error, nil
// when the song finished or was stopped. A cancelled Play context is
// reported as its ctx error.
func (p *Player) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Player) run(ctx context.Context, body io.ReadCloser, done chan struct{}) {
	defer close(done)
	defer body.Close()
	// unblocks a Read that does not watch ctx itself
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	buf := make([]byte, chunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			// a chunk read before Pause is held until resume
			if err := p.waitWhilePaused(ctx); err != nil {
				p.interrupted(err)
				return
			}
			if _, err := p.sink.Write(buf[:n]); err != nil {
				p.fail(fmt.Errorf("failed to write audio: %w", err))
				return
			}
			p.mu.Lock()
			p.position += int64(n)
			p.mu.Unlock()
		}
		if readErr == io.EOF {
			p.finish()
			return
		}
		if readErr != nil {
			if err := ctx.Err(); err != nil {
				p.interrupted(err)
				return
			}
			p.fail(readErr)
			return
		}
	}
}

func (p *Player) waitWhilePaused(ctx context.Context) error {
	p.mu.Lock()
	resume := p.resume
	p.mu.Unlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) finish() {
	p.mu.Lock()
	p.state = StateFinished
	p.mu.Unlock()
	p.emit(EventFinished, nil)
}

func (p *Player) fail(err error) {
	p.mu.Lock()
	p.state = StateFailed
	p.err = err
	p.mu.Unlock()
	p.emit(EventError, err)
}

// interrupted ends a run whose context was cancelled. Stop resets the
// player itself; any other cancellation fails the song with the ctx error.
func (p *Player) interrupted(err error) {
	p.mu.Lock()
	stopping := p.stopping
	p.mu.Unlock()
	if stopping {
		return
	}
	p.fail(err)
}

func (p *Player) emit(kind EventKind, err error) {
	p.mu.Lock()
	e := Event{
		Kind:     kind,
		Song:     p.song,
		Choice:   p.choice,
		Position: p.position,
		Total:    p.total,
		Err:      err,
	}
	observers := append([]Observer(nil), p.observers...)
	p.mu.Unlock()

	for _, o := range observers {
		o.OnEvent(e)
	}
}
