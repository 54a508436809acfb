package playback

import "github.com/project-dream/dreamaudio/internal/core/resolver"

// EventKind identifies a playback transition
type EventKind string

const (
	EventLoaded   EventKind = "loaded"
	EventPlaying  EventKind = "playing"
	EventPaused   EventKind = "paused"
	EventFinished EventKind = "finished"
	EventError    EventKind = "error"
)

// Event is delivered to observers on every transition. Position and Total
// are bytes; Total is -1 when the source did not report a length.
type Event struct {
	Kind     EventKind
	Song     resolver.Song
	Choice   resolver.Choice
	Position int64
	Total    int64
	Err      error
}

// Observer receives playback events. Calls are made from the player's
// goroutines, never while the player holds its lock.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }
