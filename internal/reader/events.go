package reader

// EventType identifies reader notifications.
type EventType int

const (
	EventStarted  EventType = iota // *Session being extracted
	EventProgress                  // float64 in [0,1], advisory
	EventFinished                  // *Session now visible
	EventFailed                    // error; the previous session stays visible
)

func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventProgress:
		return "progress"
	case EventFinished:
		return "finished"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventListener is called when an event occurs. Progress and completion
// events are delivered from the worker's supervisor goroutine, so a listener
// must not call Reload, Cancel or Close synchronously.
type EventListener func(data interface{})

// On registers an event listener for the specified event type.
func (r *Reader) On(event EventType, listener EventListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[event] = append(r.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (r *Reader) Emit(event EventType, data interface{}) {
	r.mu.RLock()
	listeners := r.listeners[event]
	r.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}
