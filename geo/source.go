package geo

import "time"

// Sample is one position fix from whatever is providing location.
type Sample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Unsubscribe detaches a previously registered listener.
type Unsubscribe func()

// Source supplies a stream of position samples. The agent subscribes once
// per session; the returned handle must be safe to call more than once.
type Source interface {
	Subscribe(fn func(Sample)) Unsubscribe
}
