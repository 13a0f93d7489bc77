package service

import "github.com/contiapp/conti-server/internal/sse"

// EventEmitter publishes change notifications. *sse.Manager implements it.
type EventEmitter interface {
	Emit(event sse.Event)
}

type discardEmitter struct{}

func (discardEmitter) Emit(sse.Event) {}

func emitterOrDiscard(e EventEmitter) EventEmitter {
	if e == nil {
		return discardEmitter{}
	}
	return e
}
