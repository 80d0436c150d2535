// Package events publishes task lifecycle notifications.
//
// Services emit an Event after a state change has been persisted. Handlers
// registered on the emitter observe them; a failing handler never undoes the
// change that produced the event.
package events
