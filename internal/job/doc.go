// Package job runs deferred work in the background.
//
// A Job is persisted before it is scheduled, held in an in-memory delay
// queue until its RunAt instant, then handed to a fixed pool of workers.
// Jobs left pending or processing by a previous process are recovered on
// Start, and a periodic sweep re-queues anything the in-memory path lost.
// Delivery is at-least-once: handlers must tolerate running twice.
package job
