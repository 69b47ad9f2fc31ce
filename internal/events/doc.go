// Package events provides lifecycle event types and the emitter/handler
// interfaces used to publish them.
//
// Services emit a LifecycleEvent after each state change (registration,
// verification, subscription, credit movements) without knowing which
// handlers will process it. The application always registers a LogHandler
// and adds a KafkaPublisher when brokers are configured. Handler failures
// are reported to the emitter's caller but never undo the state change.
package events
