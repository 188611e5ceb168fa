// Package adherence implements the nightly adherence state machine.
//
// The machine is driven by two event sources: trigger deliveries from the
// wall-clock facility and user actions (confirm, skip). Every handler runs as a
// single transaction under one lock: load state, compute the next state and
// trigger triple, register the triple, persist. A cycle id ties each trigger
// and action to the night it belongs to, so duplicate or late deliveries are
// detected and ignored.
//
// Phases:
//
//	idle ──setup/reschedule──▶ scheduled ──sleep_start──▶ awaiting
//	                               ▲                         │
//	                               └── confirm / skip / grace_deadline
package adherence
