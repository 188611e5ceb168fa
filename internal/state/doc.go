// Package state holds the durable ScheduleState aggregate and its stores.
//
// ScheduleState is the single source of truth for the bedtime migration plan.
// It is mutated only by the adherence state machine and the setup flow; the
// event scheduler and shift policy are stateless functions over it.
//
// Two Store implementations are provided:
//   - SQLiteStore persists the state as rows of a key/value table, one key per field.
//   - MemoryStore keeps a deep copy in memory and records calls for tests.
package state
