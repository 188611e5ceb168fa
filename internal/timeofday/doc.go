// Package timeofday implements wraparound-safe arithmetic over daily HH:mm
// instants and resolves them to absolute times.
//
// Everything here is pure: functions that need the current instant take it as
// an argument so callers can drive them from a fake clock.
package timeofday
