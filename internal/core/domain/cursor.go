package domain

import "time"

// Cursor is the persisted scan position: the last block fully processed.
type Cursor struct {
	Name        string
	BlockNumber uint64
	UpdatedAt   time.Time
}

// SchedulerState is the phase of the time-window state machine.
type SchedulerState string

const (
	StateWaiting  SchedulerState = "waiting_for_window_start"
	StateActive   SchedulerState = "active"
	StateFinished SchedulerState = "finished"
)
