package domain

import "time"

// TaskID identifies a campaign task.
type TaskID int

const (
	TaskStake   TaskID = 1
	TaskSwap    TaskID = 2
	TaskDeposit TaskID = 3
)

// TaskFor maps an event kind to the task it completes.
func TaskFor(kind EventKind) TaskID {
	switch kind {
	case EventKindStake:
		return TaskStake
	case EventKindSwap:
		return TaskSwap
	case EventKindDeposit:
		return TaskDeposit
	default:
		return 0
	}
}

// CreditRecord marks that a user has completed a task. The pair
// (UserAddress, TaskID) is unique.
type CreditRecord struct {
	UserAddress string    `json:"user_addr"  db:"user_addr"  bson:"user_addr"`
	TaskID      TaskID    `json:"task_id"    db:"task_id"    bson:"task_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at" bson:"created_at"`
}

// InsertResult is the outcome of a ledger insert.
type InsertResult int

const (
	Inserted InsertResult = iota + 1
	AlreadyExisted
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExisted:
		return "already_existed"
	default:
		return "unknown"
	}
}

// NotificationPayload is one entry forwarded downstream per new credit.
type NotificationPayload struct {
	TaskID    TaskID `json:"taskId"`
	Timestamp int64  `json:"timestamp"`
	Address   string `json:"address"`
}
