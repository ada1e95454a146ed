package domain

import "time"

// CheckType identifies which inventory kind a check covered.
type CheckType string

const (
	CheckServer CheckType = "server"
	CheckDomain CheckType = "domain"
)

// CheckTrigger records whether a run came from the scheduler or a user.
type CheckTrigger string

const (
	TriggerAuto   CheckTrigger = "auto"
	TriggerManual CheckTrigger = "manual"
)

// CheckLogItem names one entity that failed or is expiring.
type CheckLogItem struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Error         string      `json:"error,omitempty"`
	State         DomainState `json:"state,omitempty"`
	DaysRemaining *int        `json:"daysRemaining,omitempty"`
}

// CheckLogEntry summarises one check run. Entries are immutable apart from
// NotificationSent.
type CheckLogEntry struct {
	ID               string         `json:"id"`
	Timestamp        time.Time      `json:"timestamp"`
	Type             CheckType      `json:"type"`
	Trigger          CheckTrigger   `json:"trigger"`
	Total            int            `json:"total"`
	Success          int            `json:"success"`
	Failed           int            `json:"failed"`
	DurationMs       int64          `json:"duration"`
	FailedItems      []CheckLogItem `json:"failedItems,omitempty"`
	ExpiringItems    []CheckLogItem `json:"expiringItems,omitempty"`
	Errors           []string       `json:"errors,omitempty"`
	NotificationSent bool           `json:"notificationSent"`
}
