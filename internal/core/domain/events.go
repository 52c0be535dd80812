package domain

// Realtime event names pushed to a user's connected clients.
const (
	EventSubmissionCreated = "submission:created"
	EventSubmissionUpdated = "submission:updated"
	EventEarningsUpdated   = "earnings:updated"
	EventWithdrawalUpdated = "withdrawal:updated"
)
