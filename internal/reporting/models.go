package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DashboardStats summarises one user's agents and their call volume.
type DashboardStats struct {
	TotalAgents  int `json:"total_agents"`
	ActiveAgents int `json:"active_agents"`
	TotalCalls   int `json:"total_calls"`

	// TotalMinutes is the summed call duration in minutes, one decimal place.
	TotalMinutes float64 `json:"total_minutes"`

	// CallsThisWeek counts calls from the trailing seven days.
	CallsThisWeek int `json:"calls_this_week"`
}

// CallsSummaryRequest requests aggregated call metrics across a user's agents.
// AgentID narrows the summary to one of them.
type CallsSummaryRequest struct {
	UserID  string    `json:"user_id"`
	AgentID string    `json:"agent_id,omitempty"`
	Range   TimeRange `json:"range"`
}

type CallsSummary struct {
	UserID  string `json:"user_id"`
	AgentID string `json:"agent_id,omitempty"`

	TotalCalls      int `json:"total_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	MissedCalls     int `json:"missed_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// IdentifiedCallers counts calls where a caller name or email was collected.
	IdentifiedCallers int `json:"identified_callers"`
	TotalCostCents    int `json:"total_cost_cents"`
}
