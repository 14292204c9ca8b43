package reporting

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"voice-agent-platform/internal/agents"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

const week = 7 * 24 * time.Hour

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, now: time.Now} }

// DashboardStats aggregates the user's agents and every call they received.
func (s *Service) DashboardStats(ctx context.Context, userID string) (DashboardStats, error) {
	if strings.TrimSpace(userID) == "" {
		return DashboardStats{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return DashboardStats{}, errors.New("reporting: repository not configured")
	}

	list, err := s.repo.ListAgents(ctx, userID)
	if err != nil {
		return DashboardStats{}, err
	}

	out := DashboardStats{TotalAgents: len(list)}
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
		if a.Status == agents.StatusActive {
			out.ActiveAgents++
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	totals, err := s.repo.CallTotals(ctx, ids, s.now().Add(-week))
	if err != nil {
		return DashboardStats{}, err
	}
	out.TotalCalls = totals.Calls
	out.CallsThisWeek = totals.CallsSince
	out.TotalMinutes = math.Round(float64(totals.DurationSecs)/60*10) / 10
	return out, nil
}

// CallsSummary breaks down calls in the range by status.
func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	list, err := s.repo.ListAgents(ctx, req.UserID)
	if err != nil {
		return CallsSummary{}, err
	}
	var ids []string
	for _, a := range list {
		if req.AgentID == "" || a.ID == req.AgentID {
			ids = append(ids, a.ID)
		}
	}
	if req.AgentID != "" && len(ids) == 0 {
		return CallsSummary{}, agents.ErrNotFound
	}

	out := CallsSummary{UserID: req.UserID, AgentID: req.AgentID}
	if len(ids) == 0 {
		return out, nil
	}

	stats, err := s.repo.CallStats(ctx, ids, req.Range)
	if err != nil {
		return CallsSummary{}, err
	}
	out.TotalCalls = stats.Calls
	out.CompletedCalls = stats.Completed
	out.FailedCalls = stats.Failed
	out.MissedCalls = stats.Missed
	out.InProgressCalls = stats.InProgress
	out.TotalDurationSeconds = stats.DurationSecs
	out.IdentifiedCallers = stats.Identified
	out.TotalCostCents = stats.CostCents
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}
