package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"helixdesk/internal/model"
)

type AdminService struct {
	tickets TicketStore
	users   UserStore
	now     Clock
}

func NewAdminService(tickets TicketStore, users UserStore) *AdminService {
	return &AdminService{tickets: tickets, users: users, now: time.Now}
}

// Stats reports ticket analytics. Aggregates with no underlying data stay
// null in the response.
func (s *AdminService) Stats(ctx context.Context) (model.AdminStats, error) {
	stats, err := s.tickets.Stats(ctx, s.now().UTC())
	if err != nil {
		return model.AdminStats{}, err
	}

	agents, err := s.users.CountByRole(ctx, model.RoleAgent)
	if err != nil {
		return model.AdminStats{}, err
	}

	out := model.AdminStats{
		TicketVolume: stats.Volume,
		ActiveAgents: agents,
		Departments:  stats.Departments,
	}
	if out.Departments == nil {
		out.Departments = []model.DepartmentLoad{}
	}
	if stats.AvgResolutionSeconds != nil {
		formatted := formatResolution(*stats.AvgResolutionSeconds)
		out.AvgResolution = &formatted
	}
	if stats.SLACompliance != nil {
		rounded := math.Round(*stats.SLACompliance*10) / 10
		out.SLACompliance = &rounded
	}

	return out, nil
}

// formatResolution renders seconds as "Xh Ym", truncating partial minutes.
func formatResolution(seconds float64) string {
	total := int64(seconds)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%dh %dm", total/3600, (total%3600)/60)
}
