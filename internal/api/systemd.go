package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/lightnode/internal/api/models"
)

func (s *Server) registerSystemdRoutes() {
	if s.options.Service == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/service/status",
		Summary:     "Service Status",
		Description: "Get a systemd unit's state over D-Bus",
		Tags:        []string{"system"},
		Errors:      []int{500},
	}, func(ctx context.Context, input *models.ServiceStatusRequest) (*models.ServiceStatusResponse, error) {
		unit := input.Unit
		if unit == "" {
			unit = s.options.Unit
		}
		status, err := s.options.Service.Status(ctx, unit)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to get service status", err)
		}
		return &models.ServiceStatusResponse{
			Body: models.ServiceStatus{
				Unit:        status.Unit,
				LoadState:   status.LoadState,
				ActiveState: status.ActiveState,
				SubState:    status.SubState,
			},
		}, nil
	})
}
