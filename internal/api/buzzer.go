package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/lightnode/internal/api/models"
)

func (s *Server) registerBuzzerRoutes() {
	if s.options.Publisher == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "beep",
		Method:      http.MethodPost,
		Path:        "/api/buzzer",
		Summary:     "Beep",
		Description: "Publish a tone command",
		Tags:        []string{"buzzer"},
		Errors:      []int{422, 503},
	}, func(ctx context.Context, input *models.ToneRequest) (*models.PublishResponse, error) {
		m := input.Body.Message()
		if err := s.options.Publisher.PublishTone(ctx, m); err != nil {
			s.logger.Warn("Failed to publish tone command", "error", err)
			return nil, huma.Error503ServiceUnavailable("Failed to publish tone command", err)
		}
		return &models.PublishResponse{
			Body: models.PublishResult{Subject: s.options.Publisher.Subjects().Buzzer, Payload: m},
		}, nil
	})
}
