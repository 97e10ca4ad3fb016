package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/led"
	"github.com/smazurov/lightnode/internal/nats"
)

func (s *Server) registerLEDRoutes() {
	if s.options.Publisher == nil {
		s.logger.Debug("No NATS publisher, skipping command routes")
	} else {
		huma.Register(s.api, huma.Operation{
			OperationID: "set-led",
			Method:      http.MethodPost,
			Path:        "/api/led",
			Summary:     "Start Effect",
			Description: "Publish a light command. It replaces whatever effect is running.",
			Tags:        []string{"led"},
			Errors:      []int{422, 503},
		}, func(ctx context.Context, input *models.LEDRequest) (*models.PublishResponse, error) {
			return s.publishLight(ctx, input.Body.Message())
		})

		huma.Register(s.api, huma.Operation{
			OperationID: "led-off",
			Method:      http.MethodPost,
			Path:        "/api/led/off",
			Summary:     "Lights Off",
			Description: "Publish a command that stops the current effect and turns the LED off",
			Tags:        []string{"led"},
			Errors:      []int{503},
		}, func(ctx context.Context, input *struct{}) (*models.PublishResponse, error) {
			m := nats.DefaultLight()
			m.Pattern = nats.PatternOff
			return s.publishLight(ctx, m)
		})
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/led/capabilities",
		Summary:     "LED Capabilities",
		Description: "Get the pins, polarity, driver and patterns of this node",
		Tags:        []string{"led"},
	}, func(ctx context.Context, input *struct{}) (*models.CapabilitiesResponse, error) {
		caps := s.options.Capabilities
		caps.Patterns = append(led.Patterns(), nats.PatternOff)
		return &models.CapabilitiesResponse{Body: caps}, nil
	})
}

func (s *Server) publishLight(ctx context.Context, m nats.LightMessage) (*models.PublishResponse, error) {
	if err := s.options.Publisher.PublishLight(ctx, m); err != nil {
		s.logger.Warn("Failed to publish light command", "error", err)
		return nil, huma.Error503ServiceUnavailable("Failed to publish light command", err)
	}
	return &models.PublishResponse{
		Body: models.PublishResult{Subject: s.options.Publisher.Subjects().Light, Payload: m},
	}, nil
}
