package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/logging"
)

// registerLogRoutes registers the recent-logs endpoint.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Return the newest entries from the in-memory log buffer",
		Tags:        []string{"logs"},
	}, func(ctx context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		history := logging.GetHistory()
		entries := history.Recent(input.Limit)
		if entries == nil {
			entries = []logging.Entry{}
		}
		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Total: history.Count()},
		}, nil
	})
}
