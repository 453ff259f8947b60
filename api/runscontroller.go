package api

import (
	"errors"
	"net/http"

	"newsdesk/orchestrator"
	"newsdesk/types"

	"github.com/gin-gonic/gin"
)

// RegisterRunRoutes registers run status and manual trigger endpoints.
func RegisterRunRoutes(r *gin.Engine, runs RunService, status StatusSource) {
	g := r.Group("/api")
	g.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, status.Status())
	})
	g.POST("/clients/:id/run", func(c *gin.Context) {
		handleRun(c, runs)
	})
}

// RunResponse is returned when a manual run is accepted
type RunResponse struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
	RunID    string `json:"run_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleRun starts a run and returns without waiting for it.
// 202 when started, 404 for an unknown client, 409 when a run is in flight.
func handleRun(c *gin.Context, runs RunService) {
	clientID := c.Param("id")
	runID, err := runs.RunClient(c.Request.Context(), clientID)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, RunResponse{Status: "started", ClientID: clientID, RunID: runID})
	case errors.Is(err, types.ErrUnknownClient):
		c.JSON(http.StatusNotFound, RunResponse{Status: "unknown_client", ClientID: clientID, Error: err.Error()})
	case errors.Is(err, orchestrator.ErrRunInFlight):
		c.JSON(http.StatusConflict, RunResponse{Status: "in_flight", ClientID: clientID, RunID: runID, Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, RunResponse{Status: "error", ClientID: clientID, Error: err.Error()})
	}
}
