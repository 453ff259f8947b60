package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterScheduleRoutes registers schedule listing and rebuild endpoints.
func RegisterScheduleRoutes(r *gin.Engine, sched ScheduleService) {
	g := r.Group("/api/schedule")
	g.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"entries": sched.Entries()})
	})
	g.POST("/rebuild", func(c *gin.Context) {
		rejected, err := sched.Rebuild(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		msgs := make([]string, 0, len(rejected))
		for _, e := range rejected {
			msgs = append(msgs, e.Error())
		}
		c.JSON(http.StatusOK, gin.H{"entries": sched.Entries(), "rejected": msgs})
	})
}
