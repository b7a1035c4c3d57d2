package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bulletops/bullet/internal/telemetry"
)

// handleWebhook receives an alert for /webhook/{namespace_slug}/{project_id}.
// The source query parameter selects the payload parser.
func (s *Server) handleWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := telemetry.LogFromContext(ctx)

	namespaceSlug := c.Param("namespace")
	projectID := c.Param("project")
	sourceName := c.DefaultQuery("source", "custom")

	namespace, err := s.namespaces.GetBySlug(ctx, namespaceSlug)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Namespace not found: " + namespaceSlug})
		return
	}

	id, err := uuid.Parse(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Project not found: " + projectID})
		return
	}
	project, err := s.projects.GetByID(ctx, id)
	if err != nil || project.NamespaceID != namespace.ID.String() {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Project not found: " + projectID})
		return
	}

	if !project.IsActive {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ignored",
			"message": "Project is disabled",
		})
		return
	}

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid JSON payload: " + err.Error()})
		return
	}

	log.WithField("namespace", namespaceSlug).
		WithField("project_id", projectID).
		WithField("source", sourceName).
		Info("Received webhook")

	result, err := s.intake.Process(ctx, project, sourceName, payload)
	if err != nil {
		log.WithField("error", err.Error()).Error("Webhook intake failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to process webhook"})
		return
	}
	c.JSON(http.StatusOK, result)
}
