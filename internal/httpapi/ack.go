package httpapi

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bulletops/bullet/internal/model"
	"github.com/bulletops/bullet/internal/telemetry"
)

const ackFormatDefault = "redirect"

// handleAck acknowledges a ticket via its callback link. Tokens grant
// exactly one capability: acknowledging the ticket they were minted for.
func (s *Server) handleAck(c *gin.Context) {
	ctx := c.Request.Context()
	log := telemetry.LogFromContext(ctx)

	ticketID := c.Param("id")
	token := c.Query("token")
	format := c.DefaultQuery("format", ackFormatDefault)

	id, err := uuid.Parse(ticketID)
	if err != nil {
		s.ackNotFound(c, format)
		return
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		s.ackNotFound(c, format)
		return
	}

	if subtle.ConstantTimeCompare([]byte(ticket.AckToken), []byte(token)) != 1 {
		if format == "json" {
			c.JSON(http.StatusForbidden, gin.H{"detail": "Invalid token"})
			return
		}
		c.Data(http.StatusForbidden, "text/html; charset=utf-8",
			[]byte("<html><body><h1>Invalid token</h1></body></html>"))
		return
	}

	// Repeated clicks on the same link stay positive.
	if ticket.Status == model.StatusAcknowledged {
		s.ackAlready(c, format, ticket, "already_acknowledged", "Already acknowledged")
		return
	}
	if ticket.Status == model.StatusResolved {
		s.ackAlready(c, format, ticket, "already_resolved", "Already resolved")
		return
	}

	now := time.Now().UTC()
	ticket.Status = model.StatusAcknowledged
	ticket.AcknowledgedAt = &now
	ticket.AcknowledgedBy = "link"
	ticket.AddEvent(model.EventAcknowledged, 0, "", nil, "通过回调链接确认")
	if err := s.tickets.Save(ctx, ticket); err != nil {
		log.WithField("ticket_id", ticket.ID.String()).
			WithField("error", err.Error()).
			Error("Failed to persist acknowledgement")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to acknowledge ticket"})
		return
	}
	log.WithField("ticket_id", ticket.ID.String()).Info("Ticket acknowledged via link")

	// Ack-back is best effort; the acknowledgement already succeeded.
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", fmt.Sprintf("%v", r)).Error("Ack notification panicked")
			}
		}()
		s.notifier.NotifyTicketAcknowledged(ctx, ticket, "链接确认")
	}()

	switch format {
	case "json":
		c.JSON(http.StatusOK, gin.H{"status": "acknowledged", "ticket_id": ticket.ID.String()})
	case "html":
		page := fmt.Sprintf(`<html>
<head><title>Acknowledged</title></head>
<body style="font-family: sans-serif; padding: 40px; text-align: center;">
  <h1 style="color: green;">&#10003; Ticket Acknowledged</h1>
  <p>Ticket ID: %s</p>
  <p>Time: %s</p>
</body>
</html>`, ticket.ID, now.Format("2006-01-02 15:04:05 UTC"))
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	default:
		c.Redirect(http.StatusFound, "/tickets/"+ticket.ID.String())
	}
}

func (s *Server) ackNotFound(c *gin.Context, format string) {
	if format == "json" {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Ticket not found"})
		return
	}
	c.Data(http.StatusNotFound, "text/html; charset=utf-8",
		[]byte("<html><body><h1>Ticket not found</h1></body></html>"))
}

func (s *Server) ackAlready(c *gin.Context, format string, ticket *model.Ticket, status, heading string) {
	switch format {
	case "json":
		c.JSON(http.StatusOK, gin.H{"status": status, "ticket_id": ticket.ID.String()})
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8",
			[]byte(fmt.Sprintf("<html><body><h1>%s</h1></body></html>", heading)))
	default:
		c.Redirect(http.StatusFound, "/tickets/"+ticket.ID.String())
	}
}
