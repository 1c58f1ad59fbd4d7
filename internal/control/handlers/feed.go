package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/events"
	"github.com/openclaw/openclaw/internal/events/bus"
)

var errFeedNotConfigured = fmt.Errorf("%w: event feed is not configured", models.ErrValidation)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const feedWriteTimeout = 10 * time.Second

// teamFeed upgrades the connection and relays every event published on
// the team's live feed subject until the client goes away.
func (h *Handlers) teamFeed(c *gin.Context) {
	teamID := c.Query("team_id")
	if teamID == "" {
		badRequest(c, "team_id is required")
		return
	}
	if h.bus == nil {
		respondError(c, h.logger, errFeedNotConfigured)
		return
	}
	if _, err := h.svc.GetTeam(c.Request.Context(), teamID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	conn, err := feedUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Buffered so a slow client cannot stall the bus handler; overflow
	// drops the event, the durable log still has it.
	feed := make(chan *bus.Event, 64)
	sub, err := h.bus.Subscribe(events.BuildTeamFeedSubject(teamID), func(ctx context.Context, event *bus.Event) error {
		select {
		case feed <- event:
		default:
			h.logger.Debug("dropping feed event for slow client",
				zap.String("team_id", teamID), zap.String("type", event.Type))
		}
		return nil
	})
	if err != nil {
		h.logger.Error("feed subscription failed", zap.String("team_id", teamID), zap.Error(err))
		return
	}
	defer func() { _ = sub.Unsubscribe() }()

	h.logger.Info("feed client connected", zap.String("team_id", teamID))

	// Reader only detects disconnects and services control frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.Debug("feed client disconnected", zap.String("team_id", teamID))
			return
		case event := <-feed:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Debug("feed write failed", zap.String("team_id", teamID), zap.Error(err))
				}
				return
			}
		}
	}
}
