// Package webhook ingests code-host webhooks. GitHub issue events
// become tasks in the configured team; everything else is acknowledged
// and dropped. Signature verification is optional and controlled by the
// shared secret.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/common/logger"
	"github.com/openclaw/openclaw/internal/control/models"
	"github.com/openclaw/openclaw/internal/control/service"
	"github.com/openclaw/openclaw/internal/events"
)

// maxPayloadBytes caps webhook bodies; GitHub's own limit is 25 MB but
// issue payloads are far smaller.
const maxPayloadBytes = 1 << 20

// Handler ingests webhook deliveries.
type Handler struct {
	svc    *service.Service
	secret []byte
	teamID string
	logger *logger.Logger
}

// Options configures the intake. An empty Secret disables signature
// verification; an empty TeamID drops issue events after logging.
type Options struct {
	Service *service.Service
	Secret  string
	TeamID  string
	Logger  *logger.Logger
}

// New creates a webhook handler.
func New(opts Options) *Handler {
	var secret []byte
	if opts.Secret != "" {
		secret = []byte(opts.Secret)
	}
	return &Handler{
		svc:    opts.Service,
		secret: secret,
		teamID: opts.TeamID,
		logger: opts.Logger.WithFields(zap.String("component", "webhook")),
	}
}

// Register mounts the webhook routes.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/webhooks/github", h.handleGitHub)
}

// issuePayload is the slice of GitHub's issues event the intake reads.
type issuePayload struct {
	Action string `json:"action"`
	Issue  struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		Body    string `json:"body"`
		HTMLURL string `json:"html_url"`
		Labels  []struct {
			Name string `json:"name"`
		} `json:"labels"`
	} `json:"issue"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

func (h *Handler) handleGitHub(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	if len(h.secret) > 0 {
		if !h.verifySignature(body, c.GetHeader("X-Hub-Signature-256")) {
			h.logger.Warn("webhook signature mismatch",
				zap.String("delivery_id", c.GetHeader("X-GitHub-Delivery")))
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
	}

	eventType := c.GetHeader("X-GitHub-Event")
	if eventType != "issues" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": eventType})
		return
	}

	var payload issuePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	if payload.Action != "opened" && payload.Action != "labeled" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "action": payload.Action})
		return
	}

	deliveryID := c.GetHeader("X-GitHub-Delivery")
	if deliveryID == "" {
		deliveryID = uuid.New().String()
	}
	streamID := events.WebhookStream(deliveryID)

	ctx := c.Request.Context()
	seen, err := h.svc.Repository().StreamExists(ctx, streamID)
	if err != nil {
		h.logger.Error("webhook dedup lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if seen {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate", "delivery_id": deliveryID})
		return
	}

	if h.teamID == "" {
		h.logger.Warn("webhook issue dropped, no intake team configured",
			zap.Int("issue_number", payload.Issue.Number))
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "no intake team"})
		return
	}

	task, err := h.svc.CreateTask(ctx, h.taskFromIssue(&payload, deliveryID))
	if err != nil {
		h.logger.Error("failed to create task from webhook",
			zap.Int("issue_number", payload.Issue.Number), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "task creation failed"})
		return
	}

	appendErr := h.svc.Repository().AppendEvent(ctx, &models.Event{
		StreamID: streamID,
		Type:     events.WebhookReceived,
		Data: map[string]interface{}{
			"action":       payload.Action,
			"issue_number": payload.Issue.Number,
			"repository":   payload.Repository.FullName,
			"task_id":      task.ID,
		},
	})
	if appendErr != nil {
		h.logger.Warn("failed to record webhook delivery",
			zap.String("delivery_id", deliveryID), zap.Error(appendErr))
	}

	h.logger.Info("task created from webhook",
		zap.Int64("task_id", task.ID),
		zap.Int("issue_number", payload.Issue.Number),
		zap.String("repository", payload.Repository.FullName))
	c.JSON(http.StatusCreated, gin.H{"status": "created", "task_id": task.ID})
}

func (h *Handler) taskFromIssue(payload *issuePayload, deliveryID string) *models.Task {
	title := strings.TrimSpace(payload.Issue.Title)
	if title == "" {
		title = fmt.Sprintf("Issue #%d", payload.Issue.Number)
	}

	description := payload.Issue.Body
	if payload.Issue.HTMLURL != "" {
		if description != "" {
			description += "\n\n"
		}
		description += payload.Issue.HTMLURL
	}

	tags := make([]string, 0, len(payload.Issue.Labels))
	for _, label := range payload.Issue.Labels {
		if label.Name != "" {
			tags = append(tags, label.Name)
		}
	}

	return &models.Task{
		TeamID:      h.teamID,
		Title:       title,
		Description: description,
		Tags:        tags,
		Metadata: map[string]interface{}{
			"source":       "github",
			"issue_number": payload.Issue.Number,
			"repository":   payload.Repository.FullName,
			"delivery_id":  deliveryID,
		},
	}
}

// verifySignature checks the sha256= prefixed HMAC GitHub sends.
func (h *Handler) verifySignature(body []byte, header string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	sent, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(sent, mac.Sum(nil))
}
