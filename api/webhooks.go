package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/db"
	"github.com/nvisycom/server/webhook"
)

// webhookSecretBytes is the entropy of a generated webhook secret.
const webhookSecretBytes = 32

// WebhookResponse is the public shape of a webhook. The secret only appears
// in CreateWebhookResponse, once.
type WebhookResponse struct {
	ID              uuid.UUID        `json:"id"`
	WorkspaceID     uuid.UUID        `json:"workspace_id"`
	URL             string           `json:"url"`
	Events          []string         `json:"events"`
	Status          db.WebhookStatus `json:"status"`
	LastTriggeredAt *time.Time       `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// CreateWebhookResponse carries the secret exactly once at creation.
type CreateWebhookResponse struct {
	WebhookResponse
	Secret string `json:"secret"`
}

func webhookResponse(hook *db.WorkspaceWebhook) WebhookResponse {
	return WebhookResponse{
		ID:              hook.ID,
		WorkspaceID:     hook.WorkspaceID,
		URL:             hook.URL,
		Events:          hook.Events,
		Status:          hook.Status,
		LastTriggeredAt: hook.LastTriggeredAt,
		CreatedAt:       hook.CreatedAt,
	}
}

// CreateWebhookRequest registers a webhook subscription.
type CreateWebhookRequest struct {
	URL     string            `json:"url" validate:"required,url"`
	Events  []string          `json:"events" validate:"required,min=1,dive,min=1"`
	Headers map[string]string `json:"headers"`
}

// CreateWebhook registers a subscription and returns the signing secret
// once.
func (s *Service) CreateWebhook(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	var req CreateWebhookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		return ErrBadRequest().WithMessage("Webhook URL must be a valid absolute URL")
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermManageWebhooks); err != nil {
		return err
	}

	secretBytes := make([]byte, webhookSecretBytes)
	if _, err := rand.Read(secretBytes); err != nil {
		return err
	}
	secret := hex.EncodeToString(secretBytes)

	var headers json.RawMessage
	if len(req.Headers) > 0 {
		headers, err = json.Marshal(req.Headers)
		if err != nil {
			return err
		}
	}

	hook, err := s.Store.CreateWorkspaceWebhook(ctx, db.NewWorkspaceWebhook{
		WorkspaceID: workspaceID,
		URL:         req.URL,
		Secret:      secret,
		Events:      req.Events,
		Headers:     headers,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, CreateWebhookResponse{
		WebhookResponse: webhookResponse(hook),
		Secret:          secret,
	})
}

// ListWebhooks returns a cursor page of a workspace's webhooks.
func (s *Service) ListWebhooks(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}
	pagination, err := cursorPagination(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermReadWebhooks); err != nil {
		return err
	}

	page, err := s.Store.ListWorkspaceWebhooks(ctx, workspaceID, pagination)
	if err != nil {
		return err
	}

	items := make([]WebhookResponse, len(page.Items))
	for i := range page.Items {
		items[i] = webhookResponse(&page.Items[i])
	}
	return c.JSON(http.StatusOK, pageResponse[WebhookResponse]{
		Items:      items,
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
		Total:      page.Total,
	})
}

// findAuthorizedWebhook loads a webhook and checks the given permission on
// its workspace.
func (s *Service) findAuthorizedWebhook(c echo.Context, permission auth.Permission) (*db.WorkspaceWebhook, error) {
	caller, err := principal(c)
	if err != nil {
		return nil, err
	}
	webhookID, err := pathUUID(c, "id")
	if err != nil {
		return nil, err
	}

	ctx := c.Request().Context()
	hook, err := s.Store.FindWorkspaceWebhookByID(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, hook.WorkspaceID, permission); err != nil {
		return nil, err
	}
	return hook, nil
}

// GetWebhook returns one webhook.
func (s *Service) GetWebhook(c echo.Context) error {
	hook, err := s.findAuthorizedWebhook(c, auth.PermReadWebhooks)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, webhookResponse(hook))
}

// UpdateWebhookRequest updates a webhook subscription.
type UpdateWebhookRequest struct {
	URL     *string           `json:"url" validate:"omitempty,url"`
	Events  []string          `json:"events" validate:"omitempty,min=1,dive,min=1"`
	Headers map[string]string `json:"headers"`
}

// UpdateWebhook applies subscription changes.
func (s *Service) UpdateWebhook(c echo.Context) error {
	hook, err := s.findAuthorizedWebhook(c, auth.PermManageWebhooks)
	if err != nil {
		return err
	}

	var req UpdateWebhookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	updates := db.UpdateWorkspaceWebhook{URL: req.URL, Events: req.Events}
	if req.Headers != nil {
		headers, err := json.Marshal(req.Headers)
		if err != nil {
			return err
		}
		updates.Headers = headers
	}

	updated, err := s.Store.UpdateWorkspaceWebhook(c.Request().Context(), hook.ID, updates)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, webhookResponse(updated))
}

// DeleteWebhook soft-deletes a webhook.
func (s *Service) DeleteWebhook(c echo.Context) error {
	hook, err := s.findAuthorizedWebhook(c, auth.PermManageWebhooks)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteWorkspaceWebhook(c.Request().Context(), hook.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// TestWebhook performs a synchronous signed test delivery and returns the
// subscriber's response status.
func (s *Service) TestWebhook(c echo.Context) error {
	hook, err := s.findAuthorizedWebhook(c, auth.PermManageWebhooks)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"event":        "webhook.test",
		"workspace_id": hook.WorkspaceID,
		"webhook_id":   hook.ID,
		"timestamp":    time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	status, err := webhook.TestDelivery(c.Request().Context(), hook, payload, s.Config.Webhook.DeliveryTimeout)
	if err != nil {
		return ErrServiceUnavailable().WithMessage("Test delivery failed").WithResource("webhook")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"delivered":       status >= 200 && status < 300,
		"response_status": status,
	})
}

// PauseWebhook pauses deliveries.
func (s *Service) PauseWebhook(c echo.Context) error {
	hook, err := s.findAuthorizedWebhook(c, auth.PermManageWebhooks)
	if err != nil {
		return err
	}
	updated, err := s.Store.SetWebhookStatus(c.Request().Context(), hook.ID, db.WebhookPaused)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, webhookResponse(updated))
}

// ResumeWebhook resumes deliveries.
func (s *Service) ResumeWebhook(c echo.Context) error {
	hook, err := s.findAuthorizedWebhook(c, auth.PermManageWebhooks)
	if err != nil {
		return err
	}
	updated, err := s.Store.SetWebhookStatus(c.Request().Context(), hook.ID, db.WebhookActive)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, webhookResponse(updated))
}
