package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/db"
)

// ConnectionResponse is the public shape of a connection. The encrypted
// blob never appears here.
type ConnectionResponse struct {
	ID          uuid.UUID       `json:"id"`
	WorkspaceID uuid.UUID       `json:"workspace_id"`
	Name        string          `json:"name"`
	Provider    string          `json:"provider"`
	IsActive    bool            `json:"is_active"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func connectionResponse(conn *db.WorkspaceConnection) ConnectionResponse {
	return ConnectionResponse{
		ID:          conn.ID,
		WorkspaceID: conn.WorkspaceID,
		Name:        conn.Name,
		Provider:    conn.Provider,
		IsActive:    conn.IsActive,
		Metadata:    conn.Metadata,
		CreatedAt:   conn.CreatedAt,
		UpdatedAt:   conn.UpdatedAt,
	}
}

// CreateConnectionRequest creates a third-party connection. Data is sealed
// under the workspace key before it reaches the store.
type CreateConnectionRequest struct {
	Name     string          `json:"name" validate:"required,min=1,max=200"`
	Provider string          `json:"provider" validate:"required,min=1,max=100"`
	Data     json.RawMessage `json:"data" validate:"required"`
	Metadata json.RawMessage `json:"metadata"`
}

// CreateConnection encrypts the credential payload and stores the
// connection.
func (s *Service) CreateConnection(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	var req CreateConnectionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermManageConnections); err != nil {
		return err
	}

	connectionID := uuid.New()
	sealed, err := s.Cipher.Seal(workspaceID, connectionID, req.Data)
	if err != nil {
		return err
	}

	conn, err := s.Store.CreateWorkspaceConnection(ctx, db.NewWorkspaceConnection{
		ID:            connectionID,
		WorkspaceID:   workspaceID,
		AccountID:     caller.AccountID,
		Name:          req.Name,
		Provider:      req.Provider,
		EncryptedData: sealed,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	if _, err := s.Emitter.EmitConnectionCreated(ctx, workspaceID, conn.ID, &triggeredBy, nil); err != nil {
		log.WithError(err).Warn("connection.created emission failed")
	}

	return c.JSON(http.StatusCreated, connectionResponse(conn))
}

// ListConnections returns a cursor page of a workspace's connections.
func (s *Service) ListConnections(c echo.Context) error {
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
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermReadConnections); err != nil {
		return err
	}

	page, err := s.Store.ListWorkspaceConnections(ctx, workspaceID, pagination)
	if err != nil {
		return err
	}

	items := make([]ConnectionResponse, len(page.Items))
	for i := range page.Items {
		items[i] = connectionResponse(&page.Items[i])
	}
	return c.JSON(http.StatusOK, pageResponse[ConnectionResponse]{
		Items:      items,
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
		Total:      page.Total,
	})
}

// GetConnection returns one connection without its encrypted payload.
func (s *Service) GetConnection(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	connectionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	conn, err := s.Store.FindWorkspaceConnectionByID(ctx, connectionID)
	if err != nil {
		return err
	}

	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, conn.WorkspaceID, auth.PermReadConnections); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, connectionResponse(conn))
}

// UpdateConnectionRequest updates a connection; a non-null data payload is
// re-encrypted in place.
type UpdateConnectionRequest struct {
	Name     *string         `json:"name" validate:"omitempty,min=1,max=200"`
	Data     json.RawMessage `json:"data"`
	IsActive *bool           `json:"is_active"`
	Metadata json.RawMessage `json:"metadata"`
}

// UpdateConnection applies the provided changes.
func (s *Service) UpdateConnection(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	connectionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateConnectionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	conn, err := s.Store.FindWorkspaceConnectionByID(ctx, connectionID)
	if err != nil {
		return err
	}

	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, conn.WorkspaceID, auth.PermManageConnections); err != nil {
		return err
	}

	updates := db.UpdateWorkspaceConnection{
		Name:     req.Name,
		IsActive: req.IsActive,
		Metadata: req.Metadata,
	}
	if len(req.Data) > 0 {
		sealed, err := s.Cipher.Seal(conn.WorkspaceID, conn.ID, req.Data)
		if err != nil {
			return err
		}
		updates.EncryptedData = sealed
	}

	updated, err := s.Store.UpdateWorkspaceConnection(ctx, connectionID, updates)
	if err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	if _, err := s.Emitter.EmitConnectionUpdated(ctx, conn.WorkspaceID, conn.ID, &triggeredBy, nil); err != nil {
		log.WithError(err).Warn("connection.updated emission failed")
	}

	return c.JSON(http.StatusOK, connectionResponse(updated))
}

// DeleteConnection soft-deletes a connection.
func (s *Service) DeleteConnection(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	connectionID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	conn, err := s.Store.FindWorkspaceConnectionByID(ctx, connectionID)
	if err != nil {
		return err
	}

	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, conn.WorkspaceID, auth.PermManageConnections); err != nil {
		return err
	}

	if err := s.Store.DeleteWorkspaceConnection(ctx, connectionID); err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	if _, err := s.Emitter.EmitConnectionDeleted(ctx, conn.WorkspaceID, conn.ID, &triggeredBy, nil); err != nil {
		log.WithError(err).Warn("connection.deleted emission failed")
	}

	return c.NoContent(http.StatusNoContent)
}
