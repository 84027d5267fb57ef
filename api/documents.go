package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/db"
)

// CreateDocumentRequest creates a document.
type CreateDocumentRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=1,max=255"`
}

// CreateDocument creates a document in a workspace.
func (s *Service) CreateDocument(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	var req CreateDocumentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermWriteFiles); err != nil {
		return err
	}

	document, err := s.Store.CreateDocument(ctx, db.NewDocument{
		WorkspaceID: workspaceID,
		AccountID:   caller.AccountID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	data, _ := json.Marshal(map[string]string{"display_name": document.DisplayName})
	if _, err := s.Emitter.EmitDocumentCreated(ctx, workspaceID, document.ID, &triggeredBy, data); err != nil {
		log.WithError(err).Warn("document.created emission failed")
	}

	return c.JSON(http.StatusCreated, document)
}

// ListDocuments returns a cursor page of a workspace's documents.
func (s *Service) ListDocuments(c echo.Context) error {
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
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermReadDocuments); err != nil {
		return err
	}

	page, err := s.Store.ListWorkspaceDocuments(ctx, workspaceID, pagination)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPageResponse(page))
}

// GetDocument returns one document.
func (s *Service) GetDocument(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	documentID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeDocument(ctx, s.Store, documentID, auth.PermReadDocuments); err != nil {
		return err
	}

	document, err := s.Store.FindDocumentByID(ctx, documentID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, document)
}

// RenameDocumentRequest renames a document.
type RenameDocumentRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=1,max=255"`
}

// RenameDocument updates the display name. Requires ownership, Editor+, or
// admin.
func (s *Service) RenameDocument(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	documentID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req RenameDocumentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeDocument(ctx, s.Store, documentID, auth.PermUpdateDocuments); err != nil {
		return err
	}

	document, err := s.Store.RenameDocument(ctx, documentID, req.DisplayName)
	if err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	data, _ := json.Marshal(map[string]string{"display_name": document.DisplayName})
	if _, err := s.Emitter.EmitDocumentUpdated(ctx, document.WorkspaceID, document.ID, &triggeredBy, data); err != nil {
		log.WithError(err).Warn("document.updated emission failed")
	}

	return c.JSON(http.StatusOK, document)
}

// DeleteDocument soft-deletes a document. Requires ownership, Editor+, or
// admin.
func (s *Service) DeleteDocument(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	documentID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeDocument(ctx, s.Store, documentID, auth.PermDeleteDocuments); err != nil {
		return err
	}

	document, err := s.Store.FindDocumentByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.Store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	if _, err := s.Emitter.EmitDocumentDeleted(ctx, document.WorkspaceID, document.ID, &triggeredBy, nil); err != nil {
		log.WithError(err).Warn("document.deleted emission failed")
	}

	return c.NoContent(http.StatusNoContent)
}

// ListDocumentVersions returns a cursor page of a document's versions.
func (s *Service) ListDocumentVersions(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	documentID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	pagination, err := cursorPagination(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeDocument(ctx, s.Store, documentID, auth.PermReadDocuments); err != nil {
		return err
	}

	page, err := s.Store.ListDocumentVersions(ctx, documentID, pagination)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPageResponse(page))
}

// DeleteDocumentVersion soft-deletes a superseded version. The latest
// version is protected.
func (s *Service) DeleteDocumentVersion(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	documentID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}
	versionID, err := pathUUID(c, "version")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeDocument(ctx, s.Store, documentID, auth.PermDeleteDocuments); err != nil {
		return err
	}

	version, err := s.Store.FindDocumentVersionByID(ctx, versionID)
	if err != nil {
		return err
	}
	if version.DocumentID != documentID {
		return ErrNotFound().WithResource("document_version")
	}

	if err := s.Store.DeleteDocumentVersion(ctx, versionID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
