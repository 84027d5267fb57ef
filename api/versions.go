package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/content"
	"github.com/nvisycom/server/db"
	"github.com/nvisycom/server/storage"
)

// maxVersionUploadBytes bounds one document version upload.
const maxVersionUploadBytes = 100 << 20 // 100 MiB

// UploadDocumentVersion stores the request body as a new version of a
// document: the content goes to the files bucket and a version row records
// its hash, size, and location.
func (s *Service) UploadDocumentVersion(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	documentID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeDocument(ctx, s.Store, documentID, auth.PermUpdateDocuments); err != nil {
		return err
	}

	document, err := s.Store.FindDocumentByID(ctx, documentID)
	if err != nil {
		return err
	}

	data, meta, err := content.ReadContentLimited(c.Request().Body, maxVersionUploadBytes)
	if err != nil {
		if err == content.ErrContentTooLarge {
			return ErrPayloadTooLarge()
		}
		return err
	}
	if len(data) == 0 {
		return ErrBadRequest().WithMessage("Version content must not be empty")
	}

	mimeType := c.Request().Header.Get(echo.HeaderContentType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	storagePath := fmt.Sprintf("%s/%s", documentID, meta.ContentSourceUUID)
	if _, err := s.Objects.PutBytes(ctx, storage.BucketFiles, storagePath, data, mimeType); err != nil {
		return err
	}

	version, err := s.Store.CreateDocumentVersion(ctx, db.NewDocumentVersion{
		DocumentID:     documentID,
		StoragePath:    storagePath,
		StorageBucket:  storage.BucketFiles,
		FileHashSHA256: *meta.SHA256,
		FileSizeBytes:  int64(len(data)),
		MimeType:       mimeType,
	})
	if err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	if _, err := s.Emitter.EmitDocumentUpdated(ctx, document.WorkspaceID, document.ID, &triggeredBy, nil); err != nil {
		log.WithError(err).Warn("document.updated emission failed")
	}

	return c.JSON(http.StatusCreated, version)
}

// DownloadDocumentVersion streams a stored version's content.
func (s *Service) DownloadDocumentVersion(c echo.Context) error {
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
	if _, err := caller.AuthorizeDocument(ctx, s.Store, documentID, auth.PermReadDocuments); err != nil {
		return err
	}

	version, err := s.Store.FindDocumentVersionByID(ctx, versionID)
	if err != nil {
		return err
	}
	if version.DocumentID != documentID {
		return ErrNotFound().WithResource("document_version")
	}

	reader, err := s.Objects.Get(ctx, version.StorageBucket, version.StoragePath)
	if err != nil {
		if err == storage.ErrObjectNotFound {
			return ErrNotFound().WithResource("version_content")
		}
		return err
	}
	defer reader.Close()

	return c.Stream(http.StatusOK, version.MimeType, reader)
}
