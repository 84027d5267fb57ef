package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLatestVersion is returned when a delete targets the highest version of
// a document; the latest version cannot be removed until superseded.
var ErrLatestVersion = errors.New("db: cannot delete the latest document version")

// NewDocumentVersion is the insert shape for document versions. The version
// number is assigned by the repository (monotonic per document, starting at 1).
type NewDocumentVersion struct {
	DocumentID        uuid.UUID
	StoragePath       string
	StorageBucket     string
	FileHashSHA256    string
	FileSizeBytes     int64
	MimeType          string
	ProcessingResults json.RawMessage
	AutoDeleteAt      *time.Time
}

// CreateDocumentVersion appends a new version to a document, assigning the
// next monotonic version number inside a transaction.
func (c *Client) CreateDocumentVersion(ctx context.Context, input NewDocumentVersion) (*DocumentVersion, error) {
	var version *DocumentVersion
	err := c.Transaction(ctx, func(tx *Client) error {
		var latest int
		err := tx.conn(ctx).Model(&DocumentVersion{}).
			Where("document_id = ?", input.DocumentID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&latest).Error
		if err != nil {
			return wrapErr(err)
		}

		version = &DocumentVersion{
			ID:                newID(),
			DocumentID:        input.DocumentID,
			VersionNumber:     latest + 1,
			StoragePath:       input.StoragePath,
			StorageBucket:     input.StorageBucket,
			FileHashSHA256:    input.FileHashSHA256,
			FileSizeBytes:     input.FileSizeBytes,
			MimeType:          input.MimeType,
			ProcessingResults: input.ProcessingResults,
			AutoDeleteAt:      input.AutoDeleteAt,
			CreatedAt:         time.Now().UTC(),
		}
		return wrapErr(tx.conn(ctx).Create(version).Error)
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// FindDocumentVersionByID returns a non-deleted version.
func (c *Client) FindDocumentVersionByID(ctx context.Context, versionID uuid.UUID) (*DocumentVersion, error) {
	var version DocumentVersion
	err := c.conn(ctx).
		Where("id = ? AND deleted_at IS NULL", versionID).
		First(&version).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &version, nil
}

// FindLatestDocumentVersion returns the highest-numbered non-deleted version
// of a document.
func (c *Client) FindLatestDocumentVersion(ctx context.Context, documentID uuid.UUID) (*DocumentVersion, error) {
	var version DocumentVersion
	err := c.conn(ctx).
		Where("document_id = ? AND deleted_at IS NULL", documentID).
		Order("version_number DESC").
		First(&version).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &version, nil
}

// ListDocumentVersions returns a cursor page of versions ordered by
// (created_at DESC, id DESC).
func (c *Client) ListDocumentVersions(ctx context.Context, documentID uuid.UUID, pagination CursorPagination) (CursorPage[DocumentVersion], error) {
	var total *int64
	if pagination.IncludeCount {
		var count int64
		if err := c.conn(ctx).Model(&DocumentVersion{}).
			Where("document_id = ? AND deleted_at IS NULL", documentID).
			Count(&count).Error; err != nil {
			return CursorPage[DocumentVersion]{}, wrapErr(err)
		}
		total = &count
	}

	query := c.conn(ctx).
		Where("document_id = ? AND deleted_at IS NULL", documentID).
		Order("created_at DESC, id DESC").
		Limit(pagination.Limit + 1)

	if pagination.After != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			pagination.After.Timestamp, pagination.After.Timestamp, pagination.After.ID,
		)
	}

	var versions []DocumentVersion
	if err := query.Find(&versions).Error; err != nil {
		return CursorPage[DocumentVersion]{}, wrapErr(err)
	}

	return newCursorPage(versions, total, pagination.Limit, func(v *DocumentVersion) (time.Time, uuid.UUID) {
		return v.CreatedAt, v.ID
	}), nil
}

// DeleteDocumentVersion soft-deletes a version. Deleting the current latest
// version is refused with ErrLatestVersion.
func (c *Client) DeleteDocumentVersion(ctx context.Context, versionID uuid.UUID) error {
	return c.Transaction(ctx, func(tx *Client) error {
		version, err := tx.FindDocumentVersionByID(ctx, versionID)
		if err != nil {
			return err
		}

		latest, err := tx.FindLatestDocumentVersion(ctx, version.DocumentID)
		if err != nil {
			return err
		}
		if latest.VersionNumber == version.VersionNumber {
			return ErrLatestVersion
		}

		now := time.Now().UTC()
		res := tx.conn(ctx).Model(&DocumentVersion{}).
			Where("id = ? AND deleted_at IS NULL", versionID).
			Update("deleted_at", &now)
		if res.Error != nil {
			return wrapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdateVersionProcessingResults attaches processing output to a version.
func (c *Client) UpdateVersionProcessingResults(ctx context.Context, versionID uuid.UUID, results json.RawMessage) error {
	res := c.conn(ctx).Model(&DocumentVersion{}).
		Where("id = ? AND deleted_at IS NULL", versionID).
		Update("processing_results", results)
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
