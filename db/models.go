package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Visibility controls who can discover a workspace.
type Visibility string

// Workspace visibility values.
const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// MemberRole is the role of an account within a workspace. Roles form a
// strict hierarchy: Guest < Viewer < Editor < Admin.
type MemberRole string

// Workspace member roles.
const (
	RoleGuest  MemberRole = "guest"
	RoleViewer MemberRole = "viewer"
	RoleEditor MemberRole = "editor"
	RoleAdmin  MemberRole = "admin"
)

// rank orders roles for minimum-role comparisons.
func (r MemberRole) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	case RoleGuest:
		return 0
	default:
		return -1
	}
}

// AtLeast reports whether the role meets or exceeds the minimum.
func (r MemberRole) AtLeast(minimum MemberRole) bool {
	return r.rank() >= minimum.rank()
}

// WebhookStatus is the delivery status of a webhook subscription.
type WebhookStatus string

// Webhook statuses.
const (
	WebhookActive   WebhookStatus = "active"
	WebhookPaused   WebhookStatus = "paused"
	WebhookDisabled WebhookStatus = "disabled"
)

// PipelineStatus is the configuration status of a pipeline.
type PipelineStatus string

// Pipeline statuses.
const (
	PipelineEnabled  PipelineStatus = "enabled"
	PipelineDisabled PipelineStatus = "disabled"
	PipelineDraft    PipelineStatus = "draft"
)

// PipelineRunStatus is the execution state of a pipeline run.
type PipelineRunStatus string

// Pipeline run states. Legal transitions: Queued → Running → {Completed,
// Failed, Cancelled}; Queued may also move straight to Cancelled.
const (
	RunQueued    PipelineRunStatus = "queued"
	RunRunning   PipelineRunStatus = "running"
	RunCompleted PipelineRunStatus = "completed"
	RunFailed    PipelineRunStatus = "failed"
	RunCancelled PipelineRunStatus = "cancelled"
)

// IsTerminal reports whether the run state admits no further transitions.
func (s PipelineRunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// ChatRole identifies the author of a chat message.
type ChatRole string

// Chat message roles.
const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
	ChatRoleFunction  ChatRole = "function"
	ChatRoleTool      ChatRole = "tool"
)

// EmbeddingDim is the fixed dimensionality of chunk embeddings. The vector
// column is declared with this size and queries must supply matching vectors.
const EmbeddingDim = 1536

// Account is a registered user. Soft-deleted by tombstoning DeletedAt.
type Account struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email        string     `gorm:"uniqueIndex;not null"`
	PasswordHash string     `gorm:"not null"`
	IsAdmin      bool       `gorm:"not null;default:false"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
	DeletedAt    *time.Time `gorm:"index"`
}

// Workspace is the top-level tenant boundary.
type Workspace struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OwnerAccountID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name           string     `gorm:"not null"`
	Visibility     Visibility `gorm:"not null;default:private"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
	DeletedAt      *time.Time `gorm:"index"`
}

// WorkspaceMember links an account to a workspace with a role and
// notification preferences. Composite primary key (workspace_id, account_id).
type WorkspaceMember struct {
	WorkspaceID    uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AccountID      uuid.UUID  `gorm:"type:uuid;primaryKey"`
	MemberRole     MemberRole `gorm:"not null"`
	IsFavorite     bool       `gorm:"not null;default:false"`
	LastAccessedAt *time.Time
	NotifyUpdates  bool      `gorm:"not null;default:true"`
	NotifyComments bool      `gorm:"not null;default:true"`
	NotifyMentions bool      `gorm:"not null;default:true"`
	CreatedAt      time.Time `gorm:"not null"`
}

// Document is a workspace-scoped document owned by its creator.
type Document struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	WorkspaceID uuid.UUID  `gorm:"type:uuid;not null;index"`
	AccountID   uuid.UUID  `gorm:"type:uuid;not null"`
	DisplayName string     `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
	DeletedAt   *time.Time `gorm:"index"`
}

// DocumentVersion is an immutable snapshot of document content. The highest
// version number per document is the latest and cannot be deleted until
// superseded.
type DocumentVersion struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	DocumentID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_document_version,priority:1"`
	VersionNumber     int             `gorm:"not null;uniqueIndex:idx_document_version,priority:2"`
	StoragePath       string          `gorm:"not null"`
	StorageBucket     string          `gorm:"not null"`
	FileHashSHA256    string          `gorm:"not null"`
	FileSizeBytes     int64           `gorm:"not null"`
	MimeType          string          `gorm:"not null"`
	ProcessingResults json.RawMessage `gorm:"type:jsonb"`
	CreatedAt         time.Time       `gorm:"not null"`
	DeletedAt         *time.Time      `gorm:"index"`
	AutoDeleteAt      *time.Time
}

// WorkspaceFile is an ingested file whose chunks feed the vector index.
type WorkspaceFile struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	WorkspaceID uuid.UUID  `gorm:"type:uuid;not null;index"`
	AccountID   uuid.UUID  `gorm:"type:uuid;not null"`
	FileName    string     `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"not null"`
	DeletedAt   *time.Time `gorm:"index"`
}

// WorkspaceFileChunk is a contiguous fragment of a file paired with its
// embedding. (FileID, ChunkIndex) uniquely identifies a chunk; the embedding
// model tag records which encoder produced the vector.
type WorkspaceFileChunk struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_file_chunk,priority:1"`
	ChunkIndex     int       `gorm:"not null;uniqueIndex:idx_file_chunk,priority:2"`
	ContentSHA256  string    `gorm:"not null"`
	ContentSize    int64     `gorm:"not null"`
	TokenCount     *int
	Embedding      pgvector.Vector `gorm:"type:vector(1536)"`
	EmbeddingModel string          `gorm:"not null"`
	Metadata       json.RawMessage `gorm:"type:jsonb"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// ScoredChunk pairs a chunk with its similarity score (1 - cosine distance).
type ScoredChunk struct {
	Chunk WorkspaceFileChunk
	Score float64
}

// WorkspaceConnection stores encrypted third-party credentials. The
// EncryptedData blob is sealed by the workspace cipher and never serialized
// toward clients.
type WorkspaceConnection struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	WorkspaceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID     uuid.UUID       `gorm:"type:uuid;not null"`
	Name          string          `gorm:"not null"`
	Provider      string          `gorm:"not null"`
	EncryptedData []byte          `gorm:"not null" json:"-"`
	IsActive      bool            `gorm:"not null;default:true"`
	Metadata      json.RawMessage `gorm:"type:jsonb"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
	DeletedAt     *time.Time      `gorm:"index"`
}

// WorkspaceWebhook is an outbound delivery subscription. Secret is shown
// once at creation and never serialized afterwards.
type WorkspaceWebhook struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	WorkspaceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	URL             string          `gorm:"not null"`
	Secret          string          `gorm:"not null" json:"-"`
	Events          []string        `gorm:"type:jsonb;serializer:json;not null"`
	Headers         json.RawMessage `gorm:"type:jsonb"`
	Status          WebhookStatus   `gorm:"not null;default:active"`
	LastTriggeredAt *time.Time
	FailureCount    int        `gorm:"not null;default:0"`
	CreatedAt       time.Time  `gorm:"not null"`
	DeletedAt       *time.Time `gorm:"index"`
}

// WorkspacePipeline is a scheduled processing pipeline definition.
type WorkspacePipeline struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	WorkspaceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID   uuid.UUID       `gorm:"type:uuid;not null"`
	Name        string          `gorm:"not null"`
	Status      PipelineStatus  `gorm:"not null;default:draft"`
	Config      json.RawMessage `gorm:"type:jsonb"`
	CreatedAt   time.Time       `gorm:"not null"`
	DeletedAt   *time.Time      `gorm:"index"`
}

// WorkspacePipelineRun is one execution of a pipeline.
type WorkspacePipelineRun struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	PipelineID  uuid.UUID         `gorm:"type:uuid;not null;index"`
	Status      PipelineRunStatus `gorm:"not null;default:queued"`
	StartedAt   time.Time         `gorm:"not null"`
	CompletedAt *time.Time
	Result      json.RawMessage `gorm:"type:jsonb"`
	Error       *string
}

// Chat is a conversation container.
type Chat struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index"`
	Title     *string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ChatMessage is one message within a chat, ordered by creation time.
type ChatMessage struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ChatID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Role         ChatRole        `gorm:"not null"`
	Content      string          `gorm:"not null"`
	ContentParts json.RawMessage `gorm:"type:jsonb"`
	Name         *string
	Model        *string
	TokenCount   *int
	Metadata     json.RawMessage `gorm:"type:jsonb"`
	CreatedAt    time.Time       `gorm:"not null"`
}

// HasImages reports whether the message carries image content. Multimodal
// messages are not supported; reserved for future use.
func (m *ChatMessage) HasImages() bool {
	return false
}
