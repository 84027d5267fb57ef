package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/config"
	"github.com/nvisycom/server/db"
	"github.com/nvisycom/server/llm"
	"github.com/nvisycom/server/nats"
	"github.com/nvisycom/server/rag"
	"github.com/nvisycom/server/security"
	"github.com/nvisycom/server/storage"
	"github.com/nvisycom/server/version"
	"github.com/nvisycom/server/webhook"
)

// devOrigins are the CORS defaults applied when no allow-list is
// configured.
var devOrigins = []string{"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000"}

// Service bundles the dependencies of the HTTP handlers. All fields are
// clonable handles constructed once in the composition root.
type Service struct {
	Config     *config.Config
	Store      *db.Client
	Tokens     *nats.ApiTokenStore
	Sessions   *nats.SessionStore
	History    *nats.ChatHistoryStore
	Keys       *auth.SessionKeys
	Hasher     *auth.PasswordHasher
	Cipher     *security.WorkspaceCipher
	Emitter    *webhook.Emitter
	Objects    *storage.Service
	Search     *rag.Service
	LLM        llm.CompletionProvider
	Completion *llm.TypedCompletion[ChatReply]
}

// NewServer builds the Echo instance with standard middleware, the error
// taxonomy handler, and all routes registered.
func (s *Service) NewServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = s.Config.Debug
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	if s.Config.HTTP.BodyLimit != "" {
		e.Use(middleware.BodyLimit(s.Config.HTTP.BodyLimit))
	}

	origins := s.Config.HTTP.AllowedOrigins
	if len(origins) == 0 {
		origins = devOrigins
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowCredentials: s.Config.HTTP.AllowCredentials,
		MaxAge:           int(s.Config.HTTP.CORSMaxAge / time.Second),
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType,
			echo.HeaderAccept, echo.HeaderAuthorization,
		},
	}))

	s.registerRoutes(e)
	return e
}

// registerRoutes mounts the REST surface under /api/v1.
func (s *Service) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", s.Health)
	e.GET(s.Config.HTTP.OpenAPIPath, s.OpenAPI)

	v1 := e.Group("/api/v1")

	// Public authentication surface.
	v1.POST("/auth/signup", s.Signup)
	v1.POST("/auth/login", s.Login)

	// Everything else requires a bearer token.
	protected := v1.Group("", s.AuthMiddleware())

	protected.POST("/auth/logout", s.Logout)
	protected.POST("/auth/logout-everywhere", s.LogoutEverywhere)
	protected.GET("/auth/tokens", s.ListTokens)

	protected.POST("/workspaces/", s.CreateWorkspace)
	protected.GET("/workspaces/", s.ListWorkspaces)
	protected.GET("/workspaces/:ws/", s.GetWorkspace)
	protected.PATCH("/workspaces/:ws/", s.UpdateWorkspace)
	protected.DELETE("/workspaces/:ws/", s.DeleteWorkspace)

	protected.GET("/workspaces/:ws/members/", s.ListMembers)
	protected.POST("/workspaces/:ws/members/", s.AddMember)
	protected.PATCH("/workspaces/:ws/members/:account/role", s.UpdateMemberRole)
	protected.DELETE("/workspaces/:ws/members/:account/", s.RemoveMember)
	protected.POST("/workspaces/:ws/members/leave", s.LeaveWorkspace)
	protected.PATCH("/workspaces/:ws/members/preferences", s.UpdateMemberPreferences)

	protected.POST("/workspaces/:ws/connections/", s.CreateConnection)
	protected.GET("/workspaces/:ws/connections/", s.ListConnections)
	protected.GET("/connections/:id/", s.GetConnection)
	protected.PUT("/connections/:id/", s.UpdateConnection)
	protected.DELETE("/connections/:id/", s.DeleteConnection)

	protected.POST("/workspaces/:ws/webhooks/", s.CreateWebhook)
	protected.GET("/workspaces/:ws/webhooks/", s.ListWebhooks)
	protected.GET("/webhooks/:id/", s.GetWebhook)
	protected.PATCH("/webhooks/:id/", s.UpdateWebhook)
	protected.DELETE("/webhooks/:id/", s.DeleteWebhook)
	protected.POST("/webhooks/:id/test/", s.TestWebhook)
	protected.POST("/webhooks/:id/pause/", s.PauseWebhook)
	protected.POST("/webhooks/:id/resume/", s.ResumeWebhook)

	protected.POST("/workspaces/:ws/documents/", s.CreateDocument)
	protected.GET("/workspaces/:ws/documents/", s.ListDocuments)
	protected.GET("/documents/:id/", s.GetDocument)
	protected.PATCH("/documents/:id/", s.RenameDocument)
	protected.DELETE("/documents/:id/", s.DeleteDocument)
	protected.GET("/documents/:id/versions/", s.ListDocumentVersions)
	protected.POST("/documents/:id/versions/", s.UploadDocumentVersion)
	protected.GET("/documents/:id/versions/:version/download", s.DownloadDocumentVersion)
	protected.DELETE("/documents/:id/versions/:version/", s.DeleteDocumentVersion)

	protected.POST("/chats/", s.CreateChat)
	protected.GET("/chats/", s.ListChats)
	protected.GET("/chats/:id/messages/", s.GetChatMessages)
	protected.POST("/chats/:id/messages/", s.SendChatMessage)
	protected.DELETE("/chats/:id/", s.DeleteChat)

	protected.POST("/workspaces/:ws/pipelines/", s.CreatePipeline)
	protected.GET("/workspaces/:ws/pipelines/", s.ListPipelines)
	protected.GET("/pipelines/:id/", s.GetPipeline)
	protected.PATCH("/pipelines/:id/", s.UpdatePipeline)
	protected.DELETE("/pipelines/:id/", s.DeletePipeline)
	protected.POST("/pipelines/:id/runs/", s.CreatePipelineRun)
	protected.GET("/pipelines/:id/runs/", s.ListPipelineRuns)
	protected.GET("/pipelines/:id/runs/latest", s.GetLatestPipelineRun)
	protected.POST("/runs/:id/cancel/", s.CancelPipelineRun)

	protected.POST("/workspaces/:ws/search/", s.SearchWorkspace)
}

// Health reports liveness and build information.
func (s *Service) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "nvisy-server",
		"build":   version.Get(),
	})
}
