package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/rag"
)

// SearchRequest runs a similarity search. When FileIDs is present the scope
// is that file set (an empty list yields an empty result); otherwise the
// whole workspace is searched.
type SearchRequest struct {
	Query    string    `json:"query" validate:"required,min=1,max=2000"`
	FileIDs  *[]string `json:"file_ids"`
	MinScore float64   `json:"min_score" validate:"gte=0,lte=1"`
	Limit    int       `json:"limit" validate:"omitempty,min=1,max=100"`
}

// SearchWorkspace embeds the query and returns scored chunks within the
// requested scope.
func (s *Service) SearchWorkspace(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	var req SearchRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Limit == 0 {
		req.Limit = 10
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermReadFiles); err != nil {
		return err
	}

	scope := rag.WorkspaceScope(workspaceID)
	if req.FileIDs != nil {
		fileIDs := make([]uuid.UUID, 0, len(*req.FileIDs))
		for _, raw := range *req.FileIDs {
			id, err := parseUUIDField(raw, "file_ids")
			if err != nil {
				return err
			}
			fileIDs = append(fileIDs, id)
		}
		scope = rag.FileScope(fileIDs)
	}

	results, err := s.Search.Search(ctx, req.Query, scope, req.MinScore, req.Limit)
	if err != nil {
		return err
	}
	if results == nil {
		results = []rag.Result{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}
