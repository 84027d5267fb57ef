package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/db"
	"github.com/nvisycom/server/llm"
)

// ChatReply is the schema-enforced shape of assistant responses.
type ChatReply struct {
	Content string `json:"content"`
	Title   string `json:"title,omitempty"`
}

// NewChatCompletion builds the typed completion client used by the chat
// surface. Called once from the composition root.
func NewChatCompletion(provider llm.CompletionProvider, limiter *llm.RateLimiter) (*llm.TypedCompletion[ChatReply], error) {
	return llm.NewTypedCompletion[ChatReply](provider, limiter)
}

// CreateChatRequest starts a conversation.
type CreateChatRequest struct {
	Title *string `json:"title" validate:"omitempty,min=1,max=200"`
}

// CreateChat starts a conversation for the caller.
func (s *Service) CreateChat(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	var req CreateChatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	chat, err := s.Store.CreateChat(c.Request().Context(), db.NewChat{
		AccountID: caller.AccountID,
		Title:     req.Title,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, chat)
}

// ListChats returns the caller's conversations, most recent first.
func (s *Service) ListChats(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	chats, err := s.Store.ListAccountChats(c.Request().Context(), caller.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chats)
}

// findOwnChat loads a chat and verifies the caller owns it.
func (s *Service) findOwnChat(c echo.Context) (*db.Chat, error) {
	caller, err := principal(c)
	if err != nil {
		return nil, err
	}
	chatID, err := pathUUID(c, "id")
	if err != nil {
		return nil, err
	}

	chat, err := s.Store.FindChatByID(c.Request().Context(), chatID)
	if err != nil {
		return nil, err
	}
	if err := caller.AuthorizeSelf(chat.AccountID); err != nil {
		return nil, err
	}
	return chat, nil
}

// GetChatMessages returns a chat's messages in order.
func (s *Service) GetChatMessages(c echo.Context) error {
	chat, err := s.findOwnChat(c)
	if err != nil {
		return err
	}

	messages, err := s.Store.ListChatMessages(c.Request().Context(), chat.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messages)
}

// SendChatMessageRequest appends a user message and requests a completion.
type SendChatMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=32000"`
}

// SendChatMessage appends the user's message, runs a structured completion
// over the conversation history, and appends the assistant reply.
func (s *Service) SendChatMessage(c echo.Context) error {
	chat, err := s.findOwnChat(c)
	if err != nil {
		return err
	}

	var req SendChatMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := s.Store.AppendChatMessage(ctx, db.NewChatMessage{
		ChatID:  chat.ID,
		Role:    db.ChatRoleUser,
		Content: req.Content,
	}); err != nil {
		return err
	}

	history, err := s.Store.ListChatMessages(ctx, chat.ID)
	if err != nil {
		return err
	}

	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		switch m.Role {
		case db.ChatRoleAssistant:
			role = llm.RoleAssistant
		case db.ChatRoleSystem:
			role = llm.RoleSystem
		case db.ChatRoleFunction, db.ChatRoleTool:
			// Tool traffic is not replayed to the provider.
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}

	reply, response, err := s.Completion.Complete(ctx, llm.ChatRequest{Messages: messages})
	if err != nil {
		var llmErr *llm.Error
		if errors.As(err, &llmErr) && llmErr.Kind == llm.ErrKindRateLimit {
			return ErrTooManyRequests()
		}
		return ErrServiceUnavailable().WithMessage("Completion provider unavailable")
	}

	tokenCount := response.Usage.CompletionTokens
	assistant, err := s.Store.AppendChatMessage(ctx, db.NewChatMessage{
		ChatID:     chat.ID,
		Role:       db.ChatRoleAssistant,
		Content:    reply.Content,
		Model:      &response.Model,
		TokenCount: &tokenCount,
	})
	if err != nil {
		return err
	}

	if chat.Title == nil && reply.Title != "" {
		if _, err := s.Store.RenameChat(ctx, chat.ID, reply.Title); err != nil {
			log.WithError(err).Warn("could not title chat")
		}
	}

	// Refresh the hot-read cache with the full conversation.
	history = append(history, *assistant)
	if snapshot, err := json.Marshal(history); err == nil {
		if err := s.History.PutSnapshot(ctx, chat.ID, snapshot); err != nil {
			log.WithError(err).Warn("could not cache chat history")
		}
	}

	return c.JSON(http.StatusCreated, assistant)
}

// DeleteChat removes a conversation and its messages.
func (s *Service) DeleteChat(c echo.Context) error {
	chat, err := s.findOwnChat(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := s.Store.DeleteChat(ctx, chat.ID); err != nil {
		return err
	}
	if err := s.History.DeleteSnapshot(ctx, chat.ID); err != nil {
		log.WithError(err).Warn("could not drop chat history snapshot")
	}
	return c.NoContent(http.StatusNoContent)
}
