package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewChat is the insert shape for chats.
type NewChat struct {
	AccountID uuid.UUID
	Title     *string
}

// CreateChat inserts a conversation container.
func (c *Client) CreateChat(ctx context.Context, input NewChat) (*Chat, error) {
	now := time.Now().UTC()
	chat := &Chat{
		ID:        newID(),
		AccountID: input.AccountID,
		Title:     input.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.conn(ctx).Create(chat).Error; err != nil {
		return nil, wrapErr(err)
	}
	return chat, nil
}

// FindChatByID returns a chat by id.
func (c *Client) FindChatByID(ctx context.Context, chatID uuid.UUID) (*Chat, error) {
	var chat Chat
	err := c.conn(ctx).Where("id = ?", chatID).First(&chat).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &chat, nil
}

// RenameChat updates the chat title.
func (c *Client) RenameChat(ctx context.Context, chatID uuid.UUID, title string) (*Chat, error) {
	res := c.conn(ctx).Model(&Chat{}).
		Where("id = ?", chatID).
		Updates(map[string]any{"title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return c.FindChatByID(ctx, chatID)
}

// DeleteChat removes a chat and its messages.
func (c *Client) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	return c.Transaction(ctx, func(tx *Client) error {
		if err := tx.conn(ctx).Where("chat_id = ?", chatID).Delete(&ChatMessage{}).Error; err != nil {
			return wrapErr(err)
		}
		res := tx.conn(ctx).Where("id = ?", chatID).Delete(&Chat{})
		if res.Error != nil {
			return wrapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListAccountChats returns an account's chats, most recently updated first.
func (c *Client) ListAccountChats(ctx context.Context, accountID uuid.UUID) ([]Chat, error) {
	var chats []Chat
	err := c.conn(ctx).
		Where("account_id = ?", accountID).
		Order("updated_at DESC, id DESC").
		Find(&chats).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return chats, nil
}

// NewChatMessage is the insert shape for chat messages.
type NewChatMessage struct {
	ChatID       uuid.UUID
	Role         ChatRole
	Content      string
	ContentParts json.RawMessage
	Name         *string
	Model        *string
	TokenCount   *int
	Metadata     json.RawMessage
}

// AppendChatMessage adds a message to a chat and touches the chat's
// updated_at.
func (c *Client) AppendChatMessage(ctx context.Context, input NewChatMessage) (*ChatMessage, error) {
	now := time.Now().UTC()
	message := &ChatMessage{
		ID:           newID(),
		ChatID:       input.ChatID,
		Role:         input.Role,
		Content:      input.Content,
		ContentParts: input.ContentParts,
		Name:         input.Name,
		Model:        input.Model,
		TokenCount:   input.TokenCount,
		Metadata:     input.Metadata,
		CreatedAt:    now,
	}

	err := c.Transaction(ctx, func(tx *Client) error {
		if err := tx.conn(ctx).Create(message).Error; err != nil {
			return wrapErr(err)
		}
		return wrapErr(tx.conn(ctx).Model(&Chat{}).
			Where("id = ?", input.ChatID).
			Update("updated_at", now).Error)
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// ListChatMessages returns a chat's messages in creation order.
func (c *Client) ListChatMessages(ctx context.Context, chatID uuid.UUID) ([]ChatMessage, error) {
	var messages []ChatMessage
	err := c.conn(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return messages, nil
}
