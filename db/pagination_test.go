package db

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{
		Timestamp: time.Date(2025, 6, 15, 12, 30, 45, 123456000, time.UTC),
		ID:        uuid.New(),
	}

	decoded, err := DecodeCursor(original.Encode())
	require.NoError(t, err)

	assert.True(t, original.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, original.ID, decoded.ID)
}

func TestDecodeCursorRejectsMalformedInput(t *testing.T) {
	encoded := Cursor{Timestamp: time.Now(), ID: uuid.New()}.Encode()

	for _, input := range []string{
		"",
		"!!!not base64!!!",
		encoded[:len(encoded)/2], // truncated
		"bm8gY29sb24",            // "no colon"
		"MTIzOm5vdC1hLXV1aWQ",    // "123:not-a-uuid"
	} {
		_, err := DecodeCursor(input)
		assert.ErrorIs(t, err, ErrBadCursor, "input %q", input)
	}
}

func TestNewCursorPageWithoutExtraRow(t *testing.T) {
	rows := []Document{
		{ID: uuid.New(), CreatedAt: time.Now()},
		{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Minute)},
	}

	page := newCursorPage(rows, nil, 5, func(d *Document) (time.Time, uuid.UUID) {
		return d.CreatedAt, d.ID
	})

	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextCursor)
}

func TestNewCursorPageWithExtraRow(t *testing.T) {
	base := time.Now()
	rows := make([]Document, 4)
	for i := range rows {
		rows[i] = Document{ID: uuid.New(), CreatedAt: base.Add(-time.Duration(i) * time.Minute)}
	}

	// limit 3, fetched limit+1 rows: the extra row signals another page.
	page := newCursorPage(rows, nil, 3, func(d *Document) (time.Time, uuid.UUID) {
		return d.CreatedAt, d.ID
	})

	assert.Len(t, page.Items, 3)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)

	cursor, err := DecodeCursor(*page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[2].ID, cursor.ID, "next cursor points at the last returned row")
}

func TestNewCursorPageCarriesTotal(t *testing.T) {
	total := int64(42)
	page := newCursorPage([]Document{}, &total, 10, func(d *Document) (time.Time, uuid.UUID) {
		return d.CreatedAt, d.ID
	})

	require.NotNil(t, page.Total)
	assert.Equal(t, int64(42), *page.Total)
	assert.False(t, page.HasMore)
}

func TestMemberRoleOrdering(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleEditor))
	assert.True(t, RoleEditor.AtLeast(RoleEditor))
	assert.False(t, RoleViewer.AtLeast(RoleEditor))
	assert.False(t, RoleGuest.AtLeast(RoleViewer))
	assert.False(t, MemberRole("bogus").AtLeast(RoleGuest))
}

func TestPipelineRunStatusTerminal(t *testing.T) {
	assert.False(t, RunQueued.IsTerminal())
	assert.False(t, RunRunning.IsTerminal())
	assert.True(t, RunCompleted.IsTerminal())
	assert.True(t, RunFailed.IsTerminal())
	assert.True(t, RunCancelled.IsTerminal())
}

func TestChatMessageHasImages(t *testing.T) {
	message := &ChatMessage{Role: ChatRoleUser, Content: "hello"}
	assert.False(t, message.HasImages())
}
