package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationBeforeCreate(t *testing.T) {
	c := &Conversation{OwnerID: "u1", Title: "t"}
	require.NoError(t, c.BeforeCreate(nil))
	_, err := uuid.Parse(c.ID)
	assert.NoError(t, err)

	fixed := &Conversation{ID: "keep-me"}
	require.NoError(t, fixed.BeforeCreate(nil))
	assert.Equal(t, "keep-me", fixed.ID)

	assert.True(t, c.OwnedBy("u1"))
	assert.False(t, c.OwnedBy("u2"))
}

func TestMessageBeforeCreateDefaults(t *testing.T) {
	m := &Message{ConversationID: "c", Role: RoleUser, Content: "hi"}
	require.NoError(t, m.BeforeCreate(nil))

	assert.NotEmpty(t, m.ID)
	assert.False(t, m.Timestamp.IsZero())
	assert.Equal(t, MessageComplete, m.Status)

	partial := &Message{Status: MessagePartial}
	require.NoError(t, partial.BeforeCreate(nil))
	assert.Equal(t, MessagePartial, partial.Status)
}
