package seed

import (
	"context"
	"testing"
	"time"

	"github.com/localmind/backend/internal/config"
	"github.com/localmind/backend/internal/database"
	"github.com/localmind/backend/internal/models"
	"github.com/localmind/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) repository.ConversationRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, false)
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))
	return repository.NewConversationRepository(db)
}

func TestSeedCreatesAlternatingConversations(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	seeder := NewSeeder(repo, 42)

	convs, err := seeder.Seed(ctx, "dev-user")
	require.NoError(t, err)
	require.Len(t, convs, conversationsPerUser)

	stored, err := repo.ListConversations(ctx, "dev-user", "")
	require.NoError(t, err)
	assert.Len(t, stored, conversationsPerUser)

	for _, conv := range stored {
		assert.NotEmpty(t, conv.Title)

		msgs, err := repo.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(msgs), minMessages)
		assert.LessOrEqual(t, len(msgs), maxMessages)

		for i, m := range msgs {
			want := models.RoleUser
			if i%2 == 1 {
				want = models.RoleAssistant
			}
			assert.Equal(t, want, m.Role)
			assert.Equal(t, "dev-user", m.OwnerID)
			if i > 0 {
				assert.Equal(t, messageGap, m.Timestamp.Sub(msgs[i-1].Timestamp))
			}
		}
		last := msgs[len(msgs)-1]
		assert.Equal(t, last.Content, conv.LastMessage)
		assert.False(t, last.Timestamp.After(time.Now()), "seeded messages are in the past")
	}
}

func TestWipeRemovesOnlyOwnersData(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	seeder := NewSeeder(repo, 7)

	_, err := seeder.Seed(ctx, "dev-user")
	require.NoError(t, err)
	_, err = seeder.Seed(ctx, "someone-else")
	require.NoError(t, err)

	n, err := seeder.Wipe(ctx, "dev-user")
	require.NoError(t, err)
	assert.Equal(t, int64(conversationsPerUser), n)

	remaining, err := repo.ListConversations(ctx, "dev-user", "")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	others, err := repo.ListConversations(ctx, "someone-else", "")
	require.NoError(t, err)
	assert.Len(t, others, conversationsPerUser)
}

func TestSeedRequiresUID(t *testing.T) {
	seeder := NewSeeder(newRepo(t), 1)

	_, err := seeder.Seed(context.Background(), "")
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = seeder.Wipe(context.Background(), "")
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}
