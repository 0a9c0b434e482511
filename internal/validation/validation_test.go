package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/localmind/backend/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logger.Initialize("error", "")
}

func TestParseRequiredServices(t *testing.T) {
	t.Setenv("LOCALMIND_REQUIRE_REDIS", "yes")
	t.Setenv("LOCALMIND_REQUIRE_AI", "0")

	assert.Equal(t, []string{ServiceRedis}, parseRequiredServices())
}

func TestValidateNothingRequired(t *testing.T) {
	t.Setenv("LOCALMIND_REQUIRE_REDIS", "")
	t.Setenv("LOCALMIND_REQUIRE_AI", "")

	called := false
	sv := NewServiceValidator(map[string]Check{
		ServiceAI: func(context.Context) error { called = true; return errors.New("down") },
	})
	require.NoError(t, sv.ValidateServices(context.Background()))
	assert.False(t, called)
}

func TestValidateRequiredFailure(t *testing.T) {
	t.Setenv("LOCALMIND_REQUIRE_AI", "true")

	sv := NewServiceValidator(map[string]Check{
		ServiceAI: func(context.Context) error { return errors.New("connection refused") },
	})
	err := sv.ValidateServices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'ai'")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestValidateRequiredButUnconfigured(t *testing.T) {
	t.Setenv("LOCALMIND_REQUIRE_REDIS", "on")

	sv := NewServiceValidator(map[string]Check{})
	err := sv.ValidateServices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestValidateRequiredPasses(t *testing.T) {
	t.Setenv("LOCALMIND_REQUIRE_REDIS", "1")
	t.Setenv("LOCALMIND_REQUIRE_AI", "1")

	sv := NewServiceValidator(map[string]Check{
		ServiceRedis: func(context.Context) error { return nil },
		ServiceAI:    func(context.Context) error { return nil },
	})
	assert.Len(t, sv.Required(), 2)
	assert.NoError(t, sv.ValidateServices(context.Background()))
}
