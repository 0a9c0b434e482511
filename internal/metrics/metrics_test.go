package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIsSingleton(t *testing.T) {
	m1 := Get()
	m2 := Initialize()
	require.NotNil(t, m1)
	assert.Same(t, m1, m2)
	assert.NotNil(t, m1.Chat)
}

func TestChatCounters(t *testing.T) {
	chat := Get().Chat

	before := testutil.ToFloat64(chat.GenerationsTotal.WithLabelValues("completed"))
	chat.GenerationsTotal.WithLabelValues("completed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(chat.GenerationsTotal.WithLabelValues("completed")))

	chat.ActiveGenerations.Inc()
	chat.ActiveGenerations.Dec()
	assert.Equal(t, float64(0), testutil.ToFloat64(chat.ActiveGenerations))
}
