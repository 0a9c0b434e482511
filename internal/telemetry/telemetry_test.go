package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func spanNames(recorder *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tp)
}

func TestShutdownNilProvider(t *testing.T) {
	assert.NoError(t, Shutdown(nil))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(3).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(-1).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), samplerFor(0.25).Description())
}

func TestGORMTracingPlugin(t *testing.T) {
	recorder := installRecorder(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Use(GORMTracingPlugin()))

	type note struct {
		ID   uint
		Body string
	}
	require.NoError(t, db.AutoMigrate(&note{}))
	require.NoError(t, db.WithContext(context.Background()).Create(&note{Body: "x"}).Error)

	var got note
	require.NoError(t, db.WithContext(context.Background()).First(&got).Error)

	names := spanNames(recorder)
	assert.Contains(t, names, "db.insert")
	assert.Contains(t, names, "db.select")

	for _, s := range recorder.Ended() {
		if s.Name() == "db.select" {
			assert.Contains(t, s.Attributes(), attribute.String(dbSystemKey, "sqlite"))
		}
	}
}

func TestGenerationSpan(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartGenerationSpan(context.Background(), "conv-1", "gen-1", "local-model")
	EndGenerationSpan(span, "failed", 3, errors.New("upstream closed"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "chat.generation", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("chat.outcome", "failed"))
	assert.Contains(t, ended[0].Attributes(), attribute.Int("chat.chunks", 3))
}

func TestGenerationSpanFollowsProviderSwap(t *testing.T) {
	for _, name := range []string{"first provider", "second provider"} {
		t.Run(name, func(t *testing.T) {
			recorder := installRecorder(t)

			_, span := StartGenerationSpan(context.Background(), "conv-1", "gen-1", "local-model")
			EndGenerationSpan(span, "completed", 1, nil)

			require.Len(t, recorder.Ended(), 1)
		})
	}
}

func TestInstrumentedHTTPClient(t *testing.T) {
	recorder := installRecorder(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewInstrumentedHTTPClient(HTTPClientConfig{ServiceName: "inference"})
	resp, err := client.Get(server.URL + "/v1/models")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, spanNames(recorder), "inference GET /v1/models")
}
