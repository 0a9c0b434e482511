package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/localmind/backend/internal/relay"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// sseSink writes each frame as `data: <json>\n\n` and flushes it immediately
type sseSink struct {
	w       gin.ResponseWriter
	flusher http.Flusher
}

func startSSE(c *gin.Context) *sseSink {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// nginx would otherwise buffer the whole reply
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	return &sseSink{w: c.Writer, flusher: c.Writer}
}

func (s *sseSink) Send(frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

var _ relay.Sink = (*sseSink)(nil)
