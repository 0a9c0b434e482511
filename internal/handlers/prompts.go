package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PromptPreset is a system prompt the UI offers when starting a conversation
type PromptPreset struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Content string `json:"content"`
}

var promptPresets = []PromptPreset{
	{
		ID:      "standard",
		Label:   "Standard",
		Content: "You are LocalMind, a helpful and polite AI assistant.",
	},
	{
		ID:      "dev",
		Label:   "Elite Developer",
		Content: "You are an Elite Full-Stack Developer. You write clean, modern code, explain complex concepts clearly, and always assume the user knows the basics but needs expert guidance.",
	},
	{
		ID:      "creative",
		Label:   "Creative Writer",
		Content: "You are a creative writer. You use evocative language, vivid imagery, and interesting narrative structures.",
	},
}

// GetPrompts lists the preset system prompts
// GET /api/prompts
func (h *Handlers) GetPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, promptPresets)
}
