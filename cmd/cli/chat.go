package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/localmind/backend/internal/client"
	"github.com/spf13/cobra"
)

var (
	chatConversation string
	chatSystemPrompt string
	chatPreset       string
	chatTitle        string
)

var chatCmd = &cobra.Command{
	Use:   "chat <message...>",
	Short: "Send a message and stream the reply",
	Long: `Send a message and print the reply as it streams in.

Without --conversation a new conversation is started. Ctrl-C disconnects; the
server then abandons the generation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c := newClient()

		systemPrompt := chatSystemPrompt
		if chatPreset != "" {
			p, err := findPreset(ctx, c, chatPreset)
			if err != nil {
				return err
			}
			systemPrompt = p.Content
		}

		req := client.ChatRequest{
			Message:        message,
			ConversationID: chatConversation,
			SystemPrompt:   systemPrompt,
			Title:          chatTitle,
		}

		jsonOut := outputFmt == "json"
		res, err := c.Chat(ctx, req, func(ev client.Event) error {
			if jsonOut {
				return nil
			}
			switch {
			case ev.GenerationID != "":
				logger.Debug("Generation started", "conversation", ev.ConversationID, "generation", ev.GenerationID)
			case ev.Content != "":
				fmt.Print(ev.Content)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				fmt.Println()
				printWarning("Disconnected")
				return nil
			}
			return describe(err)
		}

		if jsonOut {
			return printJSON(res)
		}

		fmt.Println()
		switch res.Outcome {
		case client.OutcomeDone:
			fmt.Println(dim("conversation " + res.ConversationID))
		case client.OutcomeStopped:
			printWarning("Stopped")
		case client.OutcomeFailed:
			return fmt.Errorf("generation failed: %s", res.Error)
		default:
			printWarning("Connection closed before the reply finished")
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "Continue an existing conversation")
	chatCmd.Flags().StringVarP(&chatSystemPrompt, "system-prompt", "s", "", "System prompt for a new conversation")
	chatCmd.Flags().StringVarP(&chatPreset, "preset", "p", "", "Use a preset system prompt by id (see 'localmind prompts')")
	chatCmd.Flags().StringVarP(&chatTitle, "title", "t", "", "Title for a new conversation")
	chatCmd.MarkFlagsMutuallyExclusive("system-prompt", "preset")
}

func findPreset(ctx context.Context, c *client.Client, id string) (*client.PromptPreset, error) {
	presets, err := c.Prompts(ctx)
	if err != nil {
		return nil, describe(err)
	}
	for i := range presets {
		if presets[i].ID == id {
			return &presets[i], nil
		}
	}
	return nil, fmt.Errorf("unknown preset %q", id)
}

var stopCmd = &cobra.Command{
	Use:   "stop <generationId>",
	Short: "Stop a running generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Stop(cmd.Context(), args[0]); err != nil {
			return describe(err)
		}
		printSuccess("Stop requested for %s", args[0])
		return nil
	},
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List preset system prompts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		presets, err := newClient().Prompts(cmd.Context())
		if err != nil {
			return describe(err)
		}
		if outputFmt == "json" {
			return printJSON(presets)
		}
		for _, p := range presets {
			fmt.Printf("%s  %s\n", bold(p.ID), cyan(p.Label))
			fmt.Printf("  %s\n", dim(truncate(p.Content, 100)))
		}
		return nil
	},
}

// describe turns API errors into something a person can act on
func describe(err error) error {
	switch {
	case client.IsUnauthorized(err):
		return fmt.Errorf("not signed in: set api.token or LOCALMIND_API_TOKEN (%w)", err)
	case client.IsForbidden(err):
		return fmt.Errorf("access denied (%w)", err)
	case client.IsNotFound(err):
		return fmt.Errorf("not found (%w)", err)
	case client.IsRateLimited(err):
		return fmt.Errorf("slow down (%w)", err)
	default:
		return err
	}
}
