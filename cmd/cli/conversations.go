package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var conversationSearch string

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv", "c"},
	Short:   "Browse and delete conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your conversations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		convs, err := newClient().ListConversations(cmd.Context(), conversationSearch)
		if err != nil {
			return describe(err)
		}
		if outputFmt == "json" {
			return printJSON(convs)
		}
		if len(convs) == 0 {
			fmt.Println(dim("No conversations"))
			return nil
		}

		w := newTable()
		fmt.Fprintln(w, heading("ID\tTITLE\tLAST MESSAGE\tUPDATED"))
		for _, c := range convs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, truncate(c.Title, 40), dim(truncate(c.LastMessage, 50)), ago(c.UpdatedAt))
		}
		return w.Flush()
	},
}

var conversationsMessagesCmd = &cobra.Command{
	Use:   "messages <conversationId>",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msgs, err := newClient().Messages(cmd.Context(), args[0])
		if err != nil {
			return describe(err)
		}
		if outputFmt == "json" {
			return printJSON(msgs)
		}

		for _, m := range msgs {
			label := cyan("assistant")
			if m.Role == "user" {
				label = bold("you")
			}
			status := ""
			if m.Status != "" && m.Status != "complete" {
				status = " " + yellow("["+m.Status+"]")
			}
			fmt.Printf("%s %s%s\n%s\n\n", label, dim(m.Timestamp.Local().Format("Jan 2 15:04")), status, strings.TrimSpace(m.Content))
		}
		return nil
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <conversationId>",
	Short: "Delete a conversation and all of its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DeleteConversation(cmd.Context(), args[0]); err != nil {
			printError("Could not delete %s", args[0])
			return describe(err)
		}
		printSuccess("Deleted %s", args[0])
		return nil
	},
}

func init() {
	conversationsListCmd.Flags().StringVarP(&conversationSearch, "search", "s", "", "Only titles containing this text")

	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsMessagesCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
}
