package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in as an operator and print the access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		session, err := newAPI(cmd).Login(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		if session.Admin != nil {
			fmt.Fprintf(os.Stderr, "Logged in as %s <%s>\n", session.Admin.DisplayName, session.Admin.Email)
		}
		fmt.Println(session.AccessToken)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether an operator is online",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := newAPI(cmd).Status(cmd.Context())
		if err != nil {
			return err
		}
		if status.AdminOnline {
			fmt.Printf("online (%d operators)\n", status.Admins)
		} else {
			fmt.Println("offline")
		}
		return nil
	},
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List conversations, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		convs, err := newAPI(cmd).Conversations(cmd.Context(), token, limit, offset)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CONVERSATION\tVISITOR\tUNREAD\tLAST ACTIVITY\tLAST MESSAGE")
		for _, c := range convs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				c.ConversationID, c.VisitorName, c.UnreadCount,
				c.LastMessageAt.Local().Format("2006-01-02 15:04"), c.LastMessage)
		}
		return w.Flush()
	},
}

func init() {
	loginCmd.Flags().String("email", "", "operator email")
	loginCmd.Flags().String("password", "", "operator password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	inboxCmd.Flags().String("token", "", "operator access token")
	inboxCmd.Flags().Int("limit", 50, "page size")
	inboxCmd.Flags().Int("offset", 0, "page offset")
	_ = inboxCmd.MarkFlagRequired("token")
}
