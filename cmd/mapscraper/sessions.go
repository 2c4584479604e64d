package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-maps/store"
)

// NewSessionsCmd creates the sessions command group.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and delete stored sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored sessions, newest first",
		Args:  cobra.NoArgs,
		RunE:  runSessionsList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>...",
		Short: "Delete stored sessions and their records",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSessionsDelete,
	})
	return cmd
}

func withStore(cmd *cobra.Command, fn func(ctx context.Context, st store.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ctx := cmd.Context()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(ctx context.Context, st store.Store) error {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tKEYWORDS\tLOCATION\tSTATUS\tPROGRESS\tRECORDS\tCREATED")
		for _, s := range sessions {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
				s.SessionID, s.Keywords, s.Location, s.Status,
				s.Completed, s.Total, s.Records, s.CreatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	})
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, st store.Store) error {
		for _, id := range args {
			if err := st.DeleteSession(ctx, id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return nil
	})
}
