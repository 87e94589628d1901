package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-dynform/pkg/gateway"
	"github.com/goliatone/go-dynform/pkg/gateway/httpclient"
	"github.com/goliatone/go-dynform/pkg/render"
	"github.com/goliatone/go-dynform/pkg/renderers/tui"
)

func submissionsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "Browse stored submissions",
	}

	printRows := func(cmd *cobra.Command, subs []gateway.Submission) error {
		if len(subs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No submissions.")
			return nil
		}
		tui.WriteSubmissions(cmd.OutOrStdout(), render.SubmissionRows(subs))
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List submissions, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := g.load(cmd)
				if err != nil {
					return err
				}
				client, err := httpclient.New(cfg.Client.ServerURL)
				if err != nil {
					return err
				}
				subs, err := client.ListSubmissions(cmd.Context())
				if err != nil {
					return err
				}
				return printRows(cmd, subs)
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one submission",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := g.load(cmd)
				if err != nil {
					return err
				}
				client, err := httpclient.New(cfg.Client.ServerURL)
				if err != nil {
					return err
				}
				sub, err := client.GetSubmission(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printRows(cmd, []gateway.Submission{sub})
			},
		},
	)
	return cmd
}
