package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-dynform/pkg/gateway/httpclient"
	"github.com/goliatone/go-dynform/pkg/render"
	"github.com/goliatone/go-dynform/pkg/renderers/tui"
	"github.com/goliatone/go-dynform/pkg/session"
)

func fillCmd(g *globals) *cobra.Command {
	var (
		attempts int
		preview  bool
	)

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill and submit the active form on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			client, err := httpclient.New(cfg.Client.ServerURL)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			rec, err := client.GetActiveSchema(ctx)
			if err != nil {
				return err
			}
			sess := session.New(client, session.WithLogger(logger))
			sess.Load(rec.Schema())

			if preview {
				out, err := tui.TextRenderer{}.Render(ctx, sess.Snapshot(), render.RenderOptions{})
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}

			filler := tui.New(
				tui.WithPromptDriver(tui.NewSurveyDriver(cmd.OutOrStdout())),
				tui.WithMaxAttempts(attempts),
				tui.WithLogger(logger),
			)
			if err := filler.Fill(ctx, sess); err != nil {
				if errors.Is(err, tui.ErrAborted) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
					return nil
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&attempts, "attempts", 3, "Prompts per field and submit retries before giving up")
	cmd.Flags().BoolVar(&preview, "preview", false, "Print the form instead of prompting")
	return cmd
}
