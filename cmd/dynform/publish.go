package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-dynform/internal/watch"
	"github.com/goliatone/go-dynform/pkg/gateway/httpclient"
	"github.com/goliatone/go-dynform/pkg/schema"
)

func publishCmd(g *globals) *cobra.Command {
	var (
		fromOpenAPI bool
		operation   string
		activate    string
	)

	cmd := &cobra.Command{
		Use:   "publish [file]",
		Short: "Publish a schema file and make it the active form",
		Long: `Publish reads a JSON or YAML form schema (chosen by file extension) and
sends it to the server. With --openapi the file is an OpenAPI 3 document and
the form is derived from the JSON request body of --operation.

With --activate the file argument is omitted and an already published schema
is made active again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd)
			if err != nil {
				return err
			}
			client, err := httpclient.New(cfg.Client.ServerURL)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if activate != "" {
				rec, err := client.ActivateSchema(ctx, activate)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Activated %s (%s)\n", rec.Title, rec.ID)
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("publish: a schema file is required")
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}
			var form schema.FormSchema
			if fromOpenAPI {
				form, err = schema.ImportOpenAPI(ctx, raw, operation)
			} else {
				form, err = watch.Load(args[0], raw)
			}
			if err != nil {
				return err
			}

			pub, err := client.PublishSchema(ctx, form)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Published %s (%s)\n", pub.Title, pub.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromOpenAPI, "openapi", false, "Treat the file as an OpenAPI 3 document")
	cmd.Flags().StringVar(&operation, "operation", "", "OpenAPI operation ID whose request body becomes the form")
	cmd.Flags().StringVar(&activate, "activate", "", "Activate the published schema with this ID instead")
	return cmd
}
