package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"beatshop/internal/config"
	"beatshop/internal/ingest"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var category string
	var code string
	var name string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Validate and store a beat",
		Long: "Runs the same checks as the HTTP upload endpoint. --code defaults to " +
			"ingest.secret_code from the loaded configuration.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer file.Close()

			var declared int64
			if info, err := file.Stat(); err == nil {
				declared = info.Size()
			}
			supplied := code
			if !cmd.Flags().Changed("code") {
				supplied = rt.Config.Ingest.SecretCode
			}
			filename := name
			if filename == "" {
				filename = filepath.Base(path)
			}

			decision, err := rt.Ingest.Ingest(cmd.Context(), ingest.Request{
				Filename:     filename,
				DeclaredSize: declared,
				Category:     category,
				SuppliedCode: supplied,
				Payload:      file,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in %s (%s)\n", decision.Ref.Name, decision.Ref.Category, formatBytes(decision.Ref.Size))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Target category")
	cmd.Flags().StringVar(&code, "code", "", "Upload code")
	cmd.Flags().StringVar(&name, "name", "", "Store under this name instead of the file's base name")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}
