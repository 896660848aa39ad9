package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"beatshop/internal/preflight"
	"beatshop/internal/storage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, storage and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var backend storage.Backend
			var openErr error
			if rt, err := ctx.services(cmd.Context()); err != nil {
				openErr = err
			} else {
				backend = rt.Backend
			}
			deps := preflight.CheckSystemDeps(cmd.Context(), cfg)
			checks := preflight.RunAll(cmd.Context(), cfg, backend)

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"storageBackend": cfg.Storage.Backend,
					"categories":     cfg.Catalog.Categories,
					"dependencies":   deps,
					"checks":         checks,
				})
			}

			out := cmd.OutOrStdout()
			report := newStatusReport(out)
			report.section("Service")
			report.line("Bind", statusInfo, cfg.Server.Bind)
			report.line("Categories", statusInfo, strings.Join(cfg.Catalog.Categories, ", "))
			report.line("Upload code set", boolKind(cfg.Ingest.SecretCode != ""), yesNo(cfg.Ingest.SecretCode != ""))
			report.line("Max upload", statusInfo, fmt.Sprintf("%d MB", cfg.Ingest.MaxUploadMB))
			if openErr != nil {
				report.line("Storage ("+cfg.Storage.Backend+")", statusError, openErr.Error())
			}

			report.section("Dependencies")
			for _, dep := range deps {
				kind, message := statusOK, dep.Command
				if !dep.Available {
					kind, message = statusError, dep.Detail
					if dep.Optional {
						kind = statusWarn
					}
				}
				report.line(dep.Name, kind, message)
			}

			report.section("Checks")
			for _, check := range checks {
				report.line(check.Name, boolKind(check.Passed), check.Detail)
			}
			if report.failures > 0 {
				report.lines = append(report.lines, "", fmt.Sprintf("%d problem(s) found", report.failures))
			}
			fmt.Fprintln(out, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}
