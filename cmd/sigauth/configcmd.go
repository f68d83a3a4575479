package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitalvas/sigauth/signedreq"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and key set without serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			verifier, err := signedreq.Load(cfg.SecuritySettings())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if verifier == nil {
				fmt.Fprintln(out, "verification: disabled")
				return nil
			}

			fmt.Fprintln(out, "verification: enabled")
			fmt.Fprintf(out, "tolerance: %s\n", verifier.Tolerance())

			if cfg.Security.RequiredKeyID != "" {
				fmt.Fprintf(out, "required key id: %s\n", cfg.Security.RequiredKeyID)
			}

			for _, keyID := range verifier.Keys().KeyIDs() {
				fmt.Fprintf(out, "key: %s\n", keyID)
			}

			return nil
		},
	})

	return cmd
}
