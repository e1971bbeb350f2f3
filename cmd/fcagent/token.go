package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/fcagent/pkg/auth"
	"github.com/pario-ai/fcagent/pkg/config"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		subject    string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token from the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			token, exp, err := auth.New(cfg.Auth).Issue(subject)
			if err != nil {
				return err
			}
			fmt.Println(token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fcagent.yaml", "path to config file")
	cmd.Flags().StringVar(&subject, "subject", auth.Subject, "token subject")
	return cmd
}
