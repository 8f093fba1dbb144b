package main

import (
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rt, err := setup(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.store.Migrate(cmd.Context()); err != nil {
				return err
			}
			rt.logger.Info("schema up to date", "driver", rt.store.Driver())
			return nil
		},
	}
	addDBFlags(cmd)
	return cmd
}
