package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sprintboard/internal/seed"
)

func seedCmd() *cobra.Command {
	var (
		file  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo users, a sprint, tasks and comments",
		Long: `Load a YAML fixture into the database.

Without --file the built-in fixture is used: one admin, two members, a sprint
running from a week ago to two weeks ahead, tasks in every status, general
tasks, subtasks and comments. All accounts share the fixture password.

The command refuses to touch a database that already has users unless
--force is given, in which case all existing data is removed first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixture, err := loadFixture(file)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rt, err := setup(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := seed.NewLoader(rt.store, rt.svc, rt.logger).Apply(cmd.Context(), fixture, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users, %d sprints, %d tasks, %d comments\n", res.Users, res.Sprints, res.Tasks, res.Comments)
			for _, u := range fixture.Users {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-6s %s\n", u.Role, u.Email)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML fixture to load instead of the built-in one")
	cmd.Flags().BoolVar(&force, "force", false, "wipe existing data before seeding")
	addDBFlags(cmd)
	return cmd
}

func loadFixture(file string) (*seed.Fixture, error) {
	if file == "" {
		return seed.Default()
	}
	return seed.LoadFile(file)
}
