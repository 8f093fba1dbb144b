package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sprintboard/internal/models"
	"sprintboard/internal/service"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts without the HTTP API",
	}
	cmd.AddCommand(userCreateCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var in service.CreateUserInput
	var role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account, typically the first admin",
		Example: `  sprintboard user create --name "Ada" --email ada@example.com --password 'S3cure-pass' --role ADMIN`,
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

			in.Role = models.Role(role)
			user, err := rt.svc.Users.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "sign-in email")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password (at least 8 characters)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleMember), "ADMIN or MEMBER")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	addDBFlags(cmd)
	return cmd
}
