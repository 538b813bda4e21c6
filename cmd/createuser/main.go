package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"checklist/config"
	"checklist/database"
	"checklist/logger"
	"checklist/models"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var req models.UserRequest

	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a checklist user account",
		Long:  "Create a user directly in the database, typically the first staff account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateRequest(req); err != nil {
				return err
			}
			if req.IsSuperuser {
				req.IsStaff = true
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := database.Connect(ctx, cfg.DatabaseURL, log)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := db.CreateUser(ctx, req, 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d, staff=%t)\n", user.Username, user.ID, user.IsStaff)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Username, "username", "u", "", "login name (personal number)")
	f.StringVarP(&req.Password, "password", "p", "", "initial password")
	f.StringVar(&req.Email, "email", "", "email address")
	f.StringVar(&req.FirstName, "first-name", "", "first name")
	f.StringVar(&req.LastName, "last-name", "", "last name")
	f.BoolVar(&req.IsStaff, "staff", false, "allow managing users")
	f.BoolVar(&req.IsSuperuser, "superuser", false, "grant superuser rights (implies --staff)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func validateRequest(req models.UserRequest) error {
	if len(req.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}
