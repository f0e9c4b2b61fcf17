package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"classwork/internal/config"
	"classwork/internal/lifecycle"
	"classwork/internal/models"
	"classwork/internal/storage/sqlite"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user profiles",
}

var userAddCmd = &cobra.Command{
	Use:   "add <id> <name> <email>",
	Short: "Register a user profile",
	Long: `Register the profile of a user whose id was issued by the identity provider.
Students may name their supervising lecturer with --lecturer.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		role, _ := cmd.Flags().GetString("role")
		lecturer, _ := cmd.Flags().GetString("lecturer")

		logger := cfg.NewLogger(io.Discard)
		store, err := sqlite.Open(cfg.DBPath, nil, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		manager := lifecycle.New(store, logger)
		id, err := manager.RegisterUser(context.Background(), lifecycle.NewUser{
			ID:         args[0],
			Name:       args[1],
			Email:      args[2],
			Role:       models.Role(role),
			LecturerID: lecturer,
		})
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Registered %s %s (%s)\n", green("✓"), role, args[1], id)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		role, _ := cmd.Flags().GetString("role")

		store, err := sqlite.Open(cfg.DBPath, nil, cfg.NewLogger(io.Discard))
		if err != nil {
			return err
		}
		defer store.Close()

		users, err := lifecycle.New(store, nil).ListUsers(context.Background(), models.Role(role))
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(users) == 0 {
			fmt.Printf("%s\n", gray("No users"))
			return nil
		}
		for _, u := range users {
			fmt.Printf("%-10s %-36s %s <%s>\n", cyan(u.Role), u.ID, u.Name, u.Email)
		}
		return nil
	},
}

func init() {
	config.RegisterFlags(userAddCmd.Flags())
	userAddCmd.Flags().String("role", string(models.RoleStudent), "Role (student or lecturer)")
	userAddCmd.Flags().String("lecturer", "", "Supervising lecturer id for students")

	config.RegisterFlags(userListCmd.Flags())
	userListCmd.Flags().String("role", "", "Only list users with this role")

	userCmd.AddCommand(userAddCmd, userListCmd)
	rootCmd.AddCommand(userCmd)
}
