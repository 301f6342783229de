package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basalytics/basalytics/internal/auth"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage operator accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create USERNAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			return fmt.Errorf("--password is required")
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tokens, err := auth.NewTokenService(ctx, st)
		if err != nil {
			return err
		}
		account, err := auth.NewService(st, tokens).CreateAccount(ctx, args[0], password)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}

		fmt.Printf("Created account %s (%s)\n", account.Username, account.ID)
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		accounts, err := st.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		for _, account := range accounts {
			fmt.Printf("%s\t%s\n", account.ID, account.Username)
		}
		return nil
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteAccount(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		fmt.Println("Deleted account", args[0])
		return nil
	},
}

func init() {
	accountCreateCmd.Flags().String("password", "", "password for the new account")
	accountCmd.AddCommand(accountCreateCmd, accountListCmd, accountDeleteCmd)
	rootCmd.AddCommand(accountCmd)
}
