package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JeffCSZ/vms/internal/config"
	"github.com/JeffCSZ/vms/internal/model"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
		Long:  "Create and list issuer and verifier accounts directly against the database, without going through the API.",
	}

	cmd.AddCommand(newAccountCreateCmd())
	cmd.AddCommand(newAccountListCmd())

	return cmd
}

// ---------- account create ----------

func newAccountCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		role     string
		unitNo   string
		streetNo string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new account",
		Example: `  vms account create --email alice@example.com --role issuer --unit 12 --street 7
  vms account create --email guard@example.com --role verifier  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountCreate(email, password, role, unitNo, streetNo)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&role, "role", "", "Account role: issuer or verifier (required)")
	cmd.Flags().StringVar(&unitNo, "unit", "", "Unit number (issuer accounts)")
	cmd.Flags().StringVar(&streetNo, "street", "", "Street number (issuer accounts)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("role")

	return cmd
}

func runAccountCreate(email, password, roleStr, unitNo, streetNo string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}
	role, err := model.ParseRole(roleStr)
	if err != nil {
		return err
	}

	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	cfg := config.FromViper()
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	authSvc := newAuthService(st, cfg)
	identity, _, err := authSvc.Register(context.Background(), email, password, role, unitNo, streetNo)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s account %q (%s)\n", identity.Role, identity.Email, identity.DisplayName)
	return nil
}

// ---------- account list ----------

func newAccountListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAccountList(jsonOutput bool) error {
	cfg := config.FromViper()
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	identities, err := st.ListIdentities(context.Background())
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(identities)
	}

	if len(identities) == 0 {
		fmt.Println("No accounts configured. Use 'vms account create' to create one.")
		return nil
	}

	fmt.Printf("%-30s %-20s %-10s %-8s %-8s\n", "EMAIL", "NAME", "ROLE", "UNIT", "STREET")
	fmt.Printf("%-30s %-20s %-10s %-8s %-8s\n", "-----", "----", "----", "----", "------")
	for _, id := range identities {
		fmt.Printf("%-30s %-20s %-10s %-8s %-8s\n", id.Email, id.DisplayName, id.Role, id.UnitNo, id.StreetNo)
	}

	return nil
}
