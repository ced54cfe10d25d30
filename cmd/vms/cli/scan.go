package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/JeffCSZ/vms/internal/client"
	"github.com/JeffCSZ/vms/internal/gate"
	"github.com/JeffCSZ/vms/internal/model"
)

func newScanCmd() *cobra.Command {
	var (
		serverURL string
		email     string
		password  string
	)

	cmd := &cobra.Command{
		Use:   "scan <code-or-url>",
		Short: "Verify a scanned visitor code against a running server",
		Long: `Verify a visitor code the way the gate app does: log in as a verifier,
resolve the code, and print the admit/deny decision. The scan is appended to
the local scan history.`,
		Example: `  vms scan 0198c5c9-7b3a-4c5e-9f10-1234567890ab --email guard@example.com
  vms scan https://gate.example.com/visit/0198c5c9-7b3a-4c5e-9f10-1234567890ab`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(serverURL, email, password, args[0])
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "Server base URL")
	cmd.Flags().StringVar(&email, "email", "", "Verifier account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runScan(serverURL, email, password, rawScan string) error {
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := client.New(serverURL, nil, nil)
	if _, err := c.Login(ctx, email, password, model.RoleVerifier); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	history := client.NewScanHistory(scanHistoryPath())

	scanned, err := c.GetRequestByCode(ctx, rawScan)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			code, _ := gate.ParseScannedCode(rawScan)
			recordScan(history, client.ScanRecord{Code: code, Outcome: gate.OutcomeNotFound})
			fmt.Println("DENY: no visitor request matches this code")
			return nil
		}
		return err
	}

	recordScan(history, client.ScanRecord{
		Code:         scanned.PublicCode,
		Outcome:      scanned.Status,
		VisitorName:  scanned.VisitorName,
		VehiclePlate: scanned.VehiclePlate,
	})

	switch scanned.Status {
	case gate.OutcomeValid:
		fmt.Printf("ADMIT: %s (%s)\n", scanned.VisitorName, scanned.VehiclePlate)
	case gate.OutcomeExpired:
		fmt.Printf("DENY: request for %s expired at %s\n", scanned.VisitorName, scanned.ValidUntil.Local().Format(time.RFC1123))
	case gate.OutcomeWrongDay:
		fmt.Printf("CHECK: %s is scheduled for %s, not today\n", scanned.VisitorName, scanned.ScheduledStart.Local().Format("Mon Jan 2"))
	default:
		fmt.Printf("DENY: %s\n", scanned.Status)
	}

	fmt.Printf("  Issued by: %s (unit %s, street %s)\n", scanned.OwnerEmail, scanned.OwnerUnitNo, scanned.OwnerStreetNo)
	fmt.Printf("  Window:    %s - %s\n",
		scanned.ScheduledStart.Local().Format(time.RFC1123),
		scanned.ValidUntil.Local().Format(time.RFC1123))
	return nil
}

func recordScan(history *client.ScanHistory, rec client.ScanRecord) {
	rec.ScannedAt = time.Now()
	if err := history.Record(rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record scan history: %v\n", err)
	}
}
