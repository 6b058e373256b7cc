// payctl drives the buyer side of the payment lifecycle from the command
// line: create a payment, open the payment URL elsewhere, and wait for it to
// settle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tollgate-dev/tollgate/internal/client"
	"github.com/tollgate-dev/tollgate/internal/domain"
)

func main() {
	var (
		baseURL      = flag.String("base-url", "http://localhost:8080", "payment service base URL")
		apiKey       = flag.String("api-key", "", "API key sent as a bearer token")
		amount       = flag.Int64("amount", 0, "amount in the smallest currency unit")
		currency     = flag.String("currency", "USD", "ISO 4217 currency code")
		description  = flag.String("description", "", "optional payment description")
		cancelID     = flag.String("cancel", "", "cancel the payment with this id and exit")
		statusID     = flag.String("status", "", "print the payment with this id and exit")
		listStatus   = flag.String("list", "", "list payments, optionally filtered by status ('all' for no filter)")
		pollInterval = flag.Duration("poll-interval", 5*time.Second, "delay between status polls")
		pollAttempts = flag.Int("poll-attempts", 60, "maximum number of status polls")
		noWait       = flag.Bool("no-wait", false, "create the payment but do not poll for settlement")
	)
	flag.Parse()

	c := client.New(client.Config{
		BaseURL:         *baseURL,
		APIKey:          *apiKey,
		PollInterval:    *pollInterval,
		PollMaxAttempts: *pollAttempts,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case *cancelID != "":
		err = runCancel(ctx, c, *cancelID)
	case *statusID != "":
		err = runStatus(ctx, c, *statusID)
	case *listStatus != "":
		err = runList(ctx, c, *listStatus)
	default:
		err = runCreate(ctx, c, *amount, *currency, *description, *noWait)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "payctl:", err)
		os.Exit(1)
	}
}

func runCreate(ctx context.Context, c *client.Client, amount int64, currency, description string, noWait bool) error {
	if amount <= 0 {
		return errors.New("-amount must be greater than zero")
	}

	p, err := c.InitiatePayment(ctx, client.CreatePaymentRequest{
		Amount:      amount,
		Currency:    currency,
		Description: description,
	})
	if err != nil {
		return err
	}

	fmt.Printf("payment %s created (%d %s)\n", p.ID, p.Amount, p.Currency)
	fmt.Printf("complete it at: %s\n", p.PaymentURL)
	if noWait {
		return nil
	}

	fmt.Println("waiting for settlement...")
	settled, err := c.PollUntilSettled(ctx, p.ID)
	if err != nil {
		var terminal *client.TerminalStatusError
		if errors.As(err, &terminal) {
			return fmt.Errorf("payment did not complete: %s", terminal.Status)
		}
		return err
	}

	fmt.Printf("payment %s completed\n", settled.ID)
	if settled.ProofToken != "" {
		fmt.Printf("proof token: %s\n", settled.ProofToken)
	}
	return nil
}

func runCancel(ctx context.Context, c *client.Client, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid payment id %q", rawID)
	}
	p, err := c.CancelPayment(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("payment %s is now %s\n", p.ID, p.Status)
	return nil
}

func runStatus(ctx context.Context, c *client.Client, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid payment id %q", rawID)
	}
	p, err := c.CheckPaymentStatus(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  %d %s  expires %s\n", p.ID, p.Status, p.Amount, p.Currency, p.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runList(ctx context.Context, c *client.Client, statusFilter string) error {
	params := client.ListParams{}
	if statusFilter != "all" {
		params.Status = domain.PaymentStatus(statusFilter)
	}
	payments, err := c.ListPayments(ctx, params)
	if err != nil {
		return err
	}
	for _, p := range payments {
		fmt.Printf("%s  %-16s  %d %s  created %s\n", p.ID, p.Status, p.Amount, p.Currency, p.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
