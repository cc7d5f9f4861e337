package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursecart/fulfillment/internal/auth"
	"github.com/coursecart/fulfillment/internal/model"
	"github.com/coursecart/fulfillment/internal/payment"
	"github.com/coursecart/fulfillment/internal/webhook"
)

type keyOutput struct {
	UserID    string   `json:"user_id"`
	KeyID     string   `json:"key_id"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
}

func printKey(w io.Writer, format string, out keyOutput) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	_, err := fmt.Fprintln(w, out.Key)
	return err
}

// signCmd prints the signature the gateway would attach to a payment,
// for exercising create-order by hand.
func (a *app) signCmd() *cobra.Command {
	var orderID, paymentID, secret string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the payment signature for an order/payment pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("RAZORPAY_KEY_SECRET is required (flag --secret or environment)")
			}
			if orderID == "" || paymentID == "" {
				return errors.New("--order-id and --payment-id are required")
			}
			fmt.Fprintln(cmd.OutOrStdout(), payment.NewVerifier(secret).Sign(orderID, paymentID))
			return nil
		},
	}
	cmd.Flags().StringVar(&orderID, "order-id", "", "Gateway order reference")
	cmd.Flags().StringVar(&paymentID, "payment-id", "", "Gateway payment reference")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("RAZORPAY_KEY_SECRET"), "Gateway key secret")
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Access token utilities"}

	var userID, role, secret string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user-id is required")
			}
			if role != model.RoleUser && role != model.RoleAdmin {
				return fmt.Errorf("invalid --role %q: use user or admin", role)
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			token, err := auth.NewTokenManager(secret).Issue(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user-id", "", "Subject user ID")
	issue.Flags().StringVar(&role, "role", model.RoleUser, "Role: user or admin")
	issue.Flags().StringVar(&secret, "secret", os.Getenv("ACCESS_TOKEN_SECRET"), "Token signing secret")
	issue.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	cmd.AddCommand(issue)
	return cmd
}

func (a *app) webhookCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "webhook", Short: "Order event webhook utilities"}
	cmd.AddCommand(&cobra.Command{
		Use:   "secret",
		Short: "Generate a value for ORDER_WEBHOOK_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := webhook.GenerateSecret()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	})
	return cmd
}
