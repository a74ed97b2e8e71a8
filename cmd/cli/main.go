package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/gotransfer/internal/adapter/http/middleware"
	"github.com/iho/gotransfer/internal/infrastructure/auth"
)

type options struct {
	baseURL string
	account string
	token   string
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "gotransfer-cli",
		Short:         "GoTransfer CLI tool",
		Long:          `A command line interface for interacting with the GoTransfer API.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("GOTRANSFER_URL", "http://localhost:8080"), "Base URL of the GoTransfer API")
	rootCmd.PersistentFlags().StringVar(&opts.account, "account", os.Getenv("GOTRANSFER_ACCOUNT"), "Caller account ID (sent as X-Account-ID when no token is given)")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("GOTRANSFER_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		balanceCmd(opts),
		transferCmd(opts),
		accountsCmd(opts),
		compensationsCmd(opts),
		reconcileCmd(opts),
		tokenCmd(),
	)

	return rootCmd
}

func balanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the caller's balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Balance int64 `json:"balance"`
			}
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/account/balance", nil, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Balance)
			return nil
		},
	}
}

func transferCmd(opts *options) *cobra.Command {
	var (
		to             string
		amount         int64
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer funds from the caller to another account",
		RunE: func(cmd *cobra.Command, args []string) error {
			headers := map[string]string{}
			if idempotencyKey != "" {
				headers[middleware.IdempotencyKeyHeader] = idempotencyKey
			}

			body := map[string]any{"amount": amount, "to": to}
			var resp map[string]any
			if err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/account/transfer", headers, body, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient account ID")
	cmd.Flags().Int64Var(&amount, "amount", 0, "Amount in minor units")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key header value")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func accountsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Account administration",
	}

	var (
		id      string
		initial int64
	)
	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"initial_balance": initial}
			if id != "" {
				body["id"] = id
			}
			var resp map[string]any
			if err := newClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/accounts", nil, body, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	openCmd.Flags().StringVar(&id, "id", "", "Account ID (generated when empty)")
	openCmd.Flags().Int64Var(&initial, "balance", 0, "Initial balance in minor units")

	getCmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]any
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/accounts/"+url.PathEscape(args[0]), nil, nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Items []struct {
					ID      string `json:"id"`
					Balance int64  `json:"balance"`
				} `json:"items"`
			}
			path := fmt.Sprintf("/api/v1/accounts?limit=%d&offset=%d", limit, offset)
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, path, nil, nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-28s %15s\n", "ID", "BALANCE")
			for _, a := range resp.Items {
				fmt.Fprintf(out, "%-28s %15d\n", truncate(a.ID, 28), a.Balance)
			}
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	cmd.AddCommand(openCmd, getCmd, listCmd)
	return cmd
}

func compensationsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compensations",
		Short: "Pending compensations",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pending compensations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Items []struct {
					ID        string `json:"id"`
					AccountID string `json:"account_id"`
					Amount    int64  `json:"amount"`
					Attempts  int    `json:"attempts"`
					LastError string `json:"last_error"`
				} `json:"items"`
			}
			path := "/api/v1/compensations?limit=" + strconv.Itoa(limit)
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, path, nil, nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-28s %-20s %12s %8s  %s\n", "ID", "ACCOUNT", "AMOUNT", "ATTEMPTS", "LAST ERROR")
			for _, c := range resp.Items {
				fmt.Fprintf(out, "%-28s %-20s %12d %8d  %s\n",
					truncate(c.ID, 28), truncate(c.AccountID, 20), c.Amount, c.Attempts, truncate(c.LastError, 40))
			}
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries")

	cmd.AddCommand(listCmd)
	return cmd
}

func reconcileCmd(opts *options) *cobra.Command {
	var expected int64

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check that total funds are conserved",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/reconciliation"
			if cmd.Flags().Changed("expected") {
				path += "?expected=" + strconv.FormatInt(expected, 10)
			}

			var resp struct {
				TotalBalance  int64 `json:"total_balance"`
				PendingCount  int   `json:"pending_count"`
				PendingAmount int64 `json:"pending_amount"`
				Supply        int64 `json:"supply"`
				Balanced      *bool `json:"balanced"`
			}
			if err := newClient(opts).do(cmd.Context(), http.MethodGet, path, nil, nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total balance:  %d\n", resp.TotalBalance)
			fmt.Fprintf(out, "Pending:        %d (%d compensations)\n", resp.PendingAmount, resp.PendingCount)
			fmt.Fprintf(out, "Supply:         %d\n", resp.Supply)

			if resp.Balanced != nil {
				if !*resp.Balanced {
					return fmt.Errorf("reconciliation FAILED: expected %d, supply %d", expected, resp.Supply)
				}
				fmt.Fprintln(out, "Reconciliation PASSED")
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&expected, "expected", 0, "Expected total supply")

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		accountID string
		role      string
		secret    string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token locally with the server's JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			if accountID == "" && role != auth.RoleAdmin {
				return fmt.Errorf("--account-id is required for role %q", role)
			}

			token, err := auth.NewJWTManager(secret, ttl).Generate(accountID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account-id", "", "Account the token acts as")
	cmd.Flags().StringVar(&role, "role", auth.RoleAccount, "Token role (account or admin)")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}

type client struct {
	opts *options
	http *http.Client
}

func newClient(opts *options) *client {
	return &client{opts: opts, http: &http.Client{Timeout: opts.timeout}}
}

// apiError is a non-2xx API response.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Code, e.Status)
}

func (c *client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.opts.baseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.token)
	} else if c.opts.account != "" {
		req.Header.Set(middleware.AccountIDHeader, c.opts.account)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// 202 means the transfer was accepted and is still completing.
	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.Code = body.Error
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
