package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/constants"
	"xinyuan_tech/checkout-service/internal/data"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Capture every authorization whose capture date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsecase(func(uc *biz.CheckoutUsecase) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				results, err := uc.DailyCaptureAuthorization(ctx)
				if perr := printResults(cmd.OutOrStdout(), results); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", constants.DefaultSweepTimeout, "overall sweep timeout")
	return cmd
}

func captureCmd() *cobra.Command {
	var final bool
	cmd := &cobra.Command{
		Use:   "capture [merchant-trade-no]",
		Short: "Capture one authorized checkout now, ignoring its capture date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsecase(func(uc *biz.CheckoutUsecase) error {
				result, err := uc.CaptureNow(cmd.Context(), args[0], final)
				if err != nil {
					return err
				}
				return printResults(cmd.OutOrStdout(), []*biz.CaptureResult{result})
			})
		},
	}
	cmd.Flags().BoolVar(&final, "final", false, "mark the capture as final")
	return cmd
}

func refundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refund [order-id]",
		Short: "Refund one order of its latest checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q: %w", args[0], err)
			}
			return withUsecase(func(uc *biz.CheckoutUsecase) error {
				ok, err := uc.Refund(cmd.Context(), orderID)
				if err != nil {
					return err
				}
				if flagFormat == "json" {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{"order_id": orderID, "refunded": ok})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %d refunded: %t\n", orderID, ok)
				return nil
			})
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [merchant-trade-no]",
		Short: "Show a checkout and its linked orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsecase(func(uc *biz.CheckoutUsecase) error {
				rec, links, err := uc.GetLedger(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printLedger(cmd.OutOrStdout(), rec, links)
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the checkout tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := data.NewDB(bc)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := data.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration completed")
			return nil
		},
	}
}

func printResults(w io.Writer, results []*biz.CaptureResult) error {
	if flagFormat == "json" {
		return json.NewEncoder(w).Encode(results)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MERCHANT_TRADE_NO\tCAPTURED\tCAPTURE_ID\tERROR")
	captured := 0
	for _, r := range results {
		if r.Captured {
			captured++
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", r.MerchantTradeNo, r.Captured, r.CaptureID, r.ErrorMessage)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "total=%d captured=%d failed=%d\n", len(results), captured, len(results)-captured)
	return err
}

func printLedger(w io.Writer, rec *biz.LedgerRecord, links []*biz.OrderLink) error {
	if flagFormat == "json" {
		return json.NewEncoder(w).Encode(map[string]interface{}{"ledger": rec, "orders": links})
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "merchant_trade_no\t%s\n", rec.MerchantTradeNo)
	fmt.Fprintf(tw, "payment_id\t%s\n", rec.PaymentID)
	fmt.Fprintf(tw, "authorization_id\t%s\n", rec.AuthorizationID)
	fmt.Fprintf(tw, "capture_id\t%s\n", rec.CaptureID)
	fmt.Fprintf(tw, "status\t%d\n", rec.Status)
	fmt.Fprintf(tw, "total_amount\t%s %s\n", rec.TotalAmount.StringFixed(2), rec.Currency)
	fmt.Fprintf(tw, "to_be_captured_amount\t%s %s\n", rec.ToBeCapturedAmount.StringFixed(2), rec.Currency)
	if rec.ToBeCapturedDate != nil {
		fmt.Fprintf(tw, "to_be_captured_date\t%s\n", rec.ToBeCapturedDate.Format(time.RFC3339))
	}
	for _, l := range links {
		fmt.Fprintf(tw, "order\t%d (service %d, status %d)\n", l.OrderID, l.PaymentServiceID, l.Status)
	}
	return tw.Flush()
}
