package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mmynk/revshare/internal/app"
	"github.com/mmynk/revshare/internal/auth"
	"github.com/mmynk/revshare/internal/config"
	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/money"
	"github.com/mmynk/revshare/internal/service"
	"github.com/mmynk/revshare/internal/storage"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "revshare",
		Short:         "Operate the revenue ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newDistributeCommand(),
		newReportCommand(),
		newEventsCommand(),
		newValidateSplitsCommand(),
		newHashPasswordCommand(),
	)
	return root
}

func newDistributeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "distribute",
		Short: "Distribute all settled revenue not yet paid out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			dist, err := ledger.Engine.DistributeUndistributed(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dist == nil {
				fmt.Fprintln(out, "nothing to distribute")
				return nil
			}

			fmt.Fprintf(out, "distribution %s: %s over %d events\n",
				dist.ID, money.Format(dist.Total, dist.Currency), len(dist.SourceEventIDs))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, acct := range ledger.Engine.Accounts() {
				fmt.Fprintf(tw, "  %s\t%s\n", acct.Name, money.Format(dist.Allocations[acct.Name], dist.Currency))
			}
			return tw.Flush()
		},
	}
}

func newReportCommand() *cobra.Command {
	var (
		period string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print totals, account balances and target progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			dash, err := ledger.Reporter.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			revenue, err := ledger.Reporter.Revenue(cmd.Context(), service.Period(period))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"dashboard": dash, "revenue": revenue})
			}
			return printReport(out, dash, revenue)
		},
	}
	cmd.Flags().StringVar(&period, "period", string(service.PeriodAll), "revenue period: daily, weekly, monthly or all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printReport(out io.Writer, dash *service.Dashboard, revenue *service.RevenueSummary) error {
	cur := dash.Currency
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Subscribers\t%d\n", dash.Subscribers)
	fmt.Fprintf(tw, "Settled\t%s\n", money.Format(dash.TotalSettled, cur))
	fmt.Fprintf(tw, "Distributed\t%s\n", money.Format(dash.Distributed, cur))
	fmt.Fprintf(tw, "Undistributed\t%s\n", money.Format(dash.Undistributed, cur))
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "ACCOUNT\tSPLIT\tBALANCE")
	for _, b := range dash.Balances {
		fmt.Fprintf(tw, "%s\t%s%%\t%s\n", b.Name, decimal.New(b.SplitBasisPoints, -2).StringFixed(2), money.Format(b.Balance, cur))
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Revenue (%s)\t%s from %d payments, average %s\n",
		revenue.Period, money.Format(revenue.Total, cur), revenue.Payments, money.Format(revenue.Average, cur))
	if len(dash.Targets) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "TARGET\tCURRENT\tGOAL\tPROGRESS")
		for _, t := range dash.Targets {
			current, goal := fmt.Sprint(t.Current), fmt.Sprint(t.Value)
			if t.Metric == models.MetricRevenue {
				current, goal = money.Format(t.Current, cur), money.Format(t.Value, cur)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s%%\n", t.Name, current, goal, t.Percent)
		}
	}
	return tw.Flush()
}

func newEventsCommand() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded payments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := openLedger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			events, err := ledger.Reporter.Events(cmd.Context(), storage.EventFilter{
				Status: models.Status(strings.ToLower(status)),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REFERENCE\tSUBSCRIBER\tSTATUS\tAMOUNT\tCREATED")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.PaymentReference, e.SubscriberID, e.Status,
					money.Format(e.Amount, e.Currency), e.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show pending, settled or failed payments")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of payments to list (0 for all)")
	return cmd
}

func newValidateSplitsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-splits FILE",
		Short: "Check a split configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := config.LoadLedger(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: %d accounts, %d targets, currency %s\n", len(ledger.Accounts), len(ledger.Targets), ledger.Currency)
			return nil
		},
	}
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [PASSWORD]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func openLedger() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, nil)
}
