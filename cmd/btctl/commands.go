package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/givestack/braintree-donations/internal/adapters/postgres"
	"github.com/givestack/braintree-donations/internal/core/domain"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func plansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect and map Braintree plans",
	}
	cmd.AddCommand(plansListCmd())
	cmd.AddCommand(plansMapCmd())
	return cmd
}

func plansListCmd() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the plans defined in Braintree",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			env, err := a.environment(cmd)
			if err != nil {
				return err
			}

			p := domain.Period(period)
			if p != "" && p.BillingFrequency() == 0 {
				return fmt.Errorf("unknown period %q", period)
			}

			plans, err := a.admin.ListPlans(cmd.Context(), env, p)
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(plans)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFREQUENCY\tPRICE\tCURRENCY")
			for _, plan := range plans {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", plan.ID, plan.Name, plan.BillingFrequency, plan.Price, plan.Currency)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&period, "period", "p", "", "Only plans for this period (month, quarter, semiannual, year)")
	return cmd
}

func plansMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map [campaign-id] [period] [plan-id]",
		Short: "Bill a campaign's period on a Braintree plan",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid campaign id %q", args[0])
			}
			period := domain.Period(args[1])
			if period.BillingFrequency() == 0 {
				return fmt.Errorf("unknown period %q", args[1])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			env, err := a.environment(cmd)
			if err != nil {
				return err
			}

			if err := a.store.SetCampaignPlan(cmd.Context(), campaignID, env, period, args[2]); err != nil {
				return err
			}
			fmt.Printf("Campaign %d (%s, %s) billed on plan %s\n", campaignID, env, period, args[2])
			return nil
		},
	}
	return cmd
}

func merchantAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merchant-account",
		Short: "Inspect Braintree merchant accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "find [merchant-account-id]",
		Short: "Look up a merchant account, by default the configured one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			env, err := a.environment(cmd)
			if err != nil {
				return err
			}

			var id string
			if len(args) == 1 {
				id = args[0]
			}
			account, err := a.admin.FindMerchantAccount(cmd.Context(), env, id)
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(account)
			}
			fmt.Printf("%s\t%s\n", account.ID, account.Status)
			return nil
		},
	})
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := postgres.AutoMigrate(a.db, a.log); err != nil {
				return err
			}
			fmt.Println("Migration complete")
			return nil
		},
	}
}

func refundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refund [donation-id]",
		Short: "Refund a completed donation in Braintree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid donation id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			outcome, err := a.admin.Refund(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("refund failed: %s", domain.Message(err))
			}
			fmt.Printf("Donation %d refunded (transaction %s)\n", id, outcome.TransactionID)
			return nil
		},
	}
}

func subscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Manage recurring donations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel [subscription-id]",
		Short: "Cancel a recurring donation in Braintree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid subscription id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.admin.CancelSubscription(cmd.Context(), id); err != nil {
				return fmt.Errorf("cancellation failed: %s", domain.Message(err))
			}
			fmt.Printf("Subscription %d cancelled\n", id)
			return nil
		},
	})
	return cmd
}

func linksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links",
		Short: "Print Braintree control panel shortcuts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			env, err := a.environment(cmd)
			if err != nil {
				return err
			}
			links, err := a.admin.Links(cmd.Context(), env)
			if err != nil {
				return err
			}
			if jsonFlag {
				return printJSON(links)
			}
			fmt.Printf("New plan:             %s\n", links.NewPlan)
			fmt.Printf("New merchant account: %s\n", links.NewMerchantAccount)
			return nil
		},
	}
}
