package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go-dishlens-backend/config"
	"go-dishlens-backend/internal/icount"
	"go-dishlens-backend/internal/repository/postgres"
	"go-dishlens-backend/internal/usecase"
	"go-dishlens-backend/pkg/database"
	"go-dishlens-backend/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	dryRun     bool
	noHeadless bool
	timeout    time.Duration
)

// invoicesync scrapes paid invoices from the iCount portal and records
// any the webhook missed. Runs from cron; exits non-zero on total
// failure so the scheduler alerts, but partial row failures only log.
func main() {
	root := &cobra.Command{
		Use:          "invoicesync",
		Short:        "Sync paid iCount invoices into the payments table",
		SilenceUsage: true,
		RunE:         run,
	}

	root.Flags().BoolVar(&dryRun, "dry-run", false, "scrape and report without writing to the database")
	root.Flags().BoolVar(&noHeadless, "no-headless", false, "show the browser window (debugging)")
	root.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "overall time budget for the sync run")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init()
	log := logger.Log.With("component", "invoicesync")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	scraper := icount.NewScraper(cfg.ICountCompany, cfg.ICountUser, cfg.ICountPassword,
		icount.WithHeadless(!noHeadless))

	invoices, err := scraper.FetchPaidInvoices(ctx)
	if err != nil {
		return err
	}
	log.Info("scraped paid invoices", "count", len(invoices))

	if dryRun {
		for _, inv := range invoices {
			fmt.Printf("%-12s %10.2f  %s <%s>\n", inv.DocNum, inv.Amount, inv.CustomerName, inv.CustomerEmail)
		}
		return nil
	}

	dbPool, err := database.NewPostgresConnection(cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbPool.Close()

	paymentUC := usecase.NewPaymentUsecase(postgres.NewPaymentRepository(dbPool))

	var created, skipped, failed int
	for _, inv := range invoices {
		isNew, err := paymentUC.RecordSynced(ctx, inv.DocNum, inv.Amount, inv.CustomerName, inv.CustomerEmail)
		switch {
		case err != nil:
			failed++
			log.Error("record invoice failed", "doc_id", inv.DocNum, "error", err)
		case isNew:
			created++
		default:
			skipped++
		}
	}

	log.Info("sync complete", "created", created, "already_known", skipped, "failed", failed)
	if failed > 0 && created == 0 && skipped == 0 {
		return fmt.Errorf("all %d invoices failed to record", failed)
	}
	return nil
}
