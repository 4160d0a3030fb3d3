// Package sync provides the command that runs one bill synchronization.
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/grez-lucas/numericable-scraper/cmd/root"
	"github.com/grez-lucas/numericable-scraper/internal/bills"
	"github.com/grez-lucas/numericable-scraper/internal/config"
	"github.com/grez-lucas/numericable-scraper/internal/konnector"
	"github.com/grez-lucas/numericable-scraper/internal/logging"
	"github.com/grez-lucas/numericable-scraper/internal/reconcile"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider/numericable"
	"github.com/spf13/cobra"
)

// Flags overriding the configuration for one run
var (
	Folder     string
	Operations string
	Links      string
)

// Cmd represents the sync command
var Cmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch bills from the Numericable portal",
	Long: `Log into the Numericable customer portal, save the bills listed on the
billing page to the bills folder and link each one to its bank operation.

On failure the termination code (LOGIN_FAILED or UNKNOWN_ERROR) is printed
to stderr and the command exits with status 1.`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringVarP(&Folder, "folder", "f", "", "Folder bills are saved to (overrides bills.folder)")
	Cmd.Flags().StringVar(&Operations, "operations", "", "Bank operations CSV export (overrides reconcile.operations_file)")
	Cmd.Flags().StringVar(&Links, "links", "", "CSV file links are appended to (overrides reconcile.links_file)")
}

func run(cmd *cobra.Command, _ []string) error {
	if root.Config == nil {
		return errors.New("configuration not loaded")
	}

	cfg := *root.Config
	applyFlags(&cfg)
	if err := cfg.ValidateForSync(); err != nil {
		return err
	}

	log := root.Log.WithField(logging.FieldRunID, uuid.NewString())
	terminator := konnector.TerminatorFunc(func(code string) {
		fmt.Fprintln(cmd.ErrOrStderr(), code)
	})

	retrieved, err := Run(cmd.Context(), &cfg, log, terminator)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d bill(s) retrieved into %s\n", len(retrieved), cfg.Bills.Folder)
	return nil
}

func applyFlags(cfg *config.Config) {
	if Folder != "" {
		cfg.Bills.Folder = Folder
	}
	if Operations != "" {
		cfg.Reconcile.OperationsFile = Operations
	}
	if Links != "" {
		cfg.Reconcile.LinksFile = Links
	}
}

// Run builds the scraper, store and linker of one run from cfg and executes
// it. Extra scraper options are applied last.
func Run(ctx context.Context, cfg *config.Config, log logging.Logger, terminator konnector.Terminator, extra ...numericable.Option) ([]provider.Bill, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []numericable.Option{
		numericable.WithAccountURL(cfg.Portal.AccountURL),
		numericable.WithConnectionURL(cfg.Portal.ConnectionURL),
		numericable.WithTimeout(cfg.Timeout()),
		numericable.WithCloudflareBypass(cfg.HTTP.CloudflareBypass),
		numericable.WithLogger(log),
	}
	if cfg.HTTP.UserAgent != "" {
		opts = append(opts, numericable.WithUserAgent(cfg.HTTP.UserAgent))
	}
	opts = append(opts, extra...)

	scraper, err := numericable.NewScraper(opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = scraper.Close() }()

	linker, err := newLinker(cfg, log)
	if err != nil {
		return nil, err
	}

	store := bills.NewStore(scraper,
		bills.WithFolder(cfg.Bills.Folder),
		bills.WithStoreLogger(log),
	)

	k := konnector.New(scraper, store, linker,
		konnector.WithTerminator(terminator),
		konnector.WithLogger(log),
	)

	return k.Run(ctx, konnector.Params{
		Credentials: provider.Credentials{
			Login:    cfg.Account.Login,
			Password: cfg.Account.Password,
		},
		Folder: cfg.Bills.Folder,
	})
}

func newLinker(cfg *config.Config, log logging.Logger) (konnector.BankLinker, error) {
	if cfg.Reconcile.OperationsFile == "" {
		log.Info("No bank operations file configured, bills will not be linked")
		return reconcile.NopLinker{Log: log}, nil
	}
	return reconcile.NewCSVLinker(cfg.Reconcile.OperationsFile, cfg.Reconcile.LinksFile,
		reconcile.WithLinkerLogger(log),
	)
}
