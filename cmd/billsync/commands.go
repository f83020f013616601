package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/billsync/internal/app"
	"github.com/dharsanguruparan/billsync/internal/config"
	"github.com/dharsanguruparan/billsync/internal/ingest"
	"github.com/dharsanguruparan/billsync/internal/mailbox"
	"github.com/dharsanguruparan/billsync/internal/match"
	"github.com/dharsanguruparan/billsync/internal/model"
	"github.com/dharsanguruparan/billsync/internal/normalize"
	"github.com/dharsanguruparan/billsync/internal/oracle"
	pdfutil "github.com/dharsanguruparan/billsync/internal/pdf"
	"github.com/dharsanguruparan/billsync/internal/repository"
)

const localUser = "local"

func newMatchCmd() *cobra.Command {
	var (
		txFile    string
		billFile  string
		exclusive bool
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match transactions to bills from JSON files",
		RunE: func(cmd *cobra.Command, args []string) error {
			var txs []model.Transaction
			if err := readJSON(txFile, &txs); err != nil {
				return err
			}
			var bills []model.Bill
			if err := readJSON(billFile, &bills); err != nil {
				return err
			}
			matches := match.Match(txs, bills, match.Options{ExclusiveBills: exclusive})
			if matches == nil {
				matches = []model.Match{}
			}
			return writeJSON(cmd.OutOrStdout(), matches)
		},
	}
	cmd.Flags().StringVar(&txFile, "transactions", "", "JSON array of transactions")
	cmd.Flags().StringVar(&billFile, "bills", "", "JSON array of bills")
	cmd.Flags().BoolVar(&exclusive, "exclusive", false, "Retire a bill once it has matched a transaction")
	_ = cmd.MarkFlagRequired("transactions")
	_ = cmd.MarkFlagRequired("bills")
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	var (
		emlFile   string
		pageLimit int
	)
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Print the document built from an RFC 822 message file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(emlFile)
			if err != nil {
				return fmt.Errorf("open message: %w", err)
			}
			defer f.Close()
			id := strings.TrimSuffix(filepath.Base(emlFile), filepath.Ext(emlFile))
			mf, err := mailbox.ParseEML(f, id)
			if err != nil {
				return err
			}
			msg, err := mf.Message(cmd.Context(), id)
			if err != nil {
				return err
			}
			doc, err := normalize.New(pdfutil.Extractor{}, pageLimit).Normalize(cmd.Context(), msg, mf)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVar(&emlFile, "eml", "", "Path to an .eml file")
	cmd.Flags().IntVar(&pageLimit, "page-limit", normalize.DefaultPageLimit, "PDF attachment pages to read")
	_ = cmd.MarkFlagRequired("eml")
	return cmd
}

func newExtractCmd() *cobra.Command {
	var (
		file string
		kind string
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run the extraction oracle against a local file",
		Long: `extract sends a local file through the same pipeline the worker uses. An .eml file is
treated as a possible bill; anything else as a bank statement. The oracle is chosen by ORACLE_PROVIDER.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind == "" {
				kind = "statement"
				if strings.EqualFold(filepath.Ext(file), ".eml") {
					kind = "bill"
				}
			}
			if kind != "bill" && kind != "statement" {
				return fmt.Errorf("unknown kind %q (want bill or statement)", kind)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.NewLogger(cmd.ErrOrStderr())
			m, closeModel, err := app.NewModel(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeModel()
			return runExtract(cmd.Context(), cmd.OutOrStdout(), cfg, oracle.NewClient(m, cfg.OracleTimeout), file, kind)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to an .eml message or a statement (PDF or text)")
	cmd.Flags().StringVar(&kind, "kind", "", "bill or statement (default: from file extension)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// runExtract drives the ingest service over an in-memory store so the output
// matches what the worker would persist.
func runExtract(ctx context.Context, out io.Writer, cfg *config.Config, extractor ingest.Extractor, file, kind string) error {
	svc, err := app.NewService(cfg, repository.NewMemoryStore(), extractor)
	if err != nil {
		return err
	}
	if kind == "bill" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open message: %w", err)
		}
		defer f.Close()
		mf, err := mailbox.ParseEML(f, filepath.Base(file))
		if err != nil {
			return err
		}
		report, err := svc.ScanMailbox(ctx, localUser, mf, "", 1)
		if err != nil {
			return err
		}
		return writeJSON(out, report)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read statement: %w", err)
	}
	report, err := svc.ProcessStatements(ctx, localUser, []ingest.StatementFile{{
		ID:       uuid.NewString(),
		FileName: filepath.Base(file),
		Data:     data,
	}})
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}

func newServiceRunner(name, short string, run func(context.Context, *config.Config) error) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.NewLogger(os.Stdout)
			return run(cmd.Context(), cfg)
		},
	}
}

func runAPI(ctx context.Context, cfg *config.Config) error    { return app.RunAPI(ctx, cfg) }
func runWorker(ctx context.Context, cfg *config.Config) error { return app.RunWorker(ctx, cfg) }

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
