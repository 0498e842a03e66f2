package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/app"
	"github.com/joseph-ayodele/statements-tracker/internal/normalize"
	"github.com/joseph-ayodele/statements-tracker/internal/ocr"
	"github.com/joseph-ayodele/statements-tracker/internal/parser"
)

// newParseCommand is an offline dry run: extract, parse and normalize without
// touching the database or object store.
func newParseCommand(opts *rootOptions) *cobra.Command {
	var showText bool
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Dry-run extraction and parsing on a .txt, PDF or image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := opts.logger(cmd, cfg)
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var text, provider string
			var conf *float32
			if strings.EqualFold(filepath.Ext(args[0]), ".txt") {
				text, provider = string(data), "text-file"
			} else {
				chain, err := ocr.New(cmd.Context(), app.OCRConfig(cfg.Extraction), logger)
				if err != nil {
					return err
				}
				out, err := chain.Extract(cmd.Context(), data, constants.MIMEFromExt(filepath.Ext(args[0])))
				if err != nil {
					return err
				}
				if out.LowContent {
					logger.Warn("extracted text is below the minimum content", "chars", ocr.ContentLength(out.Text))
				}
				text, provider, conf = out.Text, out.Provider, out.Confidence
			}

			summary := parser.Parse(text)
			res := normalize.New().Normalize(uuid.Nil, summary.Transactions, normalize.NewSignatureSet(), conf)

			out := map[string]any{
				"provider":     provider,
				"summary":      summary.ToEntity(),
				"found":        len(summary.Transactions),
				"transactions": res.Records,
				"duplicates":   res.Duplicates,
				"parse_drops":  summary.Drops,
				"dropped":      res.Dropped,
			}
			if showText {
				out["text"] = text
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if len(res.Records) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no transactions recognized")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showText, "text", false, "include the extracted text in the output")
	return cmd
}
