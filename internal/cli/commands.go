package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"invoicedash/internal/client"
)

func newUploadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF and print its file id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := opts.client().Upload(ctx, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			return opts.printer(cmd).result(res, func(w io.Writer) {
				fmt.Fprintf(w, "Uploaded %s as %s\n", res.FileName, res.FileID)
			})
		},
	}
}

func newExtractCommand(opts *RootOptions) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "extract <fileId>",
		Short: "Extract invoice data from an uploaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			doc, err := opts.client().Extract(ctx, args[0], model)
			if err != nil {
				return err
			}
			return opts.printer(cmd).invoice(doc)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "gemini", "extraction model (gemini|groq)")
	return cmd
}

func newProcessCommand(opts *RootOptions) *cobra.Command {
	var (
		model string
		save  bool
	)
	cmd := &cobra.Command{
		Use:   "process <file.pdf>",
		Short: "Upload, extract and optionally save an invoice in one step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			wb := client.NewWorkbench(opts.client())
			if err := wb.SelectFile(args[0], data); err != nil {
				return err
			}
			if _, err := wb.Upload(ctx); err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			doc, err := wb.Extract(ctx, model)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			if save {
				if doc, err = wb.Save(ctx); err != nil {
					return fmt.Errorf("save: %w", err)
				}
			}
			return opts.printer(cmd).invoice(doc)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "gemini", "extraction model (gemini|groq)")
	cmd.Flags().BoolVar(&save, "save", false, "store the extracted invoice")
	return cmd
}

func newListCommand(opts *RootOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			docs, err := opts.client().ListInvoices(ctx, query)
			if err != nil {
				return err
			}
			return opts.printer(cmd).invoices(docs)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search vendor name and invoice number")
	return cmd
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			doc, err := opts.client().GetInvoice(ctx, id)
			if err != nil {
				return err
			}
			return opts.printer(cmd).invoice(doc)
		},
	}
}

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			if err := opts.client().DeleteInvoice(ctx, id); err != nil {
				return err
			}
			return opts.printer(cmd).result(map[string]int64{"deleted": id}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted invoice %d\n", id)
			})
		},
	}
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	var (
		query  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download invoices as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			data, err := opts.client().ExportInvoices(ctx, query)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			return opts.printer(cmd).result(map[string]any{"path": output, "bytes": len(data)}, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote %s (%d bytes)\n", output, len(data))
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search vendor name and invoice number")
	cmd.Flags().StringVarP(&output, "output", "o", "invoices.xlsx", "destination file")
	return cmd
}

func (o *RootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

func (o *RootOptions) printer(cmd *cobra.Command) printer {
	return printer{format: o.Format, w: cmd.OutOrStdout()}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid invoice id %q", s)
	}
	return id, nil
}

