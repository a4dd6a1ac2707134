// cmd/commands.go

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"

	"github.com/invoicing-desk/pkg/opener"
	"github.com/invoicing-desk/pkg/store"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

func nextNumberCommand() *cli.Command {
	return &cli.Command{
		Name:  "next-number",
		Usage: "print the next suggested invoice number",
		Action: action(func(c *cli.Context, e *env) error {
			n, err := e.desk.NextNumber()
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, n)
			return nil
		}),
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list stored invoice documents",
		Action: action(func(c *cli.Context, e *env) error {
			keys, err := e.desk.List()
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Fprintln(c.App.Writer, mutedStyle.Render("no invoices in "+e.cfg.InvoicesDir))
				return nil
			}
			for _, k := range keys {
				fmt.Fprintln(c.App.Writer, k+store.DocumentExt)
			}
			return nil
		}),
	}
}

func reportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "reports",
		Usage: "summarize stored invoices",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "csv", Usage: "export to `FILE` instead of printing (- for stdout)"},
		},
		Action: action(func(c *cli.Context, e *env) error {
			if path := c.String("csv"); path != "" {
				return exportCSV(c, e, path)
			}
			rows, err := e.desk.Reports()
			if err != nil {
				return err
			}
			printReports(c.App.Writer, rows)
			return nil
		}),
	}
}

func exportCSV(c *cli.Context, e *env, path string) error {
	if path == "-" {
		_, err := e.desk.ExportCSV(c.App.Writer)
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := e.desk.ExportCSV(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, successStyle.Render(fmt.Sprintf("exported %d invoices to %s", n, path)))
	return nil
}

var reportColumns = []struct {
	title string
	width int
	right bool
}{
	{"Customer", 20, false},
	{"Invoice No", 12, false},
	{"Date", 10, false},
	{"Due Date", 10, false},
	{"Contact", 20, false},
	{"Tax %", 6, true},
	{"Discount", 10, true},
	{"Subtotal", 12, true},
	{"Tax Amt", 10, true},
	{"Total", 12, true},
}

func printReports(w io.Writer, rows []store.Summary) {
	cell := func(i int, text string) string {
		col := reportColumns[i]
		st := lipgloss.NewStyle().Width(col.width).MaxWidth(col.width)
		if col.right {
			st = st.Align(lipgloss.Right)
		}
		return st.Render(text)
	}

	titles := make([]string, len(reportColumns))
	for i, col := range reportColumns {
		titles[i] = cell(i, col.title)
	}
	fmt.Fprintln(w, headerStyle.Render(strings.Join(titles, " ")))
	for _, r := range rows {
		vals := r.Row()
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = cell(i, v)
		}
		fmt.Fprintln(w, strings.Join(cells, " "))
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d invoices", len(rows))))
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "render and store an invoice from a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "invoice", Aliases: []string{"i"}, Usage: "invoice JSON `FILE`", Required: true},
			&cli.StringFlag{Name: "logo", Usage: "logo image `FILE`"},
			&cli.StringFlag{Name: "signature", Usage: "signature image `FILE`"},
		},
		Action: action(func(c *cli.Context, e *env) error {
			data, err := os.ReadFile(c.String("invoice"))
			if err != nil {
				return err
			}
			d := e.desk.NewDraft()
			if err := json.Unmarshal(data, &d.Record); err != nil {
				return fmt.Errorf("invalid invoice %s: %w", c.String("invoice"), err)
			}

			if p := c.String("logo"); p != "" {
				logo, err := e.desk.LoadImage(p)
				if err != nil {
					return err
				}
				if abs, err := filepath.Abs(p); err == nil {
					p = abs
				}
				d = d.WithLogo(logo, p)
			} else if d.Record.LogoPath != nil && *d.Record.LogoPath != "" {
				logo, err := e.desk.LoadImage(*d.Record.LogoPath)
				if err != nil {
					fmt.Fprintln(c.App.ErrWriter, warningStyle.Render("warning: logo not loaded: "+err.Error()))
				} else {
					d.Logo = logo
				}
			}
			if p := c.String("signature"); p != "" {
				sig, err := e.desk.LoadImage(p)
				if err != nil {
					return err
				}
				d = d.WithSignature(sig)
			}

			res, err := e.desk.Save(c.Context, d)
			if res != nil {
				for _, w := range res.Warnings {
					fmt.Fprintln(c.App.ErrWriter, warningStyle.Render("warning: "+w))
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, successStyle.Render("saved "+res.DocumentPath))
			return nil
		}),
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "move an invoice to the trash",
		ArgsUsage: "KEY",
		Action: action(func(c *cli.Context, e *env) error {
			if c.NArg() != 1 {
				return cli.Exit("delete needs exactly one KEY", 2)
			}
			h, err := e.desk.Delete(c.Context, c.Args().First())
			if h == nil {
				return err
			}
			if err != nil {
				fmt.Fprintln(c.App.ErrWriter, warningStyle.Render("warning: "+err.Error()))
			}
			fmt.Fprintln(c.App.Writer, successStyle.Render("moved "+h.Key+" to trash"))
			args := []string{"restore", "--key", h.Key}
			if h.Document != "" {
				args = append(args, "--document", h.Document)
			}
			if h.Metadata != "" {
				args = append(args, "--metadata", h.Metadata)
			}
			fmt.Fprintln(c.App.Writer, mutedStyle.Render("undo with: "+c.App.Name+" "+strings.Join(args, " ")))
			return nil
		}),
	}
}

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "bring a deleted invoice back from the trash",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Usage: "invoice key", Required: true},
			&cli.StringFlag{Name: "document", Usage: "document file name in the trash"},
			&cli.StringFlag{Name: "metadata", Usage: "metadata file name in the trash"},
		},
		Action: action(func(c *cli.Context, e *env) error {
			res, err := e.desk.Restore(c.Context, c.String("key"), c.String("document"), c.String("metadata"))
			if errors.Is(err, store.ErrNothingToUndo) {
				return cli.Exit("nothing to restore: pass --document and/or --metadata", 2)
			}
			if res.Count > 0 {
				fmt.Fprintln(c.App.Writer, successStyle.Render(fmt.Sprintf("restored %d of %d files for %s", res.Count, res.Expected, res.Key)))
			}
			return err
		}),
	}
}

func openCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "open an invoice document in the default viewer",
		ArgsUsage: "KEY",
		Action: action(func(c *cli.Context, e *env) error {
			if c.NArg() != 1 {
				return cli.Exit("open needs exactly one KEY", 2)
			}
			return opener.Open(e.desk.DocumentPath(c.Args().First()))
		}),
	}
}
