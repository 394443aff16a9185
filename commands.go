package main

import (
	"elmah/cli"
	"elmah/codec"
	"elmah/models"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		app      string
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logged errors, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			entries, total, err := env.services.Errors.GetErrors(cmd.Context(), app, page, pageSize)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d error(s), page %d\n\n", total, page)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tSTATUS\tTYPE\tMESSAGE")
			for _, entry := range entries {
				e := entry.Error()
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					entry.ID(),
					e.Time().Format("2006-01-02 15:04:05"),
					e.StatusCode(),
					e.Type(),
					oneLine(e.Message()),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "application (default is the first configured)")
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page index")
	cmd.Flags().IntVar(&pageSize, "page-size", 15, "entries per page")
	return cmd
}

func newShowCmd() *cobra.Command {
	var (
		app    string
		details bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one error as XML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			entry, err := env.services.Errors.GetError(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("error %s not found", args[0])
			}

			out := cmd.OutOrStdout()
			if details {
				return printDetail(out, models.NewErrorDetail(entry))
			}
			if err := codec.Encode(out, entry.Error()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(out)
			return err
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "application (default is the first configured)")
	cmd.Flags().BoolVar(&details, "details", false, "print a readable summary instead of XML")
	return cmd
}

func printDetail(w io.Writer, d models.ErrorDetail) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Application:\t%s\n", d.Application)
	fmt.Fprintf(tw, "Time:\t%s\n", d.Time.Format(time.RFC3339))
	fmt.Fprintf(tw, "Host:\t%s\n", d.Host)
	fmt.Fprintf(tw, "Type:\t%s\n", d.Type)
	fmt.Fprintf(tw, "Source:\t%s\n", d.Source)
	fmt.Fprintf(tw, "User:\t%s\n", d.User)
	fmt.Fprintf(tw, "Status:\t%d\n", d.StatusCode)
	fmt.Fprintf(tw, "Message:\t%s\n", d.Message)
	if err := tw.Flush(); err != nil {
		return err
	}
	if d.Detail != "" {
		fmt.Fprintf(w, "\n%s\n", d.Detail)
	}
	for _, section := range []struct {
		title string
		items []models.CollectionItem
	}{
		{"Server Variables", d.ServerVariables},
		{"Query String", d.QueryString},
		{"Form", d.Form},
		{"Cookies", d.Cookies},
	} {
		if len(section.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", section.title)
		for _, item := range section.items {
			fmt.Fprintf(w, "  %s = %s\n", item.Name, strings.Join(item.Values, ", "))
		}
	}
	return nil
}

func newLogCmd() *cobra.Command {
	var (
		app    string
		file   string
		fields models.Fields
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log an error from flags or from an XML document",
		Example: `  elmah log --type Timeout --message "upstream timed out" --status 504
  elmah log --file error.xml
  cat error.xml | elmah log --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var e *models.Error
			if file != "" {
				var r io.Reader = cmd.InOrStdin()
				if file != "-" {
					f, err := os.Open(file)
					if err != nil {
						return err
					}
					defer f.Close()
					r = f
				}
				decoded, err := codec.Decode(r)
				if err != nil {
					return err
				}
				e = decoded
			} else {
				if fields.Message == "" && fields.Type == "" {
					return errors.New("either --file or --message/--type is required")
				}
				fields.Time = time.Now()
				if host, err := os.Hostname(); err == nil {
					fields.HostName = host
				}
				e = models.NewError("", fields)
			}

			env, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			id, err := env.services.Errors.Log(cmd.Context(), app, e)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "application (default is the first configured)")
	cmd.Flags().StringVar(&file, "file", "", "read the error as XML from this file, or - for stdin")
	cmd.Flags().StringVar(&fields.Type, "type", "", "error type")
	cmd.Flags().StringVar(&fields.Message, "message", "", "error message")
	cmd.Flags().StringVar(&fields.Source, "source", "", "error source")
	cmd.Flags().StringVar(&fields.Detail, "detail", "", "error detail")
	cmd.Flags().StringVar(&fields.User, "user", "", "user name")
	cmd.Flags().IntVar(&fields.StatusCode, "status", 0, "HTTP status code")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		app     string
		output  string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every error of an application as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			if baseURL == "" {
				baseURL = env.cfg.Server.BaseURL
			}

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			n, err := env.services.Errors.Export(cmd.Context(), app, out, strings.TrimRight(baseURL, "/"))
			if err != nil {
				return err
			}
			env.logger.Info("export finished", "rows", n, "output", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "application (default is the first configured)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write CSV to this file instead of stdout")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL used for the XMLREF and JSONREF links")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	var (
		app  string
		days int
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete errors older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New("--older-than must be a positive number of days")
			}

			env, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			out := cmd.OutOrStdout()

			if app != "" {
				n, err := env.services.Errors.Purge(cmd.Context(), app, cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d removed\n", app, n)
				return nil
			}

			removed, err := env.services.Errors.PurgeAll(cmd.Context(), cutoff)
			apps := make([]string, 0, len(removed))
			for name := range removed {
				apps = append(apps, name)
			}
			sort.Strings(apps)
			for _, name := range apps {
				fmt.Fprintf(out, "%s: %d removed\n", name, removed[name])
			}
			return err
		},
	}

	cmd.Flags().StringVar(&app, "app", "", "only purge this application (default is every application)")
	cmd.Flags().IntVar(&days, "older-than", 0, "age in days")
	return cmd
}

func newConsoleCmd() *cobra.Command {
	var (
		server string
		app    string
	)

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Browse a running server interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			console, err := cli.NewConsole(cmd.Context(), server, app)
			if err != nil {
				return fmt.Errorf("%w\n\nMake sure the server is running:\n  elmah serve", err)
			}
			console.Start()
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:8080", "server base URL")
	cmd.Flags().StringVar(&app, "app", "", "application to browse")
	return cmd
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
