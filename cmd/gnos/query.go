package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const queryTimeout = 10 * time.Second

var queryCmd = &cobra.Command{
	Use:   "query <expr>",
	Short: "Run a query against a running server",
	Long: `Run a one-shot query against a running gnos server and print the
solutions as a table.

Example:
  gnos query 'SELECT ?d ?name WHERE { ?d snmp:sysName ?name }'
  gnos query --store alerts --json 'SELECT * WHERE { ?a gnos:mesg ?m }'`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().String("server", "http://localhost:8080", "base URL of the gnos server")
	queryCmd.Flags().String("store", "primary", "store to query")
	queryCmd.Flags().Bool("json", false, "print the raw JSON result")
	queryCmd.Flags().Bool("color", false, "force colored output")
}

func runQuery(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	store, _ := cmd.Flags().GetString("store")
	raw, _ := cmd.Flags().GetBool("json")
	forceColor, _ := cmd.Flags().GetBool("color")

	ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
	defer cancel()

	body, err := fetchQuery(ctx, server, store, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if raw {
		_, err := fmt.Fprintln(out, strings.TrimSpace(string(body)))
		return err
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("unexpected response: %w", err)
	}
	return printRows(out, rows, forceColor || isTerminal(out))
}

func fetchQuery(ctx context.Context, server, store, expr string) ([]byte, error) {
	params := url.Values{"name": {store}, "expr": {expr}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(server, "/")+"/api/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server answered %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printRows prints one column per variable, sorted by name. Unbound
// variables print as "-".
func printRows(w io.Writer, rows []map[string]any, useColor bool) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no solutions")
		return err
	}

	header := color.New(color.FgCyan, color.Bold)
	unbound := color.New(color.Faint)
	if useColor {
		header.EnableColor()
		unbound.EnableColor()
	} else {
		header.DisableColor()
		unbound.DisableColor()
	}

	seen := make(map[string]struct{})
	for _, row := range rows {
		for name := range row {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	cells := make([]string, len(names))
	for i, name := range names {
		cells[i] = header.Sprint("?" + name)
	}
	fmt.Fprintln(tw, strings.Join(cells, "\t"))

	for _, row := range rows {
		for i, name := range names {
			v, ok := row[name]
			if !ok || v == nil {
				cells[i] = unbound.Sprint("-")
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d solution(s)\n", len(rows))
	return err
}
