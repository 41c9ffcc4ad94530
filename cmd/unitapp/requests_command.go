package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"unitgo/internal/api"
	"unitgo/internal/ipc"
)

// targetColumnWidth truncates long request targets in the list view.
const targetColumnWidth = 48

func newRequestsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "requests [request-id]",
		Short: "List journaled dev requests or show one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if len(args) == 1 {
					resp, err := client.RequestDescribe(strings.TrimSpace(args[0]))
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, resp.Request)
					}
					printRequestDetail(cmd, resp.Request)
					return nil
				}

				resp, err := client.Requests(limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Requests)
				}
				out := cmd.OutOrStdout()
				if len(resp.Requests) == 0 {
					fmt.Fprintln(out, "No requests journaled")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Request", "Method", "Target", "Status", "RC", "Duration", "Chunks", "Created"},
					requestRows(resp.Requests),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of requests to list (0 for the server default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func requestRows(requests []api.Request) [][]string {
	rows := make([][]string, 0, len(requests))
	for _, r := range requests {
		status := strconv.Itoa(r.Status)
		if r.Fallback {
			status += "*"
		}
		rows = append(rows, []string{
			shortID(r.RequestID),
			r.Method,
			truncate(r.Target, targetColumnWidth),
			status,
			r.RC,
			fmt.Sprintf("%dms", r.DurationMS),
			strconv.Itoa(r.Chunks),
			r.CreatedAt,
		})
	}
	return rows
}

func printRequestDetail(cmd *cobra.Command, r api.Request) {
	out := cmd.OutOrStdout()
	fields := []struct{ label, value string }{
		{"Request ID", r.RequestID},
		{"Method", r.Method},
		{"Target", r.Target},
		{"Remote", r.Remote},
		{"Status", strconv.Itoa(r.Status)},
		{"Result", r.RC},
		{"Fallback", yesNo(r.Fallback)},
		{"Request bytes", strconv.FormatInt(r.RequestBytes, 10)},
		{"Response bytes", strconv.FormatInt(r.ResponseBytes, 10)},
		{"Chunks", strconv.Itoa(r.Chunks)},
		{"Duration", fmt.Sprintf("%dms", r.DurationMS)},
		{"Created", r.CreatedAt},
		{"Error", r.Error},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		fmt.Fprintf(out, "%-15s %s\n", f.label+":", f.value)
	}
}

// shortID keeps the first uuid group, which is enough to tell requests apart.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func truncate(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}
