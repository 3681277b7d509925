package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	case "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q (want table, json or yaml)", apperrors.ErrInvalidParameter, s)
	}
}

// writeOutput encodes v as JSON or YAML, or calls table for the table format.
func writeOutput(w io.Writer, format outputFormat, v any, table func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return table(w)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderLoadReport(w io.Writer, report *models.LoadReport) error {
	fmt.Fprintf(w, "Run %s: %s\n\n", report.RunID, report.Status)

	tw := newTable(w)
	fmt.Fprintln(tw, "ENTITY\tINSERTED\tREJECTED\tSKIPPED ROWS\tNOTE")
	for _, e := range report.Entities {
		note := ""
		switch {
		case e.FileError != "" && e.SkipReason != "":
			note = e.FileError + ": " + e.SkipReason
		case e.FileError != "":
			note = e.FileError
		case e.Skipped:
			note = "skipped: " + e.SkipReason
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", e.Kind.TableName(), e.Inserted, e.Rejected, e.SkippedRows, note)
	}
	inserted, rejected, _ := report.Totals()
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t\t\n", inserted, rejected)
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, e := range report.Entities {
		if len(e.Rejections) == 0 {
			continue
		}
		fmt.Fprintf(w, "\nRejected %s:\n", e.Kind.TableName())
		tw := newTable(w)
		fmt.Fprintln(tw, "LINE\tCODE\tFIELD\tREASON")
		for _, r := range e.Rejections {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Line, r.Code, r.Field, r.Reason)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if e.RejectionsTruncated {
			fmt.Fprintf(w, "... %d more not shown\n", e.Rejected-len(e.Rejections))
		}
	}
	return nil
}

func renderLoadRun(w io.Writer, run *models.LoadRun) error {
	if run.Status == models.LoadStatusNone {
		_, err := fmt.Fprintln(w, "Nothing loaded")
		return err
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "Run\t%s\n", run.ID)
	fmt.Fprintf(tw, "Status\t%s\n", run.Status)
	fmt.Fprintf(tw, "Started\t%s\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Fprintf(tw, "Finished\t%s\n", run.FinishedAt.Format(time.RFC3339))
	}
	if run.Report != nil {
		inserted, rejected, skipped := run.Report.Totals()
		fmt.Fprintf(tw, "Inserted\t%d\n", inserted)
		fmt.Fprintf(tw, "Rejected\t%d\n", rejected)
		fmt.Fprintf(tw, "Skipped entities\t%d\n", skipped)
	}
	return tw.Flush()
}

func renderTopCustomers(w io.Writer, rows []models.CustomerSpend) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "RANK\tCUSTOMER\tTOTAL SPENT")
	for i, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, r.CustomerUniqueID, r.TotalSpent.StringFixed(2))
	}
	return tw.Flush()
}

func renderTopCategories(w io.Writer, rows []models.CategorySales) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "RANK\tCATEGORY\tITEMS SOLD")
	for i, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, r.CategoryName, r.ItemsSold)
	}
	return tw.Flush()
}

func renderMonthlySales(w io.Writer, rows []models.MonthlySales) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "MONTH\tORDERS\tAVERAGE ORDER VALUE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%04d-%02d\t%d\t%s\n", r.Year, r.Month, r.OrderCount, r.AverageOrderValue.StringFixed(2))
	}
	return tw.Flush()
}
