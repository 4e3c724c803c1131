package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ecosort/internal/analytics"
	"ecosort/internal/classify/textclass"
	"ecosort/internal/pipeline"
	"ecosort/internal/store"
	"ecosort/internal/sustainability"
	"ecosort/internal/waste"
)

type comparison map[waste.Category]sustainability.Comparison

type keywordList struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

func (c *cli) output(cmd *cobra.Command, result any) error {
	out := cmd.OutOrStdout()
	switch c.outputFmt {
	case "json":
		return outputJSON(out, result)
	case "yaml":
		return outputYAML(out, result)
	default:
		return outputTable(out, result)
	}
}

func outputJSON(out io.Writer, result any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputYAML goes through JSON so the field names match the JSON output.
func outputYAML(out io.Writer, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	data, err := yaml.Marshal(generic)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func outputTable(out io.Writer, result any) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := result.(type) {
	case pipeline.Result:
		outputResultTable(w, r)
	case pipeline.Tips:
		outputTipsTable(w, r)
	case comparison:
		fmt.Fprintln(w, "CATEGORY\tSCORE\tIMPACT\tDECOMPOSITION\tCARBON")
		for _, cat := range waste.Categories() {
			cmp, ok := r[cat]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\t%s\n", cat, cmp.Score, cmp.Impact, cmp.DecompositionTime, cmp.CarbonFootprint)
		}
	case analytics.Report:
		outputReportTable(w, r)
	case analytics.ReconcileResult:
		fmt.Fprintf(w, "DAYS\t%d\n", r.Days)
		fmt.Fprintf(w, "EVENTS\t%d\n", r.Events)
	case textclass.Keywords:
		fmt.Fprintln(w, "CATEGORY\tKEYWORDS")
		for _, cat := range waste.Categories() {
			fmt.Fprintf(w, "%s\t%s\n", cat, strings.Join(r[cat], ", "))
		}
	case []store.Event:
		fmt.Fprintln(w, "TIME\tTYPE\tCATEGORY\tCONFIDENCE\tINPUT")
		for _, e := range r {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", e.Timestamp.Format(store.TimestampLayout), e.InputKind, e.Category, e.Confidence, e.Input)
		}
	case keywordList:
		fmt.Fprintf(w, "CATEGORY\t%s\n", r.Category)
		for _, k := range r.Keywords {
			fmt.Fprintf(w, "\t%s\n", k)
		}
	default:
		return outputJSON(out, result)
	}
	return nil
}

func outputResultTable(w io.Writer, r pipeline.Result) {
	fmt.Fprintf(w, "ID\t%s\n", r.ID)
	fmt.Fprintf(w, "CATEGORY\t%s\n", r.Prediction.Category)
	fmt.Fprintf(w, "CONFIDENCE\t%.2f\n", r.Prediction.Confidence)
	fmt.Fprintf(w, "METHOD\t%s\n", r.Prediction.Method)
	fmt.Fprintf(w, "SUSTAINABILITY\t%.1f\n", r.Profile.Score)
	fmt.Fprintf(w, "ECO SCORE\t%.2f\n", r.EcoScore)
	fmt.Fprintf(w, "IMPACT\t%s\n", r.Profile.Impact)
	fmt.Fprintf(w, "STORED\t%t\n", r.Stored)

	fmt.Fprintln(w, "\nPROBABILITIES:")
	for _, cat := range waste.Categories() {
		fmt.Fprintf(w, "%s\t%.3f\n", cat, r.Prediction.Probabilities[cat])
	}
	fmt.Fprintln(w, "\nDISPOSAL TIPS:")
	for i, tip := range r.Profile.Tips {
		fmt.Fprintf(w, "%d. %s\n", i+1, tip)
	}
}

func outputTipsTable(w io.Writer, t pipeline.Tips) {
	fmt.Fprintf(w, "CATEGORY\t%s\n", t.Category)
	fmt.Fprintf(w, "SCORE\t%.1f\n", t.Score)
	fmt.Fprintf(w, "IMPACT\t%s\n", t.Impact)
	sections := []struct {
		title string
		items []string
	}{
		{"TIPS", t.Tips},
		{"ALTERNATIVES", t.Alternatives},
		{"IMPROVEMENTS", t.Improvements},
	}
	for _, s := range sections {
		fmt.Fprintf(w, "\n%s:\n", s.title)
		for i, item := range s.items {
			fmt.Fprintf(w, "%d. %s\n", i+1, item)
		}
	}
}

func outputReportTable(w io.Writer, r analytics.Report) {
	fmt.Fprintf(w, "RANGE\t%s .. %s\n", r.DateRange.Start, r.DateRange.End)
	fmt.Fprintf(w, "TOTAL\t%d\n\n", r.TotalClassifications)

	fmt.Fprintln(w, "DATE\tBIODEGRADABLE\tRECYCLABLE\tHAZARDOUS\tTOTAL")
	for _, d := range r.DailyStatistics {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", d.Date, d.Biodegradable, d.Recyclable, d.Hazardous, d.Total)
	}
}
