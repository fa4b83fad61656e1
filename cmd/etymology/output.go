package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/user/etymology-service/internal/domain"
)

// render prints results in input order, once per distinct input string.
func render(w io.Writer, format string, inputs []string, results map[string]domain.FetchResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Input", "Outcome", "Headword", "POS", "Origin", "See also"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Origin", WidthMax: 80},
	})

	printed := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if printed[in] {
			continue
		}
		printed[in] = true
		t.AppendRow(resultRow(in, results[in]))
	}
	t.Render()
	return nil
}

func resultRow(input string, res domain.FetchResult) table.Row {
	switch res.Outcome {
	case domain.OutcomeFound:
		e := res.Entry
		return table.Row{
			input, res.Outcome, e.Headword,
			strings.Join(e.PartsOfSpeech, ", "),
			strings.Join(e.Origins, "\n"),
			strings.Join(e.CrossReferences, ", "),
		}
	case domain.OutcomeFailed:
		msg := ""
		if res.Failure != nil {
			msg = fmt.Sprintf("%s: %s", res.Failure.Kind, res.Failure.Message)
		}
		return table.Row{input, res.Outcome, "", "", msg, ""}
	}
	return table.Row{input, res.Outcome, "", "", "", ""}
}
