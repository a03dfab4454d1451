package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

// writeEvents renders events as "table", "json" or "yaml".
func writeEvents(w io.Writer, events []*logging.Event, format string) error {
	if events == nil {
		events = []*logging.Event{}
	}
	switch format {
	case "", "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SEQ\tTIME\tSEVERITY\tURN\tSTREAM\tMESSAGE")
		for _, e := range events {
			urn := e.URN
			if urn == "" {
				urn = "-"
			}
			stream := "-"
			if e.StreamID != 0 {
				stream = strconv.FormatInt(e.StreamID, 10)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				e.Seq, e.Timestamp.Local().Format(time.DateTime), e.Severity, urn, stream, e.Message)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(events)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(events)
	default:
		return errx.With(ErrOutputFormat, ": %q (want table, json or yaml)", format)
	}
}
