package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/xmok/rednote-signer/pkg/models"
)

func writeOutput(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		return writeText(w, v)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func writeText(w io.Writer, v interface{}) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	switch x := v.(type) {
	case *models.SignResult:
		writeResultText(tw, x)
	case *models.BatchReport:
		fmt.Fprintf(tw, "Batch:\t%s\n", x.BatchID)
		fmt.Fprintf(tw, "Jobs:\t%d (%d signed, %d failed)\n", x.Stats.TotalJobs, x.Stats.Succeeded, x.Stats.Failed)
		fmt.Fprintf(tw, "Avg duration:\t%.3fms\n", x.Stats.AvgDurationMs)
		for _, r := range x.Results {
			fmt.Fprintln(tw, "───")
			writeResultText(tw, r)
		}
	case payloadOutput:
		fmt.Fprintf(tw, "Length:\t%d\n", x.Length)
		fmt.Fprintf(tw, "Payload:\t%s\n", x.PayloadHex)
		fmt.Fprintf(tw, "x3:\t%s\n", x.X3)
	case fingerprintOutput:
		fmt.Fprintf(tw, "Session:\t%s\n", x.SessionID)
		fmt.Fprintf(tw, "Digest:\t%s\n", x.Digest)
		if x.B1 != "" {
			fmt.Fprintf(tw, "b1:\t%s\n", x.B1)
		}
		for _, k := range x.Fingerprint.Keys() {
			fmt.Fprintf(tw, "%s:\t%s\n", k, x.Fingerprint.String(k))
		}
	default:
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprint(tw, string(out))
	}
	return tw.Flush()
}

func writeResultText(tw *tabwriter.Writer, r *models.SignResult) {
	fmt.Fprintf(tw, "Request:\t%s %s %s\n", r.RequestID, r.Method, r.URI)
	fmt.Fprintf(tw, "Status:\t%s\n", r.Status)
	if r.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", r.Error)
		return
	}
	names := make([]string, 0, len(r.Headers))
	for name := range r.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(tw, "%s:\t%s\n", name, r.Headers[name])
	}
}
