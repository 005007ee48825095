package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	appErrors "github.com/noah-isme/campus-records/pkg/errors"
)

// envelope is the JSON output contract: either data or an error.
type envelope struct {
	Data  interface{}      `json:"data,omitempty"`
	Error *appErrors.Error `json:"error,omitempty"`
}

type output struct {
	w    io.Writer
	json bool
}

func newOutput(w io.Writer, asJSON bool) *output {
	return &output{w: w, json: asJSON}
}

func (o *output) banner() {
	if o.json {
		return
	}
	fmt.Fprintln(o.w, "Campus Course & Records Manager. Type help for commands.")
}

func (o *output) prompt(p string) {
	if o.json {
		return
	}
	fmt.Fprint(o.w, p)
}

// show renders data as a JSON envelope, or through render in text mode.
func (o *output) show(data interface{}, render func()) {
	if o.json {
		o.encode(envelope{Data: data})
		return
	}
	render()
}

func (o *output) failure(err error) {
	appErr := appErrors.FromError(err)
	if o.json {
		o.encode(envelope{Error: appErr})
		return
	}
	fmt.Fprintf(o.w, "Error [%s]: %s\n", appErr.Code, appErr.Error())
}

func (o *output) encode(v envelope) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (o *output) line(format string, args ...interface{}) {
	fmt.Fprintf(o.w, format+"\n", args...)
}

func (o *output) text(s string) {
	fmt.Fprint(o.w, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(o.w)
	}
}

func (o *output) table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(o.w, "(no results)")
		return
	}
	w := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
	fmt.Fprintf(o.w, "%d row(s)\n", len(rows))
}

// fields prints aligned "label: value" pairs.
func (o *output) fields(pairs [][2]string) {
	w := tabwriter.NewWriter(o.w, 0, 0, 1, ' ', 0)
	for _, p := range pairs {
		fmt.Fprintf(w, "%s:\t%s\n", p[0], p[1])
	}
	_ = w.Flush()
}
