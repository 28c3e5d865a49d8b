package report

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Table renders doc as a plain-text table for terminal output, in the
// style the teacher's pkg/metrics package uses for its own summaries.
func Table(doc Document) string {
	buf := new(bytes.Buffer)

	tb := tablewriter.NewWriter(buf)
	tb.SetAutoWrapText(false)
	tb.SetColWidth(80)
	tb.SetCenterSeparator("*")
	tb.SetAlignment(tablewriter.ALIGN_CENTER)
	tb.SetCaption(true, doc.SessionID)
	tb.SetHeader([]string{"account", "resource type", "created", "retired", "failed"})

	for _, acc := range doc.Accounts {
		types := make([]string, 0, len(acc.ByResource))
		for t := range acc.ByResource {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			c := acc.ByResource[t]
			tb.Append([]string{
				acc.AccountName,
				t,
				strconv.Itoa(c.Created),
				strconv.Itoa(c.Retired),
				strconv.Itoa(c.Failed),
			})
		}
	}
	tb.Render()
	return buf.String()
}
