package report

import (
	"html/template"
	"io"
)

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Session {{.SessionID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: right; }
th:first-child, td:first-child, th:nth-child(2), td:nth-child(2) { text-align: left; }
.card { display: inline-block; border: 1px solid #ccc; border-radius: 6px; padding: 0.75rem 1.25rem; margin-right: 1rem; }
</style>
</head>
<body>
<h1>Session {{.SessionID}}</h1>
<div class="card">Started: {{.StartedAt}}</div>
<div class="card">User: {{.User}}</div>
<div class="card">Dry run: {{.DryRun}}</div>
<div class="card">Generated: {{.GeneratedAt}}</div>

{{range .Accounts}}
<h2>{{.AccountName}} ({{.AccountID}})</h2>
<table>
<tr><th>resource type</th><th>created</th><th>retired</th><th>failed</th></tr>
{{$byResource := .ByResource}}
{{range $type, $counts := $byResource}}
<tr><td>{{$type}}</td><td>{{$counts.Created}}</td><td>{{$counts.Retired}}</td><td>{{$counts.Failed}}</td></tr>
{{end}}
</table>
{{end}}

</body>
</html>
`))

// WriteHTML renders a single session's report as a standalone HTML page.
func WriteHTML(w io.Writer, doc Document) error {
	return pageTemplate.Execute(w, doc)
}

// DashboardEntry is one row of the multi-session dashboard: a session's
// headline totals, without its full per-resource breakdown.
type DashboardEntry struct {
	SessionID    string
	StartedAt    string
	User         string
	TotalCreated int
	TotalRetired int
	TotalFailed  int
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Recent sessions</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: right; }
th:first-child, td:first-child, th:nth-child(2), td:nth-child(2), th:nth-child(3), td:nth-child(3) { text-align: left; }
.bar { background: #4a7; height: 14px; display: inline-block; }
</style>
</head>
<body>
<h1>Recent sessions</h1>
<table>
<tr><th>session</th><th>started</th><th>user</th><th>created</th><th>retired</th><th>failed</th></tr>
{{range .}}
<tr>
<td>{{.SessionID}}</td>
<td>{{.StartedAt}}</td>
<td>{{.User}}</td>
<td>{{.TotalCreated}}<br><span class="bar" style="width:{{.TotalCreated}}px"></span></td>
<td>{{.TotalRetired}}<br><span class="bar" style="width:{{.TotalRetired}}px"></span></td>
<td>{{.TotalFailed}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

// BuildDashboard summarizes up to the 10 most recent session documents
// (docs ordered newest-first by caller) into dashboard rows.
func BuildDashboard(docs []Document) []DashboardEntry {
	limit := len(docs)
	if limit > 10 {
		limit = 10
	}
	entries := make([]DashboardEntry, 0, limit)
	for _, doc := range docs[:limit] {
		e := DashboardEntry{
			SessionID: doc.SessionID,
			StartedAt: doc.StartedAt.Format("2006-01-02 15:04:05"),
			User:      doc.User,
		}
		for _, acc := range doc.Accounts {
			for _, c := range acc.ByResource {
				e.TotalCreated += c.Created
				e.TotalRetired += c.Retired
				e.TotalFailed += c.Failed
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// WriteDashboard renders the multi-session dashboard as a standalone HTML
// page.
func WriteDashboard(w io.Writer, docs []Document) error {
	return dashboardTemplate.Execute(w, BuildDashboard(docs))
}
