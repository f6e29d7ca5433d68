package output

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/torosent/vitalscope/internal/severity"
	"github.com/torosent/vitalscope/internal/vitals"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt string
	Report      Report
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDuration": func(d time.Duration) string {
		return d.Round(time.Millisecond).String()
	},
	"formatFloat": func(f float64) string {
		return fmt.Sprintf("%.2f", f)
	},
	"formatRating": func(r severity.Rating) string {
		if !r.Present {
			return "-"
		}
		return formatValue(r.Metric, r.Value)
	},
	"bandClass": func(r severity.Rating) string {
		if !r.Present {
			return "pending"
		}
		return r.Band.String()
	},
	"metricName": func(m vitals.Metric) string {
		return strings.ToUpper(string(m))
	},
}).Parse(htmlTemplate))

// GenerateHTMLReport generates a standalone HTML report of a page view.
func GenerateHTMLReport(w io.Writer, r Report) error {
	generated := r.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	data := HTMLReportData{
		GeneratedAt: generated.Format(time.RFC3339),
		Report:      r,
	}

	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Web Vitals Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.good {
            border-left-color: #10b981;
        }
        .card.needs-improvement {
            border-left-color: #f59e0b;
        }
        .card.poor {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .badge-good {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-needs-improvement {
            background: #fef3c7;
            color: #92400e;
        }
        .badge-poor {
            background: #fee2e2;
            color: #991b1b;
        }
        .badge-pending {
            background: #e5e7eb;
            color: #4b5563;
        }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
            margin-top: 20px;
        }
        .latency-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 6px;
            text-align: center;
        }
        .latency-item .label {
            font-size: 0.85rem;
            color: #6c757d;
            margin-bottom: 5px;
        }
        .latency-item .value {
            font-size: 1.3rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Web Vitals Report</h1>
            <div class="meta">Page view: {{.Report.PageView}}</div>
            <div class="meta">Source: {{.Report.Source}}{{if .Report.Target}} ({{.Report.Target}}){{end}}</div>
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Report.Stats.Duration}} | Ended: {{.Report.End}}</div>
        </header>

        <div class="content">
            {{if .Report.Collected}}
            <!-- Metric Cards -->
            <div class="grid">
                {{range .Report.Ratings}}
                <div class="card {{bandClass .}}">
                    <h3>{{metricName .Metric}}</h3>
                    <div class="value">{{formatRating .}}</div>
                    <div class="subvalue"><span class="badge badge-{{bandClass .}}">{{if .Present}}{{.Band}}{{else}}not reported{{end}}</span></div>
                </div>
                {{end}}
            </div>
            {{else}}
            <div class="no-data">No metrics were collected: the page never exposed navigation timing.</div>
            {{end}}

            <!-- Entry Statistics -->
            <div class="section">
                <h2>Entries</h2>
                <div class="latency-grid">
                    <div class="latency-item">
                        <div class="label">Total</div>
                        <div class="value">{{.Report.Stats.Total}}</div>
                    </div>
                    {{if .Report.Snapshot}}
                    <div class="latency-item">
                        <div class="label">Applied</div>
                        <div class="value">{{.Report.Snapshot.Entries}}</div>
                    </div>
                    {{end}}
                    <div class="latency-item">
                        <div class="label">Layout Shifts</div>
                        <div class="value">{{.Report.Stats.LayoutShifts}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Malformed</div>
                        <div class="value">{{.Report.Stats.MalformedInput}}</div>
                    </div>
                </div>
            </div>

            {{with .Report.Stats.Interaction}}{{if .Count}}
            <div class="section">
                <h2>Interaction Delay</h2>
                <div class="latency-grid">
                    <div class="latency-item">
                        <div class="label">Count</div>
                        <div class="value">{{.Count}}</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Min</div>
                        <div class="value">{{formatFloat .MinMs}}ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P50</div>
                        <div class="value">{{formatFloat .P50Ms}}ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P90</div>
                        <div class="value">{{formatFloat .P90Ms}}ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P99</div>
                        <div class="value">{{formatFloat .P99Ms}}ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Max</div>
                        <div class="value">{{formatFloat .MaxMs}}ms</div>
                    </div>
                </div>
            </div>
            {{end}}{{end}}

            <!-- Thresholds -->
            {{if .Report.Thresholds}}
            <div class="section">
                <h2>Thresholds ({{.Report.Thresholds.Passed}}/{{.Report.Thresholds.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Report.Thresholds.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">PASS</span>
                                {{else}}
                                <span class="badge badge-error">FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Relay -->
            {{with .Report.Relay}}
            <div class="section">
                <h2>Relay</h2>
                <table>
                    <tbody>
                        <tr><th>Connections</th><td>{{.Connections}}</td></tr>
                        <tr><th>Reconnects</th><td>{{.Reconnects}}</td></tr>
                        <tr><th>Messages</th><td>{{.MessagesReceived}}</td></tr>
                        <tr><th>Bytes</th><td>{{.BytesReceived}}</td></tr>
                        <tr><th>Errors</th><td>{{.Errors}}</td></tr>
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>
</body>
</html>
`
