package journal

import (
	"bytes"
	"text/template"
)

var reportFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
}

// RenderRunReport renders a plain-text summary of one run for terminal
// output or archiving next to the journal DB.
func RenderRunReport(r RunRecord) (string, error) {
	t, err := template.New("run").Funcs(reportFuncs).Parse(runReportTemplate)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const runReportTemplate = `BACKTEST {{.RunID}}
  strategy:   {{.Strategy}}
  symbols:    {{.Symbols}} @ {{.Frequency}}
  range:      {{.Start.Format "2006-01-02"}} .. {{.End.Format "2006-01-02"}}
  status:     {{.Status}}{{if .ErrKind}} ({{.ErrKind}}: {{.ErrMsg}}){{end}}

  start bal:  {{.StartBalance}}
  end bal:    {{.EndBalance}}
  net p/l:    {{.NetPL}}
  return:     {{printf "%.2f" .ReturnPct}}%
  max dd:     {{printf "%.2f" .MaxDDPct}}%

  trades:     {{.Trades}} ({{.Wins}} wins / {{.Losses}} losses)
  win rate:   {{printf "%.2f" (mul100 .WinRate)}}%
  profit fac: {{printf "%.2f" .ProfitFactor}}
`
