package view

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// DashboardData данные главной страницы
type DashboardData struct {
	Host   string
	Latest *dto.SuiteRunDTO
	Checks []*dto.CheckInfoDTO
	// Scheduler краткое состояние планировщика, пусто вне режима serve
	Scheduler string
}

// Dashboard рендерит страницу с последним прогоном и каталогом проверок.
// Страница перезагружается при получении suite_run по WebSocket.
func Dashboard(data DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}

		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<title>DLP KPI monitor - `)
		p.text(data.Host)
		p.raw(`</title><style>` + pageCSS + `</style></head><body>`)

		p.raw(`<header><h1>DLP endpoint KPI</h1><span class="host">`)
		p.text(data.Host)
		p.raw(`</span>`)
		if data.Scheduler != "" {
			p.raw(`<span class="sched">`)
			p.text(data.Scheduler)
			p.raw(`</span>`)
		}
		p.raw(`</header><main>`)

		if data.Latest == nil {
			p.raw(`<p class="empty">No suite run recorded yet.</p>`)
		} else {
			renderRun(p, data.Latest)
		}

		renderCatalog(p, data.Checks)

		p.raw(`</main><script>` + reloadJS + `</script></body></html>`)
		return p.err
	})
}

func renderRun(p *printer, run *dto.SuiteRunDTO) {
	p.raw(`<section><h2>Last run <span class="badge `)
	p.text(run.OverallStatus)
	p.raw(`">`)
	p.text(strings.ToUpper(run.OverallStatus))
	p.raw(`</span></h2><p class="meta">`)
	p.text(fmt.Sprintf("mode %s, %d/%d met (%.1f%%), finished %s, took %s",
		run.Mode,
		run.Counts.Met,
		run.Counts.Total,
		run.MetPercent,
		run.FinishedAt.Local().Format("2006-01-02 15:04:05"),
		(time.Duration(run.DurationMS) * time.Millisecond).String(),
	))
	p.raw(`</p><table><thead><tr><th>Check</th><th>Threshold</th><th>Limit</th><th>Observed</th><th>Samples</th><th>Status</th></tr></thead><tbody>`)

	for _, r := range run.Results {
		p.raw(`<tr><td>`)
		p.text(r.CheckName)
		p.raw(`</td><td>`)
		p.text(r.ThresholdName)
		p.raw(`</td><td>`)
		p.text(formatValue(r.Limit, r.Unit))
		p.raw(`</td><td>`)
		if r.Observed != nil {
			p.text(formatValue(*r.Observed, r.Unit))
		} else {
			p.raw(`&ndash;`)
		}
		p.raw(`</td><td>`)
		p.text(fmt.Sprintf("%d/%d", r.Summary.SuccessCount, r.Summary.Count))
		p.raw(`</td><td><span class="badge `)
		p.text(r.Status)
		p.raw(`"`)
		if r.Error != "" {
			p.raw(` title="`)
			p.text(r.Error)
			p.raw(`"`)
		}
		p.raw(`>`)
		p.text(r.Status)
		p.raw(`</span></td></tr>`)
	}
	p.raw(`</tbody></table></section>`)
}

func renderCatalog(p *printer, checks []*dto.CheckInfoDTO) {
	if len(checks) == 0 {
		return
	}
	p.raw(`<section><h2>Checks</h2><table><thead><tr><th>Name</th><th>Dimension</th><th>Threshold</th><th>Ticks</th><th>Modes</th></tr></thead><tbody>`)
	for _, c := range checks {
		op := "<"
		if c.Direction == valueobject.GreaterThanIsGood.String() {
			op = ">"
		}
		p.raw(`<tr><td>`)
		p.text(c.Name)
		p.raw(`</td><td>`)
		p.text(c.Dimension)
		p.raw(`</td><td>`)
		p.text(fmt.Sprintf("%s %s %s", c.Threshold, op, formatValue(c.Limit, c.Unit)))
		p.raw(`</td><td>`)
		p.text(strconv.Itoa(c.Ticks))
		p.raw(`</td><td>`)
		p.text(strings.Join(c.Modes, ", "))
		p.raw(`</td></tr>`)
	}
	p.raw(`</tbody></table></section>`)
}

func formatValue(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// printer накапливает первую ошибку записи
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

const pageCSS = `body{font-family:system-ui,sans-serif;margin:0;background:#0f1419;color:#e6e6e6}
header{display:flex;gap:1rem;align-items:baseline;padding:1rem 2rem;background:#1a2029}
h1{font-size:1.3rem;margin:0}.host,.sched,.meta{color:#9aa5b1}
main{padding:1rem 2rem}table{border-collapse:collapse;width:100%;margin-bottom:2rem}
th,td{padding:.4rem .6rem;border-bottom:1px solid #2a3340;text-align:left}
.badge{padding:.1rem .5rem;border-radius:.3rem;font-size:.85rem}
.met,.healthy{background:#1f6f43}.warning{background:#8a6d1a}.critical{background:#8a2a2a}
.no_data{background:#44505e}.errored{background:#6a2a7a}.empty{color:#9aa5b1}`

const reloadJS = `(function(){
var proto=location.protocol==="https:"?"wss":"ws";
var token=new URLSearchParams(location.search).get("token");
var url=proto+"://"+location.host+"/ws"+(token?"?token="+encodeURIComponent(token):"");
var ws=new WebSocket(url);
ws.onmessage=function(ev){try{if(JSON.parse(ev.data).type==="suite_run"){location.reload();}}catch(e){}};
})();`
