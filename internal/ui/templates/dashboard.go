// Package templates holds the dashboard page shell. Panel contents arrive
// over Datastar SSE from the /sse endpoints.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const (
	datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"
	chartScript    = "https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"
)

// Panel is one dashboard card. Its content div is replaced by SSE patches.
type Panel struct {
	ID    string
	Title string
	Wide  bool
	Chart bool
}

var Panels = []Panel{
	{ID: "kpi", Title: "Executive KPIs", Wide: true},
	{ID: "alerts", Title: "Critical Alerts", Wide: true},
	{ID: "monthly", Title: "Monthly Revenue", Chart: true},
	{ID: "products", Title: "Top Products by Revenue", Chart: true},
	{ID: "delays", Title: "Shipment Delay Distribution", Chart: true},
	{ID: "routes", Title: "Route Risk", Wide: true},
	{ID: "machines", Title: "Machine Health", Wide: true},
	{ID: "risk", Title: "Machines by Risk Category", Chart: true},
	{ID: "maintenance", Title: "Maintenance Schedule", Wide: true},
	{ID: "forecast", Title: "Demand Forecast", Wide: true, Chart: true},
	{ID: "pricing", Title: "Pricing Recommendations", Wide: true},
	{ID: "segment", Title: "Revenue by Segment", Chart: true},
	{ID: "region", Title: "Orders by Region", Chart: true},
	{ID: "carbon", Title: "Carbon Footprint by Category", Chart: true},
	{ID: "oil", Title: "Oil Price", Chart: true},
	{ID: "metrics", Title: "Model Quality", Wide: true},
}

func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

// PanelCard renders a single card with its loading placeholder.
func PanelCard(p Panel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := "card"
		if p.Wide {
			class += " card-wide"
		}
		id := templ.EscapeString(p.ID)
		if err := write(w, `<section class="`, class, `"><h2>`, templ.EscapeString(p.Title), `</h2>`); err != nil {
			return err
		}
		if p.ID == "forecast" {
			if err := write(w, forecastControls); err != nil {
				return err
			}
		}
		if p.Chart {
			if err := write(w, `<canvas id="`, id, `-chart" height="220"></canvas>`); err != nil {
				return err
			}
		}
		return write(w, `<div id="`, id, `-content" class="loading">Loading...</div></section>`)
	})
}

const signals = `{product: '', days: 30, forecastData: null, monthlyData: [], productsData: [], segmentData: [], regionData: [], carbonData: [], oilData: [], delayData: [], riskData: []}`

const forecastControls = `<div class="controls">
<label>Product <input type="text" data-bind:product placeholder="P001"></label>
<label>Days <input type="range" min="7" max="90" data-bind:days><span data-text="$days"></span></label>
<button data-on:click="@get('/sse/forecast')">Forecast</button>
</div>`

const head = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Unified Data Intelligence Platform</title>
<script type="module" src="` + datastarScript + `"></script>
<script src="` + chartScript + `"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f4f6f9;color:#1f2933}
header{background:#102a43;color:#fff;padding:1rem 2rem}
main{display:grid;grid-template-columns:repeat(auto-fill,minmax(420px,1fr));gap:1rem;padding:1rem 2rem}
.card{background:#fff;border-radius:8px;padding:1rem;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.card-wide{grid-column:1/-1}
.kpi-grid{display:grid;grid-template-columns:repeat(4,1fr);gap:1rem}
.kpi-card{display:flex;flex-direction:column}.kpi-value{font-size:1.6rem;font-weight:600}
.modern-table{width:100%;border-collapse:collapse}.modern-table th,.modern-table td{padding:.4rem;border-bottom:1px solid #e4e7eb;text-align:left}
.badge{padding:.1rem .5rem;border-radius:4px}.badge-avoid,.badge-high{background:#ffe3e3}.badge-monitor,.badge-medium{background:#fff3c4}.badge-optimal,.badge-low{background:#e3f9e5}
.alerts{display:flex;gap:2rem}.error,.stage-failure{color:#c62828}
</style>
</head>
`

const charts = `<script>
const udipCharts = {};
function udipChart(id, type, rows, label, x, y) {
	const el = document.getElementById(id + "-chart");
	if (!el || !window.Chart || !Array.isArray(rows)) return;
	if (udipCharts[id]) udipCharts[id].destroy();
	udipCharts[id] = new Chart(el, {type, data: {labels: rows.map(x), datasets: [{label, data: rows.map(y)}]}});
	const content = document.getElementById(id + "-content");
	if (content) content.textContent = "";
}
function udipForecast(fc) {
	const el = document.getElementById("forecast-chart");
	if (!el || !window.Chart || !fc) return;
	if (udipCharts.forecast) udipCharts.forecast.destroy();
	const day = d => d.date.slice(0, 10);
	const labels = fc.history.map(day).concat(fc.forecast.map(day));
	const pad = n => new Array(n).fill(null);
	udipCharts.forecast = new Chart(el, {type: "line", data: {labels, datasets: [
		{label: "History", data: fc.history.map(p => p.quantity).concat(pad(fc.forecast.length))},
		{label: "Forecast", data: pad(fc.history.length).concat(fc.forecast.map(p => p.point_estimate))},
		{label: "Upper", data: pad(fc.history.length).concat(fc.forecast.map(p => p.upper_bound)), borderDash: [4, 4]},
		{label: "Lower", data: pad(fc.history.length).concat(fc.forecast.map(p => p.lower_bound)), borderDash: [4, 4]},
	]}});
}
</script>
`

const effects = `<div hidden
data-effect="udipChart('monthly', 'line', $monthlyData, 'Revenue', r => r.month, r => r.revenue)"></div>
<div hidden data-effect="udipChart('products', 'bar', $productsData, 'Revenue', r => r.product_id, r => r.revenue)"></div>
<div hidden data-effect="udipChart('segment', 'pie', $segmentData, 'Revenue', r => r.segment, r => r.revenue)"></div>
<div hidden data-effect="udipChart('region', 'bar', $regionData, 'Orders', r => r.region, r => r.orders)"></div>
<div hidden data-effect="udipChart('carbon', 'bar', $carbonData, 'kg CO2', r => r.category, r => r.total_carbon)"></div>
<div hidden data-effect="udipChart('oil', 'line', $oilData, 'Oil price', r => r.date.slice(0, 10), r => r.value)"></div>
<div hidden data-effect="udipChart('delays', 'bar', $delayData, 'Shipments', r => Math.round(r.from_minutes), r => r.shipments)"></div>
<div hidden data-effect="udipChart('risk', 'pie', $riskData, 'Machines', r => r.category, r => r.machines)"></div>
<div hidden data-effect="udipForecast($forecastData)"></div>
`

// Dashboard renders the full page. On load it requests every panel in one
// SSE stream.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := write(w, head, `<body data-signals="`, templ.EscapeString(signals), `" data-init="@get('/sse/refresh-all')">`,
			`<header><h1>Unified Data Intelligence Platform</h1><div id="status-content"></div><div id="failures-content"></div></header><main>`); err != nil {
			return err
		}
		for _, p := range Panels {
			if err := PanelCard(p).Render(ctx, w); err != nil {
				return err
			}
		}
		return write(w, `</main>`, effects, charts, `</body></html>`)
	})
}
