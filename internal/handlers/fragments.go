package handlers

import (
	"html/template"
	"strings"

	"udip-dashboard/internal/models"
	"udip-dashboard/internal/services"
)

const (
	maxTableRows = 50
	maxRoutes    = 15
	maxMachines  = 30
)

var funcs = template.FuncMap{
	"lower":  strings.ToLower,
	"mulPct": func(v float64) float64 { return v * 100 },
}

var kpiTemplate = template.Must(template.New("kpis").Parse(`
<div id="kpi-content" class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Total Revenue</span><span class="kpi-value">${{printf "%.0f" .TotalRevenue}}</span></div>
<div class="kpi-card"><span class="kpi-label">Total Orders</span><span class="kpi-value">{{.TotalOrders}}</span></div>
<div class="kpi-card"><span class="kpi-label">Churn Rate</span><span class="kpi-value">{{printf "%.1f" .ChurnRatePct}}%</span></div>
<div class="kpi-card"><span class="kpi-label">Avg Delivery Delay</span><span class="kpi-value">{{printf "%.1f" .AvgDelayMinutes}} min</span></div>
</div>`))

var alertsTemplate = template.Must(template.New("alerts").Funcs(funcs).Parse(`
<div id="alerts-content" class="alerts">
<div class="alert-column">
<h3>Most Delayed Shipments</h3>
<ul>{{range .DelayedShipments}}<li><strong>{{.ShipmentID}}</strong> on {{.RouteID}}: {{printf "%.0f" .DelayMinutes}} min late</li>{{else}}<li>No shipments</li>{{end}}</ul>
</div>
<div class="alert-column">
<h3>Highest Fault Rates</h3>
<ul>{{range .FaultRates}}<li><strong>{{.MachineID}}</strong>: {{printf "%.1f" (mulPct .FaultRate)}}% of readings faulted</li>{{else}}<li>No sensor data</li>{{end}}</ul>
</div>
</div>`))

var routeTableTemplate = template.Must(template.New("routes").Funcs(funcs).Parse(`
<div id="routes-content">
<table class="modern-table">
<thead><tr><th>Route</th><th>Origin</th><th>Destination</th><th>Distance</th><th>Predicted Delay</th><th>Risk</th><th>Recommendation</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.RouteID}}</td>
<td>{{.Origin}}</td>
<td>{{.Destination}}</td>
<td>{{printf "%.0f" .DistanceKM}} km</td>
<td>{{printf "%.1f" .PredictedDelay}} min</td>
<td><strong>{{.RiskScore}}</strong></td>
<td><span class="badge badge-{{lower (print .Recommendation)}}">{{.Recommendation.Label}}</span></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var machineTableTemplate = template.Must(template.New("machines").Funcs(funcs).Parse(`
<div id="machines-content">
<table class="modern-table">
<thead><tr><th>Machine</th><th>Type</th><th>Location</th><th>Temperature</th><th>Vibration</th><th>Failure Probability</th><th>Risk</th><th>Action</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.MachineID}}</td>
<td>{{.Type}}</td>
<td>{{.LocationID}}</td>
<td>{{printf "%.1f" .Temperature}}</td>
<td>{{printf "%.2f" .Vibration}}</td>
<td>{{printf "%.2f" .FailureProbability}}</td>
<td><span class="badge badge-{{lower (print .RiskCategory)}}">{{.RiskScore}} {{.RiskCategory}}</span></td>
<td>{{.RecommendedAction}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var maintenanceTemplate = template.Must(template.New("maintenance").Parse(`
<div id="maintenance-content">
{{if .}}<table class="modern-table">
<thead><tr><th>Machine</th><th>Type</th><th>Location</th><th>Risk</th><th>Priority</th><th>Action</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.MachineID}}</td>
<td>{{.Type}}</td>
<td>{{.LocationID}}</td>
<td>{{.RiskScore}}</td>
<td><strong>{{.Priority}}</strong></td>
<td>{{.RecommendedAction}}</td>
</tr>{{end}}
</tbody>
</table>{{else}}<p class="empty">No machines need maintenance.</p>{{end}}
</div>`))

var pricingTableTemplate = template.Must(template.New("pricing").Parse(`
<div id="pricing-content">
<table class="modern-table">
<thead><tr><th>Product</th><th>Category</th><th>Cost</th><th>Current</th><th>Competitor Avg</th><th>Forecast Demand</th><th>Recommended</th><th>Revenue Gain</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.ProductID}}</td>
<td><span class="category-badge">{{.Category}}</span></td>
<td>${{printf "%.2f" .Cost}}</td>
<td>${{printf "%.2f" .CurrentPrice}}</td>
<td>${{printf "%.2f" .CompetitorAvgPrice}}</td>
<td>{{printf "%.0f" .ForecastDemand}}</td>
<td><strong>${{printf "%.2f" .RecommendedPrice}}</strong></td>
<td>{{printf "%.2f" .ExpectedRevenueGainPct}}%</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var metricsTemplate = template.Must(template.New("metrics").Parse(`
<div id="metrics-content" class="metrics">
<span>Delay model: MAE {{printf "%.2f" .Delay.MAE}} min, R² {{printf "%.3f" .Delay.R2}} ({{.Delay.TestRows}} held out)</span>
<span>Failure model: accuracy {{printf "%.3f" .Failure.Accuracy}} ({{.Failure.TestRows}} held out)</span>
</div>`))

var failuresTemplate = template.Must(template.New("failures").Parse(`
<div id="failures-content">{{range $stage, $msg := .}}<div class="stage-failure"><strong>{{$stage}}</strong>: {{$msg}}</div>{{end}}</div>`))

var forecastErrorTemplate = template.Must(template.New("forecastError").Parse(`
<div id="forecast-content" class="error">{{.}}</div>`))

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := t.Execute(&buf, data)
	return buf.String(), err
}

func renderRouteTable(rows []models.RouteRisk) (string, error) {
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
	}
	return render(routeTableTemplate, rows)
}

func renderMachineTable(rows []models.MachineHealth) (string, error) {
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
	}
	return render(machineTableTemplate, rows)
}

func renderAlerts(s services.Summary) (string, error) {
	return render(alertsTemplate, s)
}
