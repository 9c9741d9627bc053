package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"finboard/internal/models"
	"finboard/internal/services"
	"github.com/starfederation/datastar-go/datastar"
)

var kpiTemplate = template.Must(template.New("kpis").Parse(`
<div id="kpi-content">
<div class="kpi-grid">
<div class="kpi"><span class="kpi-label">Total Units Sold</span><strong>{{.Summary.UnitsSold}}</strong></div>
<div class="kpi"><span class="kpi-label">Total Gross Sales</span><strong>${{.Summary.GrossSales}}</strong></div>
<div class="kpi"><span class="kpi-label">Total Profit</span><strong>${{.Summary.Profit}}</strong></div>
<div class="kpi"><span class="kpi-label">Profit Margin</span><strong>{{printf "%.2f" .Summary.ProfitMargin}}%</strong></div>
</div>
</div>`))

var pnlTemplate = template.Must(template.New("pnl").Parse(`
<div id="pnl-content">
<table class="modern-table">
<thead><tr><th>Line Item</th><th>Amount</th></tr></thead>
<tbody>
{{range .PnL}}<tr><td>{{.Item}}</td><td><strong>${{.Amount}}</strong></td></tr>
{{end}}
</tbody>
</table>
</div>`))

const emptyReportHTML = `<div id="kpi-content"><p class="empty-note">No matching data for the selected filters.</p></div>`

type SSEHandlers struct {
	reports *services.Reports
	logger  *slog.Logger
}

func NewSSEHandlers(reports *services.Reports, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		reports: reports,
		logger:  logger,
	}
}

func renderFragment(tmpl *template.Template, report models.Report) (string, error) {
	var buf strings.Builder
	err := tmpl.Execute(&buf, report)
	return buf.String(), err
}

// HandleReport recomputes the whole report for the filter selection in the
// query and patches the page in one SSE response: KPI strip and P&L table as
// HTML fragments, chart series as datastar signals. Every filter interaction
// hits this endpoint, mirroring the recompute-fully-before-rendering model.
func (h *SSEHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	ds, ok := h.reports.Get(r.URL.Query().Get("dataset"))
	if !ok {
		sse.PatchElements(`<div id="kpi-content"><p class="empty-note">Dataset expired; upload a file to continue.</p></div>`)
		return
	}

	report := h.reports.Build(ds, FilterFromQuery(r))

	if report.Empty {
		sse.PatchElements(emptyReportHTML)
		sse.PatchElements(`<div id="pnl-content"></div>`)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		return
	}

	kpiHTML, err := renderFragment(kpiTemplate, report)
	if err != nil {
		h.logger.Error("render kpi fragment", "error", err)
		return
	}
	sse.PatchElements(kpiHTML)

	pnlHTML, err := renderFragment(pnlTemplate, report)
	if err != nil {
		h.logger.Error("render pnl fragment", "error", err)
		return
	}
	sse.PatchElements(pnlHTML)

	signals, err := json.Marshal(map[string]any{
		"quarterData": report.ProfitByQuarter,
		"monthData":   report.ProfitByMonth,
		"segmentData": report.SalesBySegment,
		"countryData": report.ProfitByCountry,
		"bandData":    report.DiscountsByBand,
		"productData": report.UnitsByProduct,
	})
	if err != nil {
		h.logger.Error("marshal chart signals", "error", err)
		return
	}
	sse.PatchSignals(signals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleOptions pushes the distinct filter values for a dataset so the
// sidebar controls can populate themselves after an upload.
func (h *SSEHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	ds, ok := h.reports.Get(r.URL.Query().Get("dataset"))
	if !ok {
		return
	}

	signals, err := json.Marshal(map[string]any{
		"filterOptions": h.reports.Options(ds),
	})
	if err != nil {
		h.logger.Error("marshal filter options", "error", err)
		return
	}
	sse.PatchSignals(signals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
