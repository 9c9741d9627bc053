package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Dashboard is the single page of the app. All dynamic content arrives
// through /sse/report patches; the page itself is static and cacheable.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, dashboardHTML)
		return err
	})
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>Financial Performance Dashboard</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #f5f6fa; color: #1f2430; }
header { background: #1f2430; color: #fff; padding: 1rem 2rem; }
header h1 { margin: 0; font-size: 1.3rem; }
header p { margin: 0.2rem 0 0; color: #9aa3b2; font-size: 0.85rem; }
main { display: grid; grid-template-columns: 260px 1fr; gap: 1rem; padding: 1rem 2rem; }
aside, section.panel { background: #fff; border-radius: 8px; padding: 1rem; box-shadow: 0 1px 3px rgba(0,0,0,0.08); }
.kpi-grid { display: grid; grid-template-columns: repeat(4, 1fr); gap: 1rem; }
.kpi { background: #fff; border-radius: 8px; padding: 1rem; box-shadow: 0 1px 3px rgba(0,0,0,0.08); }
.kpi-label { display: block; color: #6b7280; font-size: 0.8rem; }
.kpi strong { font-size: 1.4rem; }
.charts { display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; margin-top: 1rem; }
.chart-card { background: #fff; border-radius: 8px; padding: 1rem; box-shadow: 0 1px 3px rgba(0,0,0,0.08); }
.modern-table { width: 100%; border-collapse: collapse; }
.modern-table th, .modern-table td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #e5e7eb; }
.empty-note { color: #b45309; }
select { width: 100%; margin-bottom: 0.8rem; }
label { font-size: 0.8rem; color: #6b7280; }
</style>
</head>
<body>
<header>
<h1>Financial Performance Dashboard</h1>
<p>Upload a financial export, filter by segment, country, year, product or discount band.</p>
</header>
<main>
<aside>
<h3>Upload your Data</h3>
<form id="upload-form">
<input type="file" name="file" accept=".csv,.txt,.xlsx" required/>
<button type="submit">Load</button>
</form>
<p id="upload-status"></p>
<h3>Filter Data</h3>
<label>Segment</label>
<select id="f-segment" multiple onchange="refreshReport()"></select>
<label>Country</label>
<select id="f-country" multiple onchange="refreshReport()"></select>
<label>Year</label>
<select id="f-year" multiple onchange="refreshReport()"></select>
<label>Product</label>
<select id="f-product" multiple onchange="refreshReport()"></select>
<label>Discount Band</label>
<select id="f-band" multiple onchange="refreshReport()"></select>
<button type="button" onclick="resetFilters()">Reset All Filters</button>
</aside>
<div>
<div id="kpi-content"><p>Upload a file to view the dashboard.</p></div>
<section class="panel" style="margin-top:1rem">
<h3>Profit &amp; Loss Summary</h3>
<div id="pnl-content"></div>
</section>
<div class="charts">
<div class="chart-card"><h3>Profit by Quarter</h3><canvas id="chart-quarter"></canvas></div>
<div class="chart-card"><h3>Profit by Month</h3><canvas id="chart-month"></canvas></div>
<div class="chart-card"><h3>Sales by Segment</h3><canvas id="chart-segment"></canvas></div>
<div class="chart-card"><h3>Profit by Country</h3><canvas id="chart-country"></canvas></div>
<div class="chart-card"><h3>Discounts by Band</h3><canvas id="chart-band"></canvas></div>
<div class="chart-card"><h3>Top Products by Units</h3><canvas id="chart-product"></canvas></div>
</div>
</div>
</main>
<script>
let datasetId = '';
const charts = {};

function selected(id) {
  return Array.from(document.getElementById(id).selectedOptions).map(o => o.value);
}

function reportQuery() {
  const p = new URLSearchParams();
  p.set('dataset', datasetId);
  for (const [param, id] of [['segment','f-segment'],['country','f-country'],['year','f-year'],['product','f-product'],['band','f-band']]) {
    for (const v of selected(id)) p.append(param, v);
  }
  return p.toString();
}

function refreshReport() {
  if (!datasetId) return;
  fetchReport();
}

function fetchReport() {
  fetch('/api/report?' + reportQuery())
    .then(r => r.json())
    .then(({data}) => {
      if (!data || data.empty) {
        document.getElementById('kpi-content').innerHTML = '<p class="empty-note">No matching data for the selected filters.</p>';
        return;
      }
      renderKPIs(data.summary);
      renderPnL(data.pnl);
      drawCharts(data.profit_by_quarter, data.profit_by_month, data.sales_by_segment,
                 data.profit_by_country, data.discounts_by_band || [], data.units_by_product || []);
    });
}

function renderKPIs(s) {
  document.getElementById('kpi-content').innerHTML =
    '<div class="kpi-grid">' +
    kpi('Total Units Sold', Number(s.units_sold).toLocaleString()) +
    kpi('Total Gross Sales', '$' + Number(s.gross_sales).toLocaleString()) +
    kpi('Total Profit', '$' + Number(s.profit).toLocaleString()) +
    kpi('Profit Margin', Number(s.profit_margin).toFixed(2) + '%') +
    '</div>';
}

function kpi(label, value) {
  return '<div class="kpi"><span class="kpi-label">' + label + '</span><strong>' + value + '</strong></div>';
}

function renderPnL(lines) {
  document.getElementById('pnl-content').innerHTML =
    '<table class="modern-table"><thead><tr><th>Line Item</th><th>Amount</th></tr></thead><tbody>' +
    lines.map(l => '<tr><td>' + l.item + '</td><td><strong>$' + Number(l.amount).toLocaleString() + '</strong></td></tr>').join('') +
    '</tbody></table>';
}

function bar(id, labels, values, horizontal) {
  if (charts[id]) charts[id].destroy();
  charts[id] = new Chart(document.getElementById(id), {
    type: 'bar',
    data: { labels: labels, datasets: [{ data: values, backgroundColor: '#4f6df5' }] },
    options: { indexAxis: horizontal ? 'y' : 'x', plugins: { legend: { display: false } } }
  });
}

function line(id, labels, values) {
  if (charts[id]) charts[id].destroy();
  charts[id] = new Chart(document.getElementById(id), {
    type: 'line',
    data: { labels: labels, datasets: [{ data: values, fill: true, borderColor: '#4f6df5' }] },
    options: { plugins: { legend: { display: false } } }
  });
}

function drawCharts(quarters, months, segments, countries, bands, products) {
  if (!quarters || !quarters.length) return;
  bar('chart-quarter', quarters.map(q => q.label), quarters.map(q => Number(q.profit)), false);
  line('chart-month', months.map(m => m.name + ' ' + m.year), months.map(m => Number(m.profit)));
  bar('chart-segment', segments.map(s => s.segment), segments.map(s => Number(s.net_sales)), true);
  bar('chart-country', countries.map(c => c.country), countries.map(c => Number(c.profit)), true);
  bar('chart-band', bands.map(b => b.band), bands.map(b => Number(b.discounts)), true);
  bar('chart-product', products.map(p => p.product), products.map(p => Number(p.units)), true);
}

function populate(id, values) {
  const el = document.getElementById(id);
  el.innerHTML = (values || []).map(v => '<option selected>' + v + '</option>').join('');
}

function resetFilters() {
  for (const id of ['f-segment','f-country','f-year','f-product','f-band']) {
    for (const o of document.getElementById(id).options) o.selected = true;
  }
  fetchReport();
}

document.getElementById('upload-form').addEventListener('submit', ev => {
  ev.preventDefault();
  const form = new FormData(ev.target);
  fetch('/api/upload', { method: 'POST', body: form })
    .then(r => r.json())
    .then(resp => {
      const status = document.getElementById('upload-status');
      if (!resp.success) {
        status.textContent = resp.error.message;
        return;
      }
      datasetId = resp.data.dataset_id;
      status.textContent = resp.data.record_count + ' records loaded' +
        (resp.data.skipped_rows ? ' (' + resp.data.skipped_rows + ' rows dropped)' : '');
      fetch('/api/options?dataset=' + datasetId)
        .then(r => r.json())
        .then(({data}) => {
          populate('f-segment', data.segments);
          populate('f-country', data.countries);
          populate('f-year', data.years);
          populate('f-product', data.products);
          populate('f-band', data.bands);
          fetchReport();
        });
    });
});
</script>
</body>
</html>
`
