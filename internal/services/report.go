package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"finboard/internal/models"
	"finboard/internal/schema"
	"github.com/shopspring/decimal"
)

const (
	janitorInterval = time.Minute
	maxProducts     = 10
)

// Reports owns the per-session datasets and computes every aggregate the
// dashboard shows. Datasets are immutable after load, so reads only need the
// session map lock.
type Reports struct {
	mu        sync.RWMutex
	sessions  map[string]*session
	defaultID string
	columns   []schema.Column
	ttl       time.Duration
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

type session struct {
	dataset  *Dataset
	lastSeen time.Time
}

func NewReports(ttl time.Duration, logger *slog.Logger) *Reports {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reports{
		sessions: make(map[string]*session),
		columns:  schema.DefaultColumns(),
		ttl:      ttl,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go r.janitor()
	return r
}

// Close stops the session janitor. Registered as a shutdown hook.
func (r *Reports) Close(ctx context.Context) error {
	r.closeOnce.Do(func() { close(r.done) })
	return nil
}

func (r *Reports) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

func (r *Reports) evictIdle() {
	cutoff := time.Now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if id == r.defaultID {
			continue
		}
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			r.logger.Info("expired idle dataset", "dataset_id", id)
		}
	}
}

// CreateFromUpload decodes one uploaded file, dispatching on its extension,
// and registers the resulting dataset under a fresh ID.
func (r *Reports) CreateFromUpload(ctx context.Context, filename string, src io.Reader) (*Dataset, error) {
	var (
		ds  *Dataset
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		ds, err = LoadXLSX(ctx, src, r.columns)
	case ".csv", ".txt", "":
		ds, err = LoadCSV(ctx, src, r.columns)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[ds.ID] = &session{dataset: ds, lastSeen: time.Now()}
	r.mu.Unlock()

	r.logger.Info("dataset loaded",
		"dataset_id", ds.ID,
		"records", len(ds.Records),
		"skipped_rows", ds.SkippedRows,
		"missing_optional", ds.Columns.MissingOptional(),
	)
	return ds, nil
}

// Preload loads a CSV from disk at boot so the dashboard starts populated.
// The preloaded dataset becomes the default when a request names none, and is
// exempt from idle eviction.
func (r *Reports) Preload(ctx context.Context, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	ds, err := r.CreateFromUpload(ctx, path, f)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.defaultID = ds.ID
	r.mu.Unlock()
	return ds, nil
}

// Get fetches a dataset by ID, falling back to the preloaded default when id
// is empty. Fetching refreshes the session's idle clock.
func (r *Reports) Get(id string) (*Dataset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" {
		id = r.defaultID
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = time.Now()
	return s.dataset, true
}

// Options lists the distinct values per filter dimension. Dimensions backed
// by a column the upload did not have list nothing.
func (r *Reports) Options(ds *Dataset) models.FilterOptions {
	segments := make(map[string]struct{})
	countries := make(map[string]struct{})
	years := make(map[int]struct{})
	products := make(map[string]struct{})
	bands := make(map[string]struct{})

	for _, rec := range ds.Records {
		segments[rec.Segment] = struct{}{}
		countries[rec.Country] = struct{}{}
		years[rec.Year] = struct{}{}
		if rec.Product != "" {
			products[rec.Product] = struct{}{}
		}
		if rec.DiscountBand != "" {
			bands[rec.DiscountBand] = struct{}{}
		}
	}

	opts := models.FilterOptions{
		Segments:  sortedKeys(segments),
		Countries: sortedKeys(countries),
	}
	opts.Years = make([]int, 0, len(years))
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	slices.Sort(opts.Years)

	if ds.Columns.Has(schema.FieldProduct) {
		opts.Products = sortedKeys(products)
	}
	if ds.Columns.Has(schema.FieldDiscountBand) {
		opts.Bands = sortedKeys(bands)
	}
	return opts
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// matcher precomputes the set-membership tests for one filter selection.
// Filters over columns the upload did not have are inert.
type matcher struct {
	segments  map[string]struct{}
	countries map[string]struct{}
	years     map[int]struct{}
	products  map[string]struct{}
	bands     map[string]struct{}
}

func newMatcher(f models.Filter, cols *schema.ColumnMap) matcher {
	m := matcher{
		segments:  toSet(f.Segments),
		countries: toSet(f.Countries),
	}
	if len(f.Years) > 0 {
		m.years = make(map[int]struct{}, len(f.Years))
		for _, y := range f.Years {
			m.years[y] = struct{}{}
		}
	}
	if cols.Has(schema.FieldProduct) {
		m.products = toSet(f.Products)
	}
	if cols.Has(schema.FieldDiscountBand) {
		m.bands = toSet(f.Bands)
	}
	return m
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (m matcher) match(rec models.Record) bool {
	if m.segments != nil {
		if _, ok := m.segments[rec.Segment]; !ok {
			return false
		}
	}
	if m.countries != nil {
		if _, ok := m.countries[rec.Country]; !ok {
			return false
		}
	}
	if m.years != nil {
		if _, ok := m.years[rec.Year]; !ok {
			return false
		}
	}
	if m.products != nil {
		if _, ok := m.products[rec.Product]; !ok {
			return false
		}
	}
	if m.bands != nil {
		if _, ok := m.bands[rec.DiscountBand]; !ok {
			return false
		}
	}
	return true
}

// Build computes the full report for one filter selection in a single pass
// over the dataset. Time groupings sort chronologically, categorical
// groupings descending by summed value.
func (r *Reports) Build(ds *Dataset, f models.Filter) models.Report {
	m := newMatcher(f, ds.Columns)

	var (
		summary  models.Summary
		cogs     decimal.Decimal
		quarters = make(map[[2]int]decimal.Decimal)
		months   = make(map[[2]int]decimal.Decimal)
		segments = make(map[string]decimal.Decimal)
		country  = make(map[string]decimal.Decimal)
		bands    = make(map[string]decimal.Decimal)
		products = make(map[string]int64)
		matched  int
	)

	for _, rec := range ds.Records {
		if !m.match(rec) {
			continue
		}
		matched++

		summary.UnitsSold += rec.UnitsSold
		summary.GrossSales = summary.GrossSales.Add(rec.GrossSales)
		summary.Discounts = summary.Discounts.Add(rec.Discounts)
		summary.NetSales = summary.NetSales.Add(rec.NetSales)
		summary.Profit = summary.Profit.Add(rec.Profit)
		cogs = cogs.Add(rec.COGS)

		qk := [2]int{rec.Year, rec.Quarter}
		quarters[qk] = quarters[qk].Add(rec.Profit)

		mk := [2]int{rec.Year, rec.Month}
		months[mk] = months[mk].Add(rec.Profit)

		segments[rec.Segment] = segments[rec.Segment].Add(rec.NetSales)
		country[rec.Country] = country[rec.Country].Add(rec.Profit)

		if rec.DiscountBand != "" {
			bands[rec.DiscountBand] = bands[rec.DiscountBand].Add(rec.Discounts)
		}
		if rec.Product != "" {
			products[rec.Product] += rec.UnitsSold
		}
	}

	report := models.Report{
		RecordCount: matched,
		Empty:       matched == 0,
	}
	if matched == 0 {
		return report
	}

	if summary.NetSales.IsPositive() {
		summary.ProfitMargin, _ = summary.Profit.
			Div(summary.NetSales).
			Mul(decimal.NewFromInt(100)).
			Round(2).
			Float64()
	}
	report.Summary = summary

	report.PnL = []models.PnLLine{
		{Item: "Gross Sales", Amount: summary.GrossSales},
		{Item: "Discounts", Amount: summary.Discounts},
		{Item: "Net Sales", Amount: summary.NetSales},
		{Item: "COGS", Amount: cogs},
		{Item: "Profit", Amount: summary.Profit},
	}

	report.ProfitByQuarter = sortQuarters(quarters)
	report.ProfitByMonth = sortMonths(months)
	report.SalesBySegment = sortSegments(segments)
	report.ProfitByCountry = sortCountries(country)

	if ds.Columns.Has(schema.FieldDiscountBand) {
		report.DiscountsByBand = sortBands(bands)
	}
	if ds.Columns.Has(schema.FieldProduct) {
		report.UnitsByProduct = sortProducts(products)
	}
	return report
}

func sortQuarters(groups map[[2]int]decimal.Decimal) []models.QuarterProfit {
	out := make([]models.QuarterProfit, 0, len(groups))
	for k, v := range groups {
		out = append(out, models.QuarterProfit{
			Year:    k[0],
			Quarter: k[1],
			Label:   fmt.Sprintf("%d Q%d", k[0], k[1]),
			Profit:  v,
		})
	}
	slices.SortFunc(out, func(a, b models.QuarterProfit) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return a.Quarter - b.Quarter
	})
	return out
}

// sortMonths orders by (year, month number), not by month name: the plotted
// series must come out chronological no matter how the rows arrived.
func sortMonths(groups map[[2]int]decimal.Decimal) []models.MonthProfit {
	out := make([]models.MonthProfit, 0, len(groups))
	for k, v := range groups {
		out = append(out, models.MonthProfit{
			Year:   k[0],
			Month:  k[1],
			Name:   time.Month(k[1]).String(),
			Profit: v,
		})
	}
	slices.SortFunc(out, func(a, b models.MonthProfit) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return a.Month - b.Month
	})
	return out
}

func sortSegments(groups map[string]decimal.Decimal) []models.SegmentSales {
	out := make([]models.SegmentSales, 0, len(groups))
	for k, v := range groups {
		out = append(out, models.SegmentSales{Segment: k, NetSales: v})
	}
	slices.SortFunc(out, func(a, b models.SegmentSales) int {
		return b.NetSales.Cmp(a.NetSales)
	})
	return out
}

func sortCountries(groups map[string]decimal.Decimal) []models.CountryProfit {
	out := make([]models.CountryProfit, 0, len(groups))
	for k, v := range groups {
		out = append(out, models.CountryProfit{Country: k, Profit: v})
	}
	slices.SortFunc(out, func(a, b models.CountryProfit) int {
		return b.Profit.Cmp(a.Profit)
	})
	return out
}

func sortBands(groups map[string]decimal.Decimal) []models.BandDiscounts {
	out := make([]models.BandDiscounts, 0, len(groups))
	for k, v := range groups {
		out = append(out, models.BandDiscounts{Band: k, Discounts: v})
	}
	slices.SortFunc(out, func(a, b models.BandDiscounts) int {
		return b.Discounts.Cmp(a.Discounts)
	})
	return out
}

func sortProducts(groups map[string]int64) []models.ProductUnits {
	out := make([]models.ProductUnits, 0, len(groups))
	for k, v := range groups {
		out = append(out, models.ProductUnits{Product: k, Units: v})
	}
	slices.SortFunc(out, func(a, b models.ProductUnits) int {
		switch {
		case a.Units > b.Units:
			return -1
		case a.Units < b.Units:
			return 1
		default:
			return 0
		}
	})
	if len(out) > maxProducts {
		out = out[:maxProducts]
	}
	return out
}

// Stats summarizes held sessions for the admin endpoint.
func (r *Reports) Stats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := 0
	for _, s := range r.sessions {
		records += len(s.dataset.Records)
	}
	return map[string]any{
		"datasets":      len(r.sessions),
		"total_records": records,
		"has_default":   r.defaultID != "",
		"session_ttl":   r.ttl.String(),
	}
}
