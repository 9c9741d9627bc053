package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one cleaned row of the uploaded financial file. Money fields are
// decimals so cents survive summation; derived time fields are computed once
// at load and never recomputed.
type Record struct {
	Date         time.Time
	Segment      string
	Country      string
	Product      string
	DiscountBand string

	UnitsSold          int64
	ManufacturingPrice decimal.Decimal
	SalePrice          decimal.Decimal
	GrossSales         decimal.Decimal
	Discounts          decimal.Decimal
	NetSales           decimal.Decimal
	COGS               decimal.Decimal
	Profit             decimal.Decimal

	Year      int
	Month     int
	MonthName string
	Quarter   int
}

// Summary holds the KPI strip values for the current filter selection.
// ProfitMargin is profit over net sales as a percentage, zero when net sales
// is not positive.
type Summary struct {
	UnitsSold    int64           `json:"units_sold"`
	GrossSales   decimal.Decimal `json:"gross_sales"`
	Discounts    decimal.Decimal `json:"discounts"`
	NetSales     decimal.Decimal `json:"net_sales"`
	Profit       decimal.Decimal `json:"profit"`
	ProfitMargin float64         `json:"profit_margin"`
}

type QuarterProfit struct {
	Year    int             `json:"year"`
	Quarter int             `json:"quarter"`
	Label   string          `json:"label"`
	Profit  decimal.Decimal `json:"profit"`
}

type MonthProfit struct {
	Year   int             `json:"year"`
	Month  int             `json:"month"`
	Name   string          `json:"name"`
	Profit decimal.Decimal `json:"profit"`
}

type SegmentSales struct {
	Segment  string          `json:"segment"`
	NetSales decimal.Decimal `json:"net_sales"`
}

type CountryProfit struct {
	Country string          `json:"country"`
	Profit  decimal.Decimal `json:"profit"`
}

type BandDiscounts struct {
	Band      string          `json:"band"`
	Discounts decimal.Decimal `json:"discounts"`
}

type ProductUnits struct {
	Product string `json:"product"`
	Units   int64  `json:"units"`
}

// PnLLine is one row of the profit-and-loss summary table.
type PnLLine struct {
	Item   string          `json:"item"`
	Amount decimal.Decimal `json:"amount"`
}

// Report is everything the dashboard renders for one filter selection.
// Empty is set when the selection matched no records; charts backed by a
// column the upload did not have are nil, not empty slices.
type Report struct {
	Summary         Summary         `json:"summary"`
	PnL             []PnLLine       `json:"pnl"`
	ProfitByQuarter []QuarterProfit `json:"profit_by_quarter"`
	ProfitByMonth   []MonthProfit   `json:"profit_by_month"`
	SalesBySegment  []SegmentSales  `json:"sales_by_segment"`
	ProfitByCountry []CountryProfit `json:"profit_by_country"`
	DiscountsByBand []BandDiscounts `json:"discounts_by_band,omitempty"`
	UnitsByProduct  []ProductUnits  `json:"units_by_product,omitempty"`
	RecordCount     int             `json:"record_count"`
	Empty           bool            `json:"empty"`
}

// Filter is the per-request selection over the categorical dimensions. A nil
// or empty slice means "all" for that dimension.
type Filter struct {
	Segments  []string
	Countries []string
	Years     []int
	Products  []string
	Bands     []string
}

// FilterOptions lists the distinct values available for each filter control.
// Dimensions whose column was absent from the upload stay empty.
type FilterOptions struct {
	Segments  []string `json:"segments"`
	Countries []string `json:"countries"`
	Years     []int    `json:"years"`
	Products  []string `json:"products,omitempty"`
	Bands     []string `json:"bands,omitempty"`
}
