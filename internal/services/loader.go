package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"finboard/internal/clean"
	"finboard/internal/models"
	"finboard/internal/schema"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

const (
	batchSize  = 2000
	maxWorkers = 8
)

// Accepted date layouts, most common export format first.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"2006-01-02",
	"02-01-2006",
	"January 2, 2006",
}

// Dataset is one upload, cleaned once and read-only afterwards.
type Dataset struct {
	ID          string
	Records     []models.Record
	Columns     *schema.ColumnMap
	SkippedRows int
	LoadedAt    time.Time
}

// LoadCSV decodes a delimited file and builds a dataset from it. The reader
// must be RFC 4180: money cells like "$1,234.56" carry embedded commas inside
// quotes, so splitting lines on commas would shear them apart.
func LoadCSV(ctx context.Context, r io.Reader, columns []schema.Column) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("decode csv header: %w", err)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode csv: %w", err)
		}
		rows = append(rows, row)
	}

	return buildDataset(ctx, header, rows, columns)
}

// LoadXLSX decodes the first sheet of a workbook and builds a dataset from it.
func LoadXLSX(ctx context.Context, r io.Reader, columns []schema.Column) (*Dataset, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("decode xlsx: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("decode xlsx: workbook has no sheets")
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("decode xlsx: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("decode xlsx: sheet %q is empty", sheets[0])
	}

	return buildDataset(ctx, rows[0], rows[1:], columns)
}

// buildDataset resolves columns once, then normalizes rows on a bounded
// worker pool, one goroutine per batch, preserving input order. Rows whose
// date fails to parse are dropped; numeric cells never fail (clean.Amount).
func buildDataset(ctx context.Context, header []string, rows [][]string, columns []schema.Column) (*Dataset, error) {
	colMap, err := schema.Resolve(header, columns)
	if err != nil {
		return nil, err
	}

	numBatches := (len(rows) + batchSize - 1) / batchSize
	batches := make([][]models.Record, numBatches)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i := 0; i < numBatches; i++ {
		lo := i * batchSize
		hi := min(lo+batchSize, len(rows))
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			batches[i] = convertRows(rows[lo:hi], colMap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]models.Record, 0, len(rows))
	for _, b := range batches {
		records = append(records, b...)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no usable records after cleaning dates")
	}

	return &Dataset{
		ID:          uuid.NewString(),
		Records:     records,
		Columns:     colMap,
		SkippedRows: len(rows) - len(records),
		LoadedAt:    time.Now(),
	}, nil
}

func convertRows(rows [][]string, colMap *schema.ColumnMap) []models.Record {
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		rec, ok := convertRow(row, colMap)
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

func convertRow(row []string, colMap *schema.ColumnMap) (models.Record, bool) {
	cell := func(f schema.Field) string {
		idx, ok := colMap.Index(f)
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	date, ok := parseDate(cell(schema.FieldDate))
	if !ok {
		return models.Record{}, false
	}

	rec := models.Record{
		Date:         date,
		Segment:      clean.Text(cell(schema.FieldSegment)),
		Country:      clean.Text(cell(schema.FieldCountry)),
		Product:      clean.Text(cell(schema.FieldProduct)),
		DiscountBand: clean.Text(cell(schema.FieldDiscountBand)),

		UnitsSold:          clean.Units(cell(schema.FieldUnitsSold)),
		ManufacturingPrice: clean.Amount(cell(schema.FieldManufacturingPrice)),
		SalePrice:          clean.Amount(cell(schema.FieldSalePrice)),
		GrossSales:         clean.Amount(cell(schema.FieldGrossSales)),
		Discounts:          clean.Amount(cell(schema.FieldDiscounts)),
		NetSales:           clean.Amount(cell(schema.FieldNetSales)),
		COGS:               clean.Amount(cell(schema.FieldCOGS)),
		Profit:             clean.Amount(cell(schema.FieldProfit)),
	}

	rec.Year = date.Year()
	rec.Month = int(date.Month())
	rec.MonthName = date.Month().String()
	rec.Quarter = (rec.Month-1)/3 + 1

	return rec, true
}

func parseDate(raw string) (time.Time, bool) {
	s := clean.Text(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
