// Package schema resolves the raw headers of an uploaded file against the
// logical columns the dashboard needs. Resolution happens exactly once per
// upload; downstream code works with a ColumnMap that is guaranteed to have,
// or explicitly lack, each field, instead of re-checking header presence at
// every aggregate.
package schema

import (
	"fmt"
	"strings"

	"finboard/internal/clean"
)

type Field string

const (
	FieldDate               Field = "Date"
	FieldSegment            Field = "Segment"
	FieldCountry            Field = "Country"
	FieldProduct            Field = "Product"
	FieldDiscountBand       Field = "Discount Band"
	FieldUnitsSold          Field = "Units Sold"
	FieldManufacturingPrice Field = "Manufacturing Price"
	FieldSalePrice          Field = "Sale Price"
	FieldGrossSales         Field = "Gross Sales"
	FieldDiscounts          Field = "Discounts"
	FieldNetSales           Field = "Sales"
	FieldCOGS               Field = "COGS"
	FieldProfit             Field = "Profit"
)

// Column declares one logical column: the spellings it may appear under in a
// raw header row (matched after clean.Header normalization) and whether the
// report can run without it.
type Column struct {
	Field    Field
	Names    []string
	Required bool
}

// DefaultColumns is the expected shape of the financial export. It is data,
// not code: callers with differently-labelled files pass their own table to
// Resolve.
func DefaultColumns() []Column {
	return []Column{
		{Field: FieldDate, Names: []string{"Date"}, Required: true},
		{Field: FieldSegment, Names: []string{"Segment"}, Required: true},
		{Field: FieldCountry, Names: []string{"Country"}, Required: true},
		{Field: FieldProduct, Names: []string{"Product"}},
		{Field: FieldDiscountBand, Names: []string{"Discount Band"}},
		{Field: FieldUnitsSold, Names: []string{"Units Sold"}, Required: true},
		{Field: FieldManufacturingPrice, Names: []string{"Manufacturing Price"}},
		{Field: FieldSalePrice, Names: []string{"Sale Price"}},
		{Field: FieldGrossSales, Names: []string{"Gross Sales"}, Required: true},
		{Field: FieldDiscounts, Names: []string{"Discounts"}, Required: true},
		{Field: FieldNetSales, Names: []string{"Sales", "Net Sales"}, Required: true},
		{Field: FieldCOGS, Names: []string{"COGS", "Cost of Goods Sold"}, Required: true},
		{Field: FieldProfit, Names: []string{"Profit"}, Required: true},
	}
}

// ColumnMap is the result of resolving one header row.
type ColumnMap struct {
	index   map[Field]int
	missing []Field
}

// MissingColumnsError reports every required column that could not be
// resolved, in one error, so the user fixes the file once.
type MissingColumnsError struct {
	Fields []Field
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("could not resolve required column(s): %s", strings.Join(names, ", "))
}

// Resolve maps each logical column to the first raw header matching one of
// its accepted names under header normalization. Missing required columns
// produce a single MissingColumnsError; missing optional columns are recorded
// on the map and degrade only their own filter or chart.
func Resolve(headers []string, columns []Column) (*ColumnMap, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = clean.Header(h)
	}

	m := &ColumnMap{index: make(map[Field]int, len(columns))}
	var missingRequired []Field

	for _, col := range columns {
		idx := -1
		for _, name := range col.Names {
			want := clean.Header(name)
			for i, h := range normalized {
				if h == want {
					idx = i
					break
				}
			}
			if idx >= 0 {
				break
			}
		}

		switch {
		case idx >= 0:
			m.index[col.Field] = idx
		case col.Required:
			missingRequired = append(missingRequired, col.Field)
		default:
			m.missing = append(m.missing, col.Field)
		}
	}

	if len(missingRequired) > 0 {
		return nil, &MissingColumnsError{Fields: missingRequired}
	}
	return m, nil
}

// Index returns the raw column position of a resolved field.
func (m *ColumnMap) Index(f Field) (int, bool) {
	i, ok := m.index[f]
	return i, ok
}

// Has reports whether the field resolved to a raw column.
func (m *ColumnMap) Has(f Field) bool {
	_, ok := m.index[f]
	return ok
}

// MissingOptional lists optional fields that did not resolve, in table order.
func (m *ColumnMap) MissingOptional() []Field {
	return m.missing
}
