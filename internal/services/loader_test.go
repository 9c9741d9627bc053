package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"finboard/internal/schema"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const messyCSV = `Segment,Country, Product ,Discount Band, Units Sold ,Manufacturing Price,Sale Price,Gross Sales,Discounts,Sales,COGS,Profit,Date
Government,Canada,Carretera,None,"1,618.50",$3.00,$20.00,"$32,370.00",$-,"$32,370.00","$16,185.00","$16,185.00",01/01/2014
Government,Germany,Carretera,None,"1,321.00",$3.00,$20.00,"$26,420.00",$-,"$26,420.00","$13,210.00","$13,210.00",01/01/2014
Midmarket,France,Carretera,None,"2,178.00",$3.00,$15.00,"$32,670.00",$-,"$32,670.00","$21,780.00","$(10,890.00)",06/01/2014
`

func loadTestCSV(t *testing.T, data string) *Dataset {
	t.Helper()
	ds, err := LoadCSV(context.Background(), strings.NewReader(data), schema.DefaultColumns())
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	return ds
}

func TestLoadCSV_CleansMessyCells(t *testing.T) {
	ds := loadTestCSV(t, messyCSV)

	if len(ds.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(ds.Records))
	}
	if ds.SkippedRows != 0 {
		t.Errorf("SkippedRows = %d, want 0", ds.SkippedRows)
	}

	first := ds.Records[0]
	if first.UnitsSold != 1618 {
		t.Errorf("UnitsSold = %d, want 1618", first.UnitsSold)
	}
	if !first.GrossSales.Equal(decimal.RequireFromString("32370")) {
		t.Errorf("GrossSales = %s, want 32370", first.GrossSales)
	}
	// "$-" sentinel resolves to exactly zero.
	if !first.Discounts.IsZero() {
		t.Errorf("Discounts = %s, want 0", first.Discounts)
	}

	// Accounting negative on the third row.
	third := ds.Records[2]
	if !third.Profit.Equal(decimal.RequireFromString("-10890")) {
		t.Errorf("Profit = %s, want -10890", third.Profit)
	}
	if third.Quarter != 2 || third.Month != 6 || third.Year != 2014 {
		t.Errorf("derived fields = %d/%d Q%d, want 2014/6 Q2", third.Year, third.Month, third.Quarter)
	}
	if third.MonthName != "June" {
		t.Errorf("MonthName = %q, want June", third.MonthName)
	}
}

func TestLoadCSV_DropsUnparseableDates(t *testing.T) {
	data := `Date,Segment,Country,Units Sold,Gross Sales,Discounts,Sales,COGS,Profit
01/01/2020,Government,Canada,100,1000,0,1000,600,400
not-a-date,Government,Canada,50,500,0,500,300,200
02/01/2020,Midmarket,France,10,100,0,100,60,40
`
	ds := loadTestCSV(t, data)

	if len(ds.Records) != 2 {
		t.Errorf("got %d records, want 2 (bad-date row dropped)", len(ds.Records))
	}
	if ds.SkippedRows != 1 {
		t.Errorf("SkippedRows = %d, want 1", ds.SkippedRows)
	}
}

func TestLoadCSV_EmptyAfterDateCleaning(t *testing.T) {
	data := `Date,Segment,Country,Units Sold,Gross Sales,Discounts,Sales,COGS,Profit
bad,Government,Canada,100,1000,0,1000,600,400
`
	_, err := LoadCSV(context.Background(), strings.NewReader(data), schema.DefaultColumns())
	if err == nil {
		t.Fatal("LoadCSV() should fail when every row is dropped")
	}
}

func TestLoadCSV_MissingRequiredColumn(t *testing.T) {
	data := `Date,Segment,Country,Units Sold,Gross Sales,Discounts,Sales,COGS
01/01/2020,Government,Canada,100,1000,0,1000,600
`
	_, err := LoadCSV(context.Background(), strings.NewReader(data), schema.DefaultColumns())

	var missing *schema.MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *schema.MissingColumnsError", err)
	}
	if len(missing.Fields) != 1 || missing.Fields[0] != schema.FieldProfit {
		t.Errorf("missing = %v, want [Profit]", missing.Fields)
	}
}

func TestLoadCSV_EmptyFile(t *testing.T) {
	_, err := LoadCSV(context.Background(), strings.NewReader(""), schema.DefaultColumns())
	if err == nil {
		t.Fatal("LoadCSV() should fail on an empty file")
	}
}

func TestLoadXLSX_RoundTrip(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	headers := []string{"Date", "Segment", "Country", "Units Sold", "Gross Sales", "Discounts", "Sales", "COGS", "Profit"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := wb.SetCellValue(sheet, cell, h); err != nil {
			t.Fatal(err)
		}
	}
	row := []string{"01/01/2020", "Government", "Canada", "1,000", "$5,000.00", "$-", "$5,000.00", "$3,000.00", "$2,000.00"}
	for i, v := range row {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := wb.SetCellValue(sheet, cell, v); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatal(err)
	}

	ds, err := LoadXLSX(context.Background(), &buf, schema.DefaultColumns())
	if err != nil {
		t.Fatalf("LoadXLSX() error = %v", err)
	}
	if len(ds.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(ds.Records))
	}
	if ds.Records[0].UnitsSold != 1000 {
		t.Errorf("UnitsSold = %d, want 1000", ds.Records[0].UnitsSold)
	}
	if !ds.Records[0].Profit.Equal(decimal.RequireFromString("2000")) {
		t.Errorf("Profit = %s, want 2000", ds.Records[0].Profit)
	}
}

func TestLoadXLSX_Undecodable(t *testing.T) {
	_, err := LoadXLSX(context.Background(), strings.NewReader("definitely not a workbook"), schema.DefaultColumns())
	if err == nil {
		t.Fatal("LoadXLSX() should fail on a non-xlsx stream")
	}
}
