// Package inventory keeps a product worksheet in shape: a styled header on row
// 1, one row per product colored by price tier, and a trailing SUM row over the
// Price column.
package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"product_sheet/internal/sheets"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	nameCol     = 1
	priceCol    = 2
	quantityCol = 3

	// HighPriceThreshold is the price above which a row is styled as high.
	HighPriceThreshold = 1000
)

// Header is the fixed label row expected on row 1.
var Header = []string{"Name", "Price", "Quantity"}

var (
	headerFormat = sheets.Format{
		Bold:                true,
		FontSize:            12,
		Background:          &sheets.Color{Red: 0.1, Green: 0.7, Blue: 1.0},
		HorizontalAlignment: "CENTER",
	}
	HighColor = sheets.Color{Red: 0.3, Green: 1.0, Blue: 0.3}
	LowColor  = sheets.Color{Red: 1.0, Green: 0.3, Blue: 0.3}
)

// Sheet is the worksheet contract the orchestrator drives. Rows and columns are 1-based.
type Sheet interface {
	Values(ctx context.Context) ([][]string, error)
	RowValues(ctx context.Context, row int) ([]string, error)
	ColumnValues(ctx context.Context, col int) ([]string, error)
	UpdateRange(ctx context.Context, r sheets.Range, values [][]interface{}, mode sheets.InputMode) error
	AppendRows(ctx context.Context, rows [][]interface{}, mode sheets.InputMode) error
	DeleteRow(ctx context.Context, row int) error
	Format(ctx context.Context, formats ...sheets.RangeFormat) error
}

// Notifier is told about products after they have been written.
type Notifier interface {
	NotifyProductsAdded(ctx context.Context, names []string)
}

// Product is one data row.
type Product struct {
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

type Orchestrator struct {
	sheet    Sheet
	notifier Notifier
	// lock serializes every multi-step sequence against the worksheet.
	lock *semaphore.Weighted
}

func NewOrchestrator(sheet Sheet, notifier Notifier) *Orchestrator {
	return &Orchestrator{
		sheet:    sheet,
		notifier: notifier,
		lock:     semaphore.NewWeighted(1),
	}
}

func (o *Orchestrator) acquire(ctx context.Context) error {
	if err := o.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for sheet lock: %w", err)
	}
	return nil
}

// EnsureHeader rewrites and styles row 1 when it differs from Header.
func (o *Orchestrator) EnsureHeader(ctx context.Context) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.lock.Release(1)
	return o.ensureHeader(ctx)
}

// RemoveAggregateRow deletes the trailing SUM row if there is one.
func (o *Orchestrator) RemoveAggregateRow(ctx context.Context) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.lock.Release(1)
	return o.removeAggregateRow(ctx)
}

// ApplyRowStyling colors every data row with an integer price by tier.
func (o *Orchestrator) ApplyRowStyling(ctx context.Context) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.lock.Release(1)
	return o.applyRowStyling(ctx)
}

// AppendAggregateRow writes the SUM formula below the last data row.
func (o *Orchestrator) AppendAggregateRow(ctx context.Context) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.lock.Release(1)
	return o.appendAggregateRow(ctx)
}

// AddProduct appends one product and re-establishes header, styling and the SUM row.
func (o *Orchestrator) AddProduct(ctx context.Context, p Product) error {
	log.Debug().Str("name", p.Name).Int("price", p.Price).Int("quantity", p.Quantity).Msg("Adding product")

	err := o.mutate(ctx, [][]interface{}{{p.Name, p.Price, p.Quantity}})
	if err != nil {
		return err
	}

	log.Info().Str("name", p.Name).Int("price", p.Price).Int("quantity", p.Quantity).Msg("Product added")
	o.notify(ctx, []string{p.Name})
	return nil
}

// UploadRows appends rows in one bulk write. A leading row equal to Header is
// dropped. An empty upload still rebuilds the SUM row.
func (o *Orchestrator) UploadRows(ctx context.Context, rows [][]interface{}) error {
	rows = StripHeader(rows)
	log.Debug().Int("rows", len(rows)).Msg("Uploading rows")

	if err := o.mutate(ctx, rows); err != nil {
		return err
	}

	log.Info().Int("rows", len(rows)).Msg("Rows uploaded")
	if len(rows) > 0 {
		names := make([]string, 0, len(rows))
		for _, row := range rows {
			if len(row) > 0 {
				names = append(names, fmt.Sprintf("%v", row[0]))
			}
		}
		o.notify(ctx, names)
	}
	return nil
}

// FetchAll returns every row as text, padded so all rows have the same width.
func (o *Orchestrator) FetchAll(ctx context.Context) ([][]string, error) {
	if err := o.acquire(ctx); err != nil {
		return nil, err
	}
	defer o.lock.Release(1)

	rows, err := o.sheet.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rows: %w", err)
	}
	return pad(rows), nil
}

func (o *Orchestrator) mutate(ctx context.Context, rows [][]interface{}) error {
	if err := o.acquire(ctx); err != nil {
		return err
	}
	defer o.lock.Release(1)

	if err := o.ensureHeader(ctx); err != nil {
		return err
	}
	if err := o.removeAggregateRow(ctx); err != nil {
		return err
	}
	if len(rows) > 0 {
		if err := o.sheet.AppendRows(ctx, rows, sheets.UserEntered); err != nil {
			return fmt.Errorf("failed to append rows: %w", err)
		}
	}
	if err := o.applyRowStyling(ctx); err != nil {
		return err
	}
	return o.appendAggregateRow(ctx)
}

func (o *Orchestrator) ensureHeader(ctx context.Context) error {
	current, err := o.sheet.RowValues(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to read header row: %w", err)
	}
	if equalRow(current, Header) {
		return nil
	}

	log.Debug().Strs("found", current).Msg("Header missing or mismatched, rewriting")
	headerRange := sheets.RowSpan(1, nameCol, quantityCol)
	values := [][]interface{}{make([]interface{}, len(Header))}
	for i, h := range Header {
		values[0][i] = h
	}
	if err := o.sheet.UpdateRange(ctx, headerRange, values, sheets.Raw); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := o.sheet.Format(ctx, sheets.RangeFormat{Range: headerRange, Format: headerFormat}); err != nil {
		return fmt.Errorf("failed to format header: %w", err)
	}
	return nil
}

func (o *Orchestrator) removeAggregateRow(ctx context.Context) error {
	rows, err := o.sheet.Values(ctx)
	if err != nil {
		return fmt.Errorf("failed to read rows: %w", err)
	}
	// Row 1 is the header and is never treated as an aggregate row.
	if len(rows) < 2 || !IsAggregateRow(rows[len(rows)-1]) {
		log.Debug().Int("rows", len(rows)).Msg("No aggregate row to remove")
		return nil
	}

	last := len(rows)
	if err := o.sheet.DeleteRow(ctx, last); err != nil {
		return fmt.Errorf("failed to delete aggregate row %d: %w", last, err)
	}
	log.Debug().Int("row", last).Msg("Removed aggregate row")
	return nil
}

func (o *Orchestrator) applyRowStyling(ctx context.Context) error {
	rows, err := o.sheet.Values(ctx)
	if err != nil {
		return fmt.Errorf("failed to read rows: %w", err)
	}

	var formats []sheets.RangeFormat
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if IsAggregateRow(row) {
			continue
		}
		price, ok := parsePrice(row)
		if !ok {
			continue
		}
		color := ColorFor(price)
		formats = append(formats, sheets.RangeFormat{
			Range: sheets.RowSpan(i+1, nameCol, quantityCol),
			Format: sheets.Format{
				Background:   &color,
				WrapStrategy: "WRAP",
			},
		})
	}
	if len(formats) == 0 {
		return nil
	}

	if err := o.sheet.Format(ctx, formats...); err != nil {
		return fmt.Errorf("failed to style rows: %w", err)
	}
	log.Debug().Int("rows", len(formats)).Msg("Styled data rows")
	return nil
}

func (o *Orchestrator) appendAggregateRow(ctx context.Context) error {
	prices, err := o.sheet.ColumnValues(ctx, priceCol)
	if err != nil {
		return fmt.Errorf("failed to read price column: %w", err)
	}
	if len(prices) > 0 && strings.EqualFold(prices[0], Header[priceCol-1]) {
		prices = prices[1:]
	}

	lastDataRow := len(prices) + 1
	formula := AggregateFormula(lastDataRow)
	cell := sheets.Cell(lastDataRow+1, priceCol)
	if err := o.sheet.UpdateRange(ctx, cell, [][]interface{}{{formula}}, sheets.UserEntered); err != nil {
		return fmt.Errorf("failed to write aggregate formula: %w", err)
	}
	log.Debug().Int("row", lastDataRow+1).Str("formula", formula).Msg("Wrote aggregate row")
	return nil
}

func (o *Orchestrator) notify(ctx context.Context, names []string) {
	if o.notifier == nil || len(names) == 0 {
		return
	}
	o.notifier.NotifyProductsAdded(context.WithoutCancel(ctx), names)
}

// AggregateFormula is the SUM over Price for data rows 2..lastDataRow. With no
// data rows it is "=0", since the reversed range B2:B1 would include the
// formula's own cell.
func AggregateFormula(lastDataRow int) string {
	if lastDataRow < 2 {
		return "=0"
	}
	return fmt.Sprintf("=SUM(B2:B%d)", lastDataRow)
}

// IsAggregateRow reports whether the row's Price cell holds a formula.
func IsAggregateRow(row []string) bool {
	return len(row) >= priceCol && strings.HasPrefix(row[priceCol-1], "=")
}

// ColorFor classifies a price: HighColor above HighPriceThreshold, LowColor otherwise.
func ColorFor(price int) sheets.Color {
	if price > HighPriceThreshold {
		return HighColor
	}
	return LowColor
}

// StripHeader drops a leading row whose cells read the same as Header.
func StripHeader(rows [][]interface{}) [][]interface{} {
	if len(rows) == 0 {
		return rows
	}
	first := make([]string, len(rows[0]))
	for i, v := range rows[0] {
		first[i] = fmt.Sprintf("%v", v)
	}
	if equalRow(first, Header) {
		return rows[1:]
	}
	return rows
}

func parsePrice(row []string) (int, bool) {
	if len(row) < priceCol {
		return 0, false
	}
	price, err := strconv.Atoi(strings.TrimSpace(row[priceCol-1]))
	if err != nil {
		return 0, false
	}
	return price, true
}

func equalRow(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pad(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		padded := make([]string, width)
		copy(padded, row)
		out[i] = padded
	}
	return out
}
