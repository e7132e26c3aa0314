package worklist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"erpfetch/internal/config"
	"erpfetch/internal/ledger"
	"erpfetch/internal/report"
)

// Source describes where the worklist lives and how its headers map to fields.
type Source struct {
	Path  string
	Sheet string
	// Columns maps config.Field* names to header text.
	Columns map[string]string
}

// SourceFromConfig extracts the worklist source from the application config.
func SourceFromConfig(cfg *config.Config) Source {
	return Source{Path: cfg.Worklist.Path, Sheet: cfg.Worklist.Sheet, Columns: cfg.Worklist.Columns}
}

// Stats reports what Build discarded.
type Stats struct {
	Rows       int
	Empty      int
	Duplicates int
}

// Load reads the worklist file and builds work items in file order.
func Load(src Source) ([]report.WorkItem, Stats, error) {
	records, err := readRecords(src)
	if err != nil {
		return nil, Stats{}, err
	}
	return Build(records, src.Columns)
}

func readRecords(src Source) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(src.Path, src.Sheet)
	case ".csv", ".txt":
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, fmt.Errorf("open worklist: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("worklist %s: unsupported file type (want .csv or .xlsx)", src.Path)
	}
}

// ReadCSV returns every record of a CSV worklist, header first.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read worklist csv: %w", err)
	}
	return records, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open worklist workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("worklist workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// Build maps raw records (header first) to work items.
func Build(records [][]string, columns map[string]string) ([]report.WorkItem, Stats, error) {
	var stats Stats
	if len(records) == 0 {
		return nil, stats, errors.New("worklist is empty")
	}
	index, err := headerIndex(records[0], columns)
	if err != nil {
		return nil, stats, err
	}

	cell := func(row []string, field string) string {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	seen := make(map[[2]string]struct{})
	var items []report.WorkItem
	for n, row := range records[1:] {
		stats.Rows++
		order := ledger.NormalizeKey(cell(row, config.FieldOrderID))
		name := ledger.NormalizeKey(cell(row, config.FieldReportName))
		if order == "" || name == "" {
			stats.Empty++
			continue
		}
		key := [2]string{order, name}
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		typ := report.ParseReportType(cell(row, config.FieldReportType))
		items = append(items, report.WorkItem{
			OrderID:    order,
			ReportName: name,
			ReportType: typ,
			TargetPage: cell(row, config.FieldTargetPage),
			Account:    cell(row, config.FieldAccount),
			Priority:   cell(row, config.FieldPriority),
			Row:        n + 2,
		})
	}
	return items, stats, nil
}

func headerIndex(header []string, columns map[string]string) (map[string]int, error) {
	if len(columns) == 0 {
		columns = config.DefaultColumns()
	}
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := positions[key]; !ok {
			positions[key] = i
		}
	}
	index := make(map[string]int, len(columns))
	for field, name := range columns {
		if i, ok := positions[strings.ToUpper(strings.TrimSpace(name))]; ok {
			index[field] = i
		}
	}
	var missing []string
	for _, field := range []string{config.FieldOrderID, config.FieldReportName} {
		if _, ok := index[field]; !ok {
			missing = append(missing, fmt.Sprintf("%s (%q)", field, columns[field]))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("worklist header missing required columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

// Order is one order's work items in worklist order.
type Order struct {
	OrderID string
	Items   []report.WorkItem
}

// GroupByOrder groups items by order id, keeping orders in first-seen order.
func GroupByOrder(items []report.WorkItem) []Order {
	pos := make(map[string]int)
	var orders []Order
	for _, item := range items {
		i, ok := pos[item.OrderID]
		if !ok {
			i = len(orders)
			pos[item.OrderID] = i
			orders = append(orders, Order{OrderID: item.OrderID})
		}
		orders[i].Items = append(orders[i].Items, item)
	}
	return orders
}

// FilterOrders keeps only items whose order id is listed. An empty list keeps everything.
func FilterOrders(items []report.WorkItem, orderIDs []string) []report.WorkItem {
	if len(orderIDs) == 0 {
		return items
	}
	want := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		want[ledger.NormalizeKey(id)] = struct{}{}
	}
	var out []report.WorkItem
	for _, item := range items {
		if _, ok := want[item.OrderID]; ok {
			out = append(out, item)
		}
	}
	return out
}
