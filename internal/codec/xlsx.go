package codec

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"opsmap/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	sheetNodes = "nodes"
	sheetEdges = "edges"
)

// XLSXCodec handles spreadsheet workbooks with a "nodes" sheet
// (id, type, demand) and an "edges" sheet (source, target, length,
// max_capacity). Other columns are kept as attributes.
type XLSXCodec struct{}

// NewXLSXCodec creates a new spreadsheet codec
func NewXLSXCodec() *XLSXCodec {
	return &XLSXCodec{}
}

// Format returns the codec format identifier
func (c *XLSXCodec) Format() string {
	return "xlsx"
}

// Parse imports a network from a workbook
func (c *XLSXCodec) Parse(r io.Reader) (*domain.Network, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	nodeRows, err := readSheet(f, sheetNodes, "id")
	if err != nil {
		return nil, err
	}
	edgeRows, err := readSheet(f, sheetEdges, "source", "target")
	if err != nil {
		return nil, err
	}

	network := domain.NewNetwork()
	for i, row := range nodeRows {
		node := domain.Node{ID: row.take("id"), Type: domain.NodeType(row.take("type"))}
		if node.ID == "" {
			continue
		}
		if node.Demand, err = row.takeFloat("demand"); err != nil {
			return nil, fmt.Errorf("nodes row %d: %w", i+2, err)
		}
		node.Attributes = row.rest()
		network.AddNode(node)
	}

	for i, row := range edgeRows {
		edge := domain.Edge{Source: row.take("source"), Target: row.take("target")}
		if edge.Source == "" || edge.Target == "" {
			continue
		}
		if edge.Length, err = row.takeFloat("length"); err != nil {
			return nil, fmt.Errorf("edges row %d: %w", i+2, err)
		}
		if edge.Capacity, err = row.takeFloat("max_capacity"); err != nil {
			return nil, fmt.Errorf("edges row %d: %w", i+2, err)
		}
		if edge.Capacity == nil {
			if edge.Capacity, err = row.takeFloat("capacity"); err != nil {
				return nil, fmt.Errorf("edges row %d: %w", i+2, err)
			}
		}
		edge.Attributes = row.rest()
		network.AddEdge(edge)
	}

	return network, nil
}

// Export writes the network as a two-sheet workbook
func (c *XLSXCodec) Export(network *domain.Network, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	nodeExtra := attributeColumns(len(network.Nodes), func(i int) map[string]any { return network.Nodes[i].Attributes })
	nodeHeader := append([]string{"id", "type", "demand"}, nodeExtra...)
	nodeData := make([][]any, 0, len(network.Nodes))
	for _, n := range network.Nodes {
		row := []any{n.ID, string(n.Type), floatCell(n.Demand)}
		for _, k := range nodeExtra {
			row = append(row, n.Attributes[k])
		}
		nodeData = append(nodeData, row)
	}

	edgeExtra := attributeColumns(len(network.Edges), func(i int) map[string]any { return network.Edges[i].Attributes })
	edgeHeader := append([]string{"source", "target", "length", "max_capacity"}, edgeExtra...)
	edgeData := make([][]any, 0, len(network.Edges))
	for _, e := range network.Edges {
		row := []any{e.Source, e.Target, floatCell(e.Length), floatCell(e.Capacity)}
		for _, k := range edgeExtra {
			row = append(row, e.Attributes[k])
		}
		edgeData = append(edgeData, row)
	}

	if err := writeSheet(f, sheetNodes, nodeHeader, nodeData); err != nil {
		return err
	}
	if err := writeSheet(f, sheetEdges, edgeHeader, edgeData); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// sheetRow is one data row addressed by lowercase header name
type sheetRow map[string]string

func (r sheetRow) take(col string) string {
	v := strings.TrimSpace(r[col])
	delete(r, col)
	return v
}

func (r sheetRow) takeFloat(col string) (*float64, error) {
	v := r.take(col)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %q is not a number", col, v)
	}
	return &f, nil
}

// rest returns the untaken non-empty cells, numbers parsed as float64
func (r sheetRow) rest() map[string]any {
	var out map[string]any
	for k, v := range r {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = f
		} else {
			out[k] = v
		}
	}
	return out
}

func readSheet(f *excelize.File, sheet string, required ...string) ([]sheetRow, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	header := make([]string, len(rows[0]))
	present := make(map[string]bool, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
		present[header[i]] = true
	}
	for _, col := range required {
		if !present[col] {
			return nil, fmt.Errorf("sheet %q is missing column %q", sheet, col)
		}
	}

	out := make([]sheetRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		row := make(sheetRow, len(header))
		for i, h := range header {
			if h == "" || i >= len(cells) {
				continue
			}
			row[h] = cells[i]
		}
		out = append(out, row)
	}
	return out, nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheet, err)
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// attributeColumns returns the sorted union of attribute keys
func attributeColumns(n int, attrs func(i int) map[string]any) []string {
	seen := make(map[string]struct{})
	for i := 0; i < n; i++ {
		for k := range attrs(i) {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func floatCell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
