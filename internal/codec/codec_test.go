package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"opsmap/internal/domain"
)

func sampleNetwork() *domain.Network {
	n := domain.NewNetwork()
	depot := domain.NewNode("Depot_West", domain.NodeTypeSource).WithDemand(-300)
	depot.SetAttribute("zone", "west")
	n.AddNode(*depot)
	n.AddNode(*domain.NewNode("Kamppi", domain.NodeTypeSink).WithDemand(200))
	n.AddNode(*domain.NewNode("Transfer_1", domain.NodeTypeGhost))
	n.AddEdge(*domain.NewEdge("Depot_West", "Kamppi").WithLength(3.5).WithCapacity(120))
	n.AddEdge(*domain.NewEdge("Kamppi", "Transfer_1").WithCapacity(80))
	return n
}

func TestForFormat(t *testing.T) {
	for _, format := range []string{"json", "YAML", "yml", "xlsx"} {
		c, err := ForFormat(format)
		require.NoError(t, err, format)
		assert.NotNil(t, c)
	}

	_, err := ForFormat("ansible-inventory")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	c, err := ForPath("/srv/network.yaml")
	require.NoError(t, err)
	assert.Equal(t, "yaml", c.Format())

	_, err = ForPath("network")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCodecsPreserveNetwork(t *testing.T) {
	for _, c := range []Codec{NewJSONCodec(), NewYAMLCodec(), NewXLSXCodec()} {
		t.Run(c.Format(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, c.Export(sampleNetwork(), &buf))

			got, err := c.Parse(&buf)
			require.NoError(t, err)

			require.Len(t, got.Nodes, 3)
			require.Len(t, got.Edges, 2)
			assert.Equal(t, "Depot_West", got.Nodes[0].ID)
			assert.Equal(t, domain.NodeTypeSource, got.Nodes[0].Type)
			require.NotNil(t, got.Nodes[0].Demand)
			assert.Equal(t, -300.0, *got.Nodes[0].Demand)
			assert.Equal(t, "west", got.Nodes[0].Attributes["zone"])
			assert.Nil(t, got.Nodes[2].Demand)

			require.NotNil(t, got.Edges[0].Capacity)
			assert.Equal(t, 120.0, *got.Edges[0].Capacity)
			require.NotNil(t, got.Edges[0].Length)
			assert.Equal(t, 3.5, *got.Edges[0].Length)
			assert.Equal(t, sampleNetwork().Summary(), got.Summary())
		})
	}
}

func TestJSONParseInvalid(t *testing.T) {
	_, err := NewJSONCodec().Parse(strings.NewReader("{"))
	assert.Error(t, err)

	n, err := NewJSONCodec().Parse(strings.NewReader("{}"))
	require.NoError(t, err)
	assert.NotNil(t, n.Nodes)
	assert.NotNil(t, n.Edges)
}

func TestXLSXParse(t *testing.T) {
	build := func(t *testing.T, nodes, edges [][]any) *bytes.Buffer {
		t.Helper()
		f := excelize.NewFile()
		defer f.Close()
		for sheet, rows := range map[string][][]any{"nodes": nodes, "edges": edges} {
			if rows == nil {
				continue
			}
			_, err := f.NewSheet(sheet)
			require.NoError(t, err)
			for i, row := range rows {
				cell, _ := excelize.CoordinatesToCellName(1, i+1)
				require.NoError(t, f.SetSheetRow(sheet, cell, &row))
			}
		}
		var buf bytes.Buffer
		require.NoError(t, f.Write(&buf))
		return &buf
	}

	t.Run("reads max_capacity as capacity", func(t *testing.T) {
		buf := build(t,
			[][]any{{"id", "type", "demand"}, {"Kamppi", "sink", 200}, {"Pasila", "sink", 150}},
			[][]any{{"source", "target", "length", "max_capacity"}, {"Kamppi", "Pasila", 2.5, 100}},
		)
		n, err := NewXLSXCodec().Parse(buf)
		require.NoError(t, err)
		require.Len(t, n.Edges, 1)
		assert.Equal(t, 100.0, *n.Edges[0].Capacity)
		assert.Equal(t, 350.0, n.Summary().PeakLoad)
	})

	t.Run("missing sheet", func(t *testing.T) {
		buf := build(t, [][]any{{"id"}, {"A"}}, nil)
		_, err := NewXLSXCodec().Parse(buf)
		assert.Error(t, err)
	})

	t.Run("missing column", func(t *testing.T) {
		buf := build(t, [][]any{{"name"}, {"A"}}, [][]any{{"source", "target"}})
		_, err := NewXLSXCodec().Parse(buf)
		assert.ErrorContains(t, err, `missing column "id"`)
	})

	t.Run("bad number", func(t *testing.T) {
		buf := build(t, [][]any{{"id", "demand"}, {"A", "lots"}}, [][]any{{"source", "target"}})
		_, err := NewXLSXCodec().Parse(buf)
		assert.ErrorContains(t, err, "nodes row 2")
	})
}

func TestExportResults(t *testing.T) {
	resp := &domain.ParetoResponse{
		CongestionOptimal: domain.Solution{Edges: []domain.ScoredEdge{
			{Source: "A", Target: "B", Flow: 85, Capacity: 100, Congestion: 5, Delay: 2, Length: 1.5},
		}},
		DelayOptimal: domain.Solution{Edges: []domain.ScoredEdge{
			{Source: "B", Target: "C", Flow: 10, Capacity: 50, Congestion: 0.25, Delay: 1, Length: 3},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportResults(resp, &buf))
	assert.Equal(t,
		"case,source,target,flow,capacity,congestion,delay,length\n"+
			"congestion_optimal,A,B,85,100,5,2,1.5\n"+
			"delay_optimal,B,C,10,50,0.25,1,3\n",
		buf.String())
}

func TestResultsFilename(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "simulation_results_20240309_140507.csv", ResultsFilename(ts))
}
