package main

import (
	"cmp"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jsign/trace-access-list/analysis"
	"github.com/olekukonko/tablewriter"
)

// compiledBlock is the JSON document of one compiled block, also returned by
// accesslist_compile.
type compiledBlock struct {
	Number     hexutil.Uint64           `json:"number"`
	Hash       common.Hash              `json:"hash"`
	AccessList analysis.BlockAccessList `json:"accessList"`
}

var summaryHeader = []string{"block", "txs", "accounts", "slots", "compile_us"}

// reportWriter writes <out>/<number>.json per block and a summary.csv row
// per block, and keeps the rows for a final summary table.
type reportWriter struct {
	outDir    string
	f         *os.File
	csvWriter *csv.Writer
	rows      []summaryRow
}

type summaryRow struct {
	number uint64
	cells  []string
}

func newReportWriter(outDir string) (*reportWriter, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(outDir, "summary.csv"), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	w := &reportWriter{outDir: outDir, f: f, csvWriter: csv.NewWriter(f)}
	if err := w.csvWriter.Write(summaryHeader); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *reportWriter) write(res blockResult) error {
	doc, err := json.MarshalIndent(compiledBlock{
		Number:     hexutil.Uint64(res.number),
		Hash:       res.hash,
		AccessList: res.list,
	}, "", "  ")
	if err != nil {
		return err
	}
	name := filepath.Join(w.outDir, strconv.FormatUint(res.number, 10)+".json")
	if err := os.WriteFile(name, doc, 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", name, err)
	}

	row := []string{
		strconv.FormatUint(res.number, 10),
		strconv.Itoa(res.txs),
		strconv.Itoa(len(res.list)),
		strconv.Itoa(res.list.NumSlots()),
		strconv.FormatInt(res.duration.Microseconds(), 10),
	}
	w.rows = append(w.rows, summaryRow{number: res.number, cells: row})
	return w.csvWriter.Write(row)
}

// table returns the summary rows ordered by block number.
func (w *reportWriter) table() [][]string {
	rows := slices.Clone(w.rows)
	slices.SortFunc(rows, func(a, b summaryRow) int { return cmp.Compare(a.number, b.number) })
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = row.cells
	}
	return out
}

func (w *reportWriter) close() error {
	w.csvWriter.Flush()
	if err := w.csvWriter.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// renderTable prints the collected rows as a markdown table.
func renderTable(out io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.AppendBulk(rows)
	table.Render()
}
