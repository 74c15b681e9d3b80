// Package reporting exports hypothesis results as CSV.
package reporting

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/hypothesis"
)

// Header is the first CSV line.
var Header = []string{
	"name",
	"strategy",
	"timestamp",
	"total_trades",
	"winning_trades",
	"losing_trades",
	"win_rate",
	"avg_return",
	"total_return",
	"profit_factor",
	"max_drawdown",
	"sharpe_ratio",
	"is_successful",
}

// Row is one hypothesis result.
type Row struct {
	Name          string
	Strategy      string
	Timestamp     string
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       decimal.Decimal
	AvgReturn     decimal.Decimal
	TotalReturn   decimal.Decimal
	ProfitFactor  decimal.Decimal
	MaxDrawdown   decimal.Decimal
	SharpeRatio   decimal.Decimal
	IsSuccessful  bool
}

// RowFromArtifact flattens an artifact.
func RowFromArtifact(a hypothesis.Artifact) Row {
	m := a.Metrics
	return Row{
		Name:          a.TestInfo.Name,
		Strategy:      a.TestInfo.Strategy,
		Timestamp:     a.TestInfo.Timestamp,
		TotalTrades:   m.TotalTrades,
		WinningTrades: m.WinningTrades,
		LosingTrades:  m.LosingTrades,
		WinRate:       decimal.NewFromFloat(m.WinRate),
		AvgReturn:     decimal.NewFromFloat(m.AvgReturn),
		TotalReturn:   decimal.NewFromFloat(m.TotalReturn),
		ProfitFactor:  decimal.NewFromFloat(m.ProfitFactor),
		MaxDrawdown:   decimal.NewFromFloat(m.MaxDrawdown),
		SharpeRatio:   decimal.NewFromFloat(m.SharpeRatio),
		IsSuccessful:  a.IsSuccessful,
	}
}

// RowFromTest flattens a finalized test.
func RowFromTest(t *hypothesis.Test) Row {
	m := t.Metrics
	return Row{
		Name:          t.Name,
		Strategy:      t.Strategy,
		Timestamp:     t.Timestamp.Format(hypothesis.TimestampFormat),
		TotalTrades:   m.TotalTrades,
		WinningTrades: m.WinningTrades,
		LosingTrades:  m.LosingTrades,
		WinRate:       m.WinRate,
		AvgReturn:     m.AvgReturn,
		TotalReturn:   m.TotalReturn,
		ProfitFactor:  m.ProfitFactor,
		MaxDrawdown:   m.MaxDrawdown,
		SharpeRatio:   m.SharpeRatio,
		IsSuccessful:  t.IsSuccessful(),
	}
}

func (r Row) record() []string {
	return []string{
		r.Name,
		r.Strategy,
		r.Timestamp,
		strconv.Itoa(r.TotalTrades),
		strconv.Itoa(r.WinningTrades),
		strconv.Itoa(r.LosingTrades),
		r.WinRate.StringFixed(4),
		r.AvgReturn.StringFixed(4),
		r.TotalReturn.StringFixed(4),
		r.ProfitFactor.StringFixed(4),
		r.MaxDrawdown.StringFixed(4),
		r.SharpeRatio.StringFixed(4),
		strconv.FormatBool(r.IsSuccessful),
	}
}

// RenderCSV writes the header and one line per row. Metrics are written
// with four decimals.
func RenderCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ParseCSV reads rows written by RenderCSV. A header line is skipped and
// so are rows that are short or fail to parse.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows []Row
	lineNum := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		lineNum++

		if lineNum == 1 && isHeader(record) {
			continue
		}
		if len(record) < len(Header) {
			continue
		}

		row, err := parseRecord(record)
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseRecord(record []string) (Row, error) {
	row := Row{
		Name:      record[0],
		Strategy:  record[1],
		Timestamp: record[2],
	}

	var err error
	ints := []*int{&row.TotalTrades, &row.WinningTrades, &row.LosingTrades}
	for i, dst := range ints {
		if *dst, err = strconv.Atoi(record[3+i]); err != nil {
			return row, fmt.Errorf("parse %s: %w", Header[3+i], err)
		}
	}

	decs := []*decimal.Decimal{
		&row.WinRate, &row.AvgReturn, &row.TotalReturn,
		&row.ProfitFactor, &row.MaxDrawdown, &row.SharpeRatio,
	}
	for i, dst := range decs {
		if *dst, err = decimal.NewFromString(record[6+i]); err != nil {
			return row, fmt.Errorf("parse %s: %w", Header[6+i], err)
		}
	}

	if row.IsSuccessful, err = strconv.ParseBool(record[12]); err != nil {
		return row, fmt.Errorf("parse is_successful: %w", err)
	}

	return row, nil
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(record[0], Header[0])
}
