// Package export renders expenses as downloadable spreadsheets.
package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gastos/internal/core"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// utf8BOM lets spreadsheet applications detect the encoding of the accented header.
const utf8BOM = "\xEF\xBB\xBF"

// Header is the first row of every export.
var Header = []string{"ID", "Valor", "Categoria", "Data", "Descrição", "Criado em"}

var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat normalises a requested format. Blank means CSV.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Filename is the attachment name offered for a format.
func Filename(format string) string {
	return "gastos." + format
}

// ContentType is the MIME type served for a format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Write renders expenses in the given format.
func Write(w io.Writer, format string, expenses []core.Expense) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, expenses)
	case FormatXLSX:
		return WriteXLSX(w, expenses)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func record(e core.Expense) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.Amount.Decimal(),
		e.Category,
		e.Date.String(),
		e.Description,
		createdAt(e.CreatedAt),
	}
}

func createdAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(core.CreatedAtLayout)
}

// WriteCSV writes a BOM-prefixed CSV with one row per expense, in the given order.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range expenses {
		if err := cw.Write(record(e)); err != nil {
			return fmt.Errorf("write expense %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file produced by WriteCSV.
func ReadCSV(r io.Reader) ([]core.Expense, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && string(bom) == utf8BOM {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = len(Header)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range Header {
		if header[i] != Header[i] {
			return nil, fmt.Errorf("unexpected header column %d: %q", i+1, header[i])
		}
	}

	expenses := make([]core.Expense, 0)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		e, err := parseRecord(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

func parseRecord(row []string) (core.Expense, error) {
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return core.Expense{}, fmt.Errorf("invalid id %q", row[0])
	}
	amount, err := core.ParseAmount(row[1])
	if err != nil {
		return core.Expense{}, fmt.Errorf("invalid amount %q", row[1])
	}
	date, err := core.ParseDate(row[3])
	if err != nil {
		return core.Expense{}, fmt.Errorf("invalid date %q", row[3])
	}
	e := core.Expense{
		ID:          id,
		Amount:      amount,
		Category:    row[2],
		Date:        date,
		Description: row[4],
	}
	if row[5] != "" {
		t, err := time.Parse(core.CreatedAtLayout, row[5])
		if err != nil {
			return core.Expense{}, fmt.Errorf("invalid created_at %q", row[5])
		}
		e.CreatedAt = t
	}
	return e, nil
}
