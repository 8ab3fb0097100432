package tge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

const (
	DefaultRowSelector  = "tr"
	DefaultCellSelector = "td"
)

var ErrEmptyDocument = errors.New("empty document")

// RawRow holds the trimmed cell texts of one table row.
type RawRow []string

// TableParser selects rows document wide (by default every <tr>) and
// returns the text of their cells.
type TableParser struct {
	rowSelector  string
	cellSelector string
}

func NewTableParser(rowSelector, cellSelector string) (TableParser, error) {
	if rowSelector == "" {
		rowSelector = DefaultRowSelector
	}
	if cellSelector == "" {
		cellSelector = DefaultCellSelector
	}
	if _, err := cascadia.Compile(rowSelector); err != nil {
		return TableParser{}, fmt.Errorf("invalid row selector %q: %w", rowSelector, err)
	}
	if _, err := cascadia.Compile(cellSelector); err != nil {
		return TableParser{}, fmt.Errorf("invalid cell selector %q: %w", cellSelector, err)
	}
	return TableParser{rowSelector: rowSelector, cellSelector: cellSelector}, nil
}

// Parse builds the document tree and returns a lazy sequence of its rows.
// Rows without cells are left out.
func (p TableParser) Parse(r io.Reader) (iter.Seq[RawRow], error) {
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, fmt.Errorf("reading document: %w", err)
	}

	root, err := html.Parse(br)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	rows := goquery.NewDocumentFromNode(root).Find(p.rowSelector)

	return func(yield func(RawRow) bool) {
		for i := range rows.Length() {
			cells := rows.Eq(i).Find(p.cellSelector)
			if cells.Length() == 0 {
				continue
			}
			row := make(RawRow, 0, cells.Length())
			cells.Each(func(_ int, cell *goquery.Selection) {
				row = append(row, cellText(cell))
			})
			if !yield(row) {
				return
			}
		}
	}, nil
}

func (p TableParser) ParseString(s string) (iter.Seq[RawRow], error) {
	return p.Parse(strings.NewReader(s))
}

func cellText(cell *goquery.Selection) string {
	return strings.TrimFunc(cell.Text(), unicode.IsSpace)
}
