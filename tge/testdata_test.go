package tge

import (
	"fmt"
	"strings"
)

// pricePage renders a page shaped like the exchange's hourly table: a header row,
// hourly rows with 14 or more cells and a trailing summary table.
func pricePage(date string, hours int, extraRows ...string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>RDN</title></head><body>`)
	b.WriteString(`<table id="menu"><tr><td>Start</td><td>Kontakt</td></tr></table>`)
	b.WriteString(`<table id="rdn"><thead><tr><th>Czas</th><th>Kurs</th></tr></thead><tbody>`)
	for h := 1; h <= hours; h++ {
		b.WriteString("<tr>")
		fmt.Fprintf(&b, "<td>\n  %s H%02d </td>", date, h)
		for c := 1; c < 13; c++ {
			fmt.Fprintf(&b, "<td>%d</td>", c)
		}
		fmt.Fprintf(&b, "<td>%d,%02d</td>", 400+h, h)
		b.WriteString("</tr>")
	}
	for _, r := range extraRows {
		b.WriteString(r)
	}
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}

func malformedRows(date string) []string {
	cells := func(label, price string, n int) string {
		var b strings.Builder
		b.WriteString("<tr><td>" + label + "</td>")
		for c := 1; c < n-1; c++ {
			b.WriteString("<td>x</td>")
		}
		b.WriteString("<td>" + price + "</td></tr>")
		return b.String()
	}
	return []string{
		cells(date+" H01", "10,00", 5),        // missing cells
		cells(date+" H02", "brak danych", 14), // non-numeric price
		cells("Suma", "123,00", 14),           // missing hour token
	}
}
