package office

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

var sheetNameRe = regexp.MustCompile(`^xl/worksheets/sheet(\d+)\.xml$`)

// ReadXlsx extracts the text of an .xlsx file: shared strings resolved
// into every worksheet in ascending sheet number, cells joined with
// tabs, rows with newlines, sheets separated by a labelled header.
// Sheet numbering may have gaps; sheets are emitted in numeric order.
func ReadXlsx(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: open xlsx: %v", domain.ErrExtractionFailed, err)
	}
	defer reader.Close()

	shared, err := readSharedStrings(&reader.Reader)
	if err != nil {
		return "", err
	}

	type sheet struct {
		num  int
		file *zip.File
	}
	var sheets []sheet
	for _, file := range reader.File {
		m := sheetNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		sheets = append(sheets, sheet{num: n, file: file})
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].num < sheets[j].num })

	var result strings.Builder
	for i, s := range sheets {
		text, err := readWorksheet(s.file, shared)
		if err != nil {
			return "", err
		}
		if i > 0 {
			result.WriteString("\n")
		}
		fmt.Fprintf(&result, "--- Sheet %d ---\n", s.num)
		result.WriteString(text)
	}

	return strings.TrimSpace(result.String()), nil
}

// sharedStringsXML represents xl/sharedStrings.xml.
type sharedStringsXML struct {
	Items []sharedString `xml:"si"`
}

type sharedString struct {
	Text string       `xml:"t"`
	Runs []sharedText `xml:"r"`
}

type sharedText struct {
	Text string `xml:"t"`
}

func (s sharedString) value() string {
	if len(s.Runs) == 0 {
		return s.Text
	}
	var b strings.Builder
	for _, r := range s.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

func readSharedStrings(reader *zip.Reader) ([]string, error) {
	for _, file := range reader.File {
		if file.Name != "xl/sharedStrings.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open sharedStrings.xml: %v", domain.ErrExtractionFailed, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read sharedStrings.xml: %v", domain.ErrExtractionFailed, err)
		}

		var parsed sharedStringsXML
		if err := xml.Unmarshal(content, &parsed); err != nil {
			return nil, fmt.Errorf("%w: parse sharedStrings.xml: %v", domain.ErrExtractionFailed, err)
		}

		out := make([]string, len(parsed.Items))
		for i, item := range parsed.Items {
			out[i] = item.value()
		}
		return out, nil
	}

	// Workbooks without string cells have no sharedStrings part.
	return nil, nil
}

// worksheetXML represents xl/worksheets/sheetN.xml.
type worksheetXML struct {
	Rows []worksheetRow `xml:"sheetData>row"`
}

type worksheetRow struct {
	Cells []worksheetCell `xml:"c"`
}

type worksheetCell struct {
	Type  string `xml:"t,attr"`
	Value string `xml:"v"`
	// Inline strings live under is>t rather than v.
	Inline string `xml:"is>t"`
}

func readWorksheet(file *zip.File, shared []string) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", domain.ErrExtractionFailed, file.Name, err)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", domain.ErrExtractionFailed, file.Name, err)
	}

	var sheet worksheetXML
	if err := xml.Unmarshal(content, &sheet); err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", domain.ErrExtractionFailed, file.Name, err)
	}

	var rows []string
	for _, row := range sheet.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, cellValue(cell, shared))
		}
		rows = append(rows, strings.Join(cells, "\t"))
	}

	return strings.Join(rows, "\n"), nil
}

// cellValue resolves a cell to its display text. Shared-string cells
// ("s") index into the shared table; inline strings carry their own
// text; everything else keeps the raw value.
func cellValue(cell worksheetCell, shared []string) string {
	switch cell.Type {
	case "s":
		idx, err := strconv.Atoi(cell.Value)
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return cell.Inline
	default:
		return cell.Value
	}
}
