package importexport

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	emissiondomain "github.com/ecotrail/emissiondesk/internal/emission/domain"
)

const worksheetPart = "xl/worksheets/sheet1.xml"
const sharedStringsPart = "xl/sharedStrings.xml"

type sheetXML struct {
	XMLName xml.Name `xml:"worksheet"`
	Rows    []struct {
		Cells []sheetCell `xml:"c"`
	} `xml:"sheetData>row"`
}

type sheetCell struct {
	Ref    string `xml:"r,attr"`
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline struct {
		Text string `xml:"t"`
	} `xml:"is"`
}

type sharedStringsXML struct {
	XMLName xml.Name `xml:"sst"`
	Items   []struct {
		Text string `xml:"t"`
	} `xml:"si"`
}

// decodeXLSX reads the first worksheet of an uploaded workbook into import
// rows. It handles both cell encodings a filled template can arrive with:
// inline strings (what BuildTemplate emits) and shared strings (what
// spreadsheet applications write on save). Numeric cells carry their value
// directly.
func decodeXLSX(data []byte) ([]emissiondomain.ImportRow, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}

	sheet, err := readZipPart(zr, worksheetPart)
	if err != nil {
		return nil, fmt.Errorf("%w: missing worksheet", ErrMalformedImport)
	}

	shared := readSharedStrings(zr)

	var doc sheetXML
	if err := xml.Unmarshal(sheet, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}

	table := make([][]string, 0, len(doc.Rows))
	for _, row := range doc.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, c := range row.Cells {
			col := columnIndex(c.Ref)
			if col < 0 {
				col = len(cells)
			}
			for len(cells) <= col {
				cells = append(cells, "")
			}
			cells[col] = cellText(c, shared)
		}
		table = append(table, cells)
	}

	return rowsFromTable(table)
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("part %q not found", name)
}

// readSharedStrings loads the shared-string table if the workbook carries
// one. Workbooks without it resolve every lookup to empty, which only
// matters for cells that reference it.
func readSharedStrings(zr *zip.Reader) []string {
	raw, err := readZipPart(zr, sharedStringsPart)
	if err != nil {
		return nil
	}

	var sst sharedStringsXML
	if err := xml.Unmarshal(raw, &sst); err != nil {
		return nil
	}

	items := make([]string, 0, len(sst.Items))
	for _, item := range sst.Items {
		items = append(items, item.Text)
	}
	return items
}

func cellText(c sheetCell, shared []string) string {
	switch c.Type {
	case "inlineStr":
		return strings.TrimSpace(c.Inline.Text)
	case "s":
		index, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err != nil || index < 0 || index >= len(shared) {
			return ""
		}
		return strings.TrimSpace(shared[index])
	default:
		return strings.TrimSpace(c.Value)
	}
}

// columnIndex derives a zero-based column from a cell reference like "B2".
// References without a letter prefix report -1 and fall back to positional
// placement.
func columnIndex(ref string) int {
	index := -1
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		if index < 0 {
			index = 0
		}
		index = index*26 + int(r-'A'+1)
	}
	if index < 0 {
		return -1
	}
	return index - 1
}
