package importexport

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	emissiondomain "github.com/ecotrail/emissiondesk/internal/emission/domain"
	"github.com/ecotrail/emissiondesk/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedImportFormat = errors.New("unsupported_import_format")
	ErrUnsupportedExportFormat = errors.New("unsupported_export_format")
	ErrMalformedImport         = errors.New("malformed_import")
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Emission emissiondomain.Service
	Metrics  *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	emission emissiondomain.Service
	metrics  *telemetry.Metrics
}

func New(p Params) *Service {
	return &Service{
		log:      p.Log.Named("importexport.service"),
		emission: p.Emission,
		metrics:  p.Metrics,
	}
}

// Import validates an uploaded file and forwards its rows to the record
// store. Type and emptiness are checked before any decode or store call: an
// unsupported extension fails with ErrInvalidFileType, a blank or
// template-only file with ErrEmptyTemplate. The workflow surfaces the latter
// as the import-blocked notice instead of uploading.
func (s *Service) Import(ctx context.Context, productID, filename string, data []byte) (int, error) {
	ext, err := ValidateFileType(filename)
	if err != nil {
		s.metrics.ObserveImport("unknown", "invalid_type")
		return 0, err
	}

	if CheckFileEmpty(data, ext) {
		s.metrics.ObserveImport(ext, "empty")
		return 0, ErrEmptyTemplate
	}

	rows, err := decodeRows(ext, data)
	if err != nil {
		s.metrics.ObserveImport(ext, "malformed")
		return 0, err
	}

	created, err := s.emission.ImportRows(ctx, productID, rows)
	if err != nil {
		s.metrics.ObserveImport(ext, "error")
		return created, err
	}

	s.metrics.ObserveImport(ext, "ok")
	s.log.Info("import completed",
		zap.String("format", ext),
		zap.Int("rows", created),
	)
	return created, nil
}

// Template returns the blank import template blob for the format.
func (s *Service) Template(format string) ([]byte, string, error) {
	return BuildTemplate(strings.ToLower(strings.TrimSpace(format)))
}

// Export renders the product's current emission records as a downloadable
// blob in the requested format.
func (s *Service) Export(ctx context.Context, productID, format string) ([]byte, string, error) {
	records, err := s.emission.List(ctx, productID)
	if err != nil {
		return nil, "", err
	}

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, []string{"id", "distance", "weight", "reference", "override_stages", "line_items"})
	for _, record := range records {
		stages := make([]string, 0, len(record.OverrideFactors))
		for _, factor := range record.OverrideFactors {
			stages = append(stages, factor.LifecycleStage)
		}
		rows = append(rows, []string{
			record.ID,
			strconv.FormatFloat(record.Distance, 'f', -1, 64),
			strconv.FormatFloat(record.Weight, 'f', -1, 64),
			record.Reference,
			strings.Join(stages, ";"),
			strings.Join(record.LineItems, ";"),
		})
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		blob, err := buildCSV(rows)
		if err != nil {
			return nil, "", err
		}
		return blob, "transport_emissions.csv", nil
	case "xlsx":
		blob, err := buildWorkbook(rows)
		if err != nil {
			return nil, "", err
		}
		return blob, "transport_emissions.xlsx", nil
	default:
		return nil, "", ErrUnsupportedExportFormat
	}
}

func decodeRows(ext string, data []byte) ([]emissiondomain.ImportRow, error) {
	switch ext {
	case "csv":
		return decodeCSV(data)
	case "json":
		return decodeJSON(data)
	case "xml":
		return decodeXML(data)
	case "xlsx":
		return decodeXLSX(data)
	default:
		// aasx passes type validation but its container format is decoded
		// upstream, not by this store.
		return nil, ErrUnsupportedImportFormat
	}
}

func decodeCSV(data []byte) ([]emissiondomain.ImportRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	return rowsFromTable(all)
}

// rowsFromTable maps a header-plus-data grid onto import rows. Column order
// is free; the header names decide.
func rowsFromTable(table [][]string) ([]emissiondomain.ImportRow, error) {
	if len(table) < 2 {
		return nil, ErrEmptyTemplate
	}

	cols := map[string]int{}
	for i, name := range table[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"distance", "weight", "reference"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedImport, required)
		}
	}

	rows := make([]emissiondomain.ImportRow, 0, len(table)-1)
	for _, record := range table[1:] {
		rows = append(rows, emissiondomain.ImportRow{
			Distance:  cell(record, cols["distance"]),
			Weight:    cell(record, cols["weight"]),
			Reference: cell(record, cols["reference"]),
		})
	}
	return rows, nil
}

func decodeJSON(data []byte) ([]emissiondomain.ImportRow, error) {
	var rows []emissiondomain.ImportRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	return rows, nil
}

type xmlImport struct {
	XMLName xml.Name `xml:"records"`
	Records []struct {
		Distance  string `xml:"distance"`
		Weight    string `xml:"weight"`
		Reference string `xml:"reference"`
	} `xml:"record"`
}

func decodeXML(data []byte) ([]emissiondomain.ImportRow, error) {
	var doc xmlImport
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}

	rows := make([]emissiondomain.ImportRow, 0, len(doc.Records))
	for _, record := range doc.Records {
		rows = append(rows, emissiondomain.ImportRow{
			Distance:  record.Distance,
			Weight:    record.Weight,
			Reference: record.Reference,
		})
	}
	return rows, nil
}

func cell(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}
