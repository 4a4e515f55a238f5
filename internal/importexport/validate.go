package importexport

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidFileType = errors.New("invalid_file_type")
	ErrEmptyTemplate   = errors.New("empty_template")
)

// allowedExtensions is the closed set of upload formats the console accepts.
var allowedExtensions = map[string]bool{
	"aasx": true,
	"json": true,
	"xml":  true,
	"csv":  true,
	"xlsx": true,
}

// ValidateFileType returns the normalized extension of the filename, matched
// case-insensitively on the final extension only. Anything outside the
// accepted set is rejected before any content is read.
func ValidateFileType(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(filename)), "."))
	if !allowedExtensions[ext] {
		return "", ErrInvalidFileType
	}
	return ext, nil
}

// xlsxEmptyThreshold classifies xlsx uploads below this byte size as empty. A
// bare downloaded template stays under it while any workbook with real rows
// exceeds it. The heuristic can false-negative on a padded template with many
// blank rows; the threshold is kept as documented rather than strengthened.
const xlsxEmptyThreshold = 4096

// CheckFileEmpty reports whether an upload of the given (already validated)
// extension carries no importable data.
func CheckFileEmpty(data []byte, ext string) bool {
	switch ext {
	case "xlsx":
		return len(data) < xlsxEmptyThreshold
	case "csv":
		if isAllWhitespace(data) {
			return true
		}
		// A header-only file has nothing to import.
		return countNonBlankLines(data) <= 1
	default:
		return isAllWhitespace(data)
	}
}

func isAllWhitespace(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}

func countNonBlankLines(data []byte) int {
	count := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			count++
		}
	}
	return count
}
