package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Substrings the drivers emit for unique violations when gorm does not
// translate them: postgres code 23505, mysql code 1062 and sqlite code 2067.
var duplicateKeyMarkers = []string{
	"duplicate key value violates unique constraint",
	"Error 1062",
	"UNIQUE constraint failed",
}

// IsDuplicateKeyErr reports whether err is a unique-constraint violation on
// any supported dialect.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(err.Error(), marker) {
			return true
		}
	}
	return false
}
