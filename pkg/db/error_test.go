package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/ecotrail/emissiondesk/internal/config"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm sentinel", gorm.ErrDuplicatedKey, true},
		{"wrapped gorm sentinel", errors.Join(errors.New("create"), gorm.ErrDuplicatedKey), true},
		{"postgres message", errors.New(`ERROR: duplicate key value violates unique constraint "idx_name" (SQLSTATE 23505)`), true},
		{"mysql message", errors.New("Error 1062: Duplicate entry 'road' for key 'name'"), true},
		{"sqlite message", errors.New("UNIQUE constraint failed: emission_references.name"), true},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestDialectSelection(t *testing.T) {
	cfg := config.Config{DBType: "sqlite", DBName: "emissiondesk"}

	dialector, err := Dialect(cfg)
	assert.NoError(t, err)
	assert.Equal(t, "sqlite", dialector.Name())

	cfg.DBType = "oracle"
	_, err = Dialect(cfg)
	assert.Error(t, err)
}
