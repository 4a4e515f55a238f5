package migration

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	referencedomain "github.com/ecotrail/emissiondesk/internal/reference/domain"
	"github.com/ecotrail/emissiondesk/pkg/db"
)

var defaultReferences = []string{
	"Road freight, lorry 3.5-7.5t, EURO6",
	"Road freight, lorry 16-32t, EURO6",
	"Rail freight, electric",
	"Sea freight, container ship",
	"Air freight, long haul",
}

// EnsureReferenceCatalog seeds the emission-factor catalog on first start so
// the reference dropdown is never empty on a fresh install.
func EnsureReferenceCatalog(conn *gorm.DB, genID *snowflake.Node) error {
	var count int64
	if err := conn.Model(&referencedomain.EmissionReference{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, name := range defaultReferences {
		ref := referencedomain.EmissionReference{
			ID:   genID.Generate().Int64(),
			Name: name,
		}
		if err := conn.Create(&ref).Error; err != nil {
			// Another instance may be seeding the same catalog concurrently.
			if db.IsDuplicateKeyErr(err) {
				continue
			}
			return err
		}
	}
	return nil
}
