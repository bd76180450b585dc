package data

import (
	"strings"

	"github.com/juju/errors"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
	"github.com/stake-plus/cardano-gov-sentiment/src/logging"
)

// ConnectMySQL opens a gorm DB with sane defaults.
func ConnectMySQL(dsn string, log *zap.Logger) (*gorm.DB, error) {
	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logging.Gorm(log),
		TranslateError: true,
	})
	return db, errors.Annotate(err, "mysql")
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}

// Migrate creates or updates every table the API owns.
func Migrate(db *gorm.DB) error {
	return errors.Annotate(db.AutoMigrate(types.AllModels...), "auto-migrate")
}
