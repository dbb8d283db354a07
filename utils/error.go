package utils

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrorRecordNotFound  = errors.New("record not found")
	ErrorDuplicateCode   = errors.New("duplicate code")
	ErrorParentNotFound  = errors.New("parent not found")
	ErrorLockNotObtained = errors.New("could not obtain lock for businessID")
)

const mysqlDuplicateEntry = 1062

// IsDuplicateKeyError reports whether err is a unique index violation from MySQL or SQLite.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
