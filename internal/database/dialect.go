package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Dialect renders the engine specific fragments of otherwise portable SQL.
type Dialect interface {
	Name() string
	// Digest wraps a bound parameter in the engine's one-way SHA-256 function.
	Digest(param string) string
	// WeekdayIndex maps a DATE column to 0..6, Monday = 0.
	WeekdayIndex(col string) string
	// ForUpdate is appended to existence checks run inside a transaction.
	ForUpdate() string
	// IsDuplicate reports whether err is a unique key violation.
	IsDuplicate(err error) bool
	// IsForeignKey reports whether err is a reference to a missing parent row.
	IsForeignKey(err error) bool
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                   { return "mysql" }
func (mysqlDialect) Digest(param string) string     { return fmt.Sprintf("SHA2(%s, 256)", param) }
func (mysqlDialect) WeekdayIndex(col string) string { return fmt.Sprintf("WEEKDAY(%s)", col) }
func (mysqlDialect) ForUpdate() string              { return " FOR UPDATE" }
func (mysqlDialect) IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "1062")
}
func (mysqlDialect) IsForeignKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1452
	}
	return false
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string               { return "sqlite" }
func (sqliteDialect) Digest(param string) string { return fmt.Sprintf("sha2(%s, 256)", param) }
func (sqliteDialect) WeekdayIndex(col string) string {
	return fmt.Sprintf("((CAST(strftime('%%w', %s) AS INTEGER) + 6) %% 7)", col)
}
func (sqliteDialect) ForUpdate() string { return "" }
func (sqliteDialect) IsDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
func (sqliteDialect) IsForeignKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// Layouts used when values are bound as text.  DATE columns get DateLayout,
// timestamps get TimestampLayout, both in UTC.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// ParseTime converts a scanned temporal value to time.Time.  MySQL with
// parseTime hands back time.Time, SQLite hands back text.
func ParseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case []byte:
		return ParseTime(string(t))
	case string:
		if t == "" {
			return time.Time{}
		}
		for _, layout := range []string{
			TimestampLayout,
			DateLayout,
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05-07:00",
			"2006-01-02 15:04:05.999999999-07:00",
		} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
	}
	return time.Time{}
}

// ParseTimePtr is like ParseTime but returns nil for NULL or unparsable values.
func ParseTimePtr(v any) *time.Time {
	t := ParseTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}
