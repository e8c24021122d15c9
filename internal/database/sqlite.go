package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"sync"

	"modernc.org/sqlite"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions installs the scalar functions the dialect relies on.
// sha2(value, bits) mirrors MySQL's SHA2 for the 256 bit variant.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("sha2", 2, sha2Func)
	})
	return registerErr
}

func sha2Func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	var in []byte
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		in = []byte(v)
	case []byte:
		in = v
	default:
		in = []byte(fmt.Sprint(v))
	}
	if bits, ok := args[1].(int64); ok && bits != 0 && bits != 256 {
		return nil, nil
	}
	sum := sha256.Sum256(in)
	return hex.EncodeToString(sum[:]), nil
}

func openSQLite(ctx context.Context, path string) (*DB, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("register sqlite functions: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	db := &DB{DB: sqlDB, dialect: sqliteDialect{}}
	if err := db.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}
