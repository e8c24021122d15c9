package database

import (
	"context"
	"fmt"
)

// Brands that ship with a fresh database.  Employees see their brand by id,
// so the ids are fixed.
var seedBrands = []struct {
	ID   int64
	Name string
}{
	{1, "VOLKSWAGEN"},
	{2, "TESLA"},
	{3, "PENTA NOVA"},
	{4, "AUDI"},
}

var schemaMySQL = []string{
	`CREATE TABLE IF NOT EXISTS marca (
    id_marca     INT AUTO_INCREMENT PRIMARY KEY,
    nombre_marca VARCHAR(100) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS usuario (
    id_usuario         INT AUTO_INCREMENT PRIMARY KEY,
    nombre_usuario     VARCHAR(100) NOT NULL,
    ap_usuario         VARCHAR(100) NOT NULL DEFAULT '',
    am_usuario         VARCHAR(100) NOT NULL DEFAULT '',
    correo_usuario     VARCHAR(190) NOT NULL UNIQUE,
    contrasena_usuario CHAR(64) NOT NULL,
    id_rol             INT NOT NULL,
    id_marca           INT NULL,
    FOREIGN KEY (id_marca) REFERENCES marca(id_marca)
)`,
	`CREATE TABLE IF NOT EXISTS pieza (
    id_pieza          INT AUTO_INCREMENT PRIMARY KEY,
    nombre_pieza      VARCHAR(150) NOT NULL,
    descripcion_pieza TEXT NULL
)`,
	`CREATE TABLE IF NOT EXISTS inventario (
    id_inventario           INT AUTO_INCREMENT PRIMARY KEY,
    id_marca                INT NOT NULL,
    id_pieza                INT NOT NULL,
    cantidad_inventario     INT NOT NULL DEFAULT 0,
    fecha_ultimo_movimiento DATETIME NOT NULL,
    INDEX idx_inventario_marca_pieza (id_marca, id_pieza),
    FOREIGN KEY (id_marca) REFERENCES marca(id_marca),
    FOREIGN KEY (id_pieza) REFERENCES pieza(id_pieza) ON DELETE CASCADE
)`,
	`CREATE TABLE IF NOT EXISTS produccion (
    id_produccion          INT AUTO_INCREMENT PRIMARY KEY,
    id_marca               INT NOT NULL,
    id_pieza               INT NULL,
    folio_produccion       VARCHAR(50) NOT NULL,
    cantidad_produccion    INT NOT NULL DEFAULT 0,
    estatus_produccion     VARCHAR(50) NOT NULL DEFAULT '',
    aprobado_produccion    TINYINT(1) NOT NULL DEFAULT 0,
    nombre_produccion      VARCHAR(150) NOT NULL,
    descripcion_produccion TEXT NULL,
    FS_produccion          DATE NULL,
    INDEX idx_produccion_fecha (FS_produccion),
    FOREIGN KEY (id_marca) REFERENCES marca(id_marca),
    FOREIGN KEY (id_pieza) REFERENCES pieza(id_pieza) ON DELETE SET NULL
)`,
}

var schemaSQLite = []string{
	`CREATE TABLE IF NOT EXISTS marca (
    id_marca     INTEGER PRIMARY KEY AUTOINCREMENT,
    nombre_marca TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS usuario (
    id_usuario         INTEGER PRIMARY KEY AUTOINCREMENT,
    nombre_usuario     TEXT NOT NULL,
    ap_usuario         TEXT NOT NULL DEFAULT '',
    am_usuario         TEXT NOT NULL DEFAULT '',
    correo_usuario     TEXT NOT NULL UNIQUE,
    contrasena_usuario TEXT NOT NULL,
    id_rol             INTEGER NOT NULL,
    id_marca           INTEGER REFERENCES marca(id_marca)
)`,
	`CREATE TABLE IF NOT EXISTS pieza (
    id_pieza          INTEGER PRIMARY KEY AUTOINCREMENT,
    nombre_pieza      TEXT NOT NULL,
    descripcion_pieza TEXT
)`,
	`CREATE TABLE IF NOT EXISTS inventario (
    id_inventario           INTEGER PRIMARY KEY AUTOINCREMENT,
    id_marca                INTEGER NOT NULL REFERENCES marca(id_marca),
    id_pieza                INTEGER NOT NULL REFERENCES pieza(id_pieza) ON DELETE CASCADE,
    cantidad_inventario     INTEGER NOT NULL DEFAULT 0,
    fecha_ultimo_movimiento TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_inventario_marca_pieza ON inventario(id_marca, id_pieza)`,
	`CREATE TABLE IF NOT EXISTS produccion (
    id_produccion          INTEGER PRIMARY KEY AUTOINCREMENT,
    id_marca               INTEGER NOT NULL REFERENCES marca(id_marca),
    id_pieza               INTEGER REFERENCES pieza(id_pieza) ON DELETE SET NULL,
    folio_produccion       TEXT NOT NULL,
    cantidad_produccion    INTEGER NOT NULL DEFAULT 0,
    estatus_produccion     TEXT NOT NULL DEFAULT '',
    aprobado_produccion    INTEGER NOT NULL DEFAULT 0,
    nombre_produccion      TEXT NOT NULL,
    descripcion_produccion TEXT,
    FS_produccion          TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_produccion_fecha ON produccion(FS_produccion)`,
}

// Migrate creates the tables if missing and seeds the brand catalogue.
// Statements run one at a time since the MySQL DSN does not enable
// multiStatements.
func (db *DB) Migrate(ctx context.Context) error {
	stmts := schemaMySQL
	seed := "INSERT IGNORE INTO marca (id_marca, nombre_marca) VALUES (?, ?)"
	if db.dialect.Name() == "sqlite" {
		stmts = schemaSQLite
		seed = "INSERT OR IGNORE INTO marca (id_marca, nombre_marca) VALUES (?, ?)"
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	for _, b := range seedBrands {
		if _, err := db.ExecContext(ctx, seed, b.ID, b.Name); err != nil {
			return fmt.Errorf("seed marca %d: %w", b.ID, err)
		}
	}
	return nil
}
