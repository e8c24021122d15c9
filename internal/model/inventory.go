package model

import "time"

// Inventory represents a row of the `inventario` table: the stock of one
// piece for one brand.  BrandName and PieceName are only filled by the
// joined listing used by the admin screens.
//
// Fields:
//  ID           – primary key identifier.
//  BrandID      – brand that holds the stock.
//  PieceID      – piece being stocked.
//  Quantity     – units on hand; not validated against negatives here.
//  LastMovement – timestamp of the last stock movement.
type Inventory struct {
	ID           int64     `json:"id_inventario"`           // inventario.id_inventario
	BrandID      int64     `json:"id_marca"`                // inventario.id_marca
	PieceID      int64     `json:"id_pieza"`                // inventario.id_pieza
	Quantity     int       `json:"cantidad_inventario"`     // inventario.cantidad_inventario
	LastMovement time.Time `json:"fecha_ultimo_movimiento"` // inventario.fecha_ultimo_movimiento
	BrandName    string    `json:"nombre_marca,omitempty"`  // marca.nombre_marca (joined)
	PieceName    string    `json:"nombre_pieza,omitempty"`  // pieza.nombre_pieza (joined)
}

// InventoryUpdate is a partial update of an inventory row.
type InventoryUpdate struct {
	BrandID      *int64
	PieceID      *int64
	Quantity     *int
	LastMovement *time.Time
}
