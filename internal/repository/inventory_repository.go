package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/spinsa/inventario/internal/database"
	"github.com/spinsa/inventario/internal/model"
)

const inventoryCols = `i.id_inventario, i.id_marca, i.id_pieza, i.cantidad_inventario, i.fecha_ultimo_movimiento`

// InventoryRepo stores the per-brand stock of each piece.
type InventoryRepo struct {
	conn *database.Provider
}

// NewInventoryRepo constructs an InventoryRepo over the shared connection.
func NewInventoryRepo(conn *database.Provider) *InventoryRepo {
	return &InventoryRepo{conn: conn}
}

func scanInventory(row interface{ Scan(...any) error }, joined bool) (*model.Inventory, error) {
	var inv model.Inventory
	var moved any
	dest := []any{&inv.ID, &inv.BrandID, &inv.PieceID, &inv.Quantity, &moved}
	if joined {
		dest = append(dest, &inv.BrandName, &inv.PieceName)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	inv.LastMovement = database.ParseTime(moved)
	return &inv, nil
}

func scanInventories(rows *sql.Rows, joined bool) ([]model.Inventory, error) {
	defer rows.Close()
	out := []model.Inventory{}
	for rows.Next() {
		inv, err := scanInventory(rows, joined)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func formatTimestamp(t time.Time) string { return t.UTC().Format(database.TimestampLayout) }

// Insert records stock of a piece for a brand and returns the new ID.
// The row is not deduplicated on (brand, piece).
func (r *InventoryRepo) Insert(ctx context.Context, inv model.Inventory) (int64, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO inventario (id_marca, id_pieza, cantidad_inventario, fecha_ultimo_movimiento)
		 VALUES (?, ?, ?, ?)`,
		inv.BrandID, inv.PieceID, inv.Quantity, formatTimestamp(inv.LastMovement))
	if err != nil {
		return 0, translate(db, err)
	}
	return res.LastInsertId()
}

// ListByBrand returns the inventory rows of one brand ordered by id.
func (r *InventoryRepo) ListByBrand(ctx context.Context, brandID int64) ([]model.Inventory, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+inventoryCols+` FROM inventario i WHERE i.id_marca = ? ORDER BY i.id_inventario`, brandID)
	if err != nil {
		return nil, err
	}
	return scanInventories(rows, false)
}

// ListAll returns every inventory row with its brand and piece names.
func (r *InventoryRepo) ListAll(ctx context.Context) ([]model.Inventory, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + inventoryCols + `, m.nombre_marca, p.nombre_pieza
	           FROM inventario i
	           JOIN marca m ON m.id_marca = i.id_marca
	           JOIN pieza p ON p.id_pieza = i.id_pieza
	           ORDER BY i.id_inventario`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return scanInventories(rows, true)
}

// GetByID returns ErrInventoryNotFound when the id does not resolve.
func (r *InventoryRepo) GetByID(ctx context.Context, id int64) (*model.Inventory, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := scanInventory(db.QueryRowContext(ctx,
		`SELECT `+inventoryCols+` FROM inventario i WHERE i.id_inventario = ?`, id), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInventoryNotFound
		}
		return nil, err
	}
	return inv, nil
}

// Update applies the non-nil fields of upd.
func (r *InventoryRepo) Update(ctx context.Context, id int64, upd model.InventoryUpdate) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}
	var set setList
	if upd.BrandID != nil {
		set.add("id_marca", *upd.BrandID)
	}
	if upd.PieceID != nil {
		set.add("id_pieza", *upd.PieceID)
	}
	if upd.Quantity != nil {
		set.add("cantidad_inventario", *upd.Quantity)
	}
	if upd.LastMovement != nil {
		set.add("fecha_ultimo_movimiento", formatTimestamp(*upd.LastMovement))
	}
	return translate(db, updateExisting(ctx, db, "inventario", "id_inventario", id, &set, ErrInventoryNotFound))
}

// Delete removes one inventory row.
func (r *InventoryRepo) Delete(ctx context.Context, id int64) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}
	return deleteByID(ctx, db, "inventario", "id_inventario", id, ErrInventoryNotFound)
}
