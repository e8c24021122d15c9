package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spinsa/inventario/internal/database"
	"github.com/spinsa/inventario/internal/model"
)

const productionCols = `pr.id_produccion, pr.id_marca, pr.id_pieza, pr.folio_produccion, pr.cantidad_produccion,
       pr.estatus_produccion, pr.aprobado_produccion, pr.nombre_produccion, pr.descripcion_produccion, pr.FS_produccion`

// ProductionRepo stores manufacturing runs.
type ProductionRepo struct {
	conn *database.Provider
}

// NewProductionRepo constructs a ProductionRepo over the shared connection.
func NewProductionRepo(conn *database.Provider) *ProductionRepo {
	return &ProductionRepo{conn: conn}
}

func scanProduction(row interface{ Scan(...any) error }, joined bool) (*model.Production, error) {
	var p model.Production
	var (
		piece    sql.NullInt64
		approved int
		desc     sql.NullString
		date     any
		brand    sql.NullString
	)
	dest := []any{&p.ID, &p.BrandID, &piece, &p.Folio, &p.Quantity, &p.Status, &approved, &p.Name, &desc, &date}
	if joined {
		dest = append(dest, &brand)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p.PieceID = int64Ptr(piece)
	p.Approved = approved != 0
	p.Description = stringPtr(desc)
	p.Date = database.ParseTimePtr(date)
	p.BrandName = brand.String
	return &p, nil
}

func scanProductions(rows *sql.Rows, joined bool) ([]model.Production, error) {
	defer rows.Close()
	out := []model.Production{}
	for rows.Next() {
		p, err := scanProduction(rows, joined)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(database.DateLayout), Valid: true}
}

// Insert creates a production run and returns its ID.
func (r *ProductionRepo) Insert(ctx context.Context, p model.Production) (int64, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO produccion (id_marca, id_pieza, folio_produccion, cantidad_produccion, estatus_produccion,
		                         aprobado_produccion, nombre_produccion, descripcion_produccion, FS_produccion)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.BrandID, p.PieceID, p.Folio, p.Quantity, p.Status, boolToInt(p.Approved), p.Name,
		nullString(p.Description), nullDate(p.Date))
	if err != nil {
		return 0, translate(db, err)
	}
	return res.LastInsertId()
}

// ListByBrand returns the productions of one brand ordered by id.
func (r *ProductionRepo) ListByBrand(ctx context.Context, brandID int64) ([]model.Production, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+productionCols+` FROM produccion pr WHERE pr.id_marca = ? ORDER BY pr.id_produccion`, brandID)
	if err != nil {
		return nil, err
	}
	return scanProductions(rows, false)
}

// ListAll returns every production with its brand name.
func (r *ProductionRepo) ListAll(ctx context.Context) ([]model.Production, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + productionCols + `, m.nombre_marca
	           FROM produccion pr
	           LEFT JOIN marca m ON m.id_marca = pr.id_marca
	           ORDER BY pr.id_produccion`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return scanProductions(rows, true)
}

// GetByID returns ErrProductionNotFound when the id does not resolve.
func (r *ProductionRepo) GetByID(ctx context.Context, id int64) (*model.Production, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanProduction(db.QueryRowContext(ctx,
		`SELECT `+productionCols+` FROM produccion pr WHERE pr.id_produccion = ?`, id), false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductionNotFound
		}
		return nil, err
	}
	return p, nil
}

// Update applies the non-nil fields of upd.  ClearPiece and ClearDate set
// the column to NULL and win over PieceID and Date.
func (r *ProductionRepo) Update(ctx context.Context, id int64, upd model.ProductionUpdate) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}
	var set setList
	if upd.BrandID != nil {
		set.add("id_marca", *upd.BrandID)
	}
	switch {
	case upd.ClearPiece:
		set.addNull("id_pieza")
	case upd.PieceID != nil:
		set.add("id_pieza", *upd.PieceID)
	}
	if upd.Folio != nil {
		set.add("folio_produccion", *upd.Folio)
	}
	if upd.Quantity != nil {
		set.add("cantidad_produccion", *upd.Quantity)
	}
	if upd.Status != nil {
		set.add("estatus_produccion", *upd.Status)
	}
	if upd.Approved != nil {
		set.add("aprobado_produccion", boolToInt(*upd.Approved))
	}
	if upd.Name != nil {
		set.add("nombre_produccion", *upd.Name)
	}
	switch {
	case upd.ClearDescription:
		set.addNull("descripcion_produccion")
	case upd.Description != nil:
		set.add("descripcion_produccion", *upd.Description)
	}
	switch {
	case upd.ClearDate:
		set.addNull("FS_produccion")
	case upd.Date != nil:
		set.add("FS_produccion", upd.Date.UTC().Format(database.DateLayout))
	}
	return translate(db, updateExisting(ctx, db, "produccion", "id_produccion", id, &set, ErrProductionNotFound))
}

// Delete removes one production.
func (r *ProductionRepo) Delete(ctx context.Context, id int64) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}
	return deleteByID(ctx, db, "produccion", "id_produccion", id, ErrProductionNotFound)
}

// WeekBounds returns the Monday that starts the week containing now and the
// Monday after it, both at midnight in now's location.
func WeekBounds(now time.Time) (start, end time.Time) {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) + 6) % 7
	start = day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// CountByWeekday buckets the productions dated within the week of now.
// Index 0 is Monday; days without productions stay zero.
func (r *ProductionRepo) CountByWeekday(ctx context.Context, now time.Time) (model.WeekdayCounts, error) {
	var counts model.WeekdayCounts
	db, err := r.conn.Get(ctx)
	if err != nil {
		return counts, err
	}
	start, end := WeekBounds(now)
	day := db.Dialect().WeekdayIndex("FS_produccion")
	q := fmt.Sprintf(`SELECT %s AS dia, COUNT(*) AS total
	                  FROM produccion
	                  WHERE FS_produccion >= ? AND FS_produccion < ?
	                  GROUP BY dia`, day)
	rows, err := db.QueryContext(ctx, q, start.Format(database.DateLayout), end.Format(database.DateLayout))
	if err != nil {
		return counts, err
	}
	defer rows.Close()
	for rows.Next() {
		var idx, total int
		if err := rows.Scan(&idx, &total); err != nil {
			return counts, err
		}
		if idx >= 0 && idx < len(counts) {
			counts[idx] = total
		}
	}
	return counts, rows.Err()
}
