package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/spinsa/inventario/internal/database"
	"github.com/spinsa/inventario/internal/model"
)

const pieceCols = `p.id_pieza, p.nombre_pieza, p.descripcion_pieza`

// PieceRepo provides CRUD over the `pieza` catalogue.
type PieceRepo struct {
	conn *database.Provider
}

// NewPieceRepo constructs a PieceRepo over the shared connection.
func NewPieceRepo(conn *database.Provider) *PieceRepo {
	return &PieceRepo{conn: conn}
}

func scanPiece(row interface{ Scan(...any) error }) (*model.Piece, error) {
	var p model.Piece
	var desc sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &desc); err != nil {
		return nil, err
	}
	p.Description = stringPtr(desc)
	return &p, nil
}

func scanPieces(rows *sql.Rows) ([]model.Piece, error) {
	defer rows.Close()
	out := []model.Piece{}
	for rows.Next() {
		p, err := scanPiece(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Insert creates a piece and returns its ID.  description may be nil.
func (r *PieceRepo) Insert(ctx context.Context, name string, description *string) (int64, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO pieza (nombre_pieza, descripcion_pieza) VALUES (?, ?)`, name, nullString(description))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List returns every piece ordered by id.
func (r *PieceRepo) List(ctx context.Context) ([]model.Piece, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+pieceCols+` FROM pieza p ORDER BY p.id_pieza`)
	if err != nil {
		return nil, err
	}
	return scanPieces(rows)
}

// GetByID returns ErrPieceNotFound when the id does not resolve.
func (r *PieceRepo) GetByID(ctx context.Context, id int64) (*model.Piece, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanPiece(db.QueryRowContext(ctx, `SELECT `+pieceCols+` FROM pieza p WHERE p.id_pieza = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPieceNotFound
		}
		return nil, err
	}
	return p, nil
}

// Update replaces name and description of an existing piece.
func (r *PieceRepo) Update(ctx context.Context, id int64, name string, description *string) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}
	var set setList
	set.add("nombre_pieza", name)
	set.add("descripcion_pieza", nullString(description))
	return updateExisting(ctx, db, "pieza", "id_pieza", id, &set, ErrPieceNotFound)
}

// Delete removes a piece.  Its inventory rows go with it; productions keep
// their row with the piece reference cleared.
func (r *PieceRepo) Delete(ctx context.Context, id int64) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}
	return deleteByID(ctx, db, "pieza", "id_pieza", id, ErrPieceNotFound)
}

// ListWithoutInventory returns the pieces that have no inventory row for
// brandID.  Pieces stocked only for other brands are included.
func (r *PieceRepo) ListWithoutInventory(ctx context.Context, brandID int64) ([]model.Piece, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + pieceCols + `
	           FROM pieza p
	           WHERE NOT EXISTS (
	               SELECT 1 FROM inventario i
	               WHERE i.id_pieza = p.id_pieza AND i.id_marca = ?
	           )
	           ORDER BY p.id_pieza`
	rows, err := db.QueryContext(ctx, q, brandID)
	if err != nil {
		return nil, err
	}
	return scanPieces(rows)
}
