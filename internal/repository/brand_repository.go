package repository

import (
	"context"

	"github.com/spinsa/inventario/internal/database"
	"github.com/spinsa/inventario/internal/model"
)

// BrandRepo lists the brand catalogue.
type BrandRepo struct{ conn *database.Provider }

func NewBrandRepo(conn *database.Provider) *BrandRepo { return &BrandRepo{conn: conn} }

// List returns every brand ordered by id.
func (r *BrandRepo) List(ctx context.Context) ([]model.Brand, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id_marca, nombre_marca FROM marca ORDER BY id_marca`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Brand{}
	for rows.Next() {
		var b model.Brand
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
