package model

// Piece represents a catalog part (`pieza`).  Pieces are brand agnostic until
// an inventory row stocks them for a brand.
type Piece struct {
	ID          int64   `json:"id_pieza"`          // pieza.id_pieza
	Name        string  `json:"nombre_pieza"`      // pieza.nombre_pieza
	Description *string `json:"descripcion_pieza"` // pieza.descripcion_pieza (nullable)
}
