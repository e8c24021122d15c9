package model

// Brand represents a row of the `marca` table: the product line that
// scopes inventories and productions.
type Brand struct {
	ID   int64  `json:"id_marca"`     // marca.id_marca
	Name string `json:"nombre_marca"` // marca.nombre_marca
}
