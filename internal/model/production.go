package model

import "time"

// Production represents a manufacturing run (`produccion`).  A production
// always belongs to a brand and may reference the piece it produces.
//
// Fields:
//  ID          – primary key identifier.
//  BrandID     – brand the run is produced for.
//  PieceID     – produced piece, nil when the run is not tied to a catalog piece.
//  Folio       – external tracking code.
//  Quantity    – units in the run.
//  Status      – free text status maintained by the plant.
//  Approved    – approval flag, stored as 0/1.
//  Name        – short label of the run.
//  Description – optional notes.
//  Date        – scheduled or occurrence date (FS_produccion), nil when unset.
type Production struct {
	ID          int64      `json:"id_produccion"`          // produccion.id_produccion
	BrandID     int64      `json:"id_marca"`               // produccion.id_marca
	PieceID     *int64     `json:"id_pieza"`               // produccion.id_pieza (nullable)
	Folio       string     `json:"folio_produccion"`       // produccion.folio_produccion
	Quantity    int        `json:"cantidad_produccion"`    // produccion.cantidad_produccion
	Status      string     `json:"estatus_produccion"`     // produccion.estatus_produccion
	Approved    bool       `json:"aprobado_produccion"`    // produccion.aprobado_produccion (0/1)
	Name        string     `json:"nombre_produccion"`      // produccion.nombre_produccion
	Description *string    `json:"descripcion_produccion"` // produccion.descripcion_produccion (nullable)
	Date        *time.Time `json:"FS_produccion"`          // produccion.FS_produccion (nullable DATE)
	BrandName   string     `json:"nombre_marca,omitempty"` // marca.nombre_marca (joined)
}

// ProductionUpdate is a partial update of a production.  ClearPiece,
// ClearDescription and ClearDate set the nullable columns back to NULL.
type ProductionUpdate struct {
	BrandID          *int64
	PieceID          *int64
	ClearPiece       bool
	Folio            *string
	Quantity         *int
	Status           *string
	Approved         *bool
	Name             *string
	Description      *string
	ClearDescription bool
	Date             *time.Time
	ClearDate        bool
}

// WeekdayCounts holds the number of productions per weekday of one week,
// index 0 = Monday.
type WeekdayCounts [7]int
