package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/spinsa/inventario/internal/auth"
	"github.com/spinsa/inventario/internal/model"
	"github.com/spinsa/inventario/internal/queue"
	"github.com/spinsa/inventario/internal/repository"
)

// pieceFields takes the short keys or the nombrePieza/descripcionPieza
// keys the piece forms send.
type pieceFields struct {
	Nombre           string  `json:"nombre" validate:"max=150"`
	NombrePieza      string  `json:"nombrePieza" validate:"max=150"`
	Descripcion      *string `json:"descripcion"`
	DescripcionPieza *string `json:"descripcionPieza"`
}

func (p pieceFields) name() (string, error) {
	n := strings.TrimSpace(p.Nombre)
	if n == "" {
		n = strings.TrimSpace(p.NombrePieza)
	}
	if n == "" {
		return "", invalid("Campo nombrePieza no válido (required).", nil)
	}
	return n, nil
}

func (p pieceFields) description() *string {
	if p.Descripcion != nil {
		return blankToNil(p.Descripcion)
	}
	return blankToNil(p.DescripcionPieza)
}

type insertPiecePayload struct {
	pieceFields
}

type updatePiecePayload struct {
	ID      flexInt `json:"id"`
	IDPieza flexInt `json:"idPieza"`
	pieceFields
}

func (p updatePiecePayload) id() (int64, error) {
	id := p.ID
	if id == 0 {
		id = p.IDPieza
	}
	if id <= 0 {
		return 0, invalid("Falta el identificador.", nil)
	}
	return int64(id), nil
}

type brandPayload struct {
	IDMarca *flexInt `json:"idMarca"`
}

func (g *Gateway) registerBrands() {
	g.handle("obtener-marcas", func(ctx context.Context, _ json.RawMessage) (any, error) {
		if _, err := g.require(ctx, staff...); err != nil {
			return nil, err
		}
		return g.Brands.List(ctx)
	})
}

func (g *Gateway) registerPieces() {
	g.handle("insertar-pieza", g.insertPiece)
	g.handle("obtener-piezas", g.listPieces)
	g.handle("obtener-pieza-por-id", g.getPiece)
	g.handle("eliminar-pieza", g.deletePiece)
	g.handle("actualizar-pieza", g.updatePiece)
	g.handle("obtener-piezas-sin-inventario", g.piecesWithoutInventory)
	g.handle("redirigir-actualizar-pieza", func(ctx context.Context, payload json.RawMessage) (any, error) {
		return g.redirect(ctx, payload, auth.EntityPiece, "cargar-pieza", []string{"idPieza"},
			func(ctx context.Context, _ *model.User, id int64) (any, error) {
				return g.Pieces.GetByID(ctx, id)
			})
	})
}

// blankToNil treats an empty description as absent.
func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func (g *Gateway) insertPiece(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.Auth.Require(ctx, staff...)
	if err != nil {
		return outcome(err, "", 0)
	}
	var in insertPiecePayload
	if err := g.decode(payload, &in); err != nil {
		return outcome(err, "", 0)
	}
	name, err := in.name()
	if err != nil {
		return outcome(err, "", 0)
	}
	id, err := g.Pieces.Insert(ctx, name, in.description())
	if err == nil {
		g.changed(ctx, u, auth.EntityPiece, queue.OpInsert, id, nil)
	}
	return outcome(err, "Pieza registrada con éxito.", id)
}

func (g *Gateway) listPieces(ctx context.Context, _ json.RawMessage) (any, error) {
	if _, err := g.require(ctx, staff...); err != nil {
		return nil, err
	}
	return g.Pieces.List(ctx)
}

func (g *Gateway) getPiece(ctx context.Context, payload json.RawMessage) (any, error) {
	if _, err := g.require(ctx, staff...); err != nil {
		return nil, err
	}
	id, err := decodeID(payload, "idPieza")
	if err != nil {
		return nil, err
	}
	p, err := g.Pieces.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (g *Gateway) deletePiece(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.Auth.Require(ctx, staff...)
	if err != nil {
		return outcome(err, "", 0)
	}
	id, err := decodeID(payload, "idPieza")
	if err != nil {
		return outcome(err, "", 0)
	}
	err = g.Pieces.Delete(ctx, id)
	if err == nil {
		g.changed(ctx, u, auth.EntityPiece, queue.OpDelete, id, nil)
	}
	return outcome(err, "Pieza eliminada correctamente.", id)
}

func (g *Gateway) updatePiece(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.Auth.Require(ctx, staff...)
	if err != nil {
		return outcome(err, "", 0)
	}
	var in updatePiecePayload
	if err := g.decode(payload, &in); err != nil {
		return outcome(err, "", 0)
	}
	id, err := in.id()
	if err != nil {
		return outcome(err, "", 0)
	}
	name, err := in.name()
	if err != nil {
		return outcome(err, "", 0)
	}
	err = g.Pieces.Update(ctx, id, name, in.description())
	if err == nil {
		g.changed(ctx, u, auth.EntityPiece, queue.OpUpdate, id, nil)
	}
	return outcome(err, "Pieza actualizada con éxito.", id)
}

func (g *Gateway) piecesWithoutInventory(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.require(ctx, staff...)
	if err != nil {
		return nil, err
	}
	requested, err := brandArg(payload)
	if err != nil {
		return nil, err
	}
	brand, err := scopeBrand(u, requested)
	if err != nil {
		return nil, err
	}
	return g.Pieces.ListWithoutInventory(ctx, brand)
}

// brandArg reads the brand of a brand-scoped listing: a bare id, an object
// with idMarca, or nothing.
func brandArg(payload json.RawMessage) (*flexInt, error) {
	if isNull(payload) {
		return nil, nil
	}
	var in brandPayload
	if err := json.Unmarshal(payload, &in); err == nil {
		return in.IDMarca, nil
	}
	id, err := decodeID(payload, "idMarca")
	if err != nil {
		return nil, err
	}
	v := flexInt(id)
	return &v, nil
}
