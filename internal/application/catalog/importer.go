// Package catalog carga productos y proveedores desde un CSV (semillas de desarrollo y alta masiva).
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

// Formato de cada fila (sin cabecera):
//
//	product,<id>,<sku>,<nombre>,<precio>
//	supplier,<id>,<nombre>,<email>,<teléfono>
//
// Las líneas que empiezan con # se ignoran.

// Result filas cargadas y omitidas (ya existentes).
type Result struct {
	Products  int
	Suppliers int
	Skipped   int
}

// Importer escribe el catálogo en los repositorios.
type Importer struct {
	products  repository.ProductRepository
	suppliers repository.SupplierRepository
	now       func() time.Time
}

// NewImporter construye el importador.
func NewImporter(products repository.ProductRepository, suppliers repository.SupplierRepository) *Importer {
	return &Importer{products: products, suppliers: suppliers, now: time.Now}
}

// Decoder envuelve r según el charset del archivo (utf-8 o latin1, típico de exportaciones de Excel).
func Decoder(r io.Reader, charset string) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "iso-8859-1", "iso8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	}
	return nil, fmt.Errorf("charset no soportado: %s", charset)
}

// Import lee el CSV y crea lo que no exista. Es re-ejecutable: los IDs ya cargados se omiten.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Result, error) {
	var res Result
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		line++
		if err != nil {
			return res, fmt.Errorf("catálogo línea %d: %w", line, err)
		}
		if len(rec) != 5 {
			return res, fmt.Errorf("catálogo línea %d: %w: se esperaban 5 columnas", line, domain.ErrValidation)
		}
		created, err := im.importRow(ctx, rec)
		if err != nil {
			return res, fmt.Errorf("catálogo línea %d: %w", line, err)
		}
		switch {
		case !created:
			res.Skipped++
		case strings.TrimSpace(rec[0]) == "product":
			res.Products++
		default:
			res.Suppliers++
		}
	}
}

func (im *Importer) importRow(ctx context.Context, rec []string) (bool, error) {
	id := strings.TrimSpace(rec[1])
	if id == "" {
		return false, fmt.Errorf("%w: id vacío", domain.ErrValidation)
	}
	switch strings.TrimSpace(rec[0]) {
	case "product":
		if p, err := im.products.GetByID(ctx, id); err != nil || p != nil {
			return false, err
		}
		price, err := decimal.NewFromString(strings.TrimSpace(rec[4]))
		if err != nil || price.IsNegative() {
			return false, fmt.Errorf("%w: precio inválido %q", domain.ErrValidation, rec[4])
		}
		return true, im.products.Create(ctx, &entity.Product{
			ID:        id,
			SKU:       strings.TrimSpace(rec[2]),
			Name:      strings.TrimSpace(rec[3]),
			Price:     price,
			CreatedAt: im.now(),
		})
	case "supplier":
		if s, err := im.suppliers.GetByID(ctx, id); err != nil || s != nil {
			return false, err
		}
		return true, im.suppliers.Create(ctx, &entity.Supplier{
			ID:        id,
			Name:      strings.TrimSpace(rec[2]),
			Email:     strings.TrimSpace(rec[3]),
			Phone:     strings.TrimSpace(rec[4]),
			CreatedAt: im.now(),
		})
	}
	return false, fmt.Errorf("%w: tipo de fila %q", domain.ErrValidation, rec[0])
}
