// seed carga productos y proveedores en PostgreSQL desde un CSV de catálogo.
//
// Uso: go run ./cmd/seed [-charset latin1] catalog.csv
// Aplica el esquema antes de cargar. Re-ejecutable: los IDs existentes se omiten.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/retail-ops/internal/application/catalog"
	"github.com/jhoicas/retail-ops/internal/infrastructure/postgres"
	"github.com/jhoicas/retail-ops/pkg/config"
)

func main() {
	charset := flag.String("charset", "utf-8", "codificación del archivo: utf-8, latin1, windows-1252")
	flag.Parse()
	path := "catalog.csv"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuración: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	r, err := catalog.Decoder(f, *charset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Charset: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conexión: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "Esquema: %v\n", err)
		os.Exit(1)
	}

	res, err := catalog.NewImporter(postgres.NewProductRepository(pool), postgres.NewSupplierRepository(pool)).Import(ctx, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Importar: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Productos: %d, proveedores: %d, omitidos: %d\n", res.Products, res.Suppliers, res.Skipped)
}
