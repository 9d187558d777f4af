// Пакет openapi — встроенный OpenAPI-контракт каталога моделей.
package openapi

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var spec []byte

// Load разбирает и валидирует встроенный контракт.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора OpenAPI-контракта: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("невалидный OpenAPI-контракт: %w", err)
	}
	return doc, nil
}
