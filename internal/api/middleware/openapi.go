// openapi.go — проверка запросов по OpenAPI-контракту (kin-openapi).
// Проверяются path-параметры и метод. Тело multipart не валидируется:
// его разбирает handler загрузки.
package middleware

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
)

// ValidationErrorFunc записывает ответ на запрос, не прошедший проверку.
type ValidationErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// OpenAPIValidator возвращает middleware проверки запросов по контракту doc.
// Запросы к путям, которых нет в контракте, пропускаются дальше:
// 404 и 405 формирует роутер chi.
func OpenAPIValidator(doc *openapi3.T, onError ValidationErrorFunc) (func(http.Handler) http.Handler, error) {
	router, err := legacyrouter.NewRouter(doc)
	if err != nil {
		return nil, err
	}

	opts := &openapi3filter.Options{
		ExcludeRequestBody: true,
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    opts,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
