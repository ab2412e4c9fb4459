package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/swaggo/swag"
)

// SwaggerJSON renders the registered Swagger 2 document.
func SwaggerJSON() ([]byte, error) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	if err != nil {
		return nil, fmt.Errorf("failed to read swagger doc: %w", err)
	}
	return []byte(doc), nil
}

// OpenAPI3 converts the Swagger 2 document and validates the result.
func OpenAPI3(ctx context.Context) (*openapi3.T, error) {
	raw, err := SwaggerJSON()
	if err != nil {
		return nil, err
	}

	var doc2 openapi2.T
	if err := json.Unmarshal(raw, &doc2); err != nil {
		return nil, fmt.Errorf("failed to parse swagger doc: %w", err)
	}

	doc3, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return nil, fmt.Errorf("failed to convert swagger doc: %w", err)
	}

	if err := doc3.Validate(ctx); err != nil {
		return doc3, fmt.Errorf("openapi document is invalid: %w", err)
	}
	return doc3, nil
}

// RegisterRoutes serves both documents. They are rendered once up front; an
// invalid OpenAPI 3 document is logged and still served.
func RegisterRoutes(ctx context.Context, mux *http.ServeMux, logger *slog.Logger) error {
	swaggerDoc, err := SwaggerJSON()
	if err != nil {
		return err
	}

	doc3, err := OpenAPI3(ctx)
	if doc3 == nil {
		return err
	}
	if err != nil {
		logger.Warn("openapi validation failed", "error", err)
	}

	openapiDoc, err := json.Marshal(doc3)
	if err != nil {
		return fmt.Errorf("failed to encode openapi doc: %w", err)
	}

	mux.HandleFunc("GET /swagger/doc.json", serveJSON(swaggerDoc))
	mux.HandleFunc("GET /openapi.json", serveJSON(openapiDoc))
	return nil
}

func serveJSON(body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
