package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// schemaBaseURL префикс, под которым схемы регистрируются в компиляторе
const schemaBaseURL = "https://blockworld.local/schemas/"

// maxBodyBytes ограничение размера тела запроса
const maxBodyBytes = 64 << 10

// Имена встроенных схем тел запросов
const (
	schemaPlace = "place.schema.json"
	schemaTick  = "tick.schema.json"
)

// compileSchemas компилирует все встроенные схемы
func compileSchemas() (map[string]*jsonschema.Schema, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	for _, e := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("схема %s: %w", e.Name(), err)
		}
	}

	schemas := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		s, err := c.Compile(schemaBaseURL + e.Name())
		if err != nil {
			return nil, fmt.Errorf("компиляция схемы %s: %w", e.Name(), err)
		}
		schemas[e.Name()] = s
	}
	return schemas, nil
}

// validateBody проверяет JSON-тело запроса по схеме и возвращает
// его обработчику нетронутым.
func validateBody(schema *jsonschema.Schema) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
		if err != nil {
			abortWith(c, http.StatusBadRequest, "не удалось прочитать тело запроса")
			return
		}
		if len(body) > maxBodyBytes {
			abortWith(c, http.StatusRequestEntityTooLarge, "слишком большое тело запроса")
			return
		}

		var doc interface{}
		if err := json.Unmarshal(body, &doc); err != nil {
			abortWith(c, http.StatusBadRequest, "тело запроса не является JSON")
			return
		}
		if err := schema.Validate(doc); err != nil {
			abortWith(c, http.StatusBadRequest, fmt.Sprintf("тело запроса не прошло проверку: %v", err))
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
