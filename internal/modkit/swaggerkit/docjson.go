// Package swaggerkit serves the OpenAPI document and the swagger UI
package swaggerkit

import (
	"encoding/json"
	"net/http"
	"strings"

	"shapeshift/internal/platform/config"
	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/services/api/docs"
)

// SpecMutator lets modules tweak the parsed document before it is served
type SpecMutator func(map[string]any)

var mutators []SpecMutator

// docReader is a seam for tests
var docReader = func() string { return docs.SwaggerInfo.ReadDoc() }

// Register adds a spec mutator; call it from module init
func Register(m SpecMutator) {
	if m != nil {
		mutators = append(mutators, m)
	}
}

// fallback is a response added to operations that do not document one
type fallback struct {
	status string
	desc   string
	code   perr.ErrorCode
	msg    string
	// authed limits the fallback to operations that need a bearer token
	authed bool
}

var fallbacks = []fallback{
	{status: "400", desc: "Bad Request", code: perr.ErrorCodeValidation, msg: "art_style must be one of [realistic sculpture]"},
	{status: "401", desc: "Unauthorized", code: perr.ErrorCodeUnauthorized, msg: "invalid bearer token", authed: true},
	{status: "500", desc: "Internal Server Error", code: perr.ErrorCodeUnknown, msg: "internal error"},
}

func serveDocJSON() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var spec map[string]any
		if err := json.Unmarshal([]byte(docReader()), &spec); err != nil {
			http.Error(w, "spec parse error", http.StatusInternalServerError)
			return
		}

		pinOpenAPI(spec, "/api/v1")

		if v := config.New().Prefix("CORE_API_").MayString("DOCS_TITLE_SUFFIX", ""); v != "" {
			if info, ok := spec["info"].(map[string]any); ok {
				if title, ok := info["title"].(string); ok {
					info["title"] = title + " " + v
				}
			}
		}

		schemas := child(child(spec, "components"), "schemas")
		if _, ok := schemas["ErrorResponse"]; !ok {
			schemas["ErrorResponse"] = errorSchema()
		}
		eachOperation(spec, func(op map[string]any) {
			resps := child(op, "responses")
			for _, f := range fallbacks {
				if _, ok := resps[f.status]; ok || (f.authed && public(op)) {
					continue
				}
				resps[f.status] = f.response()
			}
		})

		for _, m := range mutators {
			m(spec)
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(spec)
	}
}

// pinOpenAPI keeps the document on 3.0.3 with a servers array; the bundled UI does not render 3.1
func pinOpenAPI(spec map[string]any, url string) {
	delete(spec, "swagger")
	if v, _ := spec["openapi"].(string); v == "" || strings.HasPrefix(v, "3.1") {
		spec["openapi"] = "3.0.3"
	}
	if _, ok := spec["servers"]; !ok {
		spec["servers"] = []any{map[string]any{"url": url}}
	}
}

// child returns m[key] as a map, creating it when absent
func child(m map[string]any, key string) map[string]any {
	c, ok := m[key].(map[string]any)
	if !ok {
		c = map[string]any{}
		m[key] = c
	}
	return c
}

func eachOperation(spec map[string]any, fn func(op map[string]any)) {
	paths, _ := spec["paths"].(map[string]any)
	for _, p := range paths {
		node, _ := p.(map[string]any)
		for _, o := range node {
			if op, ok := o.(map[string]any); ok {
				fn(op)
			}
		}
	}
}

// public reports whether op overrides the global bearer requirement with an empty list
func public(op map[string]any) bool {
	sec, ok := op["security"].([]any)
	return ok && len(sec) == 0
}

func (f fallback) response() map[string]any {
	st := http.StatusInternalServerError
	switch f.status {
	case "400":
		st = http.StatusBadRequest
	case "401":
		st = http.StatusUnauthorized
	}
	return map[string]any{
		"description": f.desc,
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/ErrorResponse"},
				"example": map[string]any{
					"status_code": st,
					"status":      http.StatusText(st),
					"code":        int(f.code),
					"error":       f.msg,
					"request_id":  "api-7f3c/k2Lm9x-000001",
				},
			},
		},
	}
}

func errorSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"description": "Error envelope",
		"properties": map[string]any{
			"status_code": map[string]any{"type": "integer", "format": "int32"},
			"status":      map[string]any{"type": "string"},
			"code":        map[string]any{"type": "integer", "format": "int32"},
			"error":       map[string]any{"type": "string"},
			"field":       map[string]any{"type": "string"},
			"request_id":  map[string]any{"type": "string"},
			"data":        map[string]any{"type": "object", "description": "Set on a 404 status poll for a task the provider lost"},
		},
		"required": []any{"status_code", "status"},
	}
}
