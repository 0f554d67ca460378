package webhook

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/langboard/engine/trigger"
)

// BuildOpenAPI renders the OpenAPI 3.1 document served at
// /schema/webhook.json. It describes every trigger condition as a
// webhook the receiver may get, with the payload schema and example
// drawn from the condition taxonomy.
//
// The taxonomy is frozen at boot, so the document is built once and
// cached.
func BuildOpenAPI(title, version string) (json.RawMessage, error) {
	docOnce.Do(func() {
		cachedDoc, docErr = buildOpenAPI(title, version)
	})
	return cachedDoc, docErr
}

var (
	docOnce   sync.Once
	cachedDoc json.RawMessage
	docErr    error
)

func buildOpenAPI(title, version string) (json.RawMessage, error) {
	webhooks := make(map[string]any)
	for _, def := range trigger.All() {
		var schema any
		if err := json.Unmarshal(def.Schema, &schema); err != nil {
			return nil, fmt.Errorf("schema for %s: %w", def.Condition, err)
		}
		var example any
		if def.Example != nil {
			if err := json.Unmarshal(def.Example, &example); err != nil {
				return nil, fmt.Errorf("example for %s: %w", def.Condition, err)
			}
		}

		body := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event": map[string]any{"type": "string", "const": string(def.Condition)},
				"data":  schema,
			},
			"required": []string{"event", "data"},
		}
		content := map[string]any{"schema": body}
		if example != nil {
			content["example"] = map[string]any{
				"event": string(def.Condition),
				"data":  example,
			}
		}

		webhooks[string(def.Condition)] = map[string]any{
			"post": map[string]any{
				"summary":     def.Description,
				"operationId": "receive_" + string(def.Condition),
				"requestBody": map[string]any{
					"required": true,
					"content":  map[string]any{"application/json": content},
				},
				"responses": map[string]any{
					"2XX": map[string]any{"description": "Delivery acknowledged."},
				},
			},
		}
	}

	doc := map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":       title,
			"version":     version,
			"description": "Webhook payloads emitted by the bot trigger engine. Every request is HMAC-signed; verify X-Langboard-Signature against your destination secret.",
		},
		"webhooks":   webhooks,
		"components": map[string]any{"schemas": sharedSchemas()},
	}
	return json.Marshal(doc)
}

// sharedSchemas are the reusable object shapes referenced by receivers.
func sharedSchemas() map[string]any {
	return map[string]any{
		"Bot": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":           map[string]any{"type": "string"},
				"project_id":   map[string]any{"type": "string"},
				"name":         map[string]any{"type": "string"},
				"platform":     map[string]any{"type": "string", "enum": []string{"Default", "Flow"}},
				"running_type": map[string]any{"type": "string", "enum": []string{"Default", "Endpoint", "FlowJson"}},
				"enabled":      map[string]any{"type": "boolean"},
			},
			"required": []string{"id", "project_id", "name"},
		},
		"User": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":   map[string]any{"type": "string"},
				"name": map[string]any{"type": "string"},
			},
			"required": []string{"id"},
		},
		"Card": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":        map[string]any{"type": "string"},
				"title":     map[string]any{"type": "string"},
				"column_id": map[string]any{"type": "string"},
			},
			"required": []string{"id"},
		},
	}
}
