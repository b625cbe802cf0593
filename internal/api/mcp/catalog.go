package mcp

import (
	"context"
	"fmt"

	"github.com/scrypster/recollect/internal/normalize"
)

const instructionsURI = "memory://instructions"

const instructionsText = `Recollect is a durable memory store for agents.

Addressing: every context/entry tool takes either an alias, or an
explicit namespace + context_id pair. Never both.

Workflow:
1. context_create a context per project or task, then context_alias_set
   a short name for it.
2. entry_upsert typed entries (summary, fact, decision, question, note,
   snippet, todo). Omit entry_id to insert; pass one to update.
3. entry_latest_upsert maintains one rolling entry per type — use it
   for a continuously-updated session summary.
4. entry_search finds entries by full-text query, tags, and types.
   Vector and hybrid modes additionally need a query embedding and a
   vector-capable deployment.
5. Large source material goes in raw_text; it is withheld from reads
   unless include_raw is set.

Entries may carry a ttl_seconds; expired entries vanish from reads and
are eventually purged.`

// addressProperties is the shared addressing fragment of every
// context-scoped tool schema.
func addressProperties() map[string]interface{} {
	return map[string]interface{}{
		"alias": map[string]interface{}{
			"type":        "string",
			"description": "Alias of the target context. Mutually exclusive with namespace/context_id.",
		},
		"namespace": map[string]interface{}{
			"type":        "string",
			"description": "Namespace of the target context.",
		},
		"context_id": map[string]interface{}{
			"type":        "string",
			"description": "Identifier of the target context within its namespace.",
		},
	}
}

func mergeProperties(dst, src map[string]interface{}) map[string]interface{} {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// buildToolsList returns the tool catalog advertised by tools/list.
func (s *Server) buildToolsList() []MCPTool {
	entryTypeEnum := []string{"summary", "fact", "decision", "question", "note", "snippet", "todo"}

	return []MCPTool{
		{
			Name:        "context_create",
			Description: "Create a context, or update an existing one. Updates merge metadata and keep fields you omit.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"namespace":   map[string]interface{}{"type": "string"},
					"context_id":  map[string]interface{}{"type": "string"},
					"description": map[string]interface{}{"type": "string", "description": "What this context holds. Max 500 chars."},
					"tags":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"scope":       map[string]interface{}{"type": "string", "enum": []string{"local", "shared"}},
					"owner":       map[string]interface{}{"type": "string"},
					"metadata":    map[string]interface{}{"type": "object"},
				},
				"required": []string{"namespace", "context_id"},
			},
		},
		{
			Name:        "context_list",
			Description: "List all contexts.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "context_delete",
			Description: "Delete a context and every entry it owns. Aliases pointing at it are left dangling.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": addressProperties(),
			},
		},
		{
			Name:        "context_alias_set",
			Description: "Create an alias for a context, or repoint an existing alias. The context must exist.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"alias":      map[string]interface{}{"type": "string"},
					"namespace":  map[string]interface{}{"type": "string"},
					"context_id": map[string]interface{}{"type": "string"},
				},
				"required": []string{"alias", "namespace", "context_id"},
			},
		},
		{
			Name:        "context_alias_list",
			Description: "List all aliases.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "context_alias_get",
			Description: "Fetch one alias record, even if its target context no longer exists.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"alias": map[string]interface{}{"type": "string"},
				},
				"required": []string{"alias"},
			},
		},
		{
			Name:        "context_alias_delete",
			Description: "Delete an alias. The target context is untouched.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"alias": map[string]interface{}{"type": "string"},
				},
				"required": []string{"alias"},
			},
		},
		{
			Name:        "entry_upsert",
			Description: "Store an entry in a context. Omit entry_id to insert a new entry under a generated id; pass an entry_id to update that entry in place.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProperties(addressProperties(), map[string]interface{}{
					"entry_id":    map[string]interface{}{"type": "string", "description": "Omit to insert; supply to update."},
					"entry_type":  map[string]interface{}{"type": "string", "enum": entryTypeEnum},
					"title":       map[string]interface{}{"type": "string", "description": "Max 200 chars."},
					"content":     map[string]interface{}{"type": "string", "description": "The entry body. Required."},
					"tags":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"importance":  map[string]interface{}{"type": "number", "description": "0-100, default 50."},
					"created_by":  map[string]interface{}{"type": "string"},
					"raw_text":    map[string]interface{}{"type": "string", "description": "Large source payload, withheld from reads unless include_raw."},
					"embedding":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "number"}},
					"metadata":    map[string]interface{}{"type": "object"},
					"ttl_seconds": map[string]interface{}{"type": "integer", "description": "Seconds until expiry. 0 or omitted means no expiry."},
				}),
				"required": []string{"content"},
			},
		},
		{
			Name:        "entry_latest_upsert",
			Description: "Maintain the single rolling 'latest' entry of a type in a context. Each write replaces the previous one.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProperties(addressProperties(), map[string]interface{}{
					"entry_type":  map[string]interface{}{"type": "string", "enum": entryTypeEnum},
					"title":       map[string]interface{}{"type": "string"},
					"content":     map[string]interface{}{"type": "string"},
					"tags":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"importance":  map[string]interface{}{"type": "number"},
					"created_by":  map[string]interface{}{"type": "string"},
					"raw_text":    map[string]interface{}{"type": "string"},
					"embedding":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "number"}},
					"metadata":    map[string]interface{}{"type": "object"},
					"ttl_seconds": map[string]interface{}{"type": "integer"},
				}),
				"required": []string{"content"},
			},
		},
		{
			Name:        "entry_latest_get",
			Description: "Fetch the rolling 'latest' entry of a type from a context.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProperties(addressProperties(), map[string]interface{}{
					"entry_type":  map[string]interface{}{"type": "string", "enum": entryTypeEnum},
					"include_raw": map[string]interface{}{"type": "boolean"},
				}),
				"required": []string{"entry_type"},
			},
		},
		{
			Name:        "entry_get",
			Description: "Fetch one entry by id. Set include_raw to receive the raw_text payload.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProperties(addressProperties(), map[string]interface{}{
					"entry_id":    map[string]interface{}{"type": "string"},
					"include_raw": map[string]interface{}{"type": "boolean"},
				}),
				"required": []string{"entry_id"},
			},
		},
		{
			Name:        "entry_search",
			Description: "Search entries in a context by full-text query, tags, and entry types. Modes: fts (default), vector, hybrid. Vector and hybrid require a query embedding.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProperties(addressProperties(), map[string]interface{}{
					"query":           map[string]interface{}{"type": "string"},
					"tags":            map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"types":           map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string", "enum": entryTypeEnum}},
					"include_expired": map[string]interface{}{"type": "boolean"},
					"mode":            map[string]interface{}{"type": "string", "enum": []string{"fts", "vector", "hybrid"}},
					"embedding":       map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "number"}},
					"limit":           map[string]interface{}{"type": "integer", "description": "Max 100, default 10."},
				}),
			},
		},
		{
			Name:        "entry_delete",
			Description: "Delete one entry by id.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": mergeProperties(addressProperties(), map[string]interface{}{
					"entry_id": map[string]interface{}{"type": "string"},
				}),
				"required": []string{"entry_id"},
			},
		},
	}
}

// buildResourcesList returns the resource catalog.
func (s *Server) buildResourcesList() []MCPResource {
	return []MCPResource{
		{
			URI:         instructionsURI,
			Name:        "Memory usage instructions",
			Description: "How to structure contexts, aliases, and entries when using this server.",
			MimeType:    "text/plain",
		},
	}
}

// handleResourcesRead serves the instructions resource.
func (s *Server) handleResourcesRead(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPResourcesReadParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.URI != instructionsURI {
		return nil, &normalize.ValidationError{Field: "uri", Reason: fmt.Sprintf("unknown resource %q", p.URI)}
	}
	return MCPResourcesReadResult{
		Contents: []MCPResourceContents{
			{
				URI:      instructionsURI,
				MimeType: "text/plain",
				Text:     instructionsText,
			},
		},
	}, nil
}

// buildPromptsList returns the prompt catalog.
func (s *Server) buildPromptsList() []MCPPrompt {
	return []MCPPrompt{
		{
			Name:        "memory_instructions",
			Description: "Prompt fragment teaching an agent how to use this memory server.",
		},
	}
}

// handlePromptsGet serves the memory_instructions prompt.
func (s *Server) handlePromptsGet(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPPromptsGetParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name != "memory_instructions" {
		return nil, &normalize.ValidationError{Field: "name", Reason: fmt.Sprintf("unknown prompt %q", p.Name)}
	}
	return MCPPromptsGetResult{
		Description: "How to use this memory server",
		Messages: []MCPPromptMessage{
			{
				Role: "user",
				Content: MCPToolCallContent{
					Type: "text",
					Text: instructionsText,
				},
			},
		},
	}, nil
}
