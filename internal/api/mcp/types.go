// Package mcp implements the Model Context Protocol (MCP) server for
// Recollect. It provides JSON-RPC 2.0 based tools for creating memory
// contexts and storing, retrieving, and searching entries within them.
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/scrypster/recollect/pkg/types"
)

// AddressArgs carries context addressing, shared by every tool that
// targets one context. Callers supply either an alias or an explicit
// namespace+context_id pair — both, or neither, is a hard failure.
type AddressArgs struct {
	Alias     string `json:"alias,omitempty"`      // Alias naming the target context
	Namespace string `json:"namespace,omitempty"`  // Explicit namespace
	ContextID string `json:"context_id,omitempty"` // Explicit context id
}

// ContextCreateArgs contains arguments for the context_create tool.
type ContextCreateArgs struct {
	Namespace   string                 `json:"namespace"`             // Namespace (required)
	ContextID   string                 `json:"context_id"`            // Context id, unique within the namespace (required)
	Description string                 `json:"description,omitempty"` // Human-readable description
	Tags        []string               `json:"tags,omitempty"`        // Context-level tags
	Scope       string                 `json:"scope,omitempty"`       // "local" or "shared" (default local)
	Owner       string                 `json:"owner,omitempty"`       // Owning agent or user
	Metadata    map[string]interface{} `json:"metadata,omitempty"`    // Arbitrary metadata, merged on re-create
}

// UnmarshalJSON accepts tags either as a proper JSON array or as a
// JSON-encoded string ("[\"a\",\"b\"]" or "a, b"); some MCP clients
// send the latter.
func (a *ContextCreateArgs) UnmarshalJSON(data []byte) error {
	type Alias ContextCreateArgs
	aux := &struct {
		Tags json.RawMessage `json:"tags,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	a.Tags = flexibleTags(aux.Tags)
	return nil
}

// ContextCreateResult contains the result of creating a context.
type ContextCreateResult struct {
	Context *types.Context `json:"context"` // The stored context after the upsert
	Message string         `json:"message"` // Status message
}

// ContextListResult contains the result of listing contexts.
type ContextListResult struct {
	Contexts []types.Context `json:"contexts"` // All contexts
	Total    int             `json:"total"`    // Total count
}

// ContextDeleteArgs contains arguments for the context_delete tool.
// Addressed by alias or explicit namespace+context_id.
type ContextDeleteArgs struct {
	AddressArgs
}

// ContextDeleteResult contains the result of deleting a context.
type ContextDeleteResult struct {
	Deleted   bool   `json:"deleted"`    // Whether a context was actually removed
	Namespace string `json:"namespace"`  // Resolved namespace
	ContextID string `json:"context_id"` // Resolved context id
}

// AliasSetArgs contains arguments for the context_alias_set tool.
type AliasSetArgs struct {
	Alias     string `json:"alias"`      // Alias name (required, globally unique)
	Namespace string `json:"namespace"`  // Target namespace (required)
	ContextID string `json:"context_id"` // Target context id (required)
}

// AliasSetResult contains the result of setting an alias.
type AliasSetResult struct {
	Alias *types.ContextAlias `json:"alias"` // The stored alias record
}

// AliasListResult contains the result of listing aliases.
type AliasListResult struct {
	Aliases []types.ContextAlias `json:"aliases"` // All aliases
	Total   int                  `json:"total"`   // Total count
}

// AliasGetArgs contains arguments for the context_alias_get tool.
type AliasGetArgs struct {
	Alias string `json:"alias"` // Alias name (required)
}

// AliasGetResult contains the result of looking up an alias. The raw
// record is returned even when its target context no longer exists.
type AliasGetResult struct {
	Alias *types.ContextAlias `json:"alias,omitempty"` // The alias record when found
	Found bool                `json:"found"`           // Whether the alias exists
}

// AliasDeleteArgs contains arguments for the context_alias_delete tool.
type AliasDeleteArgs struct {
	Alias string `json:"alias"` // Alias name (required)
}

// AliasDeleteResult contains the result of deleting an alias.
type AliasDeleteResult struct {
	Deleted bool `json:"deleted"` // Whether an alias was actually removed
}

// EntryUpsertArgs contains arguments for the entry_upsert and
// entry_latest_upsert tools.
type EntryUpsertArgs struct {
	AddressArgs

	// EntryID selects update-in-place when set; when empty a new
	// entry is inserted under a generated id. Forced to the canonical
	// latest id by entry_latest_upsert.
	EntryID string `json:"entry_id,omitempty"`

	EntryType  string                 `json:"entry_type"`            // One of summary, fact, decision, question, note, snippet, todo (default note)
	Title      string                 `json:"title,omitempty"`       // Optional short title
	Content    string                 `json:"content"`               // Entry content (required)
	Tags       []string               `json:"tags,omitempty"`        // User-defined tags
	Importance *float64               `json:"importance,omitempty"`  // 0-100; rejected outside that range
	CreatedBy  string                 `json:"created_by,omitempty"`  // Agent or user writing the entry
	RawText    string                 `json:"raw_text,omitempty"`    // Large free text (transcripts etc.)
	Embedding  []float64              `json:"embedding,omitempty"`   // Caller-supplied vector; requires vector capability
	Metadata   map[string]interface{} `json:"metadata,omitempty"`    // Arbitrary metadata, replaced on update
	TTLSeconds int                    `json:"ttl_seconds,omitempty"` // Expiry in seconds from now; 0 means no expiry
}

// UnmarshalJSON accepts tags as an array or as a JSON-encoded string.
func (a *EntryUpsertArgs) UnmarshalJSON(data []byte) error {
	type Alias EntryUpsertArgs
	aux := &struct {
		Tags json.RawMessage `json:"tags,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	a.Tags = flexibleTags(aux.Tags)
	return nil
}

// EntryUpsertResult contains the result of writing an entry.
type EntryUpsertResult struct {
	Entry   *types.Entry `json:"entry"`   // The stored entry with its final id and timestamps
	Message string       `json:"message"` // Status message
}

// EntryGetArgs contains arguments for the entry_get tool.
type EntryGetArgs struct {
	AddressArgs

	EntryID    string `json:"entry_id"`              // Entry id (required)
	IncludeRaw bool   `json:"include_raw,omitempty"` // Return raw text (withheld by default)
}

// EntryGetResult contains the result of fetching an entry.
type EntryGetResult struct {
	Entry *types.Entry `json:"entry,omitempty"` // The entry when found
	Found bool         `json:"found"`           // Whether the entry exists
}

// EntryLatestGetArgs contains arguments for the entry_latest_get tool.
type EntryLatestGetArgs struct {
	AddressArgs

	EntryType  string `json:"entry_type"`            // Entry type of the latest entry (required)
	IncludeRaw bool   `json:"include_raw,omitempty"` // Return raw text (withheld by default)
}

// EntrySearchArgs contains arguments for the entry_search tool.
type EntrySearchArgs struct {
	AddressArgs

	Query          string    `json:"query,omitempty"`           // Free-text query
	Tags           []string  `json:"tags,omitempty"`            // Match entries carrying any listed tag
	Types          []string  `json:"types,omitempty"`           // Match entries of any listed entry type
	IncludeExpired bool      `json:"include_expired,omitempty"` // Include entries past their TTL
	Mode           string    `json:"mode,omitempty"`            // fts (default), vector, or hybrid
	Embedding      []float64 `json:"embedding,omitempty"`       // Query vector, required for vector/hybrid
	Limit          int       `json:"limit,omitempty"`           // Max results (default 10, max 100)
}

// UnmarshalJSON accepts tags as an array or as a JSON-encoded string.
func (a *EntrySearchArgs) UnmarshalJSON(data []byte) error {
	type Alias EntrySearchArgs
	aux := &struct {
		Tags json.RawMessage `json:"tags,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	a.Tags = flexibleTags(aux.Tags)
	return nil
}

// EntrySearchResult contains the result of searching entries.
type EntrySearchResult struct {
	Entries []types.Entry `json:"entries"` // Matching entries in ranked order
	Total   int           `json:"total"`   // Number of entries returned
}

// EntryDeleteArgs contains arguments for the entry_delete tool.
type EntryDeleteArgs struct {
	AddressArgs

	EntryID string `json:"entry_id"` // Entry id (required)
}

// EntryDeleteResult contains the result of deleting an entry.
type EntryDeleteResult struct {
	Deleted bool `json:"deleted"` // Whether an entry was actually removed
}

// flexibleTags decodes a tags field that may be a JSON array, a
// JSON-encoded array string, or a comma-separated string. Unrecognized
// shapes yield nil rather than an error.
func flexibleTags(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err == nil {
		return tags
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		_ = json.Unmarshal([]byte(s), &tags)
		return tags
	}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// JSONRPCRequest represents a JSON-RPC 2.0 request. ID is kept raw so
// a notification (no id member) is distinguishable from an explicit
// null id.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"` // Must be "2.0"
	Method  string          `json:"method"`  // Method name
	Params  interface{}     `json:"params"`  // Method parameters
	ID      json.RawMessage `json:"id"`      // Request ID (string, number, or null); absent for notifications
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`          // Always "2.0"
	Result  interface{}     `json:"result,omitempty"` // Result (if successful)
	Error   *JSONRPCError   `json:"error,omitempty"`  // Error (if failed)
	ID      json.RawMessage `json:"id"`               // Request ID echoed back
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional error data
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools / resources / prompts)
// ---------------------------------------------------------------------------

// MCPInitializeParams holds the parameters sent by an MCP client in
// the initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools     *MCPToolsCapability     `json:"tools,omitempty"`
	Resources *MCPResourcesCapability `json:"resources,omitempty"`
	Prompts   *MCPPromptsCapability   `json:"prompts,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPResourcesCapability signals that the server exposes resources.
type MCPResourcesCapability struct{}

// MCPPromptsCapability signals that the server exposes prompts.
type MCPPromptsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`

	// Vector reports whether this deployment accepts embeddings and
	// supports the vector/hybrid search modes.
	Vector bool `json:"vector"`
}

// MCPTool describes a single tool exposed via tools/list.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text" for now
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request. The first
// content block carries the serialized result; when advisory warnings
// were raised a second block carries them.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}

// MCPResource describes a single resource exposed via resources/list.
type MCPResource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// MCPResourcesListResult is the response to the resources/list request.
type MCPResourcesListResult struct {
	Resources []MCPResource `json:"resources"`
}

// MCPResourcesReadParams holds the parameters for resources/read.
type MCPResourcesReadParams struct {
	URI string `json:"uri"`
}

// MCPResourceContents is a single resource payload.
type MCPResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// MCPResourcesReadResult is the response to the resources/read request.
type MCPResourcesReadResult struct {
	Contents []MCPResourceContents `json:"contents"`
}

// MCPPrompt describes a single prompt exposed via prompts/list.
type MCPPrompt struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MCPPromptsListResult is the response to the prompts/list request.
type MCPPromptsListResult struct {
	Prompts []MCPPrompt `json:"prompts"`
}

// MCPPromptsGetParams holds the parameters for prompts/get.
type MCPPromptsGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// MCPPromptMessage is a single message in a prompt.
type MCPPromptMessage struct {
	Role    string             `json:"role"`
	Content MCPToolCallContent `json:"content"`
}

// MCPPromptsGetResult is the response to the prompts/get request.
type MCPPromptsGetResult struct {
	Description string             `json:"description,omitempty"`
	Messages    []MCPPromptMessage `json:"messages"`
}
