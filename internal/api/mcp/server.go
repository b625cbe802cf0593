package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/scrypster/recollect/internal/config"
	"github.com/scrypster/recollect/internal/normalize"
	"github.com/scrypster/recollect/internal/policy"
	"github.com/scrypster/recollect/internal/storage"
	"github.com/scrypster/recollect/pkg/types"
)

const (
	serverName      = "recollect"
	serverVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// Server implements the Model Context Protocol for Recollect. Every
// request is an independent, short-lived unit of work; the only shared
// state is the read-only tool/resource/prompt catalog, the policy
// engine, and the store's connection pool.
type Server struct {
	store  storage.Store
	policy *policy.Engine
	config *config.Config
	vector bool
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithConfig injects a *config.Config into the Server. The server
// falls back to built-in defaults for its length ceilings when no
// config is provided.
func WithConfig(cfg *config.Config) ServerOption {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithVectorCapability declares whether the backing deployment accepts
// embeddings. Vector and hybrid search modes are rejected when off.
func WithVectorCapability(enabled bool) ServerOption {
	return func(s *Server) {
		s.vector = enabled
	}
}

// NewServer creates a new MCP server instance backed by store, with
// write policies applied by pol.
func NewServer(store storage.Store, pol *policy.Engine, opts ...ServerOption) *Server {
	s := &Server{
		store:  store,
		policy: pol,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) maxContentChars() int {
	if s.config != nil && s.config.Storage.MaxContentChars > 0 {
		return s.config.Storage.MaxContentChars
	}
	return 20000
}

func (s *Server) maxRawTextChars() int {
	if s.config != nil && s.config.Storage.MaxRawTextChars > 0 {
		return s.config.Storage.MaxRawTextChars
	}
	return 200000
}

// HandleRequest processes a JSON-RPC 2.0 payload — a single request
// object or a batch array — and returns the serialized response. A nil
// response with a nil error means nothing should be written (the
// payload consisted only of notifications).
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(requestJSON)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return s.handleBatch(ctx, trimmed)
	}
	return s.handleSingle(ctx, trimmed), nil
}

// handleBatch evaluates a batch concurrently. Items are independent:
// one failure never affects siblings, and notifications are dropped
// from the output.
func (s *Server) handleBatch(ctx context.Context, batchJSON []byte) ([]byte, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(batchJSON, &items); err != nil {
		return errorResponse(nil, ErrCodeParseError, "Parse error", err.Error())
	}
	if len(items) == 0 {
		return errorResponse(nil, ErrCodeInvalidRequest, "Empty batch", nil)
	}

	responses := make([][]byte, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item json.RawMessage) {
			defer wg.Done()
			responses[i] = s.handleSingle(ctx, item)
		}(i, item)
	}
	wg.Wait()

	var out [][]byte
	for _, resp := range responses {
		if resp != nil {
			out = append(out, resp)
		}
	}
	if len(out) == 0 {
		// All notifications: no response body at all.
		return nil, nil
	}
	return append(append([]byte("["), bytes.Join(out, []byte(","))...), ']'), nil
}

// handleSingle processes one request object and returns its serialized
// response, or nil for a notification.
func (s *Server) handleSingle(ctx context.Context, requestJSON []byte) []byte {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		resp, _ := errorResponse(nil, ErrCodeParseError, "Parse error", err.Error())
		return resp
	}

	// A request without an id member is a notification; it produces
	// no response even when it fails.
	notification := req.ID == nil

	if req.JSONRPC != "2.0" || req.Method == "" {
		if notification {
			return nil
		}
		resp, _ := errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid request", nil)
		return resp
	}

	result, err := s.dispatch(ctx, req.Method, req.Params)
	if notification {
		return nil
	}
	if err != nil {
		resp, _ := errorResponse(req.ID, errorCodeFor(err), err.Error(), nil)
		return resp
	}
	resp, _ := successResponse(req.ID, result)
	return resp
}

// dispatch routes a JSON-RPC method to its handler.
func (s *Server) dispatch(ctx context.Context, method string, params interface{}) (interface{}, error) {
	switch method {
	case "initialize":
		return s.handleInitialize(ctx, params)
	case "initialized", "notifications/initialized":
		// Handshake notification; nothing to do.
		return map[string]interface{}{}, nil
	case "tools/list":
		return MCPToolsListResult{Tools: s.buildToolsList()}, nil
	case "tools/call":
		return s.handleToolsCall(ctx, params)
	case "resources/list":
		return MCPResourcesListResult{Resources: s.buildResourcesList()}, nil
	case "resources/read":
		return s.handleResourcesRead(ctx, params)
	case "prompts/list":
		return MCPPromptsListResult{Prompts: s.buildPromptsList()}, nil
	case "prompts/get":
		return s.handlePromptsGet(ctx, params)
	default:
		return nil, &methodNotFoundError{method: method}
	}
}

// methodNotFoundError marks an unknown JSON-RPC method so that
// errorCodeFor can map it to -32601.
type methodNotFoundError struct {
	method string
}

func (e *methodNotFoundError) Error() string {
	return fmt.Sprintf("Method not found: %s", e.method)
}

// errorCodeFor maps a handler error to its JSON-RPC error code.
// Validation and policy failures are caller-fixable (-32602); unknown
// methods are -32601; everything else, including not-found conditions
// surfaced as hard failures, is a server error (-32000).
func errorCodeFor(err error) int {
	var verr *normalize.ValidationError
	if errors.As(err, &verr) {
		return ErrCodeInvalidParams
	}
	var mnf *methodNotFoundError
	if errors.As(err, &mnf) {
		return ErrCodeMethodNotFound
	}
	return ErrCodeServerError
}

// handleInitialize handles the MCP initialize handshake.
func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPInitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: MCPServerCapabilities{
			Tools:     &MCPToolsCapability{},
			Resources: &MCPResourcesCapability{},
			Prompts:   &MCPPromptsCapability{},
		},
		ServerInfo: MCPServerInfo{
			Name:    serverName,
			Version: serverVersion,
		},
		Vector: s.vector,
	}, nil
}

// handleToolsCall dispatches a tools/call request to the named tool
// and wraps the result in the MCP content envelope. The serialized
// result is the first content block; advisory warnings, when present,
// form a second block.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	argsJSON, err := json.Marshal(p.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}

	result, warnings, handlerErr := s.callTool(ctx, p.Name, argsJSON)
	if handlerErr != nil {
		return nil, handlerErr
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	out := &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
	}
	if len(warnings) > 0 {
		warningsJSON, err := json.Marshal(map[string]interface{}{"warnings": warnings})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal warnings: %w", err)
		}
		out.Content = append(out.Content, MCPToolCallContent{Type: "text", Text: string(warningsJSON)})
	}
	return out, nil
}

// callTool routes to the typed tool methods. Tool handlers return the
// result payload plus any advisory warnings.
func (s *Server) callTool(ctx context.Context, name string, argsJSON []byte) (interface{}, []string, error) {
	switch name {
	case "context_create":
		var args ContextCreateArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		result, err := s.ContextCreate(ctx, args)
		return result, nil, err
	case "context_list":
		result, err := s.ContextList(ctx)
		return result, nil, err
	case "context_delete":
		var args ContextDeleteArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		result, err := s.ContextDelete(ctx, args)
		return result, nil, err
	case "context_alias_set":
		var args AliasSetArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		result, err := s.AliasSet(ctx, args)
		return result, nil, err
	case "context_alias_list":
		result, err := s.AliasList(ctx)
		return result, nil, err
	case "context_alias_get":
		var args AliasGetArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		result, err := s.AliasGet(ctx, args)
		return result, nil, err
	case "context_alias_delete":
		var args AliasDeleteArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		result, err := s.AliasDelete(ctx, args)
		return result, nil, err
	case "entry_upsert":
		var args EntryUpsertArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		return s.EntryUpsert(ctx, args, false)
	case "entry_latest_upsert":
		var args EntryUpsertArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		return s.EntryUpsert(ctx, args, true)
	case "entry_latest_get":
		var args EntryLatestGetArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		result, err := s.EntryLatestGet(ctx, args)
		return result, nil, err
	case "entry_get":
		var args EntryGetArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		result, err := s.EntryGet(ctx, args)
		return result, nil, err
	case "entry_search":
		var args EntrySearchArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		result, err := s.EntrySearch(ctx, args)
		return result, nil, err
	case "entry_delete":
		var args EntryDeleteArgs
		if err := unmarshalArgs(argsJSON, &args); err != nil {
			return nil, nil, err
		}
		result, err := s.EntryDelete(ctx, args)
		return result, nil, err
	default:
		return nil, nil, &normalize.ValidationError{Field: "name", Reason: fmt.Sprintf("unknown tool %q", name)}
	}
}

// resolveAddress maps tool addressing to a concrete namespace and
// context id. Exactly one of {alias} or {namespace, context_id} must
// be supplied. Alias resolution failure is a hard failure, not an
// empty result.
func (s *Server) resolveAddress(ctx context.Context, a AddressArgs) (string, string, error) {
	hasAlias := strings.TrimSpace(a.Alias) != ""
	hasExplicit := strings.TrimSpace(a.Namespace) != "" || strings.TrimSpace(a.ContextID) != ""

	switch {
	case hasAlias && hasExplicit:
		return "", "", &normalize.ValidationError{
			Field:  "alias",
			Reason: "supply either an alias or a namespace+context_id pair, not both",
		}
	case !hasAlias && !hasExplicit:
		return "", "", &normalize.ValidationError{
			Field:  "alias",
			Reason: "an alias or a namespace+context_id pair is required",
		}
	case hasAlias:
		alias, err := normalize.Identifier("alias", a.Alias)
		if err != nil {
			return "", "", err
		}
		namespace, contextID, err := s.store.ResolveAlias(ctx, alias)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return "", "", fmt.Errorf("alias %q not found", alias)
			}
			return "", "", err
		}
		return namespace, contextID, nil
	default:
		namespace, err := normalize.Identifier("namespace", a.Namespace)
		if err != nil {
			return "", "", err
		}
		contextID, err := normalize.Identifier("context_id", a.ContextID)
		if err != nil {
			return "", "", err
		}
		return namespace, contextID, nil
	}
}

// ---------------------------------------------------------------------------
// Context tools
// ---------------------------------------------------------------------------

// ContextCreate creates or updates a context.
func (s *Server) ContextCreate(ctx context.Context, args ContextCreateArgs) (*ContextCreateResult, error) {
	namespace, err := normalize.Identifier("namespace", args.Namespace)
	if err != nil {
		return nil, err
	}
	contextID, err := normalize.Identifier("context_id", args.ContextID)
	if err != nil {
		return nil, err
	}
	description, err := normalize.OptionalString("description", args.Description, types.MaxDescriptionChars)
	if err != nil {
		return nil, err
	}
	tags, err := normalize.TagSet("tags", args.Tags)
	if err != nil {
		return nil, err
	}
	scope, err := normalize.ScopeValue("scope", args.Scope)
	if err != nil {
		return nil, err
	}
	owner, err := normalize.OptionalString("owner", args.Owner, types.MaxTitleChars)
	if err != nil {
		return nil, err
	}
	metadata, err := normalize.Metadata("metadata", args.Metadata)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.CreateContext(ctx, &types.Context{
		Namespace:   namespace,
		ContextID:   contextID,
		Description: description,
		Tags:        tags,
		Scope:       scope,
		Owner:       owner,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	return &ContextCreateResult{
		Context: stored,
		Message: fmt.Sprintf("Context %s/%s is ready.", namespace, contextID),
	}, nil
}

// ContextList returns every context.
func (s *Server) ContextList(ctx context.Context) (*ContextListResult, error) {
	contexts, err := s.store.ListContexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}
	return &ContextListResult{Contexts: contexts, Total: len(contexts)}, nil
}

// ContextDelete removes a context and its entries. Aliases pointing at
// the deleted context are left in place; they resolve as not found
// afterwards.
func (s *Server) ContextDelete(ctx context.Context, args ContextDeleteArgs) (*ContextDeleteResult, error) {
	namespace, contextID, err := s.resolveAddress(ctx, args.AddressArgs)
	if err != nil {
		return nil, err
	}
	deleted, err := s.store.DeleteContext(ctx, namespace, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete context: %w", err)
	}
	return &ContextDeleteResult{Deleted: deleted, Namespace: namespace, ContextID: contextID}, nil
}

// ---------------------------------------------------------------------------
// Alias tools
// ---------------------------------------------------------------------------

// AliasSet creates or repoints an alias at a context.
func (s *Server) AliasSet(ctx context.Context, args AliasSetArgs) (*AliasSetResult, error) {
	alias, err := normalize.Identifier("alias", args.Alias)
	if err != nil {
		return nil, err
	}
	namespace, err := normalize.Identifier("namespace", args.Namespace)
	if err != nil {
		return nil, err
	}
	contextID, err := normalize.Identifier("context_id", args.ContextID)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.SetAlias(ctx, &types.ContextAlias{
		Alias:     alias,
		Namespace: namespace,
		ContextID: contextID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set alias: %w", err)
	}
	return &AliasSetResult{Alias: stored}, nil
}

// AliasList returns every alias.
func (s *Server) AliasList(ctx context.Context) (*AliasListResult, error) {
	aliases, err := s.store.ListAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	return &AliasListResult{Aliases: aliases, Total: len(aliases)}, nil
}

// AliasGet returns the raw alias record, whether or not its target
// context still exists. A missing alias is {found:false}, not an
// error.
func (s *Server) AliasGet(ctx context.Context, args AliasGetArgs) (*AliasGetResult, error) {
	alias, err := normalize.Identifier("alias", args.Alias)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.GetAlias(ctx, alias)
	if errors.Is(err, storage.ErrNotFound) {
		return &AliasGetResult{Found: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}
	return &AliasGetResult{Alias: stored, Found: true}, nil
}

// AliasDelete removes an alias.
func (s *Server) AliasDelete(ctx context.Context, args AliasDeleteArgs) (*AliasDeleteResult, error) {
	alias, err := normalize.Identifier("alias", args.Alias)
	if err != nil {
		return nil, err
	}
	deleted, err := s.store.DeleteAlias(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("failed to delete alias: %w", err)
	}
	return &AliasDeleteResult{Deleted: deleted}, nil
}

// ---------------------------------------------------------------------------
// Entry tools
// ---------------------------------------------------------------------------

// EntryUpsert writes an entry. With latest set the entry id is forced
// to the canonical latest id for its type and the row is replaced as a
// singleton; otherwise a supplied id selects update-in-place and an
// absent id inserts under a generated id.
func (s *Server) EntryUpsert(ctx context.Context, args EntryUpsertArgs, latest bool) (*EntryUpsertResult, []string, error) {
	namespace, contextID, err := s.resolveAddress(ctx, args.AddressArgs)
	if err != nil {
		return nil, nil, err
	}

	entryID, err := normalize.EntryID("entry_id", args.EntryID)
	if err != nil {
		return nil, nil, err
	}
	entryType, err := normalize.EntryTypeValue("entry_type", args.EntryType, false)
	if err != nil {
		return nil, nil, err
	}
	title, err := normalize.OptionalString("title", args.Title, types.MaxTitleChars)
	if err != nil {
		return nil, nil, err
	}
	content, err := normalize.RequiredString("content", args.Content, s.maxContentChars())
	if err != nil {
		return nil, nil, err
	}
	tags, err := normalize.TagSet("tags", args.Tags)
	if err != nil {
		return nil, nil, err
	}
	importance, err := normalize.Importance("importance", args.Importance)
	if err != nil {
		return nil, nil, err
	}
	createdBy, err := normalize.OptionalString("created_by", args.CreatedBy, types.MaxTitleChars)
	if err != nil {
		return nil, nil, err
	}
	rawText, err := normalize.OptionalString("raw_text", args.RawText, s.maxRawTextChars())
	if err != nil {
		return nil, nil, err
	}
	embedding, err := normalize.Embedding("embedding", args.Embedding, s.vector)
	if err != nil {
		return nil, nil, err
	}
	metadata, err := normalize.Metadata("metadata", args.Metadata)
	if err != nil {
		return nil, nil, err
	}
	if args.TTLSeconds < 0 {
		return nil, nil, &normalize.ValidationError{Field: "ttl_seconds", Reason: "must be non-negative"}
	}
	var expiresAt *time.Time
	if args.TTLSeconds > 0 {
		t := time.Now().Add(time.Duration(args.TTLSeconds) * time.Second)
		expiresAt = &t
	}

	entry := &types.Entry{
		Namespace:  namespace,
		ContextID:  contextID,
		EntryID:    entryID,
		EntryType:  entryType,
		Title:      title,
		Content:    content,
		Tags:       tags,
		Importance: importance,
		CreatedBy:  createdBy,
		RawText:    rawText,
		Embedding:  embedding,
		Metadata:   metadata,
		ExpiresAt:  expiresAt,
	}

	warnings, err := s.policy.ApplyWrite(entry, latest)
	if err != nil {
		return nil, nil, err
	}

	// Mode selection: latest entries are replaced as singletons; an
	// explicit id selects update, an absent one selects insert.
	mode := storage.UpsertInsert
	switch {
	case latest:
		mode = storage.UpsertReplace
	case entry.EntryID != "":
		mode = storage.UpsertUpdate
	}

	stored, err := s.store.UpsertEntry(ctx, entry, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upsert entry: %w", err)
	}

	message := "Entry stored."
	if mode == storage.UpsertUpdate {
		message = "Entry updated."
	}
	return &EntryUpsertResult{Entry: stored, Message: message}, warnings, nil
}

// EntryGet fetches one entry by id. A missing entry is {found:false},
// not an error.
func (s *Server) EntryGet(ctx context.Context, args EntryGetArgs) (*EntryGetResult, error) {
	namespace, contextID, err := s.resolveAddress(ctx, args.AddressArgs)
	if err != nil {
		return nil, err
	}
	entryID, err := normalize.EntryID("entry_id", args.EntryID)
	if err != nil {
		return nil, err
	}
	if entryID == "" {
		return nil, &normalize.ValidationError{Field: "entry_id", Reason: "is required"}
	}

	entry, err := s.store.GetEntry(ctx, namespace, contextID, entryID, args.IncludeRaw)
	if errors.Is(err, storage.ErrNotFound) {
		return &EntryGetResult{Found: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return &EntryGetResult{Entry: entry, Found: true}, nil
}

// EntryLatestGet fetches the canonical latest entry of a type.
func (s *Server) EntryLatestGet(ctx context.Context, args EntryLatestGetArgs) (*EntryGetResult, error) {
	namespace, contextID, err := s.resolveAddress(ctx, args.AddressArgs)
	if err != nil {
		return nil, err
	}
	entryType, err := normalize.EntryTypeValue("entry_type", args.EntryType, true)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.GetEntry(ctx, namespace, contextID, s.policy.LatestID(entryType), args.IncludeRaw)
	if errors.Is(err, storage.ErrNotFound) {
		return &EntryGetResult{Found: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest entry: %w", err)
	}
	return &EntryGetResult{Entry: entry, Found: true}, nil
}

// EntrySearch searches entries within one context. Vector and hybrid
// modes require both vector capability and a query embedding.
func (s *Server) EntrySearch(ctx context.Context, args EntrySearchArgs) (*EntrySearchResult, error) {
	namespace, contextID, err := s.resolveAddress(ctx, args.AddressArgs)
	if err != nil {
		return nil, err
	}
	mode, err := normalize.SearchModeValue("mode", args.Mode)
	if err != nil {
		return nil, err
	}
	if mode != storage.ModeFTS {
		if !s.vector {
			return nil, &normalize.ValidationError{Field: "mode", Reason: "vector and hybrid modes require vector capability"}
		}
		if len(args.Embedding) == 0 {
			return nil, &normalize.ValidationError{Field: "embedding", Reason: "vector and hybrid modes require a query embedding"}
		}
	}
	query, err := normalize.OptionalString("query", args.Query, types.MaxTitleChars*5)
	if err != nil {
		return nil, err
	}
	tags, err := normalize.TagSet("tags", args.Tags)
	if err != nil {
		return nil, err
	}
	entryTypes, err := normalize.EntryTypeList("types", args.Types)
	if err != nil {
		return nil, err
	}
	embedding, err := normalize.Embedding("embedding", args.Embedding, s.vector)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.SearchEntries(ctx, storage.SearchOptions{
		Namespace:      namespace,
		ContextID:      contextID,
		Query:          query,
		Tags:           tags,
		Types:          entryTypes,
		IncludeExpired: args.IncludeExpired,
		Mode:           mode,
		Embedding:      embedding,
		Limit:          normalize.Limit(args.Limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search entries: %w", err)
	}
	return &EntrySearchResult{Entries: entries, Total: len(entries)}, nil
}

// EntryDelete removes one entry.
func (s *Server) EntryDelete(ctx context.Context, args EntryDeleteArgs) (*EntryDeleteResult, error) {
	namespace, contextID, err := s.resolveAddress(ctx, args.AddressArgs)
	if err != nil {
		return nil, err
	}
	entryID, err := normalize.EntryID("entry_id", args.EntryID)
	if err != nil {
		return nil, err
	}
	if entryID == "" {
		return nil, &normalize.ValidationError{Field: "entry_id", Reason: "is required"}
	}

	deleted, err := s.store.DeleteEntry(ctx, namespace, contextID, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete entry: %w", err)
	}
	return &EntryDeleteResult{Deleted: deleted}, nil
}

// ---------------------------------------------------------------------------
// Envelope helpers
// ---------------------------------------------------------------------------

// unmarshalParams converts already-decoded JSON-RPC params into a
// typed struct.
func unmarshalParams(params interface{}, dest interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &normalize.ValidationError{Field: "params", Reason: err.Error()}
	}
	return nil
}

// unmarshalArgs decodes tool arguments into a typed struct.
func unmarshalArgs(argsJSON []byte, dest interface{}) error {
	if err := json.Unmarshal(argsJSON, dest); err != nil {
		return &normalize.ValidationError{Field: "arguments", Reason: err.Error()}
	}
	return nil
}

// successResponse creates a JSON-RPC success response.
func successResponse(id json.RawMessage, result interface{}) ([]byte, error) {
	if id == nil {
		id = json.RawMessage("null")
	}
	return json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	})
}

// errorResponse creates a JSON-RPC error response.
func errorResponse(id json.RawMessage, code int, message string, data interface{}) ([]byte, error) {
	if id == nil {
		id = json.RawMessage("null")
	}
	return json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	})
}
