// Package mcpserver exposes the memory system to MCP clients. It serves two
// tools: create_memory, which writes through the same memory path the voice
// pipeline uses, and search_memories, which queries the long-term archive.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/k00jax/omi/internal/archive"
	"github.com/k00jax/omi/pkg/memory"
	"github.com/k00jax/omi/pkg/provider/embeddings"
)

const (
	serverName    = "omi-memory"
	serverVersion = "1.0.0"

	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Server wires the memory backends into an MCP server.
type Server struct {
	writer   memory.Writer
	store    memory.Archive
	embedder embeddings.Provider
	archiver *archive.Archiver
	userID   string

	srv *mcpsdk.Server
}

// Option configures a [Server].
type Option func(*Server)

// WithArchive attaches the long-term archive used by search_memories.
func WithArchive(store memory.Archive) Option {
	return func(s *Server) { s.store = store }
}

// WithEmbedder enables similarity search over the archive. Without it,
// search_memories falls back to full-text search.
func WithEmbedder(p embeddings.Provider) Option {
	return func(s *Server) { s.embedder = p }
}

// WithArchiver routes created memories into the background archiver so that
// MCP-created memories become searchable like pipeline-created ones.
func WithArchiver(a *archive.Archiver) Option {
	return func(s *Server) { s.archiver = a }
}

// WithUserID sets the user attributed to created memories. Default
// "default_user".
func WithUserID(id string) Option {
	return func(s *Server) {
		if id != "" {
			s.userID = id
		}
	}
}

// New creates the MCP memory server. writer is the same failover writer the
// dispatch path uses, so MCP clients get identical durability semantics.
func New(writer memory.Writer, opts ...Option) *Server {
	s := &Server{
		writer: writer,
		userID: "default_user",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.srv = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	s.registerTools()
	return s
}

// ServeStdio serves the MCP protocol over stdin/stdout until ctx is
// cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.srv.Run(ctx, &mcpsdk.StdioTransport{})
}

// Handler returns an [http.Handler] serving the MCP streamable HTTP
// transport.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.srv }, nil)
}

// Connect attaches the server to a transport. Used by in-process clients
// and tests.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	s.srv.AddTool(&mcpsdk.Tool{
		Name:        "create_memory",
		Description: "Store a memory for the user. The memory is written to the configured memory backends and becomes searchable.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "The memory text to store.",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Memory category, e.g. \"memories\" or \"facts\".",
				},
			},
			"required": []string{"text"},
		},
	}, s.createMemory)

	s.srv.AddTool(&mcpsdk.Tool{
		Name:        "search_memories",
		Description: "Search stored memories. Uses semantic similarity when an embedding model is configured, full-text search otherwise.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural-language search query.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results (default 10, max 50).",
				},
			},
			"required": []string{"query"},
		},
	}, s.searchMemories)
}

type createMemoryArgs struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

func (s *Server) createMemory(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args createMemoryArgs
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("create_memory: parse arguments: %w", err)
	}
	if args.Text == "" {
		return nil, errors.New("create_memory: text argument is required")
	}
	if args.Category == "" {
		args.Category = "memories"
	}

	rec := memory.Record{
		Text:      args.Text,
		UserID:    s.userID,
		Category:  args.Category,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.writer.Write(ctx, rec); err != nil {
		return nil, fmt.Errorf("create_memory: %w", err)
	}
	if s.archiver != nil {
		s.archiver.Submit(rec)
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "memory created"}},
	}, nil
}

type searchMemoriesArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// searchResult is the JSON shape returned per memory.
type searchResult struct {
	Text      string    `json:"text"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Distance is the cosine distance to the query, present only for
	// similarity search. Lower means closer.
	Distance *float64 `json:"distance,omitempty"`
}

func (s *Server) searchMemories(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	if s.store == nil {
		return nil, errors.New("search_memories: no archive configured")
	}

	var args searchMemoriesArgs
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("search_memories: parse arguments: %w", err)
	}
	if args.Query == "" {
		return nil, errors.New("search_memories: query argument is required")
	}
	if args.Limit <= 0 {
		args.Limit = defaultSearchLimit
	}
	if args.Limit > maxSearchLimit {
		args.Limit = maxSearchLimit
	}

	opts := memory.SearchOpts{UserID: s.userID, Limit: args.Limit}

	var results []searchResult
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, args.Query)
		if err != nil {
			return nil, fmt.Errorf("search_memories: embed query: %w", err)
		}
		similar, err := s.store.SearchSimilar(ctx, vec, args.Limit, opts)
		if err != nil {
			return nil, fmt.Errorf("search_memories: %w", err)
		}
		for _, sr := range similar {
			distance := sr.Distance
			results = append(results, searchResult{
				Text:      sr.Record.Text,
				Category:  sr.Record.Category,
				CreatedAt: sr.Record.CreatedAt,
				Distance:  &distance,
			})
		}
	} else {
		recs, err := s.store.Search(ctx, args.Query, opts)
		if err != nil {
			return nil, fmt.Errorf("search_memories: %w", err)
		}
		for _, rec := range recs {
			results = append(results, searchResult{
				Text:      rec.Text,
				Category:  rec.Category,
				CreatedAt: rec.CreatedAt,
			})
		}
	}

	if results == nil {
		results = []searchResult{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("search_memories: marshal results: %w", err)
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(payload)}},
	}, nil
}
