// Package mcptools exposes practice grading to Model Context Protocol
// clients. The server is mounted at /mcp using the streamable HTTP
// transport.
package mcptools

import (
	"context"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/fluentforge/internal/observe"
	"github.com/MrWong99/fluentforge/internal/practice"
)

// Tool names.
const (
	ToolScore        = "score_pronunciation"
	ToolRandomPhrase = "random_phrase"
)

// ScoreInput is the argument object of score_pronunciation.
type ScoreInput struct {
	Reference  string `json:"reference" jsonschema:"the phrase the learner was asked to say"`
	Transcript string `json:"transcript" jsonschema:"what the speech recogniser heard"`
}

// ScoreOutput is the result of score_pronunciation.
type ScoreOutput struct {
	Percent   int  `json:"percent" jsonschema:"similarity between 0 and 100"`
	Good      bool `json:"good" jsonschema:"whether percent reaches the configured threshold"`
	Threshold int  `json:"threshold" jsonschema:"the threshold in effect"`
}

// PhraseInput is the (empty) argument object of random_phrase.
type PhraseInput struct{}

// PhraseOutput is the result of random_phrase.
type PhraseOutput struct {
	Phrase string `json:"phrase" jsonschema:"a phrase to practise"`
}

// Server is the FluentForge MCP server.
type Server struct {
	svc     *practice.Service
	metrics *observe.Metrics
	mcp     *mcpsdk.Server
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New returns a server whose tools are backed by svc.
func New(svc *practice.Service, version string, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	s.mcp = mcpsdk.NewServer(&mcpsdk.Implementation{Name: "fluentforge", Version: version}, nil)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        ToolScore,
		Description: "Grade how closely a transcript matches a reference phrase, ignoring case and the punctuation , . ? !",
	}, s.score)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        ToolRandomPhrase,
		Description: "Return a random phrase from the practice phrase bank.",
	}, s.randomPhrase)
	return s
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcpsdk.Server { return s.mcp }

// Handler returns the streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.mcp }, nil)
}

// RegisterRoutes mounts the server at /mcp.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/mcp", s.Handler())
}

func (s *Server) score(ctx context.Context, _ *mcpsdk.CallToolRequest, in ScoreInput) (*mcpsdk.CallToolResult, ScoreOutput, error) {
	res, err := s.svc.Score(ctx, in.Reference, in.Transcript)
	if err != nil {
		s.metrics.RecordToolCall(ctx, ToolScore, "error")
		return nil, ScoreOutput{}, err
	}
	s.metrics.RecordToolCall(ctx, ToolScore, "ok")
	return nil, ScoreOutput{Percent: res.Percent, Good: res.Good, Threshold: res.Threshold}, nil
}

func (s *Server) randomPhrase(ctx context.Context, _ *mcpsdk.CallToolRequest, _ PhraseInput) (*mcpsdk.CallToolResult, PhraseOutput, error) {
	phrase, err := s.svc.RandomPhrase()
	if err != nil {
		s.metrics.RecordToolCall(ctx, ToolRandomPhrase, "error")
		return nil, PhraseOutput{}, err
	}
	s.metrics.RecordToolCall(ctx, ToolRandomPhrase, "ok")
	return nil, PhraseOutput{Phrase: phrase}, nil
}
