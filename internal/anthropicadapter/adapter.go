package anthropicadapter

import (
	"context"
	"iter"
	"net/http"
)

// Adapter defines the contract for transforming client requests to backend API calls.
//
// Type parameters allow the interface to express transformation contracts for
// different request/response shapes while maintaining compile-time type safety.
//
// Type parameters:
//   - TRequest:  Client-specific request structure
//   - TResponse: Client-specific response structure
//   - TChunk:    Client-specific streaming event protocol
type Adapter[TRequest, TResponse, TChunk any] interface {
	// ProcessRequest transforms the client request, calls the backend API, and returns
	// the transformed response. Implementations should remain stateless across requests.
	ProcessRequest(ctx context.Context, clientReq TRequest, transport http.RoundTripper) (*TResponse, error)

	// ProcessStreamingRequest transforms the client request, calls the backend streaming
	// API, and returns an iterator of transformed events. Iteration owns the backend
	// connection: breaking out of the loop releases it.
	ProcessStreamingRequest(ctx context.Context, clientReq TRequest, transport http.RoundTripper) (iter.Seq2[*TChunk, error], error)
}

// MessagesAdapter is the concrete adapter contract for the Messages and
// legacy Completions operations.
type MessagesAdapter = Adapter[MessagesRequest, MessageResponse, StreamEvent]
