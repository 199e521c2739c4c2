// Package openaichat adapts Anthropic Messages/Completions requests to an
// OpenAI-style Chat Completions backend, enabling Anthropic SDK clients to
// work against any chat-completion endpoint without code changes.
//
// The adapter handles:
//
//   - Request translation: both inbound forms (structured messages and the
//     legacy "\n\nHuman: " delimited prompt) become one ordered chat message
//     list. The backend model is always the operator-configured one; the
//     caller's model field is an identity echoed back, never forwarded.
//
//   - Content parts: text-only part lists collapse to a single string for
//     transmission economy, mixed lists keep their order with images
//     rewritten to the backend's image_url reference form.
//
//   - Streaming: a Reframer consumes the backend's chat-completion SSE
//     chunks from arbitrary byte boundaries and re-emits the Anthropic event
//     lifecycle (message_start, content_block_delta, message_delta,
//     message_stop) incrementally.
//
// # Adapters
//
// ChatCompletionAdapter: Anthropic Messages/Completions → Chat Completions
package openaichat
