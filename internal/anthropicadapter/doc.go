// Package anthropicadapter defines the Anthropic-style wire protocol served to
// inbound clients and the adapter contract that concrete backends implement.
//
// The package models the parts of the protocol this proxy actually speaks:
//
//   - Requests: the Messages form (role/content pairs, content either a plain
//     string or a list of text/image parts, optional system text) and the
//     legacy Completions form (a single prompt blob with "\n\nHuman: " /
//     "\n\nAssistant: " turn delimiters). Which form drives translation is
//     decided once at JSON decode time, not re-branched downstream.
//
//   - Responses: the buffered message shape and the four streaming event
//     types (message_start, content_block_delta, message_delta, message_stop)
//     framed as "data: <json>" SSE records.
//
//   - Errors: the closed {"error": {"type", "message"}} taxonomy with its
//     HTTP status mapping.
//
// # Adapters
//
// MessagesAdapter: Anthropic Messages/Completions → backend chat completions
package anthropicadapter
