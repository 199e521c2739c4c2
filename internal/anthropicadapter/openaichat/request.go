package openaichat

import (
	"regexp"
	"strings"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
)

// promptTurnDelimiter splits a legacy prompt blob into turn segments. Both
// delimiters are literal; a bare "Human:" without the blank line before it is
// part of the surrounding text, not a turn boundary.
var promptTurnDelimiter = regexp.MustCompile(`\n\nHuman: |\n\nAssistant: `)

// translateRequest converts an inbound request into the backend request body.
// Pure function: malformed input degrades to a best-effort (possibly empty)
// message list rather than an error.
//
// The model is always the operator-configured one. The caller's model field
// is deliberately read nowhere here; it only reappears as an echo in the
// translated response.
func translateRequest(clientReq anthropicadapter.MessagesRequest, model string) chatCompletionRequest {
	var messages []chatMessage
	if len(clientReq.Messages) > 0 {
		messages = fromInboundMessages(clientReq.Messages)
	} else if clientReq.Prompt != "" {
		messages = fromLegacyPrompt(clientReq.Prompt)
	}

	// System text becomes the first message regardless of the inbound
	// ordering, inserted after per-message processing.
	if clientReq.System != "" {
		messages = append([]chatMessage{{Role: "system", Content: clientReq.System}}, messages...)
	}

	return chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Stream:      bool(clientReq.Stream),
		Temperature: clientReq.Temperature,
		MaxTokens:   clientReq.MaxTokens,
		TopP:        clientReq.TopP,
		// TopK transformation: the backend protocol has no top_k
		// equivalent, so the field is recognized and discarded rather
		// than rejected.
	}
}

// fromInboundMessages translates structured messages, dropping assistant
// turns whose content is an empty part list (stale turn terminators left
// behind by clients that close a turn with an empty content array).
func fromInboundMessages(inbound []anthropicadapter.InboundMessage) []chatMessage {
	messages := make([]chatMessage, 0, len(inbound))
	for _, msg := range inbound {
		if msg.Role == "assistant" && msg.Content.IsParts && len(msg.Content.Parts) == 0 {
			continue
		}
		messages = append(messages, chatMessage{
			Role:    msg.Role,
			Content: fromMessageContent(msg.Content),
		})
	}
	return messages
}

// fromMessageContent resolves the content union into the backend encoding.
// A part list that is entirely text collapses to one concatenated string, in
// order and without separators; a mixed list stays a list with images
// rewritten to the backend's reference form.
func fromMessageContent(content anthropicadapter.MessageContent) any {
	if !content.IsParts {
		return content.Text
	}

	allText := true
	for _, part := range content.Parts {
		if part.Type != "text" {
			allText = false
			break
		}
	}

	if allText {
		var b strings.Builder
		for _, part := range content.Parts {
			b.WriteString(part.Text)
		}
		return b.String()
	}

	parts := make([]chatContentPart, 0, len(content.Parts))
	for _, part := range content.Parts {
		switch part.Type {
		case "image":
			parts = append(parts, fromImagePart(part))
		default:
			parts = append(parts, chatContentPart{Type: "text", Text: part.Text})
		}
	}
	return parts
}

// fromImagePart rewrites an image part to the backend's image_url form.
// Inline blobs become data URLs; URL sources pass through.
func fromImagePart(part anthropicadapter.ContentPart) chatContentPart {
	var url, mediaType string
	if part.Source != nil {
		mediaType = part.Source.MediaType
		if part.Source.Type == "url" {
			url = part.Source.URL
		} else {
			url = "data:" + mediaType + ";base64," + part.Source.Data
		}
	}
	return chatContentPart{
		Type: "image_url",
		ImageURL: &chatImageURL{
			URL:    url,
			Detail: imageDetail(mediaType),
		},
	}
}

// imageDetail picks the backend detail hint from the declared media type.
// Lossless formats get the high-detail treatment; everything else, including
// URL references without a declared type, defers to the backend's default.
func imageDetail(mediaType string) string {
	switch mediaType {
	case "image/png", "image/webp":
		return "high"
	default:
		return "auto"
	}
}

// fromLegacyPrompt splits a legacy prompt on the literal turn delimiters and
// alternates roles across the non-empty segments. The starting role comes
// from whether the trimmed prompt opens with "Human:"; empty segments (from
// consecutive delimiters or surrounding whitespace) are skipped without
// consuming an alternation step.
func fromLegacyPrompt(prompt string) []chatMessage {
	role := "assistant"
	if strings.HasPrefix(strings.TrimSpace(prompt), "Human:") {
		role = "user"
	}

	var messages []chatMessage
	for _, segment := range promptTurnDelimiter.Split(prompt, -1) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		messages = append(messages, chatMessage{Role: role, Content: segment})
		if role == "user" {
			role = "assistant"
		} else {
			role = "user"
		}
	}
	return messages
}
