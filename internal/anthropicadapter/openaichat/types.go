package openaichat

// chatCompletionRequest is the backend request body. Only the sampling
// parameters with a backend equivalent are carried; top_k has none and is
// dropped during translation.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
}

// chatMessage is one backend message. Content is either a plain string or a
// []chatContentPart, matching the two content encodings the backend accepts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// chatContentPart is one element of a mixed-content backend message.
type chatContentPart struct {
	Type     string        `json:"type"` // "text" or "image_url"
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

// chatImageURL references an image by URL or data URL, with a detail hint.
type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// chatCompletionResponse is the buffered backend reply.
type chatCompletionResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// chatCompletionChunk is one decoded streaming SSE record.
type chatCompletionChunk struct {
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Delta struct {
		Content *string `json:"content"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// chatErrorBody is the error envelope backends return on non-2xx statuses.
type chatErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
