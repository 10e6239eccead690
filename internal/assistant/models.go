package assistant

// Intent is the classified purpose of an inbound message.
type Intent string

const (
	IntentAddEvent Intent = "add_event"
	IntentGreet    Intent = "greet"
	IntentHelp     Intent = "help"
	IntentOther    Intent = "other"
)

// IntentResult is the model's classification of a message.
type IntentResult struct {
	Intent      Intent  `json:"intent"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// EventDetails are the fields the model extracts for a calendar event.
// Times are ISO-8601 strings as produced by the model; empty means the
// field was absent from the message.
type EventDetails struct {
	ExtractedText string  `json:"extracted_text,omitempty"`
	Summary       string  `json:"summary"`
	Location      string  `json:"location"`
	Description   string  `json:"description"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	Confidence    float64 `json:"confidence"`
}

// chatRequest is the Mistral chat-completions payload.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatMessage content is either a plain string or a slice of contentPart
// for multimodal requests.
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}
