package qa

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat/completions.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	// SearchBeforeDate narrows retrieval to documents published before the
	// given day (MM/DD/YYYY).
	SearchBeforeDate string `json:"search_before_date_filter,omitempty"`
	MaxResults       int    `json:"max_search_results,omitempty"`
}

// SearchResult is one cited document. Date carries day precision only.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date"`
}

// Choice is one completion.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// ChatResponse is the provider response.
type ChatResponse struct {
	ID            string         `json:"id"`
	Model         string         `json:"model"`
	Created       int64          `json:"created"` // unix seconds
	Choices       []Choice       `json:"choices"`
	SearchResults []SearchResult `json:"search_results"`
}

// Answer returns the first completion's text.
func (r *ChatResponse) Answer() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// ErrorResponse is the provider error body.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// FixtureSchema guards offline fixtures: a single chat response.
const FixtureSchema = `{
  "type": "object",
  "required": ["search_results"],
  "properties": {
    "id": {"type": "string"},
    "created": {"type": "integer"},
    "choices": {"type": "array"},
    "search_results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["url"],
        "properties": {
          "title": {"type": "string"},
          "url": {"type": "string"},
          "date": {"type": "string"}
        }
      }
    }
  }
}`
