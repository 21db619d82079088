package news

// Article is one result of the news search API.
type Article struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Teaser      string   `json:"teaser"` // HTML
	Author      string   `json:"author"`
	Publisher   string   `json:"publisher"`
	PublishedAt string   `json:"published_at"`
	UpdatedAt   string   `json:"updated_at"`
	Tickers     []string `json:"tickers"`
}

// SearchResponse is one page of results.
type SearchResponse struct {
	Results  []Article `json:"results"`
	NextPage *int      `json:"next_page"`
}

// ErrorResponse is the provider's error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SearchParams are the provider query parameters of one page.
type SearchParams struct {
	Tickers  string
	Query    string
	DateTo   string // YYYY-MM-DD, inclusive
	Page     int
	PageSize int
}

// FixtureSchema guards offline fixtures: a single response page.
const FixtureSchema = `{
  "type": "object",
  "required": ["results"],
  "properties": {
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["published_at"],
        "properties": {
          "id": {"type": "string"},
          "url": {"type": "string"},
          "published_at": {"type": "string"}
        }
      }
    }
  }
}`
