package models

// Upload is a file handed over by the operator, kept in memory until
// its text has been extracted.
type Upload struct {
	Name string
	Data []byte
}

// Chunk represents a window of page text with its source metadata
type Chunk struct {
	ID         string
	Content    string
	Source     string
	PageNumber int
	ChunkID    int
}

// Source is a retrieved chunk together with its similarity to the question
type Source struct {
	Chunk
	Similarity float32
}

// Turn is one message of a session transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

type PromptResponse struct {
	SessionID       string
	Query           string
	StandaloneQuery string
	Sources         []Source
	Content         string
}
