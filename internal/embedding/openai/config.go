package openai

// Config holds settings for the query embedding endpoint. Retrieval is
// disabled when APIKey is empty.
type Config struct {
	APIKey     string `env:"EMBEDDING_API_KEY"`
	BaseURL    string `env:"EMBEDDING_BASE_URL"   envDefault:"https://api.openai.com/v1"`
	Model      string `env:"EMBEDDING_MODEL"      envDefault:"text-embedding-3-small"`
	Dimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"0"`
}
