package openai

// Config contains settings for an OpenAI-compatible chat endpoint.
// All fields map to OpenAI SDK options:
//   - APIKey: Maps to option.WithAPIKey()
//   - BaseURL: Maps to option.WithBaseURL()
//   - Timeout: Maps to option.WithRequestTimeout() (in seconds)
//   - MaxRetries: Maps to option.WithMaxRetries()
//
// Models lists the model names this endpoint serves.
type Config struct {
	APIKey     string   `env:"OPENAI_API_KEY"`
	BaseURL    string   `env:"OPENAI_BASE_URL"    envDefault:"https://api.deepseek.com/v1"`
	Timeout    int      `env:"OPENAI_TIMEOUT"     envDefault:"120"`
	MaxRetries int      `env:"OPENAI_MAX_RETRIES" envDefault:"2"`
	Models     []string `env:"OPENAI_MODELS"      envDefault:"deepseek-chat,deepseek-reasoner" envSeparator:","`
}
