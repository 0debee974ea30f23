package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// Request is one extraction call: the document bytes and the instructions sent with them.
type Request struct {
	Data     []byte
	MIMEType string
	Prompt   string
}

// Generator returns the raw text the model produced for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeminiConfig configures GeminiGenerator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration // per call, zero means no extra deadline
}

// GeminiGenerator implements Generator with the Gemini API behind a circuit breaker.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
}

// NewGeminiGenerator creates a generator with its own genai client.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("NewGeminiGenerator: api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModelName
	}

	return &GeminiGenerator{
		client:  client,
		model:   model,
		timeout: cfg.Timeout,
		cb:      newCircuitBreaker("gemini"),
	}, nil
}

// Generate sends the document inline with the prompt and asks for JSON matching transactionSchema.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{
					InlineData: &genai.Blob{
						MIMEType: req.MIMEType,
						Data:     req.Data,
					},
				},
				{Text: req.Prompt},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   transactionSchema(),
	}

	out, err := g.cb.Execute(func() (interface{}, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return nil, err
		}
		return resp.Text(), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &ErrService{Err: fmt.Errorf("Service d'extraction momentanément indisponible, réessayez plus tard (%w)", err)}
		}
		return "", &ErrService{Err: err}
	}

	text, _ := out.(string)
	return text, nil
}

// newCircuitBreaker trips after repeated failures so queued documents fail fast while the service is down.
func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}
