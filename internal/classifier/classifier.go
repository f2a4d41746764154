// Package classifier sends vehicle images to a vision model and returns the
// model's raw response text.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

// Classifier produces a raw classification response for one image.
type Classifier interface {
	Classify(ctx context.Context, imagePath string) (string, error)
}

// Options configures an Agent.
type Options struct {
	Labels       []string
	Instructions string
	MaxImageSize int64
	Timeout      time.Duration
}

// Agent classifies images through a go-agents vision call.
type Agent struct {
	agent   agent.Agent
	prompt  string
	maxSize int64
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Agent from a go-agents configuration. The prompt is
// composed once from opts.
func New(cfg gaconfig.AgentConfig, opts Options, logger *slog.Logger) (*Agent, error) {
	a, err := agent.New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	return &Agent{
		agent:   a,
		prompt:  ComposePrompt(opts.Labels, opts.Instructions),
		maxSize: opts.MaxImageSize,
		timeout: opts.Timeout,
		logger:  logger.With("system", "classifier"),
	}, nil
}

func (a *Agent) Classify(ctx context.Context, imagePath string) (string, error) {
	dataURL, err := EncodeDataURL(imagePath, a.maxSize)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrClassifyFailed, err)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.agent.Vision(ctx, a.prompt, []string{dataURL})
	if err != nil {
		return "", fmt.Errorf("%w: vision call: %w", ErrClassifyFailed, err)
	}

	a.logger.DebugContext(ctx, "image classified",
		"path", imagePath,
		"duration", time.Since(start),
	)
	return resp.Content(), nil
}
