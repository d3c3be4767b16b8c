package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/haytac/neighbourhood-emoji/internal/config"
	"github.com/haytac/neighbourhood-emoji/pkg/interfaces"
)

// DefaultValidationTarget answers 204 to any working connection.
const DefaultValidationTarget = "https://www.google.com/generate_204"

// DefaultProxyValidator implements ProxyValidator.
type DefaultProxyValidator struct {
	clientFactory interfaces.HTTPClientFactory
	timeout       time.Duration
}

// NewDefaultProxyValidator creates a new validator.
func NewDefaultProxyValidator(factory interfaces.HTTPClientFactory) *DefaultProxyValidator {
	return &DefaultProxyValidator{clientFactory: factory, timeout: 15 * time.Second}
}

// Validate checks that p can reach targetURL with a 2xx response.
func (v *DefaultProxyValidator) Validate(ctx context.Context, p *config.Proxy, targetURL string) error {
	if targetURL == "" {
		targetURL = DefaultValidationTarget
	}

	client, err := v.clientFactory.GetClient(p)
	if err != nil {
		return fmt.Errorf("proxy %s (%s): failed to get HTTP client: %w", p.Name, p.Address, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		return fmt.Errorf("proxy %s (%s): failed to create request to %s: %w", p.Name, p.Address, targetURL, err)
	}
	req.Header.Set("User-Agent", "NeighbourhoodEmojiProxyValidator/1.0")

	log.Debug().Str("proxy_name", p.Name).Str("proxy_address", p.Address).Str("target_url", targetURL).Msg("Attempting to validate proxy")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("proxy %s (%s): connection test to %s failed: %w", p.Name, p.Address, targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Info().Str("proxy_name", p.Name).Int("status_code", resp.StatusCode).Msg("Proxy validation successful")
		return nil
	}
	return fmt.Errorf("proxy %s (%s): connection test to %s returned status %d", p.Name, p.Address, targetURL, resp.StatusCode)
}
