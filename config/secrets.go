package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Parameter Store names read in prod.
const (
	paramDBHost            = "PAPERTRADE_DB_HOST"
	paramDBUser            = "PAPERTRADE_DB_USER"
	paramDBPassword        = "PAPERTRADE_DB_PASSWORD"
	paramFinnhubAPIKey     = "PAPERTRADE_FINNHUB_API_KEY"
	paramFinnhubWebhookKey = "PAPERTRADE_FINNHUB_WEBHOOK_SECRET"
)

// parameterLookup is swapped in tests.
var parameterLookup = getParameters

// getParameters reads decrypted values from Parameter Store in one call. A
// name Parameter Store doesn't know is an error.
func getParameters(ctx context.Context, names ...string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	decrypt := true
	result, err := ssm.NewFromConfig(cfg).GetParameters(ctx, &ssm.GetParametersInput{
		Names:          names,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return nil, fmt.Errorf("get parameters %v: %w", names, err)
	}
	if len(result.InvalidParameters) > 0 {
		return nil, fmt.Errorf("unknown parameters %v", result.InvalidParameters)
	}

	values := make(map[string]string, len(result.Parameters))
	for _, p := range result.Parameters {
		if p.Name != nil && p.Value != nil {
			values[*p.Name] = *p.Value
		}
	}
	return values, nil
}

func lookupOne(ctx context.Context, name string) (string, error) {
	values, err := parameterLookup(ctx, name)
	if err != nil {
		return "", err
	}
	v, ok := values[name]
	if !ok || v == "" {
		return "", fmt.Errorf("parameter %s is empty", name)
	}
	return v, nil
}

// FinnhubConfig configures the Finnhub REST and WebSocket clients.
type FinnhubConfig struct {
	REST          RESTConfig `mapstructure:"rest"`
	WS            WSConfig   `mapstructure:"ws"`
	APIKey        string     `mapstructure:"api_key"`
	WebhookSecret string     `mapstructure:"webhook_secret"`
}

// Token returns the API key. In prod it comes from Parameter Store unless
// set explicitly.
func (c *FinnhubConfig) Token(ctx context.Context, env string) (string, error) {
	if env == "prod" && c.APIKey == "" {
		return lookupOne(ctx, paramFinnhubAPIKey)
	}
	return c.APIKey, nil
}

// Secret returns the webhook secret, resolved like Token.
func (c *FinnhubConfig) Secret(ctx context.Context, env string) (string, error) {
	if env == "prod" && c.WebhookSecret == "" {
		return lookupOne(ctx, paramFinnhubWebhookKey)
	}
	return c.WebhookSecret, nil
}
