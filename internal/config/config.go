package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rakunlabs/alan"
	_ "github.com/rakunlabs/chu/loader/external/loaderconsul"
	_ "github.com/rakunlabs/chu/loader/external/loadervault"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/chu"
	"github.com/rakunlabs/tell"
)

// Service is the process-wide service name, set at build time via ldflags
// and surfaced in the "server" middleware and /health response.
var Service = "bedrock-chat-router"

// Version is the process-wide service version, set at build time via
// ldflags and surfaced in the /health response.
var Version = "dev"

type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	Server Server `cfg:"server"`

	// UpstreamURL is the base URL of the OpenAI-compatible upstream used
	// for every non-Anthropic-family model.
	UpstreamURL string `cfg:"upstream_url"`

	// ModelAliasMap overrides the built-in alias table at process start.
	// Supplied as a JSON object mapping short alias to canonical upstream id,
	// e.g. {"claude-opus":"us.anthropic.claude-opus-4-6-v1"}.
	ModelAliasMap string `cfg:"model_alias_map"`

	// APIKeysTableName is the DynamoDB table backing the API-key store.
	APIKeysTableName string `cfg:"api_keys_table_name" default:"bedrock-router-api-keys"`

	// DistributionBucket is the S3 bucket holding installer artifacts for
	// the self-update endpoint.
	DistributionBucket string `cfg:"distribution_bucket"`

	// DistributionDomain, if set, is embedded in the version-gate's
	// rejection message as a download origin.
	DistributionDomain string `cfg:"distribution_domain"`

	// Region is the AWS region used to construct every AWS SDK client
	// (Bedrock runtime, DynamoDB, STS, S3).
	Region string `cfg:"region" default:"us-east-1"`

	// VersionManifestURL, if set, points to a JSON document of shape
	// {"minimum": "<semver>"} the version gate polls for the minimum
	// supported client version. Empty disables the gate (fail-open).
	VersionManifestURL string `cfg:"version_manifest_url"`

	Telemetry tell.Config `cfg:"telemetry,noprefix"`

	// Alan, if set, enables UDP peer discovery so API-key revocations are
	// broadcast to sibling processes instead of relying solely on the
	// validation cache's TTL to converge.
	Alan *alan.Config `cfg:"alan"`
}

type Server struct {
	BasePath string `cfg:"base_path"`

	Port string `cfg:"port" default:"8080"`
	Host string `cfg:"host"`
}

// ParsedAliasMap unmarshals ModelAliasMap, returning nil (not an error) when
// it is empty so callers fall back to the built-in defaults.
func (c *Config) ParsedAliasMap() (map[string]string, error) {
	if c.ModelAliasMap == "" {
		return nil, nil
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(c.ModelAliasMap), &m); err != nil {
		return nil, fmt.Errorf("parse model_alias_map: %w", err)
	}

	return m, nil
}

func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, path, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("ROUTER_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}
