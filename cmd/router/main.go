package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/aws-samples/bedrock-chat-router/internal/apikeys"
	"github.com/aws-samples/bedrock-chat-router/internal/bedrockclient"
	"github.com/aws-samples/bedrock-chat-router/internal/config"
	"github.com/aws-samples/bedrock-chat-router/internal/dispatcher"
	"github.com/aws-samples/bedrock-chat-router/internal/distribution"
	"github.com/aws-samples/bedrock-chat-router/internal/openaiproxy"
	"github.com/aws-samples/bedrock-chat-router/internal/revoke"
	"github.com/aws-samples/bedrock-chat-router/internal/server"
	"github.com/aws-samples/bedrock-chat-router/internal/upstreamtoken"
	"github.com/aws-samples/bedrock-chat-router/internal/versionpolicy"
)

var (
	name    = "bedrock-chat-router"
	version = "v0.0.0"
)

func main() {
	config.Service = name
	config.Version = version

	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return fmt.Errorf("failed to load aws config: %w", err)
	}

	tokens := upstreamtoken.NewCache(upstreamtoken.NewBedrockProvider(awsCfg))

	bedrock := bedrockclient.New(awsCfg, tokens)

	openaiBackend, err := openaiproxy.New(cfg.UpstreamURL, tokens)
	if err != nil {
		return fmt.Errorf("failed to create openai backend: %w", err)
	}

	aliasOverrides, err := cfg.ParsedAliasMap()
	if err != nil {
		return fmt.Errorf("failed to parse model alias map: %w", err)
	}
	aliases := dispatcher.NewAliasMap(aliasOverrides)

	disp := dispatcher.New(bedrock, openaiBackend, aliases)

	apiKeyStore := apikeys.NewStore(awsCfg, cfg.APIKeysTableName)
	apiKeyCache := apikeys.NewCache()

	distStore := distribution.New(awsCfg, cfg.DistributionBucket)

	versionCache := versionpolicy.NewCache(cfg.VersionManifestURL)

	revoker, err := revoke.New(cfg.Alan)
	if err != nil {
		return fmt.Errorf("failed to create revoke broadcaster: %w", err)
	}

	srv, err := server.New(ctx, cfg.Server, server.Deps{
		Dispatcher:         disp,
		Aliases:            aliases,
		APIKeyStore:        apiKeyStore,
		APIKeyCache:        apiKeyCache,
		UpstreamTokens:     tokens,
		Distribution:       distStore,
		VersionPolicy:      versionCache,
		Revoker:            revoker,
		DistributionDomain: cfg.DistributionDomain,
	})
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	return srv.Start(ctx)
}
