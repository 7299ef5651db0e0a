// Package server wires the HTTP surface: middleware pipeline, routes, and
// the handlers that sit behind them.
package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/rakunlabs/ada"

	mcors "github.com/rakunlabs/ada/middleware/cors"
	mlog "github.com/rakunlabs/ada/middleware/log"
	mrecover "github.com/rakunlabs/ada/middleware/recover"
	mrequestid "github.com/rakunlabs/ada/middleware/requestid"
	mserver "github.com/rakunlabs/ada/middleware/server"
	mtelemetry "github.com/rakunlabs/ada/middleware/telemetry"

	"github.com/aws-samples/bedrock-chat-router/internal/apikeys"
	"github.com/aws-samples/bedrock-chat-router/internal/config"
	"github.com/aws-samples/bedrock-chat-router/internal/dispatcher"
	"github.com/aws-samples/bedrock-chat-router/internal/distribution"
	"github.com/aws-samples/bedrock-chat-router/internal/middleware"
	"github.com/aws-samples/bedrock-chat-router/internal/revoke"
	"github.com/aws-samples/bedrock-chat-router/internal/upstreamtoken"
	"github.com/aws-samples/bedrock-chat-router/internal/versionpolicy"
)

type Server struct {
	config config.Server
	server *ada.Server

	dispatcher     *dispatcher.Dispatcher
	aliases        *dispatcher.AliasMap
	apiKeyStore    *apikeys.Store
	apiKeyCache    *apikeys.Cache
	upstreamTokens *upstreamtoken.Cache
	distribution   *distribution.Store
	versionPolicy  *versionpolicy.Cache
	revoker        *revoke.Broadcaster
}

// Deps holds every process-wide collaborator the server's routes dispatch
// to. Each is constructed once at startup and shared across requests.
type Deps struct {
	Dispatcher         *dispatcher.Dispatcher
	Aliases            *dispatcher.AliasMap
	APIKeyStore        *apikeys.Store
	APIKeyCache        *apikeys.Cache
	UpstreamTokens     *upstreamtoken.Cache
	Distribution       *distribution.Store
	VersionPolicy      *versionpolicy.Cache
	Revoker            *revoke.Broadcaster
	DistributionDomain string
}

func New(ctx context.Context, cfg config.Server, deps Deps) (*Server, error) {
	mux := ada.New()
	mux.Use(
		mrecover.Middleware(),
		mserver.Middleware(config.Service),
		mcors.Middleware(),
		mrequestid.Middleware(),
		mtelemetry.Middleware(),
		middleware.VersionGate(deps.VersionPolicy, deps.DistributionDomain),
		middleware.Authenticate(deps.APIKeyStore, deps.APIKeyCache),
		mlog.Middleware(),
	)

	s := &Server{
		config:         cfg,
		server:         mux,
		dispatcher:     deps.Dispatcher,
		aliases:        deps.Aliases,
		apiKeyStore:    deps.APIKeyStore,
		apiKeyCache:    deps.APIKeyCache,
		upstreamTokens: deps.UpstreamTokens,
		distribution:   deps.Distribution,
		versionPolicy:  deps.VersionPolicy,
		revoker:        deps.Revoker,
	}

	// Periodic sweep of expired API-key validation cache entries.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.apiKeyCache.Sweep()
			}
		}
	}()

	if deps.Revoker != nil {
		go func() {
			if err := deps.Revoker.Start(ctx, s.apiKeyCache.Evict); err != nil {
				slog.Error("revoke broadcaster stopped", "error", err)
			}
		}()
	}

	mux.GET("/health", s.Health)
	mux.GET("/ready", s.Ready)

	group := mux.Group(cfg.BasePath)
	group.GET("/v1/models", s.ListModels)
	group.POST("/v1/chat/completions", s.ChatCompletions)

	group.POST("/v1/api-keys", s.CreateAPIKey)
	group.GET("/v1/api-keys", s.ListAPIKeys)
	group.DELETE("/v1/api-keys/{key_prefix}", s.RevokeAPIKey)

	group.GET("/v1/update/download-url", s.DownloadURL)
	group.GET("/v1/update/config", s.UpdateConfig)

	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	return s.server.StartWithContext(ctx, net.JoinHostPort(s.config.Host, s.config.Port))
}
