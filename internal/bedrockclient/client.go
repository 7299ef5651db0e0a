// Package bedrockclient wraps the Bedrock runtime SDK client with the
// timeout and retry posture the original router process used for its
// boto3 client: a long read timeout (the platform may hold a request open
// for extended generations), a short connect timeout, and a bounded retry
// count. Authentication goes through a bearer token minted by the upstream
// token cache rather than SigV4 request signing, mirroring the
// aws_bedrock_token_generator-based client the original process built.
package bedrockclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsretry "github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	btypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/aws-samples/bedrock-chat-router/internal/translator"
	"github.com/aws-samples/bedrock-chat-router/internal/upstreamtoken"
)

const (
	readTimeout    = 900 * time.Second
	connectTimeout = 10 * time.Second
	maxAttempts    = 3
)

// Client invokes the Converse API.
type Client struct {
	sdk *bedrockruntime.Client
}

func New(cfg aws.Config, tokens *upstreamtoken.Cache) *Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	httpClient := &http.Client{
		Timeout: readTimeout,
		Transport: &http.Transport{
			DialContext: dialer.DialContext,
		},
	}

	sdk := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.HTTPClient = httpClient
		o.Credentials = aws.AnonymousCredentials{}
		o.Retryer = awsretry.NewStandard(func(ro *awsretry.StandardOptions) {
			ro.MaxAttempts = maxAttempts
		})
		o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
			return stack.Finalize.Add(&bearerTokenMiddleware{tokens: tokens}, middleware.Before)
		})
	})

	return &Client{sdk: sdk}
}

// bearerTokenMiddleware sets the Authorization header from the upstream
// token cache on every outgoing Converse/ConverseStream request, replacing
// the SDK's own SigV4 signing (disabled via AnonymousCredentials above).
type bearerTokenMiddleware struct {
	tokens *upstreamtoken.Cache
}

func (*bearerTokenMiddleware) ID() string { return "BearerTokenAuth" }

func (m *bearerTokenMiddleware) HandleFinalize(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
	req, ok := in.Request.(*smithyhttp.Request)
	if !ok {
		return middleware.FinalizeOutput{}, middleware.Metadata{}, fmt.Errorf("unexpected transport type %T", in.Request)
	}

	token, err := m.tokens.Get(ctx)
	if err != nil {
		return middleware.FinalizeOutput{}, middleware.Metadata{}, fmt.Errorf("acquire upstream token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)

	return next.HandleFinalize(ctx, in)
}

// Converse performs the unary invocation.
func (c *Client) Converse(ctx context.Context, req *translator.ConverseRequest) (btypes.ConverseOutput, *btypes.TokenUsage, btypes.StopReason, error) {
	out, err := c.sdk.Converse(ctx, req.ToConverseInput())
	if err != nil {
		return nil, nil, "", err
	}

	return out.Output, out.Usage, out.StopReason, nil
}

// ConverseStream opens the streaming invocation and returns its event
// stream reader. The caller is responsible for closing it.
func (c *Client) ConverseStream(ctx context.Context, req *translator.ConverseRequest) (*bedrockruntime.ConverseStreamEventStream, error) {
	out, err := c.sdk.ConverseStream(ctx, req.ToConverseStreamInput())
	if err != nil {
		return nil, err
	}

	return out.GetStream(), nil
}
