package upstreamtoken

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// tokenTTL matches the lifetime the managed platform's token-exchange
// endpoint honors for a presigned GetCallerIdentity bearer credential.
const tokenTTL = 1 * time.Hour

// bearerTokenPrefix identifies the token as a presigned-STS bearer
// credential to the receiving platform, mirroring the prefix the upstream
// Python token generator attaches before base64-encoding the presigned URL.
const bearerTokenPrefix = "bedrock-api-key-"

// BedrockProvider mints bearer tokens for the managed Converse platform by
// presigning an STS GetCallerIdentity call with the process's own
// credentials and base64url-encoding the result, the Go equivalent of
// aws_bedrock_token_generator.provide_token().
type BedrockProvider struct {
	presign *sts.PresignClient
}

func NewBedrockProvider(cfg aws.Config) *BedrockProvider {
	return &BedrockProvider{presign: sts.NewPresignClient(sts.NewFromConfig(cfg))}
}

func (p *BedrockProvider) Token(ctx context.Context) (string, time.Time, error) {
	req, err := p.presign.PresignGetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign GetCallerIdentity: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString([]byte(req.URL))

	return bearerTokenPrefix + encoded, time.Now().Add(tokenTTL), nil
}
