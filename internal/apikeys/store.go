package apikeys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrNotFound is returned by Get when no record matches the given hash.
var ErrNotFound = errors.New("api key not found")

// ErrConditionFailed is returned by ConditionalRevoke when the record is
// absent, owned by a different user, or already revoked.
var ErrConditionFailed = errors.New("condition failed")

// userSubIndex is the name of the table's secondary index on user_sub.
const userSubIndex = "user_sub-index"

// Store wraps the DynamoDB table backing API-key records.
type Store struct {
	client *dynamodb.Client
	table  string
}

func NewStore(cfg aws.Config, table string) *Store {
	return &Store{client: dynamodb.NewFromConfig(cfg), table: table}
}

// Get looks up a record by its primary key.
func (s *Store) Get(ctx context.Context, keyHash string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"key_hash": &types.AttributeValueMemberS{Value: keyHash},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}

	if out.Item == nil {
		return nil, ErrNotFound
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal api key: %w", err)
	}

	return &rec, nil
}

// QueryByUser returns every record owned by user_sub via the secondary index.
func (s *Store) QueryByUser(ctx context.Context, userSub string) ([]Record, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(userSubIndex),
		KeyConditionExpression: aws.String("user_sub = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userSub},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query api keys by user: %w", err)
	}

	recs := make([]Record, 0, len(out.Items))
	for _, item := range out.Items {
		var rec Record
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal api key: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

// Put inserts a new record.
func (s *Store) Put(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal api key: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put api key: %w", err)
	}

	return nil
}

// ConditionalRevoke sets status=revoked, revoked_at=now, conditional on the
// record existing, belonging to userSub, and currently active. This
// prevents cross-user revocation even when the hash is somehow known, and
// makes a double-revoke observable as ErrConditionFailed.
func (s *Store) ConditionalRevoke(ctx context.Context, keyHash, userSub string, now time.Time) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"key_hash": &types.AttributeValueMemberS{Value: keyHash},
		},
		ConditionExpression: aws.String("user_sub = :u AND #status = :active"),
		UpdateExpression:    aws.String("SET #status = :revoked, revoked_at = :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u":       &types.AttributeValueMemberS{Value: userSub},
			":active":  &types.AttributeValueMemberS{Value: StatusActive},
			":revoked": &types.AttributeValueMemberS{Value: StatusRevoked},
			":now":     &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConditionFailed
		}
		return fmt.Errorf("revoke api key: %w", err)
	}

	return nil
}

// TouchLastUsed is a bare unconditional update of last_used_at, used by the
// authenticator's fire-and-forget update after a successful validation.
func (s *Store) TouchLastUsed(ctx context.Context, keyHash string, now time.Time) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"key_hash": &types.AttributeValueMemberS{Value: keyHash},
		},
		UpdateExpression: aws.String("SET last_used_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("touch last_used_at: %w", err)
	}

	return nil
}
