package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stocklaabh/verify-api/internal/domain"
)

// Store is a DynamoDB-backed CodeStore.
// PK: identifier, SK: channel, expires_at doubles as the table TTL.
type Store struct {
	client    *dynamodb.Client
	tableName string
}

func NewStore(client *dynamodb.Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Put overwrites any outstanding code for the same (identifier, channel).
func (s *Store) Put(ctx context.Context, code *domain.VerificationCode) error {
	item, err := attributevalue.MarshalMap(code)
	if err != nil {
		return fmt.Errorf("marshal verification code: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

// Get returns the current code for the key. Entries past expiry are treated
// as absent even before the table TTL reaps them (TTL deletion lags by up to
// 48 hours).
func (s *Store) Get(ctx context.Context, identifier string, ch domain.Channel) (*domain.VerificationCode, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       codeKey(identifier, ch),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	var code domain.VerificationCode
	if err := attributevalue.UnmarshalMap(out.Item, &code); err != nil {
		return nil, err
	}
	if code.Expired(time.Now()) {
		s.delete(ctx, identifier, ch, code.CodeHash)
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	return &code, nil
}

// Consume validates and, on a match, deletes the entry with a conditional
// DeleteItem on the stored hash. The condition makes the read-compare-delete
// race-free: if a resend replaced the code between our read and the delete,
// the condition fails and the attempt resolves to not-found.
func (s *Store) Consume(ctx context.Context, identifier string, ch domain.Channel, submitted string) (domain.ConsumeResult, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       codeKey(identifier, ch),
	})
	if err != nil {
		return domain.ConsumeNotFound, err
	}
	if out.Item == nil {
		return domain.ConsumeNotFound, nil
	}
	var code domain.VerificationCode
	if err := attributevalue.UnmarshalMap(out.Item, &code); err != nil {
		return domain.ConsumeNotFound, err
	}
	if code.Expired(time.Now()) {
		s.delete(ctx, identifier, ch, code.CodeHash)
		return domain.ConsumeExpired, nil
	}
	if !code.Matches(submitted) {
		return domain.ConsumeInvalidCode, nil
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 codeKey(identifier, ch),
		ConditionExpression: aws.String("code_hash = :h"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":h": &types.AttributeValueMemberS{Value: code.CodeHash},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ConsumeNotFound, nil
		}
		return domain.ConsumeNotFound, err
	}
	return domain.ConsumeValid, nil
}

// delete removes the entry only while it still holds the given hash, so a
// lazy-expiry cleanup can never wipe out a code issued by a concurrent resend.
func (s *Store) delete(ctx context.Context, identifier string, ch domain.Channel, hash string) {
	_, _ = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 codeKey(identifier, ch),
		ConditionExpression: aws.String("code_hash = :h"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":h": &types.AttributeValueMemberS{Value: hash},
		},
	})
}

// codeKey builds the composite primary key for a verification code item.
func codeKey(identifier string, ch domain.Channel) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"identifier": &types.AttributeValueMemberS{Value: identifier},
		"channel":    &types.AttributeValueMemberS{Value: string(ch)},
	}
}
