package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"translator-bot/internal/domain"
)

const (
	skClaim       = "CLAIM#"
	skTranslation = "TRANSLATION#"

	claimTTL       = 24 * time.Hour
	translationTTL = 30 * 24 * time.Hour

	claimCondition = "attribute_not_exists(PK) AND attribute_not_exists(SK)"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client wraps the state table shared by every function instance.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// msgPK returns the partition key for a transport message id.
func msgPK(messageID string) string {
	return "MSG#" + messageID
}

func (c *Client) ttlValue(d time.Duration) int64 {
	return c.now().Add(d).Unix()
}

// ClaimMessage records messageID as taken. It reports false when another
// instance claimed it first.
func (c *Client) ClaimMessage(ctx context.Context, messageID string) (bool, error) {
	if strings.TrimSpace(messageID) == "" {
		return false, errors.New("repository: ClaimMessage: message id is required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: msgPK(messageID)},
			"SK":        &types.AttributeValueMemberS{Value: skClaim},
			"claimedAt": &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339Nano)},
			"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(c.ttlValue(claimTTL), 10)},
		},
		ConditionExpression: aws.String(claimCondition),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return false, fmt.Errorf("repository: ClaimMessage: %w", err)
	}
	return true, nil
}

// RecordTranslation stores the outcome of an answered message.
func (c *Client) RecordTranslation(ctx context.Context, rec domain.TranslationRecord) error {
	if strings.TrimSpace(rec.MessageID) == "" {
		return errors.New("repository: RecordTranslation: message id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.now()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      translationItem(rec, c.ttlValue(translationTTL)),
	})
	if err != nil {
		return fmt.Errorf("repository: RecordTranslation: %w", err)
	}
	return nil
}

func translationItem(rec domain.TranslationRecord, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: msgPK(rec.MessageID)},
		"SK":             &types.AttributeValueMemberS{Value: skTranslation},
		"senderId":       &types.AttributeValueMemberS{Value: rec.SenderID},
		"conversationId": &types.AttributeValueMemberS{Value: rec.ConversationID},
		"sourceLang":     &types.AttributeValueMemberS{Value: string(rec.SourceLang)},
		"targetLang":     &types.AttributeValueMemberS{Value: string(rec.TargetLang)},
		"text":           &types.AttributeValueMemberS{Value: rec.Text},
		"translation":    &types.AttributeValueMemberS{Value: rec.Translation},
		"fromCache":      &types.AttributeValueMemberBOOL{Value: rec.FromCache},
		"createdAt":      &types.AttributeValueMemberS{Value: rec.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}
