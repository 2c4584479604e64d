package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aluiziolira/go-scrape-maps/models"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Dynamo keeps one item per session, keyed by session_id, with the records
// held in a list attribute.
type Dynamo struct {
	client    DynamoAPI
	tableName string
}

// dynamoItem is the stored shape of a session.
type dynamoItem struct {
	models.SessionSummary
	Results []models.BusinessRecord `dynamodbav:"results,omitempty"`
}

// OpenDynamo builds a store from the default AWS configuration chain.
func OpenDynamo(ctx context.Context, tableName string) (*Dynamo, error) {
	if tableName == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewDynamo(dynamodb.NewFromConfig(cfg), tableName), nil
}

// NewDynamo wraps an existing client.
func NewDynamo(client DynamoAPI, tableName string) *Dynamo {
	return &Dynamo{client: client, tableName: tableName}
}

func (d *Dynamo) key(sessionID string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		"session_id": &dynamodbtypes.AttributeValueMemberS{Value: sessionID},
	}
}

// sessionOptionalAttrs are the omitempty session attributes. An empty value
// removes the stored one.
var sessionOptionalAttrs = []string{"error_message", "start_time", "end_time"}

// SaveSession upserts the session attributes in one UpdateItem, so results
// written concurrently by SaveRecords are never overwritten.
func (d *Dynamo) SaveSession(ctx context.Context, s models.SessionSummary) error {
	attrs, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	delete(attrs, "session_id")

	names := make(map[string]string, len(attrs)+len(sessionOptionalAttrs))
	values := make(map[string]dynamodbtypes.AttributeValue, len(attrs))
	sets := make([]string, 0, len(attrs))
	for i, attr := range slices.Sorted(maps.Keys(attrs)) {
		name, value := fmt.Sprintf("#a%d", i), fmt.Sprintf(":a%d", i)
		names[name] = attr
		values[value] = attrs[attr]
		sets = append(sets, name+" = "+value)
	}
	expr := "SET " + strings.Join(sets, ", ")

	var removes []string
	for i, attr := range sessionOptionalAttrs {
		if _, ok := attrs[attr]; ok {
			continue
		}
		name := fmt.Sprintf("#r%d", i)
		names[name] = attr
		removes = append(removes, name)
	}
	if len(removes) > 0 {
		expr += " REMOVE " + strings.Join(removes, ", ")
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       d.key(s.SessionID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("failed to save session to DynamoDB: %w", err)
	}
	return nil
}

func (d *Dynamo) SaveRecords(ctx context.Context, sessionID string, records []models.BusinessRecord) error {
	results, err := attributevalue.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.tableName),
		Key:                 d.key(sessionID),
		UpdateExpression:    aws.String("SET results = :r"),
		ConditionExpression: aws.String("attribute_exists(session_id)"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":r": results,
		},
	})
	if err != nil {
		var failed *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to save records to DynamoDB: %w", err)
	}
	return nil
}

func (d *Dynamo) GetSession(ctx context.Context, sessionID string) (models.SessionSummary, error) {
	item, err := d.getItem(ctx, sessionID)
	if err != nil {
		return models.SessionSummary{}, err
	}
	return item.SessionSummary, nil
}

func (d *Dynamo) GetRecords(ctx context.Context, sessionID string) ([]models.BusinessRecord, error) {
	item, err := d.getItem(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if item.Results == nil {
		return []models.BusinessRecord{}, nil
	}
	return item.Results, nil
}

func (d *Dynamo) ListSessions(ctx context.Context) ([]models.SessionSummary, error) {
	var (
		out              []models.SessionSummary
		lastEvaluatedKey map[string]dynamodbtypes.AttributeValue
	)
	for {
		input := &dynamodb.ScanInput{
			TableName:            aws.String(d.tableName),
			ProjectionExpression: aws.String("session_id, keywords, #loc, max_results, #st, completed, #tot, record_count, error_message, created_at, start_time, end_time"),
			ExpressionAttributeNames: map[string]string{
				"#loc": "location",
				"#st":  "status",
				"#tot": "total",
			},
		}
		if lastEvaluatedKey != nil {
			input.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := d.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sessions: %w", err)
		}
		for _, raw := range result.Items {
			var s models.SessionSummary
			if err := attributevalue.UnmarshalMap(raw, &s); err != nil {
				slog.Warn("skipping unreadable session item", slog.Any("error", err))
				continue
			}
			out = append(out, s)
		}

		lastEvaluatedKey = result.LastEvaluatedKey
		if lastEvaluatedKey == nil {
			break
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (d *Dynamo) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(d.tableName),
		Key:                 d.key(sessionID),
		ConditionExpression: aws.String("attribute_exists(session_id)"),
	})
	if err != nil {
		var failed *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (d *Dynamo) Close() error { return nil }

func (d *Dynamo) getItem(ctx context.Context, sessionID string) (dynamoItem, error) {
	input := &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.key(sessionID),
		ConsistentRead: aws.Bool(true),
	}
	result, err := d.client.GetItem(ctx, input)
	if err != nil {
		return dynamoItem{}, fmt.Errorf("failed to get session: %w", err)
	}
	if result.Item == nil {
		return dynamoItem{}, ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return dynamoItem{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return item, nil
}
