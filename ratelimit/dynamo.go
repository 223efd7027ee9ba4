package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// allowCondition admits a put when the key is new or its window has closed.
const allowCondition = "attribute_not_exists(pk) OR windowEndsAt <= :now"

// DynamoAPI is the subset of the DynamoDB client the limiter calls.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

var _ Limiter = (*DynamoLimiter)(nil)

// LimitItem is the row written per key. ttl lets DynamoDB expire stale rows.
type LimitItem struct {
	PK           string `dynamodbav:"pk"`
	WindowEndsAt int64  `dynamodbav:"windowEndsAt"` // unix milliseconds
	TTL          int64  `dynamodbav:"ttl"`          // unix seconds
}

// DynamoLimiter shares the window across instances with a conditional put.
type DynamoLimiter struct {
	api    DynamoAPI
	table  string
	window time.Duration
	now    func() time.Time
}

func NewDynamoLimiter(api DynamoAPI, table string, window time.Duration) *DynamoLimiter {
	return &DynamoLimiter{
		api:    api,
		table:  table,
		window: window,
		now:    time.Now,
	}
}

// NewDynamoLimiterFromConfig builds the DynamoDB client from the default AWS credential chain.
func NewDynamoLimiterFromConfig(ctx context.Context, region, table string, window time.Duration) (*DynamoLimiter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewDynamoLimiter(dynamodb.NewFromConfig(awsCfg), table, window), nil
}

func (l *DynamoLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	ends := now.Add(l.window)

	item, err := attributevalue.MarshalMap(LimitItem{
		PK:           key,
		WindowEndsAt: ends.UnixMilli(),
		TTL:          ends.Add(time.Hour).Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal rate limit item: %w", err)
	}
	values, err := attributevalue.MarshalMap(map[string]int64{":now": now.UnixMilli()})
	if err != nil {
		return false, fmt.Errorf("marshal rate limit condition: %w", err)
	}

	_, err = l.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(l.table),
		Item:                      item,
		ConditionExpression:       aws.String(allowCondition),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("dynamodb rate limit: %w", err)
	}
	return true, nil
}
