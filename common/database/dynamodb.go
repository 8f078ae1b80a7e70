package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/burakmert236/volei-list/common/config"
)

type DynamoDBClient struct {
	Client    *dynamodb.Client
	TableName string
}

func NewDynamoDBClient(ctx context.Context, cfg *config.Config) (*DynamoDBClient, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.UseLocalEndpoint {
		// Local DynamoDB for development
		accessKey, secretKey := cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey
		if accessKey == "" {
			accessKey, secretKey = "dummy", "dummy"
		}
		awsCfg, err = aws_config.LoadDefaultConfig(ctx,
			aws_config.WithRegion(cfg.AWS.Region),
			aws_config.WithBaseEndpoint(cfg.AWS.Endpoint),
			aws_config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
			),
		)
	} else {
		// Production AWS
		awsCfg, err = aws_config.LoadDefaultConfig(ctx,
			aws_config.WithRegion(cfg.AWS.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.RetryMaxAttempts = cfg.DynamoDB.MaxRetries
	})

	return &DynamoDBClient{
		Client:    client,
		TableName: cfg.DynamoDB.TableName,
	}, nil
}

// Helper method to get table name
func (c *DynamoDBClient) Table() string {
	return c.TableName
}

// EnsureTable creates the single PK/SK table when it does not exist yet.
func (c *DynamoDBClient) EnsureTable(ctx context.Context) error {
	_, err := c.Client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.Table()),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("failed to create table %s: %w", c.Table(), err)
	}

	waiter := dynamodb.NewTableExistsWaiter(c.Client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.Table())}, tableWaitTimeout); err != nil {
		return fmt.Errorf("failed waiting for table %s: %w", c.Table(), err)
	}

	return nil
}

func (c *DynamoDBClient) Ping(ctx context.Context) error {
	_, err := c.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.Table()),
	})
	if err != nil {
		return fmt.Errorf("failed to describe table %s: %w", c.Table(), err)
	}
	return nil
}
