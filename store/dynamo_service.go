package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the store calls
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var errItemNotFound = errors.New("item not found")

// DynamoService wraps the raw client with marshalling and error mapping
type DynamoService struct {
	Client DynamoAPI
}

// NewDynamoClient loads the default AWS config. A non-empty endpoint points
// the client at DynamoDB Local.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// PutItem marshals item and writes it unconditionally
func (ds *DynamoService) PutItem(ctx context.Context, tableName string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item for '%s': %w", tableName, err)
	}
	if _, err := ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	}); err != nil {
		return unavailable(fmt.Sprintf("put item in '%s'", tableName), err)
	}
	return nil
}

// PutItemIfAbsent writes item only when no row with the same key exists.
// inserted reports whether this call wrote it; when false, existing holds the
// stored row.
func (ds *DynamoService) PutItemIfAbsent(ctx context.Context, tableName string, item any) (existing map[string]types.AttributeValue, inserted bool, err error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, false, fmt.Errorf("marshal item for '%s': %w", tableName, err)
	}
	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                           aws.String(tableName),
		Item:                                av,
		ConditionExpression:                 aws.String("attribute_not_exists(PK)"),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil, true, nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf.Item, false, nil
	}
	return nil, false, unavailable(fmt.Sprintf("conditional put in '%s'", tableName), err)
}

// GetItem reads one row by key; errItemNotFound when absent
func (ds *DynamoService) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue, out any) error {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return unavailable(fmt.Sprintf("get item from '%s'", tableName), err)
	}
	if output.Item == nil {
		return errItemNotFound
	}
	if err := attributevalue.UnmarshalMap(output.Item, out); err != nil {
		return fmt.Errorf("unmarshal item from '%s': %w", tableName, err)
	}
	return nil
}

// QueryAll runs a query to completion across pages and unmarshals into out
func (ds *DynamoService) QueryAll(ctx context.Context, input *dynamodb.QueryInput, out any) error {
	var items []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(ds.Client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return unavailable(fmt.Sprintf("query '%s'", aws.ToString(input.TableName)), err)
		}
		items = append(items, page.Items...)
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("unmarshal query result: %w", err)
	}
	return nil
}

// UpdateItem runs an update and unmarshals the ALL_NEW image into out.
// A failed condition surfaces as errItemNotFound.
func (ds *DynamoService) UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, out any) error {
	input.ReturnValues = types.ReturnValueAllNew
	output, err := ds.Client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return errItemNotFound
		}
		return unavailable(fmt.Sprintf("update item in '%s'", aws.ToString(input.TableName)), err)
	}
	if out == nil {
		return nil
	}
	if err := attributevalue.UnmarshalMap(output.Attributes, out); err != nil {
		return fmt.Errorf("unmarshal updated item: %w", err)
	}
	return nil
}

// TransactWrite executes items atomically. On cancellation it returns the
// index of the first item whose condition failed, or -1.
func (ds *DynamoService) TransactWrite(ctx context.Context, items []types.TransactWriteItem) (int, error) {
	_, err := ds.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return -1, nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return i, err
			}
		}
	}
	return -1, unavailable("transact write", err)
}

// CreateTable creates a pay-per-request table keyed by PK/SK (SK optional),
// ignoring tables that already exist
func (ds *DynamoService) CreateTable(ctx context.Context, tableName string, withSort bool, gsis ...types.GlobalSecondaryIndex) error {
	attrs := []types.AttributeDefinition{{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS}}
	schema := []types.KeySchemaElement{{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash}}
	if withSort {
		attrs = append(attrs, types.AttributeDefinition{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS})
		schema = append(schema, types.KeySchemaElement{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange})
	}
	for _, gsi := range gsis {
		for _, k := range gsi.KeySchema {
			attrs = append(attrs, types.AttributeDefinition{AttributeName: k.AttributeName, AttributeType: types.ScalarAttributeTypeS})
		}
	}

	in := &dynamodb.CreateTableInput{
		TableName:            aws.String(tableName),
		AttributeDefinitions: attrs,
		KeySchema:            schema,
		BillingMode:          types.BillingModePayPerRequest,
	}
	if len(gsis) > 0 {
		in.GlobalSecondaryIndexes = gsis
	}
	_, err := ds.Client.CreateTable(ctx, in)
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table '%s': %w", tableName, err)
	}
	return nil
}
