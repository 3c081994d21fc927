/*
Package dynamo provides a DynamoDB-backed implementation of docstore.Store.

PURPOSE:
  Persists documents in a single table with the collection name as the
  partition key and the document id as the sort key. The document body is
  a DynamoDB map attribute; a Rev counter per item drives optimistic
  concurrency.

INTERFACES IMPLEMENTED:
  docstore.Store:   Per-collection CRUD and querying
  docstore.TxStore: Atomic multi-document transactions

TRANSACTIONS:
  RunTransaction stages reads and writes against a view and commits them
  with a single TransactWriteItems call. Every item read inside the
  transaction carries a condition on its Rev at read time (a
  ConditionCheck when it wasn't also written), so a concurrent writer
  cancels the transaction and the caller sees docstore.ErrConflict.

LIMITS:
  Query() filters in Go after fetching the collection partition; a
  FilterExpression push-down is the obvious next step for large
  partitions. Query inside RunTransaction does not overlay staged writes.
  Subscriptions are unsupported (DynamoDB Streams would back them).

SEE ALSO:
  - docstore/docstore.go: Interface definitions
  - store/sqlite/sqlite.go: SQL-backed sibling implementation
*/
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/finvault/wallet-engine/docstore"
)

// Config holds the settings for a DynamoDB store.
type Config struct {
	Region    string
	TableName string
	Endpoint  string // e.g. for DynamoDB Local
}

// dynamoAPI is the slice of the DynamoDB client this store uses. Narrowing
// to an interface keeps the transaction logic testable with a fake client.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements docstore.Store and docstore.TxStore on DynamoDB.
type Store struct {
	client    dynamoAPI
	tableName string
}

// item is the persisted shape of one document.
type item struct {
	Collection string         `dynamodbav:"Collection"`
	ID         string         `dynamodbav:"ID"`
	Rev        int64          `dynamodbav:"Rev"`
	Body       map[string]any `dynamodbav:"Body"`
}

// New creates a DynamoDB store for the given table.
func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Store{client: client, tableName: cfg.TableName}, nil
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	it, err := s.getItem(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return it.Body, nil
}

func (s *Store) Create(ctx context.Context, collection string, doc docstore.Doc) (string, error) {
	id := uuid.NewString()
	put, err := attributevalue.MarshalMap(item{
		Collection: collection,
		ID:         id,
		Rev:        1,
		Body:       doc,
	})
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                put,
		ConditionExpression: aws.String("attribute_not_exists(ID)"),
	})
	if err != nil {
		return "", mapConflict(err)
	}
	return id, nil
}

// Set merges fields into the stored document with a compare-and-swap on the
// item's Rev. A racing writer surfaces as docstore.ErrConflict.
func (s *Store) Set(ctx context.Context, collection, id string, fields docstore.Doc) error {
	existing, err := s.getItem(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		existing = item{Collection: collection, ID: id, Body: docstore.Doc{}}
	} else if err != nil {
		return err
	}

	merged := make(docstore.Doc, len(existing.Body)+len(fields))
	for k, v := range existing.Body {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return s.putWithRev(ctx, collection, id, merged, existing.Rev)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	key, err := itemKey(collection, id)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       key,
	})
	return err
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	var matched []docstore.Snapshot

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("#c = :collection"),
		ExpressionAttributeNames: map[string]string{
			"#c": "Collection",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":collection": &types.AttributeValueMemberS{Value: collection},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying collection %s: %w", collection, err)
		}
		for _, raw := range page.Items {
			var it item
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, fmt.Errorf("decoding document: %w", err)
			}
			if q.Matches(it.Body) {
				matched = append(matched, docstore.Snapshot{ID: it.ID, Data: it.Body})
			}
		}
	}

	sortSnapshots(matched, q)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func sortSnapshots(snaps []docstore.Snapshot, q docstore.Query) {
	if q.OrderBy == "" {
		return
	}
	for i := 1; i < len(snaps); i++ {
		for j := i; j > 0; j-- {
			cmp, ok := docstore.Compare(snaps[j-1].Data[q.OrderBy], snaps[j].Data[q.OrderBy])
			if !ok {
				break
			}
			if (q.Desc && cmp >= 0) || (!q.Desc && cmp <= 0) {
				break
			}
			snaps[j-1], snaps[j] = snaps[j], snaps[j-1]
		}
	}
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Store) getItem(ctx context.Context, collection, id string) (item, error) {
	key, err := itemKey(collection, id)
	if err != nil {
		return item{}, err
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return item{}, fmt.Errorf("reading document: %w", err)
	}
	if out.Item == nil {
		return item{}, docstore.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return item{}, fmt.Errorf("decoding document: %w", err)
	}
	return it, nil
}

func (s *Store) putWithRev(ctx context.Context, collection, id string, body docstore.Doc, baseRev int64) error {
	put, condition, values, err := putRequest(s.tableName, collection, id, body, baseRev)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 put.TableName,
		Item:                      put.Item,
		ConditionExpression:       condition,
		ExpressionAttributeValues: values,
	})
	return mapConflict(err)
}

func putRequest(table, collection, id string, body docstore.Doc, baseRev int64) (*types.Put, *string, map[string]types.AttributeValue, error) {
	encoded, err := attributevalue.MarshalMap(item{
		Collection: collection,
		ID:         id,
		Rev:        baseRev + 1,
		Body:       body,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding document: %w", err)
	}

	put := &types.Put{
		TableName: aws.String(table),
		Item:      encoded,
	}
	if baseRev == 0 {
		return put, aws.String("attribute_not_exists(ID)"), nil, nil
	}
	values := map[string]types.AttributeValue{
		":rev": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", baseRev)},
	}
	return put, aws.String("Rev = :rev"), values, nil
}

func itemKey(collection, id string) (map[string]types.AttributeValue, error) {
	return map[string]types.AttributeValue{
		"Collection": &types.AttributeValueMemberS{Value: collection},
		"ID":         &types.AttributeValueMemberS{Value: id},
	}, nil
}

func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return docstore.ErrConflict
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		return docstore.ErrConflict
	}
	return err
}
