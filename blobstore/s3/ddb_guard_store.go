package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/facetgo/blobstore"
)

// DDBGuardStore wraps a BlobStore and uses DynamoDB conditional writes to
// claim blob names, giving exactly-once publication across machines even on
// stores without conditional writes.
//
// A writer first claims the name in DynamoDB; only the writer whose claim
// succeeds uploads the blob. A failed upload releases the claim.
//
// Table schema:
//   - Partition key: blob_key (string) - namespace + blob name
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name facetgo-claims \
//	  --attribute-definitions AttributeName=blob_key,AttributeType=S \
//	  --key-schema AttributeName=blob_key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DDBGuardStore struct {
	inner     blobstore.BlobStore
	ddbClient DDBClient
	tableName string
	namespace string
	owner     string
	now       func() time.Time
}

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// NewDDBGuardStore creates a guarded store.
// namespace isolates claims of different buckets sharing one table, e.g.
// "s3://bucket/prefix". owner is recorded with each claim for diagnostics.
func NewDDBGuardStore(inner blobstore.BlobStore, ddbClient DDBClient, tableName, namespace, owner string) *DDBGuardStore {
	return &DDBGuardStore{
		inner:     inner,
		ddbClient: ddbClient,
		tableName: tableName,
		namespace: namespace,
		owner:     owner,
		now:       time.Now,
	}
}

func (s *DDBGuardStore) claimKey(name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"blob_key": &types.AttributeValueMemberS{Value: s.namespace + "/" + name},
	}
}

// Open opens a blob for reading.
func (s *DDBGuardStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return s.inner.Open(ctx, name)
}

// Put writes a blob without claiming it.
func (s *DDBGuardStore) Put(ctx context.Context, name string, data []byte) error {
	return s.inner.Put(ctx, name, data)
}

// PutIfAbsent claims name and uploads data if the claim succeeds.
func (s *DDBGuardStore) PutIfAbsent(ctx context.Context, name string, data []byte) error {
	item := s.claimKey(name)
	item["owner"] = &types.AttributeValueMemberS{Value: s.owner}
	item["claimed_at"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Unix(), 10)}
	item["size"] = &types.AttributeValueMemberN{Value: strconv.Itoa(len(data))}

	_, err := s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(blob_key)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s", blobstore.ErrExists, name)
		}
		return fmt.Errorf("claim %s in DynamoDB: %w", name, err)
	}

	if err := s.inner.Put(ctx, name, data); err != nil {
		if rerr := s.release(ctx, name); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// Claimed reports whether name has been claimed.
func (s *DDBGuardStore) Claimed(ctx context.Context, name string) (bool, error) {
	resp, err := s.ddbClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.claimKey(name),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("query claim %s: %w", name, err)
	}
	return len(resp.Item) > 0, nil
}

// Delete removes the blob and then its claim.
func (s *DDBGuardStore) Delete(ctx context.Context, name string) error {
	if err := s.inner.Delete(ctx, name); err != nil {
		return err
	}
	return s.release(ctx, name)
}

// List lists blobs with prefix.
func (s *DDBGuardStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *DDBGuardStore) release(ctx context.Context, name string) error {
	_, err := s.ddbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.claimKey(name),
	})
	if err != nil {
		return fmt.Errorf("release claim %s: %w", name, err)
	}
	return nil
}
