// Package dynamo implements the keyed collection store on a single Amazon
// DynamoDB table.
//
// Layout: every item carries pk = "<collection>#<partition>", sk = the sort
// key (or "#" when the collection has none), col = the collection name and
// data = the JSON document. A secondary index value is stored in the
// attribute idx_<Index> as "<collection>#<value>" and served by the global
// secondary index "<Index>-index".
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"lab-management-platform/internal/store"
)

const (
	attrPK         = "pk"
	attrSK         = "sk"
	attrCollection = "col"
	attrData       = "data"
	indexPrefix    = "idx_"
	noSortKey      = "#"
	keySeparator   = "#"
)

// API is the subset of the DynamoDB client used by the store.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Config holds construction parameters.
type Config struct {
	Region           string
	Endpoint         string // optional; DynamoDB Local or LocalStack
	Table            string
	MaxTransactItems int
}

// Store implements store.Store on DynamoDB.
type Store struct {
	api      API
	table    string
	maxItems int
}

var _ store.Store = (*Store)(nil)

// NewClient builds a DynamoDB client from the default AWS credential chain.
func NewClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// New wraps an API client.
func New(api API, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("dynamodb table required")
	}
	max := cfg.MaxTransactItems
	if max <= 0 {
		max = store.DefaultMaxTransactItems
	}
	return &Store{api: api, table: cfg.Table, maxItems: max}, nil
}

func pkValue(collection, partition string) string {
	return collection + keySeparator + partition
}

func skValue(sort string) string {
	if sort == "" {
		return noSortKey
	}
	return sort
}

func keyAttributes(k store.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pkValue(k.Collection, k.Partition)},
		attrSK: &types.AttributeValueMemberS{Value: skValue(k.Sort)},
	}
}

func itemAttributes(it store.Item) map[string]types.AttributeValue {
	av := keyAttributes(it.Key)
	av[attrCollection] = &types.AttributeValueMemberS{Value: it.Key.Collection}
	av[attrData] = &types.AttributeValueMemberS{Value: string(it.Data)}
	for name, value := range it.Indexes {
		av[indexPrefix+name] = &types.AttributeValueMemberS{Value: pkValue(it.Key.Collection, value)}
	}
	return av
}

func stringAttr(av map[string]types.AttributeValue, name string) (string, bool) {
	s, ok := av[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return s.Value, true
}

func decodeItem(av map[string]types.AttributeValue) (store.Item, error) {
	collection, ok := stringAttr(av, attrCollection)
	if !ok {
		return store.Item{}, fmt.Errorf("dynamodb item missing %q attribute", attrCollection)
	}
	pk, _ := stringAttr(av, attrPK)
	sk, _ := stringAttr(av, attrSK)
	data, _ := stringAttr(av, attrData)

	it := store.Item{
		Key: store.Key{
			Collection: collection,
			Partition:  strings.TrimPrefix(pk, collection+keySeparator),
		},
		Data: []byte(data),
	}
	if sk != noSortKey {
		it.Key.Sort = sk
	}
	for name := range av {
		if !strings.HasPrefix(name, indexPrefix) {
			continue
		}
		v, _ := stringAttr(av, name)
		if it.Indexes == nil {
			it.Indexes = make(map[string]string)
		}
		it.Indexes[strings.TrimPrefix(name, indexPrefix)] = strings.TrimPrefix(v, collection+keySeparator)
	}
	return it, nil
}

func conditionExpression(c store.Condition) *string {
	switch c {
	case store.MustNotExist:
		return aws.String("attribute_not_exists(" + attrPK + ")")
	case store.MustExist:
		return aws.String("attribute_exists(" + attrPK + ")")
	default:
		return nil
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// Get returns the item at key.
func (s *Store) Get(ctx context.Context, key store.Key) (store.Item, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyAttributes(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return store.Item{}, fmt.Errorf("dynamodb get %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return store.Item{}, store.ErrItemNotFound
	}
	return decodeItem(out.Item)
}

// Put writes a single item subject to cond.
func (s *Store) Put(ctx context.Context, item store.Item, cond store.Condition) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                itemAttributes(item),
		ConditionExpression: conditionExpression(cond),
	})
	if isConditionalCheckFailed(err) {
		return store.ErrConditionFailed
	}
	if err != nil {
		return fmt.Errorf("dynamodb put %s: %w", item.Key, err)
	}
	return nil
}

// Delete removes a single item subject to cond.
func (s *Store) Delete(ctx context.Context, key store.Key, cond store.Condition) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 keyAttributes(key),
		ConditionExpression: conditionExpression(cond),
	})
	if isConditionalCheckFailed(err) {
		return store.ErrConditionFailed
	}
	if err != nil {
		return fmt.Errorf("dynamodb delete %s: %w", key, err)
	}
	return nil
}

// Query reads a partition or a secondary index. Global secondary indexes are
// eventually consistent; callers that need the latest state follow up with Get.
func (s *Store) Query(ctx context.Context, collection string, q store.Query) ([]store.Item, error) {
	in := &dynamodb.QueryInput{TableName: aws.String(s.table)}
	if q.Index == "" {
		in.KeyConditionExpression = aws.String("#k = :v")
		in.ExpressionAttributeNames = map[string]string{"#k": attrPK}
		in.ConsistentRead = aws.Bool(true)
	} else {
		in.IndexName = aws.String(IndexName(q.Index))
		in.KeyConditionExpression = aws.String("#k = :v")
		in.ExpressionAttributeNames = map[string]string{"#k": indexPrefix + q.Index}
	}
	in.ExpressionAttributeValues = map[string]types.AttributeValue{
		":v": &types.AttributeValueMemberS{Value: pkValue(collection, q.Value)},
	}

	var items []store.Item
	for {
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("dynamodb query %s: %w", collection, err)
		}
		for _, av := range out.Items {
			it, err := decodeItem(av)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sortItems(items)
	return items, nil
}

// Scan reads every item of a collection.
func (s *Store) Scan(ctx context.Context, collection string) ([]store.Item, error) {
	in := &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          aws.String("#c = :c"),
		ExpressionAttributeNames:  map[string]string{"#c": attrCollection},
		ExpressionAttributeValues: map[string]types.AttributeValue{":c": &types.AttributeValueMemberS{Value: collection}},
		ConsistentRead:            aws.Bool(true),
	}
	var items []store.Item
	for {
		out, err := s.api.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan %s: %w", collection, err)
		}
		for _, av := range out.Items {
			it, err := decodeItem(av)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	sortItems(items)
	return items, nil
}

func (s *Store) transactItem(w store.Write) types.TransactWriteItem {
	switch w.Kind {
	case store.WritePut:
		return types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.table),
			Item:                itemAttributes(w.Item),
			ConditionExpression: conditionExpression(w.Condition),
		}}
	case store.WriteDelete:
		return types.TransactWriteItem{Delete: &types.Delete{
			TableName:           aws.String(s.table),
			Key:                 keyAttributes(w.Key),
			ConditionExpression: conditionExpression(w.Condition),
		}}
	default:
		return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:           aws.String(s.table),
			Key:                 keyAttributes(w.Key),
			ConditionExpression: conditionExpression(w.Condition),
		}}
	}
}

// TransactWrite submits the writes as one TransactWriteItems call.
func (s *Store) TransactWrite(ctx context.Context, writes []store.Write) error {
	if err := store.ValidateWrites(writes, s.maxItems); err != nil {
		return err
	}
	for _, w := range writes {
		if w.Kind == store.WriteConditionCheck && w.Condition == store.ConditionNone {
			return fmt.Errorf("dynamodb condition check on %s needs a predicate", w.Key)
		}
	}
	items := make([]types.TransactWriteItem, 0, len(writes))
	for _, w := range writes {
		items = append(items, s.transactItem(w))
	}
	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}

	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		if reasons := cancellationReasons(canceled.CancellationReasons, len(writes)); reasons != nil {
			return &store.TransactionCanceledError{Reasons: reasons}
		}
	}
	return fmt.Errorf("dynamodb transact write: %w", err)
}

// cancellationReasons maps DynamoDB reasons onto the store's. It returns nil
// when no write failed its condition, e.g. a cancellation caused by a
// conflicting transaction, which callers must treat as a storage failure.
func cancellationReasons(in []types.CancellationReason, n int) []store.CancellationReason {
	if len(in) != n {
		return nil
	}
	out := make([]store.CancellationReason, n)
	failed := false
	for i, r := range in {
		out[i] = store.ReasonNone
		if aws.ToString(r.Code) == "ConditionalCheckFailed" {
			out[i] = store.ReasonConditionFailed
			failed = true
		}
	}
	if !failed {
		return nil
	}
	return out
}

// MaxTransactItems returns the configured transaction size limit.
func (s *Store) MaxTransactItems() int { return s.maxItems }

// Ping describes the table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		return fmt.Errorf("dynamodb describe table %s: %w", s.table, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources to release.
func (s *Store) Close() error { return nil }

// IndexName returns the global secondary index serving a store index.
func IndexName(index string) string {
	return index + "-index"
}

// CreateTable creates the table and one global secondary index per store
// index, then waits for it to become active. An existing table is left as is.
func CreateTable(ctx context.Context, api API, table string, indexes []string, wait time.Duration) error {
	_, err := api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var nf *types.ResourceNotFoundException
	if !errors.As(err, &nf) {
		return fmt.Errorf("dynamodb describe table %s: %w", table, err)
	}

	attrs := []types.AttributeDefinition{
		{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
		{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
	}
	var gsis []types.GlobalSecondaryIndex
	for _, idx := range indexes {
		attrs = append(attrs, types.AttributeDefinition{
			AttributeName: aws.String(indexPrefix + idx),
			AttributeType: types.ScalarAttributeTypeS,
		})
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName: aws.String(IndexName(idx)),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(indexPrefix + idx), KeyType: types.KeyTypeHash},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	_, err = api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            aws.String(table),
		AttributeDefinitions: attrs,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: gsis,
		BillingMode:            types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("dynamodb create table %s: %w", table, err)
	}
	if wait <= 0 {
		return nil
	}
	waiter := dynamodb.NewTableExistsWaiter(api)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, wait)
}

func sortItems(items []store.Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key.String() < items[j].Key.String()
	})
}
