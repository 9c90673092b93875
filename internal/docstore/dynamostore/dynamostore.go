// Package dynamostore stores documents in one DynamoDB table.
//
// The partition key is the collection path and the sort key is the document id.
// A global secondary index on the bare collection name serves collection-group
// queries. Every item carries a revision number; writes are committed with
// TransactWriteItems conditioned on the revisions that were read, and retried
// when another writer got there first.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/Match-Score-project/Match-Score/internal/docstore"
)

const (
	attrPK         = "pk"
	attrSK         = "sk"
	attrParent     = "parent"
	attrCollection = "collection"
	attrRev        = "rev"
	attrData       = "data"

	GroupIndex = "collection-index"

	maxAttempts     = 10
	maxTransactions = 100
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type Store struct {
	client API
	table  string
	log    *zerolog.Logger
}

// NewClient builds a DynamoDB client for region. A non-empty endpoint points
// the client at a local DynamoDB.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func New(client API, table string, log *zerolog.Logger) *Store {
	return &Store{client: client, table: table, log: log}
}

// EnsureTable creates the table and its group index when they do not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table '%s': %w", s.table, err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(s.table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrCollection), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String(GroupIndex),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(attrCollection), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to create table '%s': %w", s.table, err)
	}
	s.log.Info().Str("table", s.table).Msg("DynamoDB table created")
	return nil
}

func key(ref docstore.Ref) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: ref.CollectionPath()},
		attrSK: &types.AttributeValueMemberS{Value: ref.ID},
	}
}

type version struct {
	exists bool
	rev    int64
	fields docstore.Fields
}

func encodeItem(ref docstore.Ref, f docstore.Fields, rev int64) (map[string]types.AttributeValue, error) {
	data, err := attributevalue.Marshal(map[string]any(f))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document %s: %w", ref.Path(), err)
	}
	item := key(ref)
	item[attrParent] = &types.AttributeValueMemberS{Value: ref.Parent}
	item[attrCollection] = &types.AttributeValueMemberS{Value: ref.Collection}
	item[attrRev] = &types.AttributeValueMemberN{Value: strconv.FormatInt(rev, 10)}
	item[attrData] = data
	return item, nil
}

func decodeItem(item map[string]types.AttributeValue) (docstore.Document, int64, error) {
	var meta struct {
		PK  string `dynamodbav:"pk"`
		SK  string `dynamodbav:"sk"`
		Rev int64  `dynamodbav:"rev"`
	}
	if err := attributevalue.UnmarshalMap(item, &meta); err != nil {
		return docstore.Document{}, 0, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	ref, err := docstore.ParseRef(meta.PK + "/" + meta.SK)
	if err != nil {
		return docstore.Document{}, 0, err
	}
	f := docstore.Fields{}
	if data, ok := item[attrData]; ok {
		var m map[string]any
		if err := attributevalue.Unmarshal(data, &m); err != nil {
			return docstore.Document{}, 0, fmt.Errorf("failed to unmarshal document %s: %w", ref.Path(), err)
		}
		if f, err = docstore.Normalize(m); err != nil {
			return docstore.Document{}, 0, err
		}
	}
	return docstore.Document{Ref: ref, Fields: f}, meta.Rev, nil
}

func (s *Store) read(ctx context.Context, ref docstore.Ref) (version, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(ref),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return version{}, fmt.Errorf("failed to get item %s: %w", ref.Path(), err)
	}
	if out.Item == nil {
		return version{}, nil
	}
	d, rev, err := decodeItem(out.Item)
	if err != nil {
		return version{}, err
	}
	return version{exists: true, rev: rev, fields: d.Fields}, nil
}

func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Document, error) {
	v, err := s.read(ctx, ref)
	if err != nil {
		return docstore.Document{}, err
	}
	if !v.exists {
		return docstore.Document{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, ref.Path())
	}
	return docstore.Document{Ref: ref, Fields: v.fields}, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	docs, _, err := s.query(ctx, q)
	return docs, err
}

func (s *Store) query(ctx context.Context, q docstore.Query) ([]docstore.Document, map[string]int64, error) {
	in := &dynamodb.QueryInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(!q.Group),
	}
	if q.Group {
		in.IndexName = aws.String(GroupIndex)
		in.KeyConditionExpression = aws.String("#c = :c")
		in.ExpressionAttributeNames = map[string]string{"#c": attrCollection}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: q.Collection.Name},
		}
	} else {
		in.KeyConditionExpression = aws.String("#pk = :pk")
		in.ExpressionAttributeNames = map[string]string{"#pk": attrPK}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: q.Collection.Path()},
		}
	}

	pushFilters(in, q)
	stopEarly := !q.Group && q.PushLimit()

	var docs []docstore.Document
	revs := make(map[string]int64)
	for {
		out, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to query %s: %w", q.Collection.Path(), err)
		}
		for _, item := range out.Items {
			d, rev, err := decodeItem(item)
			if err != nil {
				return nil, nil, err
			}
			docs = append(docs, d)
			revs[d.Ref.Path()] = rev
		}
		if len(out.LastEvaluatedKey) == 0 || (stopEarly && len(docs) >= q.Limit) {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return q.Apply(docs), revs, nil
}

// pushFilters turns the byte-comparable string filters of q into a filter
// expression on the data map so DynamoDB drops non-matching items server side.
func pushFilters(in *dynamodb.QueryInput, q docstore.Query) {
	pushed, _ := q.Pushdown()
	if len(pushed) == 0 {
		return
	}
	in.ExpressionAttributeNames["#d"] = attrData
	in.ExpressionAttributeValues[":s"] = &types.AttributeValueMemberS{Value: "S"}
	clauses := make([]string, 0, 2*len(pushed))
	for i, f := range pushed {
		name, value := fmt.Sprintf("#f%d", i), fmt.Sprintf(":f%d", i)
		in.ExpressionAttributeNames[name] = f.Field
		in.ExpressionAttributeValues[value] = &types.AttributeValueMemberS{Value: f.Value.(string)}
		op := string(f.Op)
		if f.Op == docstore.OpEq {
			op = "="
		}
		path := "#d." + name
		clauses = append(clauses, "attribute_type("+path+", :s)", path+" "+op+" "+value)
	}
	in.FilterExpression = aws.String(strings.Join(clauses, " AND "))
}

func (s *Store) Add(ctx context.Context, c docstore.CollectionRef, f docstore.Fields) (docstore.Ref, error) {
	ref := c.NewDoc()
	if err := s.Batch(ctx, []docstore.Write{docstore.Create(ref, f)}); err != nil {
		return docstore.Ref{}, err
	}
	return ref, nil
}

func (s *Store) Set(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.Batch(ctx, []docstore.Write{docstore.Set(ref, f)})
}

func (s *Store) Merge(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.Batch(ctx, []docstore.Write{docstore.Merge(ref, f)})
}

func (s *Store) Update(ctx context.Context, ref docstore.Ref, f docstore.Fields) error {
	return s.Batch(ctx, []docstore.Write{docstore.Update(ref, f)})
}

func (s *Store) Delete(ctx context.Context, ref docstore.Ref) error {
	return s.Batch(ctx, []docstore.Write{docstore.Delete(ref)})
}

func (s *Store) Batch(ctx context.Context, writes []docstore.Write) error {
	return s.RunTransaction(ctx, func(_ context.Context, tx docstore.Tx) error {
		for _, w := range writes {
			if err := tx.Write(w); err != nil {
				return err
			}
		}
		return nil
	})
}

type dynTx struct {
	docstore.TxWrites
	s     *Store
	reads map[string]version
	refs  map[string]docstore.Ref
}

func (t *dynTx) Get(ctx context.Context, ref docstore.Ref) (docstore.Document, error) {
	if err := t.CheckRead(); err != nil {
		return docstore.Document{}, err
	}
	v, err := t.s.read(ctx, ref)
	if err != nil {
		return docstore.Document{}, err
	}
	t.reads[ref.Path()] = v
	t.refs[ref.Path()] = ref
	if !v.exists {
		return docstore.Document{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, ref.Path())
	}
	return docstore.Document{Ref: ref, Fields: v.fields}, nil
}

// Query results are not re-validated at commit; callers that depend on a set of
// documents staying unchanged also read and rewrite a document guarding that set.
func (t *dynTx) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := t.CheckRead(); err != nil {
		return nil, err
	}
	docs, _, err := t.s.query(ctx, q)
	return docs, err
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	for attempt := 1; ; attempt++ {
		t := &dynTx{s: s, reads: make(map[string]version), refs: make(map[string]docstore.Ref)}
		if err := fn(ctx, t); err != nil {
			return err
		}
		err := s.commit(ctx, t)
		if !errors.Is(err, docstore.ErrConflict) {
			return err
		}
		if attempt == maxAttempts {
			s.log.Warn().Int("attempts", attempt).Msg("DynamoDB transaction gave up after conflicts")
			return err
		}
		s.log.Debug().Int("attempt", attempt).Msg("DynamoDB transaction conflict, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 5 * time.Millisecond):
		}
	}
}

func (s *Store) commit(ctx context.Context, t *dynTx) error {
	if len(t.Writes) == 0 {
		return nil
	}

	final := make(map[string]version)
	order := make([]string, 0)
	for _, w := range t.Writes {
		if !w.Ref.Valid() {
			return fmt.Errorf("%w: %q", docstore.ErrInvalidPath, w.Ref.Path())
		}
		path := w.Ref.Path()
		cur, ok := final[path]
		if !ok {
			base, read := t.reads[path]
			if !read {
				var err error
				if base, err = s.read(ctx, w.Ref); err != nil {
					return err
				}
				t.reads[path] = base
			}
			t.refs[path] = w.Ref
			cur = base
			order = append(order, path)
		}
		next, exists, err := docstore.ApplyWrite(cur.fields, cur.exists, w)
		if err != nil {
			return err
		}
		final[path] = version{exists: exists, fields: next}
	}

	items := make([]types.TransactWriteItem, 0, len(t.reads))
	for _, path := range order {
		before := t.reads[path]
		after := final[path]
		ref := t.refs[path]
		cond, names, values := condition(before)

		switch {
		case after.exists:
			item, err := encodeItem(ref, after.fields, before.rev+1)
			if err != nil {
				return err
			}
			items = append(items, types.TransactWriteItem{Put: &types.Put{
				TableName:                 aws.String(s.table),
				Item:                      item,
				ConditionExpression:       cond,
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			}})
		case before.exists:
			items = append(items, types.TransactWriteItem{Delete: &types.Delete{
				TableName:                 aws.String(s.table),
				Key:                       key(ref),
				ConditionExpression:       cond,
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			}})
		}
	}
	for path, before := range t.reads {
		if _, written := final[path]; written {
			continue
		}
		cond, names, values := condition(before)
		items = append(items, types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(s.table),
			Key:                       key(t.refs[path]),
			ConditionExpression:       cond,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}})
	}
	if len(items) == 0 {
		return nil
	}
	if len(items) > maxTransactions {
		return fmt.Errorf("transaction touches %d items, limit is %d", len(items), maxTransactions)
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
		}
		var conflict *types.TransactionConflictException
		if errors.As(err, &conflict) {
			return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
		}
		return fmt.Errorf("failed to write transaction: %w", err)
	}
	return nil
}

// condition asserts the item is still in the state it was read in.
func condition(v version) (*string, map[string]string, map[string]types.AttributeValue) {
	if !v.exists {
		return aws.String("attribute_not_exists(#pk)"), map[string]string{"#pk": attrPK}, nil
	}
	return aws.String("#rev = :rev"),
		map[string]string{"#rev": attrRev},
		map[string]types.AttributeValue{":rev": &types.AttributeValueMemberN{Value: strconv.FormatInt(v.rev, 10)}}
}

func (s *Store) Close() error { return nil }
