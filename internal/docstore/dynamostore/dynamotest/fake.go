// Package dynamotest provides an in-memory stand-in for the DynamoDB calls the
// document store makes. It understands exactly the expressions the store emits.
package dynamotest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	pk         = "pk"
	sk         = "sk"
	collection = "collection"
	rev        = "rev"
)

type Fake struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	created  bool
	pageSize int
}

// New returns an empty fake that answers queries two items per page.
func New() *Fake {
	return &Fake{items: make(map[string]map[string]types.AttributeValue), pageSize: 2}
}

func Str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	if n, ok := av.(*types.AttributeValueMemberN); ok {
		return n.Value
	}
	return ""
}

func itemKey(k map[string]types.AttributeValue) string {
	return Str(k[pk]) + "\x00" + Str(k[sk])
}

// Item returns the stored item for the key pair, or nil.
func (f *Fake) Item(partition, rangeKey string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[partition+"\x00"+rangeKey]
}

func (f *Fake) Created() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *Fake) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

// Query pages over the matching keys before applying the filter expression,
// the way DynamoDB does.
func (f *Fake) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k, item := range f.items {
		if in.IndexName != nil {
			if Str(item[collection]) == Str(in.ExpressionAttributeValues[":c"]) {
				keys = append(keys, k)
			}
			continue
		}
		if Str(item[pk]) == Str(in.ExpressionAttributeValues[":pk"]) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		last := itemKey(in.ExclusiveStartKey)
		for start < len(keys) && keys[start] <= last {
			start++
		}
	}
	end := start + f.pageSize
	out := &dynamodb.QueryOutput{}
	if end < len(keys) {
		lastItem := f.items[keys[end-1]]
		out.LastEvaluatedKey = map[string]types.AttributeValue{pk: lastItem[pk], sk: lastItem[sk]}
	} else {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		item := f.items[k]
		if filter(item, in) {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

// filter evaluates conjunctions of attribute_type(a.b, :v) and a.b <op> :v.
func filter(item map[string]types.AttributeValue, in *dynamodb.QueryInput) bool {
	expr := aws.ToString(in.FilterExpression)
	if expr == "" {
		return true
	}
	for _, clause := range strings.Split(expr, " AND ") {
		if inner, ok := strings.CutPrefix(clause, "attribute_type("); ok {
			path, placeholder, _ := strings.Cut(strings.TrimSuffix(inner, ")"), ", ")
			av := lookup(item, path, in.ExpressionAttributeNames)
			if Str(in.ExpressionAttributeValues[placeholder]) != "S" {
				return false
			}
			if _, isString := av.(*types.AttributeValueMemberS); !isString {
				return false
			}
			continue
		}
		parts := strings.Fields(clause)
		if len(parts) != 3 {
			return false
		}
		s, ok := lookup(item, parts[0], in.ExpressionAttributeNames).(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		v := Str(in.ExpressionAttributeValues[parts[2]])
		var match bool
		switch parts[1] {
		case "=":
			match = s.Value == v
		case "<":
			match = s.Value < v
		case "<=":
			match = s.Value <= v
		case ">":
			match = s.Value > v
		case ">=":
			match = s.Value >= v
		}
		if !match {
			return false
		}
	}
	return true
}

func lookup(item map[string]types.AttributeValue, path string, names map[string]string) types.AttributeValue {
	var cur types.AttributeValue = &types.AttributeValueMemberM{Value: item}
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(*types.AttributeValueMemberM)
		if !ok {
			return nil
		}
		name := part
		if n, ok := names[part]; ok {
			name = n
		}
		if cur, ok = m.Value[name]; !ok {
			return nil
		}
	}
	return cur
}

func (f *Fake) check(k map[string]types.AttributeValue, cond *string, values map[string]types.AttributeValue) bool {
	existing, exists := f.items[itemKey(k)]
	switch aws.ToString(cond) {
	case "":
		return true
	case "attribute_not_exists(#pk)":
		return !exists
	case "#rev = :rev":
		return exists && Str(existing[rev]) == Str(values[":rev"])
	}
	return false
}

func (f *Fake) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, it := range in.TransactItems {
		var ok bool
		switch {
		case it.Put != nil:
			ok = f.check(it.Put.Item, it.Put.ConditionExpression, it.Put.ExpressionAttributeValues)
		case it.Delete != nil:
			ok = f.check(it.Delete.Key, it.Delete.ConditionExpression, it.Delete.ExpressionAttributeValues)
		case it.ConditionCheck != nil:
			ok = f.check(it.ConditionCheck.Key, it.ConditionCheck.ConditionExpression, it.ConditionCheck.ExpressionAttributeValues)
		}
		if !ok {
			return nil, &types.TransactionCanceledException{Message: aws.String("ConditionalCheckFailed")}
		}
	}
	for _, it := range in.TransactItems {
		switch {
		case it.Put != nil:
			f.items[itemKey(it.Put.Item)] = it.Put.Item
		case it.Delete != nil:
			delete(f.items, itemKey(it.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *Fake) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.created {
		return nil, &types.ResourceNotFoundException{Message: aws.String("no table")}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func (f *Fake) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(in.GlobalSecondaryIndexes) != 1 || in.GlobalSecondaryIndexes[0].IndexName == nil {
		return nil, &types.ResourceInUseException{Message: aws.String("unexpected schema")}
	}
	f.created = true
	return &dynamodb.CreateTableOutput{}, nil
}
