package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo keeps items in memory, keyed by session_id. It supports the
// attribute_exists condition and SET/REMOVE update expressions.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]dynamodbtypes.AttributeValue
	gets  int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]dynamodbtypes.AttributeValue{}}
}

func keyOf(key map[string]dynamodbtypes.AttributeValue) string {
	return key["session_id"].(*dynamodbtypes.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := keyOf(in.Key)
	item, ok := f.items[id]
	if !ok {
		if in.ConditionExpression != nil {
			return nil, &dynamodbtypes.ConditionalCheckFailedException{Message: aws.String("missing")}
		}
		item = map[string]dynamodbtypes.AttributeValue{"session_id": in.Key["session_id"]}
		f.items[id] = item
	}

	name := func(tok string) string {
		tok = strings.TrimSpace(tok)
		if n, ok := in.ExpressionAttributeNames[tok]; ok {
			return n
		}
		return tok
	}
	set, remove, _ := strings.Cut(aws.ToString(in.UpdateExpression), " REMOVE ")
	if set = strings.TrimPrefix(set, "SET "); set != "" {
		for _, assign := range strings.Split(set, ",") {
			lhs, rhs, _ := strings.Cut(assign, "=")
			item[name(lhs)] = in.ExpressionAttributeValues[strings.TrimSpace(rhs)]
		}
	}
	if remove != "" {
		for _, attr := range strings.Split(remove, ",") {
			delete(item, name(attr))
		}
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := keyOf(in.Key)
	if _, ok := f.items[id]; !ok {
		return nil, &dynamodbtypes.ConditionalCheckFailedException{Message: aws.String("missing")}
	}
	delete(f.items, id)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func TestDynamoStore(t *testing.T) {
	exerciseStore(t, NewDynamo(newFakeDynamo(), "sessions"))
}

func TestDynamoSaveSessionKeepsResults(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	s := NewDynamo(fake, "sessions")

	sess := sampleSession("s1", time.Unix(1700000000, 0).UTC())
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := s.SaveRecords(ctx, "s1", sampleRecords()); err != nil {
		t.Fatalf("save records: %v", err)
	}
	sess.Completed = 3
	sess.Error = "boom"
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("resave session: %v", err)
	}
	sess.Error = ""
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("resave session: %v", err)
	}
	if fake.gets != 0 {
		t.Fatalf("SaveSession issued %d reads, want a single write", fake.gets)
	}

	records, err := s.GetRecords(ctx, "s1")
	if err != nil {
		t.Fatalf("get records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3 after session update", len(records))
	}
	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Completed != 3 || got.Error != "" {
		t.Fatalf("session = %+v, want completed 3 and a cleared error", got)
	}
}
