package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"support-copilot/internal/domain"
)

const (
	pkPrefixKB       = "KB#"
	skPrefixQuestion = "Q#"
	defaultNamespace = "default"
	maxTransactItems = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table holding the copilot knowledge base. Entries
// are keyed by the exact question text inside a namespace partition.
type Client struct {
	api       dynamodbAPI
	tableName string
	namespace string
}

// New creates a new repository Client. An empty namespace selects "default".
func New(api dynamodbAPI, tableName, namespace string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Client{api: api, tableName: tableName, namespace: namespace}, nil
}

// kbPK returns the partition key for a knowledge-base namespace.
func kbPK(namespace string) string {
	return pkPrefixKB + namespace
}

// questionSK returns the sort key for a question. The text is used verbatim
// so lookups stay exact and case-sensitive.
func questionSK(question string) string {
	return skPrefixQuestion + question
}

// FindAnswer returns the stored answer for question, or found=false.
func (c *Client) FindAnswer(ctx context.Context, question string) (domain.Answer, bool, error) {
	if question == "" {
		return domain.Answer{}, false, nil
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: kbPK(c.namespace)},
			"SK": &types.AttributeValueMemberS{Value: questionSK(question)},
		},
	})
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("repository: FindAnswer get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Answer{}, false, nil
	}

	entry, err := itemToEntry(out.Item)
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("repository: FindAnswer decode: %w", err)
	}
	return domain.Answer{Text: entry.Answer, Sources: entry.Sources}, true, nil
}

// PutAnswer writes or replaces a single entry.
func (c *Client) PutAnswer(ctx context.Context, question, answer string, sources []string) error {
	if question == "" {
		return errors.New("repository: PutAnswer: question is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      entryItem(c.NewEntry(question, answer, sources)),
	})
	if err != nil {
		return fmt.Errorf("repository: PutAnswer: %w", err)
	}
	return nil
}

// ListEntries returns the namespace's entries ordered by question.
func (c *Client) ListEntries(ctx context.Context, limit int) ([]domain.KnowledgeEntry, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: kbPK(c.namespace)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixQuestion},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: ListEntries query: %w", err)
	}

	entries := make([]domain.KnowledgeEntry, 0, len(out.Items))
	for _, item := range out.Items {
		e, err := itemToEntry(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListEntries unmarshal: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SeedEntries writes entries in transactions of up to 100 items. Each batch
// is all-or-nothing; earlier batches stay written if a later one fails.
func (c *Client) SeedEntries(ctx context.Context, entries []domain.KnowledgeEntry) error {
	for start := 0; start < len(entries); start += maxTransactItems {
		end := min(start+maxTransactItems, len(entries))
		items := make([]types.TransactWriteItem, 0, end-start)
		for _, e := range entries[start:end] {
			if e.PK == "" || e.SK == "" {
				return errors.New("repository: SeedEntries: PK and SK are required")
			}
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      entryItem(e),
				},
			})
		}
		if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
			return fmt.Errorf("repository: SeedEntries batch at %d: %w", start, err)
		}
	}
	return nil
}

// NewEntry constructs a KnowledgeEntry keyed into the client's namespace.
func (c *Client) NewEntry(question, answer string, sources []string) domain.KnowledgeEntry {
	return domain.KnowledgeEntry{
		PK:        kbPK(c.namespace),
		SK:        questionSK(question),
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func itemToEntry(item map[string]types.AttributeValue) (domain.KnowledgeEntry, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.KnowledgeEntry{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.KnowledgeEntry{}, err
	}
	question, err := strAttr(item, "question")
	if err != nil {
		return domain.KnowledgeEntry{}, err
	}
	answer, err := strAttr(item, "answer")
	if err != nil {
		return domain.KnowledgeEntry{}, err
	}
	sources, err := listAttr(item, "sources")
	if err != nil {
		return domain.KnowledgeEntry{}, err
	}
	updatedAt, _ := strAttr(item, "updatedAt") // allow empty

	return domain.KnowledgeEntry{
		PK:        pk,
		SK:        sk,
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		UpdatedAt: updatedAt,
	}, nil
}

func entryItem(e domain.KnowledgeEntry) map[string]types.AttributeValue {
	sources := make([]types.AttributeValue, 0, len(e.Sources))
	for _, s := range e.Sources {
		sources = append(sources, &types.AttributeValueMemberS{Value: s})
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: e.PK},
		"SK":        &types.AttributeValueMemberS{Value: e.SK},
		"question":  &types.AttributeValueMemberS{Value: e.Question},
		"answer":    &types.AttributeValueMemberS{Value: e.Answer},
		"sources":   &types.AttributeValueMemberL{Value: sources},
		"updatedAt": &types.AttributeValueMemberS{Value: e.UpdatedAt},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

// listAttr decodes a list of strings. A missing attribute is an empty list.
func listAttr(item map[string]types.AttributeValue, key string) ([]string, error) {
	v, ok := item[key]
	if !ok {
		return nil, nil
	}
	l, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil, fmt.Errorf("repository: attribute %q is not a list", key)
	}
	out := make([]string, 0, len(l.Value))
	for i, el := range l.Value {
		s, ok := el.(*types.AttributeValueMemberS)
		if !ok {
			return nil, fmt.Errorf("repository: attribute %q[%d] is not a string", key, i)
		}
		out = append(out, s.Value)
	}
	return out, nil
}
