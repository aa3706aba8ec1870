package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
)

// complaintItem is the DynamoDB item for one complaint. The document keeps
// the full aggregate; the top-level attributes carry what conditions test.
type complaintItem struct {
	ID           string `dynamodbav:"id"`
	CurrentStage int    `dynamodbav:"currentStage"`
	Status       string `dynamodbav:"status"`
	OnHold       bool   `dynamodbav:"onHold"`
	Version      int64  `dynamodbav:"version"`
	UpdatedAt    string `dynamodbav:"updatedAt"`
	Document     string `dynamodbav:"document"`
}

type dynamoRepository struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

// NewDynamoRepository connects to DynamoDB. A configured endpoint selects a
// local emulator with static credentials.
func NewDynamoRepository(ctx context.Context, cfg config.DynamoConfig) (ComplaintRepository, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &dynamoRepository{client: client, tableName: cfg.Table, now: time.Now}, nil
}

func toComplaintItem(c *domain.Complaint) (*complaintItem, error) {
	doc, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal complaint: %w", err)
	}
	return &complaintItem{
		ID:           c.ID,
		CurrentStage: c.CurrentStage,
		Status:       string(c.Status),
		OnHold:       c.OnHold,
		Version:      c.Version,
		UpdatedAt:    c.UpdatedAt.Format(time.RFC3339Nano),
		Document:     string(doc),
	}, nil
}

func toDomainComplaint(item *complaintItem) (*domain.Complaint, error) {
	var c domain.Complaint
	if err := json.Unmarshal([]byte(item.Document), &c); err != nil {
		return nil, fmt.Errorf("decode complaint %s: %w", item.ID, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updatedAt: %w", err)
	}
	c.ID = item.ID
	c.CurrentStage = item.CurrentStage
	c.Status = domain.ComplaintStatus(item.Status)
	c.OnHold = item.OnHold
	c.Version = item.Version
	c.UpdatedAt = updatedAt
	if c.StageRecords == nil {
		c.StageRecords = map[int]domain.StageRecord{}
	}
	return &c, nil
}

func (r *dynamoRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	complaint.Version = 1
	complaint.UpdatedAt = r.now().UTC()
	item, err := toComplaintItem(complaint)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal complaint item: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to put item in DynamoDB: %w", err)
	}
	return nil
}

func (r *dynamoRepository) Get(ctx context.Context, id string) (*domain.Complaint, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return decodeItem(result.Item)
}

func (r *dynamoRepository) CASUpdate(ctx context.Context, id string, expectedStage int, mutate Mutator) (*domain.Complaint, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.CurrentStage != expectedStage {
		return nil, ErrConflict
	}
	next, err := mutate(current.Clone())
	if err != nil {
		return nil, err
	}
	next.ID = id
	doc, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("marshal complaint: %w", err)
	}

	update := expression.Set(expression.Name("document"), expression.Value(string(doc)))
	update = update.Set(expression.Name("currentStage"), expression.Value(next.CurrentStage))
	update = update.Set(expression.Name("status"), expression.Value(string(next.Status)))
	update = update.Set(expression.Name("updatedAt"), expression.Value(r.now().UTC().Format(time.RFC3339Nano)))
	update = update.Set(expression.Name("version"), expression.Name("version").Plus(expression.Value(1)))
	cond := expression.Name("currentStage").Equal(expression.Value(expectedStage))

	updated, err := r.conditionalUpdate(ctx, id, update, cond)
	if errors.Is(err, ErrConflict) {
		if _, getErr := r.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return nil, ErrNotFound
		}
	}
	return updated, err
}

func (r *dynamoRepository) SetOnHold(ctx context.Context, id string, onHold bool) (*domain.Complaint, error) {
	update := expression.Set(expression.Name("onHold"), expression.Value(onHold))
	update = update.Set(expression.Name("updatedAt"), expression.Value(r.now().UTC().Format(time.RFC3339Nano)))
	update = update.Set(expression.Name("version"), expression.Name("version").Plus(expression.Value(1)))
	cond := expression.AttributeExists(expression.Name("id"))

	updated, err := r.conditionalUpdate(ctx, id, update, cond)
	if errors.Is(err, ErrConflict) {
		return nil, ErrNotFound
	}
	return updated, err
}

func (r *dynamoRepository) conditionalUpdate(ctx context.Context, id string, update expression.UpdateBuilder, cond expression.ConditionBuilder) (*domain.Complaint, error) {
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       itemKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to update item in DynamoDB: %w", err)
	}
	return decodeItem(out.Attributes)
}

func (r *dynamoRepository) List(ctx context.Context) ([]domain.Complaint, error) {
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:      aws.String(r.tableName),
		ConsistentRead: aws.Bool(true),
	})
	var result []domain.Complaint
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan DynamoDB table: %w", err)
		}
		var items []complaintItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal complaint items: %w", err)
		}
		for i := range items {
			c, err := toDomainComplaint(&items[i])
			if err != nil {
				return nil, err
			}
			result = append(result, *c)
		}
	}
	sortByRecent(result)
	return result, nil
}

func (r *dynamoRepository) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)})
	return err
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func decodeItem(av map[string]types.AttributeValue) (*domain.Complaint, error) {
	var item complaintItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal complaint item: %w", err)
	}
	return toDomainComplaint(&item)
}
