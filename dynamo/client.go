// Package dynamo implements the record store on a single DynamoDB table.
//
// Item layout (PK / SK):
//
//	REP#<rep>          TS#<utc ts>#<id>   conversation, per representative
//	PAIR#<rep>#<cp>    TS#<utc ts>#<id>   conversation, per pair
//	ALL#<utc date>     TS#<utc ts>#<id>   conversation, per UTC day across representatives
//	FIRST#<rep>        CP#<cp>            first-seen ledger entry
//	DAILY#<rep>        DATE#<date>        daily stats row
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/records"
)

const (
	skPrefixTS   = "TS#"
	skPrefixCP   = "CP#"
	skPrefixDate = "DATE#"
	pageSize     = 50

	// tsLayout is fixed width so sort keys order lexicographically.
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Client wraps a DynamoDB table holding every record kind.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("dynamo: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamo: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// Open builds a Client from the default AWS credential chain.
func Open(ctx context.Context, region, tableName string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("dynamo: load aws config: %w", err)
	}
	log.Info().Str("table", tableName).Str("region", region).Msg("DynamoDB client configured")
	return New(dynamodb.NewFromConfig(cfg), tableName)
}

func repPK(rep string) string           { return "REP#" + rep }
func pairPK(rep string, cp int64) string { return fmt.Sprintf("PAIR#%s#%d", rep, cp) }
func allPK(date string) string          { return "ALL#" + date }
func firstPK(rep string) string         { return "FIRST#" + rep }
func dailyPK(rep string) string         { return "DAILY#" + rep }

func tsKey(t time.Time) string {
	return skPrefixTS + t.UTC().Format(tsLayout)
}

func convSK(rec records.ConversationRecord) string {
	return tsKey(rec.Timestamp) + "#" + rec.ID
}

// Ping checks that the table is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.tableName)})
	return wrapErr("Ping", err)
}

// AppendConversation writes the three index copies of rec in one transaction.
func (c *Client) AppendConversation(ctx context.Context, rec records.ConversationRecord) error {
	if rec.ID == "" {
		return errors.New("dynamo: AppendConversation: record id is required")
	}
	sk := convSK(rec)
	pks := []string{
		repPK(rec.RepresentativeID),
		pairPK(rec.RepresentativeID, rec.CounterpartID),
		allPK(rec.Timestamp.UTC().Format(records.DateLayout)),
	}

	items := make([]types.TransactWriteItem, 0, len(pks))
	for _, pk := range pks {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                conversationItem(pk, sk, rec),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return wrapErr("AppendConversation", err)
}

// ConversationsBetween queries the representative partition between two instants.
func (c *Client) ConversationsBetween(ctx context.Context, representativeID string, from, to time.Time) ([]records.ConversationRecord, error) {
	return c.queryRange(ctx, repPK(representativeID), from, to)
}

// AllConversationsBetween walks every UTC day partition overlapping [from, to).
func (c *Client) AllConversationsBetween(ctx context.Context, from, to time.Time) ([]records.ConversationRecord, error) {
	var out []records.ConversationRecord
	day := time.Date(from.UTC().Year(), from.UTC().Month(), from.UTC().Day(), 0, 0, 0, 0, time.UTC)
	for day.Before(to) {
		recs, err := c.queryRange(ctx, allPK(day.Format(records.DateLayout)), from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
		day = day.AddDate(0, 0, 1)
	}
	return out, nil
}

func (c *Client) queryRange(ctx context.Context, pk string, from, to time.Time) ([]records.ConversationRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: pk},
			":from": &types.AttributeValueMemberS{Value: tsKey(from)},
			// SK carries a "#id" suffix, so records stamped exactly at `to` sort above it.
			":to": &types.AttributeValueMemberS{Value: tsKey(to)},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var out []records.ConversationRecord
	for {
		page, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, wrapErr("query conversations", err)
		}
		for _, item := range page.Items {
			rec, err := itemToConversation(item)
			if err != nil {
				log.Warn().Err(err).Str("pk", pk).Msg("Skipping undecodable conversation item")
				continue
			}
			out = append(out, rec)
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

// LatestForPair reads the pair partition newest first until direction matches.
func (c *Client) LatestForPair(ctx context.Context, representativeID string, counterpartID int64, direction records.Direction) (*records.ConversationRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pairPK(representativeID, counterpartID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTS},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(pageSize),
	}

	for {
		page, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, wrapErr("LatestForPair", err)
		}
		for _, item := range page.Items {
			rec, err := itemToConversation(item)
			if err != nil {
				continue
			}
			if direction == "" || rec.Direction == direction {
				return &rec, nil
			}
		}
		if len(page.LastEvaluatedKey) == 0 {
			return nil, nil
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

// FirstSeen reads the ledger entry with a consistent read.
func (c *Client) FirstSeen(ctx context.Context, representativeID string, counterpartID int64) (*records.FirstSeenEntry, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            firstSeenKey(representativeID, counterpartID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, wrapErr("FirstSeen", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	date, err := strAttr(out.Item, "firstContactDate")
	if err != nil {
		return nil, fmt.Errorf("dynamo: FirstSeen decode: %w", err)
	}
	return &records.FirstSeenEntry{
		RepresentativeID: representativeID,
		CounterpartID:    counterpartID,
		FirstContactDate: date,
	}, nil
}

// PutFirstSeen is a conditional put; when another writer got there first the
// stored entry is read back and returned.
func (c *Client) PutFirstSeen(ctx context.Context, entry records.FirstSeenEntry) (records.FirstSeenEntry, error) {
	item := firstSeenKey(entry.RepresentativeID, entry.CounterpartID)
	item["representativeId"] = &types.AttributeValueMemberS{Value: entry.RepresentativeID}
	item["counterpartId"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(entry.CounterpartID, 10)}
	item["firstContactDate"] = &types.AttributeValueMemberS{Value: entry.FirstContactDate}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err == nil {
		return entry, nil
	}
	if !isConditionFailed(err) {
		return entry, wrapErr("PutFirstSeen", err)
	}

	winner, err := c.FirstSeen(ctx, entry.RepresentativeID, entry.CounterpartID)
	if err != nil {
		return entry, err
	}
	if winner == nil {
		return entry, errors.New("dynamo: PutFirstSeen: condition failed but no entry found")
	}
	return *winner, nil
}

// UpsertDailyStats replaces the row unless a later computation is already stored.
func (c *Client) UpsertDailyStats(ctx context.Context, stats records.DailyStats) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                dailyItem(stats),
		ConditionExpression: aws.String("attribute_not_exists(PK) OR computedAt <= :computedAt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":computedAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(stats.ComputedAt.UnixNano(), 10)},
		},
	})
	if isConditionFailed(err) {
		log.Debug().
			Str("representative_id", stats.RepresentativeID).
			Str("date", stats.Date).
			Msg("Stale daily stats ignored")
		return nil
	}
	return wrapErr("UpsertDailyStats", err)
}

// DailyStatsBetween queries the representative's daily rows by date range.
func (c *Client) DailyStatsBetween(ctx context.Context, representativeID, fromDate, toDate string) ([]records.DailyStats, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: dailyPK(representativeID)},
			":from": &types.AttributeValueMemberS{Value: skPrefixDate + fromDate},
			":to":   &types.AttributeValueMemberS{Value: skPrefixDate + toDate},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var out []records.DailyStats
	for {
		page, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, wrapErr("DailyStatsBetween", err)
		}
		for _, item := range page.Items {
			row, err := itemToDaily(item)
			if err != nil {
				return nil, fmt.Errorf("dynamo: DailyStatsBetween decode: %w", err)
			}
			out = append(out, row)
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("dynamo: %s: %w: %v", op, records.ErrUnavailable, err)
	}
	return fmt.Errorf("dynamo: %s: %w", op, err)
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return err != nil && errors.As(err, &ccf)
}
