package dynamo

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/NextMind-AI/repstats/records"
)

var _ records.Store = (*Client)(nil)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	queryOuts    []*dynamodb.QueryOutput
	queryErr     error
	txErr        error
	describeErr  error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	queryInputs  []dynamodb.QueryInput
	lastTxInput  *dynamodb.TransactWriteItemsInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, *in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.queryOuts) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	out := f.queryOuts[0]
	f.queryOuts = f.queryOuts[1:]
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func (f *fakeDynamo) DescribeTable(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, f.describeErr
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	return c
}

func sampleRecord(ts time.Time, dir records.Direction) records.ConversationRecord {
	channel := "promo"
	return records.ConversationRecord{
		ID:               "rec-1",
		RepresentativeID: "rep",
		CounterpartID:    42,
		Timestamp:        ts,
		Direction:        dir,
		IsFirstContact:   true,
		ChannelSource:    &channel,
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "table")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestAppendConversation_WritesThreeIndexes(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	ts := time.Date(2026, 3, 1, 23, 30, 0, 0, time.FixedZone("UTC+3", 3*3600))

	require.NoError(t, c.AppendConversation(context.Background(), sampleRecord(ts, records.Inbound)))
	require.NotNil(t, db.lastTxInput)
	require.Len(t, db.lastTxInput.TransactItems, 3)

	var pks []string
	for _, item := range db.lastTxInput.TransactItems {
		pks = append(pks, item.Put.Item["PK"].(*types.AttributeValueMemberS).Value)
		require.Equal(t, "TS#2026-03-01T20:30:00.000000000Z#rec-1", item.Put.Item["SK"].(*types.AttributeValueMemberS).Value)
	}
	require.Equal(t, []string{"REP#rep", "PAIR#rep#42", "ALL#2026-03-01"}, pks)
}

func TestAppendConversation_RequiresID(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	rec := sampleRecord(time.Now(), records.Inbound)
	rec.ID = ""
	require.Error(t, c.AppendConversation(context.Background(), rec))
}

func TestConversationsBetween_PaginatesAndDecodes(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := conversationItem("REP#rep", "TS#a#1", sampleRecord(ts, records.Inbound))
	second := conversationItem("REP#rep", "TS#b#2", sampleRecord(ts.Add(time.Minute), records.Outbound))
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{first}, LastEvaluatedKey: map[string]types.AttributeValue{"PK": first["PK"]}},
		{Items: []map[string]types.AttributeValue{second}},
	}}
	c := mustNewClient(t, db)

	recs, err := c.ConversationsBetween(context.Background(), "rep", ts, ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, records.Outbound, recs[1].Direction)
	require.Equal(t, "promo", recs[0].Channel())
	require.True(t, recs[0].IsFirstContact)
	require.Len(t, db.queryInputs, 2)
	require.NotNil(t, db.queryInputs[1].ExclusiveStartKey)
}

func TestAllConversationsBetween_QueriesEachUTCDay(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	loc := time.FixedZone("UTC+3", 3*3600)
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	_, err := c.AllConversationsBetween(context.Background(), from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, db.queryInputs, 2)
	require.Equal(t, "ALL#2026-03-01", db.queryInputs[0].ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "ALL#2026-03-02", db.queryInputs[1].ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value)
}

func TestLatestForPair_FiltersDirection(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	out := conversationItem("PAIR#rep#42", "TS#b#2", sampleRecord(ts.Add(time.Minute), records.Outbound))
	in := conversationItem("PAIR#rep#42", "TS#a#1", sampleRecord(ts, records.Inbound))
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{out, in}}}}
	c := mustNewClient(t, db)

	rec, err := c.LatestForPair(context.Background(), "rep", 42, records.Inbound)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, ts, rec.Timestamp)
	require.False(t, aws.ToBool(db.queryInputs[0].ScanIndexForward))
}

func TestLatestForPair_None(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	rec, err := c.LatestForPair(context.Background(), "rep", 42, "")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestFirstSeen_Missing(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)
	entry, err := c.FirstSeen(context.Background(), "rep", 42)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.True(t, aws.ToBool(db.lastGetInput.ConsistentRead))
}

func TestPutFirstSeen_Created(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	entry := records.FirstSeenEntry{RepresentativeID: "rep", CounterpartID: 42, FirstContactDate: "2026-03-01"}

	won, err := c.PutFirstSeen(context.Background(), entry)
	require.NoError(t, err)
	require.Equal(t, entry, won)
	require.Equal(t, "attribute_not_exists(PK)", aws.ToString(db.lastPutInput.ConditionExpression))
}

func TestPutFirstSeen_LosesRace(t *testing.T) {
	winner := firstSeenKey("rep", 42)
	winner["firstContactDate"] = &types.AttributeValueMemberS{Value: "2026-02-20"}
	db := &fakeDynamo{
		putErr: &types.ConditionalCheckFailedException{Message: aws.String("exists")},
		getOut: &dynamodb.GetItemOutput{Item: winner},
	}
	c := mustNewClient(t, db)

	won, err := c.PutFirstSeen(context.Background(), records.FirstSeenEntry{RepresentativeID: "rep", CounterpartID: 42, FirstContactDate: "2026-03-01"})
	require.NoError(t, err)
	require.Equal(t, "2026-02-20", won.FirstContactDate)
}

func TestUpsertDailyStats_StaleIsIgnored(t *testing.T) {
	db := &fakeDynamo{putErr: &types.ConditionalCheckFailedException{Message: aws.String("newer")}}
	c := mustNewClient(t, db)

	err := c.UpsertDailyStats(context.Background(), records.DailyStats{RepresentativeID: "rep", Date: "2026-03-01", ComputedAt: time.Now()})
	require.NoError(t, err)
	require.Contains(t, aws.ToString(db.lastPutInput.ConditionExpression), "computedAt <= :computedAt")
}

func TestUpsertDailyStats_Error(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("throttled")}
	c := mustNewClient(t, db)

	err := c.UpsertDailyStats(context.Background(), records.DailyStats{RepresentativeID: "rep", Date: "2026-03-01"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "UpsertDailyStats")
}

func TestDailyStatsBetween_RoundTrip(t *testing.T) {
	avg := 4.5
	row := records.DailyStats{
		RepresentativeID: "rep", Date: "2026-03-01", NewCounterparts: 2, ReturningCounterparts: 1,
		TotalConversations: 3, MessagesSent: 5, MessagesReceived: 6, AvgResponseLatencyMinutes: &avg,
		ComputedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{dailyItem(row)}}}}
	c := mustNewClient(t, db)

	rows, err := c.DailyStatsBetween(context.Background(), "rep", "2026-02-23", "2026-03-01")
	require.NoError(t, err)
	require.Equal(t, []records.DailyStats{row}, rows)
	require.Equal(t, "DATE#2026-02-23", db.queryInputs[0].ExpressionAttributeValues[":from"].(*types.AttributeValueMemberS).Value)
}

func TestWrapErr_Unavailable(t *testing.T) {
	err := wrapErr("Ping", &net.OpError{Op: "dial", Err: errors.New("no route to host")})
	require.ErrorIs(t, err, records.ErrUnavailable)

	c := mustNewClient(t, &fakeDynamo{describeErr: errors.New("ResourceNotFoundException")})
	err = c.Ping(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, records.ErrUnavailable)
}
