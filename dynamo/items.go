package dynamo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/NextMind-AI/repstats/records"
)

func firstSeenKey(rep string, cp int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: firstPK(rep)},
		"SK": &types.AttributeValueMemberS{Value: skPrefixCP + strconv.FormatInt(cp, 10)},
	}
}

func conversationItem(pk, sk string, rec records.ConversationRecord) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":               &types.AttributeValueMemberS{Value: pk},
		"SK":               &types.AttributeValueMemberS{Value: sk},
		"id":               &types.AttributeValueMemberS{Value: rec.ID},
		"representativeId": &types.AttributeValueMemberS{Value: rec.RepresentativeID},
		"counterpartId":    &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.CounterpartID, 10)},
		"timestamp":        &types.AttributeValueMemberS{Value: rec.Timestamp.UTC().Format(time.RFC3339Nano)},
		"direction":        &types.AttributeValueMemberS{Value: string(rec.Direction)},
		"isFirstContact":   &types.AttributeValueMemberBOOL{Value: rec.IsFirstContact},
	}
	if rec.RepresentativeName != "" {
		item["representativeName"] = &types.AttributeValueMemberS{Value: rec.RepresentativeName}
	}
	if rec.ChannelSource != nil {
		item["channelSource"] = &types.AttributeValueMemberS{Value: *rec.ChannelSource}
	}
	if rec.ResponseLatencyMinutes != nil {
		item["responseLatencyMinutes"] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(*rec.ResponseLatencyMinutes, 'f', -1, 64)}
	}
	if rec.MessageExcerpt != nil {
		item["messageExcerpt"] = &types.AttributeValueMemberS{Value: *rec.MessageExcerpt}
	}
	return item
}

func itemToConversation(item map[string]types.AttributeValue) (records.ConversationRecord, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return records.ConversationRecord{}, err
	}
	rep, err := strAttr(item, "representativeId")
	if err != nil {
		return records.ConversationRecord{}, err
	}
	cp, err := int64Attr(item, "counterpartId")
	if err != nil {
		return records.ConversationRecord{}, err
	}
	rawTS, err := strAttr(item, "timestamp")
	if err != nil {
		return records.ConversationRecord{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return records.ConversationRecord{}, fmt.Errorf("dynamo: parse timestamp: %w", err)
	}
	direction, err := strAttr(item, "direction")
	if err != nil {
		return records.ConversationRecord{}, err
	}

	rec := records.ConversationRecord{
		ID:               id,
		RepresentativeID: rep,
		CounterpartID:    cp,
		Timestamp:        ts,
		Direction:        records.Direction(direction),
	}
	if v, ok := item["isFirstContact"].(*types.AttributeValueMemberBOOL); ok {
		rec.IsFirstContact = v.Value
	}
	rec.RepresentativeName, _ = strAttr(item, "representativeName") // optional
	if s, err := strAttr(item, "channelSource"); err == nil {
		rec.ChannelSource = &s
	}
	if s, err := strAttr(item, "messageExcerpt"); err == nil {
		rec.MessageExcerpt = &s
	}
	if f, err := floatAttr(item, "responseLatencyMinutes"); err == nil {
		rec.ResponseLatencyMinutes = &f
	}
	return rec, nil
}

func dailyItem(s records.DailyStats) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":                    &types.AttributeValueMemberS{Value: dailyPK(s.RepresentativeID)},
		"SK":                    &types.AttributeValueMemberS{Value: skPrefixDate + s.Date},
		"representativeId":      &types.AttributeValueMemberS{Value: s.RepresentativeID},
		"date":                  &types.AttributeValueMemberS{Value: s.Date},
		"newCounterparts":       &types.AttributeValueMemberN{Value: strconv.Itoa(s.NewCounterparts)},
		"returningCounterparts": &types.AttributeValueMemberN{Value: strconv.Itoa(s.ReturningCounterparts)},
		"totalConversations":    &types.AttributeValueMemberN{Value: strconv.Itoa(s.TotalConversations)},
		"messagesSent":          &types.AttributeValueMemberN{Value: strconv.Itoa(s.MessagesSent)},
		"messagesReceived":      &types.AttributeValueMemberN{Value: strconv.Itoa(s.MessagesReceived)},
		"computedAt":            &types.AttributeValueMemberN{Value: strconv.FormatInt(s.ComputedAt.UnixNano(), 10)},
	}
	if s.AvgResponseLatencyMinutes != nil {
		item["avgResponseLatencyMinutes"] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(*s.AvgResponseLatencyMinutes, 'f', -1, 64)}
	}
	return item
}

func itemToDaily(item map[string]types.AttributeValue) (records.DailyStats, error) {
	var s records.DailyStats
	var err error

	if s.RepresentativeID, err = strAttr(item, "representativeId"); err != nil {
		return s, err
	}
	if s.Date, err = strAttr(item, "date"); err != nil {
		return s, err
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"newCounterparts", &s.NewCounterparts},
		{"returningCounterparts", &s.ReturningCounterparts},
		{"totalConversations", &s.TotalConversations},
		{"messagesSent", &s.MessagesSent},
		{"messagesReceived", &s.MessagesReceived},
	}
	for _, f := range ints {
		n, err := int64Attr(item, f.key)
		if err != nil {
			return s, err
		}
		*f.dst = int(n)
	}
	if nanos, err := int64Attr(item, "computedAt"); err == nil {
		s.ComputedAt = time.Unix(0, nanos).UTC()
	}
	if avg, err := floatAttr(item, "avgResponseLatencyMinutes"); err == nil {
		s.AvgResponseLatencyMinutes = &avg
	}
	return s, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("dynamo: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamo: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func numAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("dynamo: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return "", fmt.Errorf("dynamo: attribute %q is not a number", key)
	}
	return n.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	raw, err := numAttr(item, key)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("dynamo: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func floatAttr(item map[string]types.AttributeValue, key string) (float64, error) {
	raw, err := numAttr(item, key)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("dynamo: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
