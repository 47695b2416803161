package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/NextMind-AI/repstats/records"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	latestPageSize  = 50
	maxWatchRetries = 5
)

type Client struct {
	rdb    *redis.Client
	prefix string
}

func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	client := &Client{rdb: rdb}

	if err := client.Ping(ctx); err != nil {
		log.Error().Err(err).
			Str("addr", addr).
			Int("db", db).
			Msg("Redis connection failed")
		return nil, err
	}

	log.Info().
		Str("addr", addr).
		Int("db", db).
		Msg("Redis connected successfully")

	return client, nil
}

// WithKeyPrefix namespaces every key written by the returned client.
func (c *Client) WithKeyPrefix(prefix string) *Client {
	return &Client{rdb: c.rdb, prefix: prefix}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return wrapErr("ping", c.rdb.Ping(ctx).Err())
}

func (c *Client) repKey(rep string) string {
	return fmt.Sprintf("%sconversations:%s", c.prefix, rep)
}

func (c *Client) pairKey(rep string, cp int64) string {
	return fmt.Sprintf("%sconversations:%s:%d", c.prefix, rep, cp)
}

func (c *Client) allKey() string {
	return c.prefix + "conversations:all"
}

func (c *Client) firstSeenKey(rep string) string {
	return fmt.Sprintf("%sfirst_seen:%s", c.prefix, rep)
}

func (c *Client) dailyKey(rep string) string {
	return fmt.Sprintf("%sdaily_stats:%s", c.prefix, rep)
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func (c *Client) AppendConversation(ctx context.Context, rec records.ConversationRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: marshal conversation: %w", err)
	}

	member := redis.Z{Score: score(rec.Timestamp), Member: recordJSON}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, c.repKey(rec.RepresentativeID), member)
		pipe.ZAdd(ctx, c.pairKey(rec.RepresentativeID, rec.CounterpartID), member)
		pipe.ZAdd(ctx, c.allKey(), member)
		return nil
	})
	return wrapErr("append conversation", err)
}

func (c *Client) ConversationsBetween(ctx context.Context, representativeID string, from, to time.Time) ([]records.ConversationRecord, error) {
	return c.rangeByTime(ctx, c.repKey(representativeID), from, to)
}

func (c *Client) AllConversationsBetween(ctx context.Context, from, to time.Time) ([]records.ConversationRecord, error) {
	return c.rangeByTime(ctx, c.allKey(), from, to)
}

func (c *Client) rangeByTime(ctx context.Context, key string, from, to time.Time) ([]records.ConversationRecord, error) {
	members, err := c.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMicro(), 10),
		Max: "(" + strconv.FormatInt(to.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return nil, wrapErr("range conversations", err)
	}

	out := make([]records.ConversationRecord, 0, len(members))
	for _, member := range members {
		var rec records.ConversationRecord
		if err := json.Unmarshal([]byte(member), &rec); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Skipping undecodable conversation record")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) LatestForPair(ctx context.Context, representativeID string, counterpartID int64, direction records.Direction) (*records.ConversationRecord, error) {
	key := c.pairKey(representativeID, counterpartID)

	for start := int64(0); ; start += latestPageSize {
		members, err := c.rdb.ZRevRange(ctx, key, start, start+latestPageSize-1).Result()
		if err != nil {
			return nil, wrapErr("latest for pair", err)
		}
		for _, member := range members {
			var rec records.ConversationRecord
			if err := json.Unmarshal([]byte(member), &rec); err != nil {
				continue
			}
			if direction == "" || rec.Direction == direction {
				return &rec, nil
			}
		}
		if len(members) < latestPageSize {
			return nil, nil
		}
	}
}

func (c *Client) FirstSeen(ctx context.Context, representativeID string, counterpartID int64) (*records.FirstSeenEntry, error) {
	date, err := c.rdb.HGet(ctx, c.firstSeenKey(representativeID), strconv.FormatInt(counterpartID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("first seen", err)
	}
	return &records.FirstSeenEntry{
		RepresentativeID: representativeID,
		CounterpartID:    counterpartID,
		FirstContactDate: date,
	}, nil
}

// PutFirstSeen relies on HSETNX so concurrent writers converge on one anchor.
func (c *Client) PutFirstSeen(ctx context.Context, entry records.FirstSeenEntry) (records.FirstSeenEntry, error) {
	key := c.firstSeenKey(entry.RepresentativeID)
	field := strconv.FormatInt(entry.CounterpartID, 10)

	created, err := c.rdb.HSetNX(ctx, key, field, entry.FirstContactDate).Result()
	if err != nil {
		return entry, wrapErr("put first seen", err)
	}
	if created {
		return entry, nil
	}

	existing, err := c.rdb.HGet(ctx, key, field).Result()
	if err != nil {
		return entry, wrapErr("read first seen winner", err)
	}
	entry.FirstContactDate = existing
	return entry, nil
}

// UpsertDailyStats replaces the (representative, date) row inside a WATCH
// transaction; a row computed later than stats is left in place.
func (c *Client) UpsertDailyStats(ctx context.Context, stats records.DailyStats) error {
	key := c.dailyKey(stats.RepresentativeID)

	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("redis: marshal daily stats: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, stats.Date).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var existing records.DailyStats
			if json.Unmarshal([]byte(current), &existing) == nil && !stats.Supersedes(existing) {
				log.Debug().
					Str("representative_id", stats.RepresentativeID).
					Str("date", stats.Date).
					Msg("Stale daily stats ignored")
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, stats.Date, statsJSON)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = c.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return wrapErr("upsert daily stats", err)
		}
		log.Debug().
			Str("representative_id", stats.RepresentativeID).
			Int("attempt", attempt+1).
			Msg("Daily stats upsert raced, retrying")
	}
	return fmt.Errorf("redis: upsert daily stats: %w", err)
}

func (c *Client) DailyStatsBetween(ctx context.Context, representativeID, fromDate, toDate string) ([]records.DailyStats, error) {
	rows, err := c.rdb.HGetAll(ctx, c.dailyKey(representativeID)).Result()
	if err != nil {
		return nil, wrapErr("daily stats", err)
	}

	var out []records.DailyStats
	for date, raw := range rows {
		if date < fromDate || date > toDate {
			continue
		}
		var row records.DailyStats
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			log.Warn().Err(err).Str("date", date).Msg("Skipping undecodable daily stats row")
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("redis: %s: %w: %v", op, records.ErrUnavailable, err)
	}
	return fmt.Errorf("redis: %s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
