package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
)

const creditKeyPrefix = "task:"

// CreditRepo implements storage.CreditLedger with one key per credit,
// task:{id}:{address}, whose value is the creation time in unix seconds.
// SETNX makes the insert atomic.
type CreditRepo struct {
	rdb *redis.Client
}

var _ storage.CreditLedger = (*CreditRepo)(nil)

func NewCreditRepo(client *Client) *CreditRepo {
	return &CreditRepo{rdb: client.rdb}
}

func creditKey(taskID domain.TaskID, userAddress string) string {
	return fmt.Sprintf("%s%d:%s", creditKeyPrefix, int(taskID), userAddress)
}

func parseCreditKey(key string) (domain.TaskID, string, error) {
	rest, ok := strings.CutPrefix(key, creditKeyPrefix)
	if !ok {
		return 0, "", fmt.Errorf("invalid credit key: %s", key)
	}
	idPart, addr, ok := strings.Cut(rest, ":")
	if !ok || addr == "" {
		return 0, "", fmt.Errorf("invalid credit key: %s", key)
	}
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return 0, "", fmt.Errorf("invalid task id in key %s: %w", key, err)
	}
	return domain.TaskID(id), addr, nil
}

func (r *CreditRepo) InsertIfAbsent(
	ctx context.Context,
	userAddress string,
	taskID domain.TaskID,
) (domain.InsertResult, error) {
	key := creditKey(taskID, userAddress)
	ok, err := r.rdb.SetNX(ctx, key, time.Now().Unix(), 0).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: setnx failed: %w", domain.ErrStore, err)
	}
	if !ok {
		return domain.AlreadyExisted, nil
	}
	return domain.Inserted, nil
}

func (r *CreditRepo) List(ctx context.Context, taskID *domain.TaskID) ([]domain.CreditRecord, error) {
	pattern := creditKeyPrefix + "*"
	if taskID != nil {
		pattern = fmt.Sprintf("%s%d:*", creditKeyPrefix, int(*taskID))
	}

	keys, err := r.scan(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: mget failed: %w", domain.ErrStore, err)
	}

	records := make([]domain.CreditRecord, 0, len(keys))
	for i, key := range keys {
		id, addr, err := parseCreditKey(key)
		if err != nil {
			continue
		}
		record := domain.CreditRecord{UserAddress: addr, TaskID: id}
		if s, ok := values[i].(string); ok {
			if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
				record.CreatedAt = time.Unix(unix, 0)
			}
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].TaskID != records[j].TaskID {
			return records[i].TaskID < records[j].TaskID
		}
		return records[i].UserAddress < records[j].UserAddress
	})
	return records, nil
}

func (r *CreditRepo) Count(ctx context.Context) (int64, error) {
	keys, err := r.scan(ctx, creditKeyPrefix+"*")
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

func (r *CreditRepo) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, pattern, 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan failed: %w", domain.ErrStore, err)
	}
	return keys, nil
}
