package redis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/taskwatcher/internal/core/domain"
)

func TestCreditKeyRoundTrip(t *testing.T) {
	addr := "0x00000000000000000000000000000000000000aB"
	key := creditKey(domain.TaskSwap, addr)
	if key != "task:2:"+addr {
		t.Fatalf("unexpected key %q", key)
	}

	id, got, err := parseCreditKey(key)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != domain.TaskSwap || got != addr {
		t.Errorf("got (%d, %s)", id, got)
	}
}

func TestParseCreditKeyRejectsGarbage(t *testing.T) {
	for _, key := range []string{"task:", "task:x:0xabc", "other:1:0xabc", "task:1:"} {
		if _, _, err := parseCreditKey(key); err == nil {
			t.Errorf("expected error for %q", key)
		}
	}
}

func newTestCreditRepo(t *testing.T) (*CreditRepo, *respServer) {
	t.Helper()
	srv := newRESPServer(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:            srv.Addr(),
		Protocol:        2,
		DisableIdentity: true,
		MaxRetries:      -1,
	})
	client := NewClientFrom(rdb)
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return NewCreditRepo(client), srv
}

func TestCreditRepo_InsertIfAbsent(t *testing.T) {
	repo, srv := newTestCreditRepo(t)
	ctx := context.Background()
	addr := "0x0000000000000000000000000000000000000ABC"

	res, err := repo.InsertIfAbsent(ctx, addr, domain.TaskStake)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if res != domain.Inserted {
		t.Errorf("expected Inserted, got %v", res)
	}

	res, err = repo.InsertIfAbsent(ctx, addr, domain.TaskStake)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if res != domain.AlreadyExisted {
		t.Errorf("expected AlreadyExisted, got %v", res)
	}

	// Same user, other task is a separate credit.
	res, err = repo.InsertIfAbsent(ctx, addr, domain.TaskDeposit)
	if err != nil {
		t.Fatalf("insert deposit: %v", err)
	}
	if res != domain.Inserted {
		t.Errorf("expected Inserted for deposit, got %v", res)
	}

	want := []string{"task:1:" + addr, "task:3:" + addr}
	if got := srv.keys(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func TestCreditRepo_ListAndCount(t *testing.T) {
	repo, _ := newTestCreditRepo(t)
	ctx := context.Background()

	for _, c := range []struct {
		addr string
		task domain.TaskID
	}{
		{"0x00000000000000000000000000000000000000b2", domain.TaskSwap},
		{"0x00000000000000000000000000000000000000a1", domain.TaskSwap},
		{"0x00000000000000000000000000000000000000a1", domain.TaskStake},
	} {
		if _, err := repo.InsertIfAbsent(ctx, c.addr, c.task); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 credits, got %d", count)
	}

	swap := domain.TaskSwap
	records, err := repo.List(ctx, &swap)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 swap credits, got %d", len(records))
	}
	if records[0].UserAddress != "0x00000000000000000000000000000000000000a1" || records[0].TaskID != domain.TaskSwap {
		t.Errorf("unexpected first record %+v", records[0])
	}
	if records[0].CreatedAt.IsZero() {
		t.Error("expected creation time to be parsed")
	}

	all, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].TaskID != domain.TaskStake {
		t.Errorf("unexpected records %+v", all)
	}
}

func TestCreditRepo_ServerDownIsStoreError(t *testing.T) {
	repo, srv := newTestCreditRepo(t)
	srv.Close()
	_ = repo.rdb.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:            srv.Addr(),
		Protocol:        2,
		DisableIdentity: true,
		MaxRetries:      -1,
	})
	defer rdb.Close()
	down := NewCreditRepo(NewClientFrom(rdb))

	_, err := down.InsertIfAbsent(context.Background(), "0xabc", domain.TaskStake)
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}
