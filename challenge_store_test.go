package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestChallengeStore(rdb *redis.Client) *challengeStore {
	return newChallengeStore(rdb, ChallengeConfig{
		Digits:      6,
		TTL:         5 * time.Minute,
		Cooldown:    60 * time.Second,
		Retention:   time.Hour,
		RedisPrefix: "otp",
	})
}

// plantRecord writes a raw challenge record, bypassing the cooldown gate.
func plantRecord(t *testing.T, rdb *redis.Client, store *challengeStore, contact string, record *challengeRecord) {
	t.Helper()

	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		t.Fatalf("encode record: %v", err)
	}
	if err := rdb.Set(context.Background(), store.key(contact), encoded, time.Hour).Err(); err != nil {
		t.Fatalf("set record: %v", err)
	}
}

func TestChallengeStoreIssueAndPeek(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newTestChallengeStore(rdb)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "a@example.com", "123456"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	record, err := store.Peek(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if record.Code != "123456" {
		t.Fatalf("unexpected code %q", record.Code)
	}
	if record.Attempts != 0 || record.Verified {
		t.Fatalf("fresh record should have attempts=0 verified=false, got %+v", record)
	}
	if record.ExpiresAt <= record.IssuedAt {
		t.Fatalf("expiry must be after issuance: %+v", record)
	}
}

func TestChallengeStoreIssueCooldown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newTestChallengeStore(rdb)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "a@example.com", "111111"); err != nil {
		t.Fatalf("first Issue failed: %v", err)
	}

	wait, err := store.Issue(ctx, "a@example.com", "222222")
	if !errors.Is(err, errChallengeCooldown) {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	if wait < 59 || wait > 60 {
		t.Fatalf("expected wait close to 60s, got %d", wait)
	}

	// The earlier code must still be live.
	record, err := store.Peek(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if record.Code != "111111" {
		t.Fatalf("cooldown must not replace the challenge, got code %q", record.Code)
	}
}

func TestChallengeStoreIssueReplacesAfterCooldown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newTestChallengeStore(rdb)
	ctx := context.Background()

	now := time.Now()
	plantRecord(t, rdb, store, "a@example.com", &challengeRecord{
		Code:      "111111",
		IssuedAt:  now.Add(-2 * time.Minute).Unix(),
		ExpiresAt: now.Add(3 * time.Minute).Unix(),
		Attempts:  4,
	})

	if _, err := store.Issue(ctx, "a@example.com", "222222"); err != nil {
		t.Fatalf("Issue after cooldown failed: %v", err)
	}

	record, err := store.Peek(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if record.Code != "222222" || record.Attempts != 0 {
		t.Fatalf("reissue must overwrite code and reset attempts, got %+v", record)
	}
}

func TestChallengeStoreConsumeMissing(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newTestChallengeStore(rdb)

	err := store.Consume(context.Background(), "nobody@example.com", "123456")
	if !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChallengeStoreConsumeWrongCodeIncrementsAttempts(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newTestChallengeStore(rdb)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "a@example.com", "123456"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := store.Consume(ctx, "a@example.com", "000000"); !errors.Is(err, errChallengeCodeMismatch) {
			t.Fatalf("expected code mismatch, got %v", err)
		}
		record, err := store.Peek(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("record must survive a wrong code: %v", err)
		}
		if int(record.Attempts) != i {
			t.Fatalf("expected attempts=%d, got %d", i, record.Attempts)
		}
	}

	// The correct code still verifies after failed attempts.
	if err := store.Consume(ctx, "a@example.com", "123456"); err != nil {
		t.Fatalf("correct code must still verify: %v", err)
	}
}

func TestChallengeStoreConsumeSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newTestChallengeStore(rdb)
	ctx := context.Background()

	if _, err := store.Issue(ctx, "a@example.com", "123456"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := store.Consume(ctx, "a@example.com", "123456"); err != nil {
		t.Fatalf("first Consume failed: %v", err)
	}
	if err := store.Consume(ctx, "a@example.com", "123456"); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("second Consume must miss, got %v", err)
	}
}

func TestChallengeStoreConsumeExpiredLeavesRecord(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newTestChallengeStore(rdb)
	ctx := context.Background()

	now := time.Now()
	plantRecord(t, rdb, store, "a@example.com", &challengeRecord{
		Code:      "123456",
		IssuedAt:  now.Add(-10 * time.Minute).Unix(),
		ExpiresAt: now.Add(-5 * time.Minute).Unix(),
	})

	if err := store.Consume(ctx, "a@example.com", "123456"); !errors.Is(err, errChallengeRecordExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	if _, err := store.Peek(ctx, "a@example.com"); err != nil {
		t.Fatalf("expired record must stay until retention cleanup: %v", err)
	}
}

func TestChallengeRecordCodec(t *testing.T) {
	original := &challengeRecord{
		Code:      "987654",
		IssuedAt:  1700000000,
		ExpiresAt: 1700000300,
		Attempts:  7,
		Verified:  false,
	}

	encoded, err := encodeChallengeRecord(original)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := decodeChallengeRecord(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if *decoded != *original {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, original)
	}

	if _, err := decodeChallengeRecord([]byte{99}); err == nil {
		t.Fatal("unknown version must be rejected")
	}
}
