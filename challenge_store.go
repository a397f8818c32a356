package authcore

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersionV1 = 1

var (
	errChallengeNotFound         = errors.New("challenge record not found")
	errChallengeCodeMismatch     = errors.New("challenge code mismatch")
	errChallengeRecordExpired    = errors.New("challenge record expired")
	errChallengeCooldown         = errors.New("challenge cooldown active")
	errChallengeRedisUnavailable = errors.New("challenge redis unavailable")
)

// challengeRecord is the stored shape of one OTP challenge. At most one
// record exists per contact; issuance overwrites unconditionally. A record
// outlives ExpiresAt by the configured retention window so verification can
// distinguish an expired challenge from a missing one; the Redis TTL is the
// eventual cleanup.
type challengeRecord struct {
	Code      string
	IssuedAt  int64
	ExpiresAt int64
	Attempts  uint16
	Verified  bool
}

type challengeStore struct {
	redis     *redis.Client
	prefix    string
	ttl       time.Duration
	cooldown  time.Duration
	retention time.Duration
}

func newChallengeStore(redisClient *redis.Client, cfg ChallengeConfig) *challengeStore {
	return &challengeStore{
		redis:     redisClient,
		prefix:    cfg.RedisPrefix,
		ttl:       cfg.TTL,
		cooldown:  cfg.Cooldown,
		retention: cfg.Retention,
	}
}

func (s *challengeStore) key(contact string) string {
	return s.prefix + ":" + contact
}

// Issue writes a fresh challenge for contact, replacing any prior record.
// When an unverified record issued less than the cooldown ago exists, Issue
// fails with errChallengeCooldown and reports the whole seconds left. The
// read-check-write runs under WATCH so two concurrent issuances for the
// same contact cannot both pass the cooldown gate.
func (s *challengeStore) Issue(ctx context.Context, contact, code string) (int, error) {
	const maxRetries = 4
	key := s.key(contact)

	for i := 0; i < maxRetries; i++ {
		wait := 0

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil && err != redis.Nil {
				return err
			}

			now := time.Now()
			if err == nil {
				record, decodeErr := decodeChallengeRecord(data)
				if decodeErr == nil && !record.Verified {
					elapsed := now.Sub(time.Unix(record.IssuedAt, 0))
					if elapsed < s.cooldown {
						wait = int((s.cooldown - elapsed + time.Second - 1) / time.Second)
						return errChallengeCooldown
					}
				}
				// A corrupt or verified leftover is overwritten below.
			}

			fresh := &challengeRecord{
				Code:      code,
				IssuedAt:  now.Unix(),
				ExpiresAt: now.Add(s.ttl).Unix(),
				Attempts:  0,
				Verified:  false,
			}
			encoded, err := encodeChallengeRecord(fresh)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, s.ttl+s.retention)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, errChallengeCooldown) {
				return wait, err
			}
			return 0, fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
		}
		return 0, nil
	}

	return 0, errChallengeRedisUnavailable
}

// Consume verifies code against the live challenge for contact and deletes
// it on success. A wrong code increments the attempt counter in place and
// fails with errChallengeCodeMismatch. A correct code past the expiry
// instant fails with errChallengeRecordExpired and leaves the record for
// the retention TTL to reap. The whole read-modify-write is one WATCH
// transaction keyed by contact: of two concurrent verifications exactly one
// deletes the record, the other observes a miss.
func (s *challengeStore) Consume(ctx context.Context, contact, code string) error {
	const maxRetries = 4
	key := s.key(contact)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeChallengeRecord(data)
			if err != nil {
				return err
			}
			if record.Verified {
				return errChallengeNotFound
			}

			if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
				record.Attempts++
				ttl := time.Until(time.Unix(record.ExpiresAt, 0)) + s.retention
				if ttl <= 0 {
					return errChallengeCodeMismatch
				}
				updated, err := encodeChallengeRecord(record)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errChallengeCodeMismatch
			}

			if time.Now().Unix() >= record.ExpiresAt {
				return errChallengeRecordExpired
			}

			// Single use: the verified=true transition and the delete are
			// one atomic step.
			record.Verified = true
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return errChallengeNotFound
			case errors.Is(err, errChallengeNotFound),
				errors.Is(err, errChallengeCodeMismatch),
				errors.Is(err, errChallengeRecordExpired):
				return err
			default:
				return fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
			}
		}
		return nil
	}

	return errChallengeNotFound
}

// Peek returns the current record for contact without mutating it. Used by
// tests and introspection only.
func (s *challengeStore) Peek(ctx context.Context, contact string) (*challengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(contact)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}
	return decodeChallengeRecord(data)
}

func encodeChallengeRecord(record *challengeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(challengeRecordVersionV1)
	if record.Verified {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Code) > 255 {
		return nil, errors.New("challenge record code too long")
	}
	buf.WriteByte(byte(len(record.Code)))
	buf.WriteString(record.Code)

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*challengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersionV1 {
		return nil, errors.New("invalid challenge record version")
	}

	verified, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &challengeRecord{
		Verified: verified == 1,
	}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	codeLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(reader, code); err != nil {
		return nil, err
	}
	record.Code = string(code)

	return record, nil
}
