package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

const (
	timeFormat    = "2006-01-02 15:04:05"
	sessionKeyTpl = "session:%s" // session:${token}
	tokenPrefix   = "sk-hcup-"
)

// TokenManager keeps login sessions as Redis hashes that expire after ttl.
type TokenManager struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewTokenManager(redis *redis.Client, ttl time.Duration) *TokenManager {
	return &TokenManager{redis: redis, ttl: ttl}
}

func generateToken() (string, error) {
	randomBytes := make([]byte, 24)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return tokenPrefix + hex.EncodeToString(randomBytes), nil
}

func (tm *TokenManager) CreateSession(ctx context.Context, student *models.Student) (*models.TokenInfo, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var houseID int64
	if student.HouseID != nil {
		houseID = *student.HouseID
	}

	key := fmt.Sprintf(sessionKeyTpl, token)
	pipe := tm.redis.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"token":                 token,
		"student_id":            student.ID,
		"role":                  string(student.Role),
		"house_id":              houseID,
		"request_count":         0,
		"last_request_dttm_utc": now.Format(timeFormat),
		"created_dttm_utc":      now.Format(timeFormat),
	})
	if tm.ttl > 0 {
		pipe.Expire(ctx, key, tm.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.TokenInfo{
		Token:           token,
		StudentID:       student.ID,
		Role:            student.Role,
		HouseID:         houseID,
		LastRequestTime: now.Truncate(time.Second),
		CreatedTime:     now.Truncate(time.Second),
	}, nil
}

// Lookup returns the session for token, or nil when it does not exist or
// has expired. Every successful lookup bumps the request counter.
func (tm *TokenManager) Lookup(ctx context.Context, token string) (*models.TokenInfo, error) {
	key := fmt.Sprintf(sessionKeyTpl, token)

	exists, err := tm.redis.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	pipe := tm.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "request_count", 1)
	pipe.HSet(ctx, key, "last_request_dttm_utc", now.Format(timeFormat))
	all := pipe.HGetAll(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to update session stats: %w", err)
	}

	values := all.Val()
	if values["token"] != token {
		// expired between the check and the update, drop the stub we recreated
		tm.redis.Del(ctx, key)
		return nil, nil
	}

	studentID, err := strconv.ParseInt(values["student_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", key, err)
	}
	houseID, _ := strconv.ParseInt(values["house_id"], 10, 64)
	reqCount, _ := strconv.Atoi(values["request_count"])
	lastReqTime, _ := time.Parse(timeFormat, values["last_request_dttm_utc"])
	createdTime, _ := time.Parse(timeFormat, values["created_dttm_utc"])

	return &models.TokenInfo{
		Token:           values["token"],
		StudentID:       studentID,
		Role:            models.Role(values["role"]),
		HouseID:         houseID,
		RequestCount:    reqCount,
		LastRequestTime: lastReqTime,
		CreatedTime:     createdTime,
	}, nil
}

func (tm *TokenManager) Revoke(ctx context.Context, token string) error {
	return tm.redis.Del(ctx, fmt.Sprintf(sessionKeyTpl, token)).Err()
}
