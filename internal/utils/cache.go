package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"strconv"
	"time" // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// CacheTTL is the default lifetime of cached responses
const CacheTTL = 60 * time.Second

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, keys ...string) error {
	return rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// DeletePattern removes every key matching a glob pattern, walking with SCAN
func DeletePattern(ctx context.Context, rdb *redis.Client, pattern string) error {
	iter := rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

// Cache keys
func WalletKey(userID uint) string    { return "wallet:user:" + strconv.Itoa(int(userID)) }
func TxHistoryKey(userID uint) string { return "txhistory:user:" + strconv.Itoa(int(userID)) }
func PortfolioKey(userID uint) string { return PortfolioPrefix + strconv.Itoa(int(userID)) }

// Cache key prefixes for listings shared across users
const (
	TokenListPrefix  = "tokens:" // public token listings and search pages
	PortfolioPrefix  = "portfolio:user:"
	AdminUsersPrefix = "admin:users:"
	AdminTxsPrefix   = "admin:txs:"
)

// InvalidateUser drops every cached view of a user's money, including the
// admin listings that show it
func InvalidateUser(ctx context.Context, rdb *redis.Client, userID uint) {
	_ = DeleteCache(ctx, rdb, WalletKey(userID), PortfolioKey(userID))
	_ = DeletePattern(ctx, rdb, TxHistoryKey(userID)+":*")
	_ = DeletePattern(ctx, rdb, AdminUsersPrefix+"*")
	_ = DeletePattern(ctx, rdb, AdminTxsPrefix+"*")
}

// InvalidatePortfolios drops every cached portfolio, valued at token prices
// or accrued yield that just changed
func InvalidatePortfolios(ctx context.Context, rdb *redis.Client) {
	_ = DeletePattern(ctx, rdb, PortfolioPrefix+"*")
}

// InvalidateTokens drops cached token listings and search results
func InvalidateTokens(ctx context.Context, rdb *redis.Client) {
	_ = DeletePattern(ctx, rdb, TokenListPrefix+"*")
}
