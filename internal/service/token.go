package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"vendhub-bot/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	// TokenPrefix is the prefix for all admin session tokens
	TokenPrefix = "vhb_"

	// TokenTTL is the default session lifetime (1 hour)
	TokenTTL = 1 * time.Hour

	// TokenRedisKeyPrefix is the Redis key prefix for sessions
	TokenRedisKeyPrefix = "vendhub:admin:token:"
)

// TokenService issues and validates admin dashboard sessions. Sessions
// live in Redis when a client is available and in memory otherwise.
type TokenService struct {
	redis *redis.Client

	mu    sync.Mutex
	local map[string]model.AdminSession
}

// NewTokenService creates a new token service. A nil Redis client
// selects the in-memory fallback.
func NewTokenService(redisClient *redis.Client) *TokenService {
	return &TokenService{
		redis: redisClient,
		local: make(map[string]model.AdminSession),
	}
}

// GenerateToken creates a new admin session token.
func (s *TokenService) GenerateToken(ctx context.Context, subject string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	session := model.AdminSession{
		Subject:   subject,
		CreatedAt: time.Now(),
	}
	session.ExpiresAt = session.CreatedAt.Add(TokenTTL)

	if s.redis == nil {
		s.mu.Lock()
		s.local[token] = session
		s.mu.Unlock()
	} else {
		jsonData, err := json.Marshal(session)
		if err != nil {
			return "", fmt.Errorf("failed to serialize session: %w", err)
		}
		key := TokenRedisKeyPrefix + token
		if err := s.redis.Set(ctx, key, jsonData, TokenTTL).Err(); err != nil {
			return "", fmt.Errorf("failed to store token: %w", err)
		}
	}

	log.Printf("[TokenService] Issued session for subject=%s, expires=%v", subject, session.ExpiresAt)

	return token, nil
}

// ValidateToken checks if a token is valid and returns its session.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*model.AdminSession, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}

	if len(token) < len(TokenPrefix) || token[:len(TokenPrefix)] != TokenPrefix {
		return nil, fmt.Errorf("invalid token format")
	}

	if s.redis == nil {
		s.mu.Lock()
		session, ok := s.local[token]
		if ok && time.Now().After(session.ExpiresAt) {
			delete(s.local, token)
			ok = false
		}
		s.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("token not found or expired")
		}
		return &session, nil
	}

	key := TokenRedisKeyPrefix + token
	jsonData, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("token not found or expired")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var session model.AdminSession
	if err := json.Unmarshal(jsonData, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		s.redis.Del(ctx, key)
		return nil, fmt.Errorf("token expired")
	}

	return &session, nil
}

// RevokeToken deletes a session.
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	if s.redis == nil {
		s.mu.Lock()
		delete(s.local, token)
		s.mu.Unlock()
		return nil
	}
	key := TokenRedisKeyPrefix + token
	return s.redis.Del(ctx, key).Err()
}

// RefreshToken extends the TTL of an existing session.
func (s *TokenService) RefreshToken(ctx context.Context, token string) error {
	if s.redis == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		session, ok := s.local[token]
		if !ok {
			return fmt.Errorf("token not found")
		}
		session.ExpiresAt = time.Now().Add(TokenTTL)
		s.local[token] = session
		return nil
	}

	key := TokenRedisKeyPrefix + token
	jsonData, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return fmt.Errorf("token not found: %w", err)
	}

	var session model.AdminSession
	if err := json.Unmarshal(jsonData, &session); err != nil {
		return err
	}

	session.ExpiresAt = time.Now().Add(TokenTTL)

	newJSON, _ := json.Marshal(session)
	return s.redis.Set(ctx, key, newJSON, TokenTTL).Err()
}
