package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/storage/kv"
	nlog "github.com/yeisme/skelvault/pkg/log"
)

const (
	skeyPrefix        = "skey:"
	sessionSKeyPrefix = "skey-session:"
)

// SecurityKeys 一次性 skey，绑定会话，存放于 KV.
type SecurityKeys struct {
	store      kv.KVStore
	ttl        time.Duration
	sessionTTL time.Duration
}

// NewSecurityKeys 创建 skey 服务.
func NewSecurityKeys(store kv.KVStore, cfg configs.SecurityConfig) *SecurityKeys {
	return &SecurityKeys{store: store, ttl: cfg.SKeyTTL, sessionTTL: cfg.SessionTTL}
}

// SessionID 返回请求的会话标识：优先使用请求头，其次是用户 key.
func SessionID(header string, u *access.User) string {
	if header != "" {
		return header
	}

	if u != nil {
		return u.Key
	}

	return ""
}

// Create 为会话签发一个新的 skey.
func (s *SecurityKeys) Create(ctx context.Context, session string) (string, error) {
	token := uuid.NewString()
	if err := s.store.Set(ctx, skeyPrefix+token, []byte(session), s.ttl); err != nil {
		return "", fmt.Errorf("store skey: %w", err)
	}

	return token, nil
}

// SessionKey 返回会话级 skey，不存在时创建.
func (s *SecurityKeys) SessionKey(ctx context.Context, session string) (string, error) {
	raw, err := s.store.Get(ctx, sessionSKeyPrefix+session)
	if err == nil && len(raw) > 0 {
		return string(raw), nil
	}

	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return "", fmt.Errorf("load session skey: %w", err)
	}

	token := uuid.NewString()
	if err := s.store.Set(ctx, sessionSKeyPrefix+session, []byte(token), s.sessionTTL); err != nil {
		return "", fmt.Errorf("store session skey: %w", err)
	}

	return token, nil
}

// Validate 校验 skey；普通 skey 只能成功一次，acceptSessionKey 时也接受会话级 skey.
func (s *SecurityKeys) Validate(ctx context.Context, token, session string, acceptSessionKey bool) bool {
	if token == "" || session == "" {
		return false
	}

	if acceptSessionKey {
		raw, err := s.store.Get(ctx, sessionSKeyPrefix+session)
		if err == nil && subtle.ConstantTimeCompare(raw, []byte(token)) == 1 {
			return true
		}
	}

	raw, err := s.store.Take(ctx, skeyPrefix+token)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			nlog.Ctx(ctx).Warn().Err(err).Msg("skey lookup failed")
		}

		return false
	}

	return subtle.ConstantTimeCompare(raw, []byte(session)) == 1
}
