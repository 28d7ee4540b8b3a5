package kv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// 带过期时间的值在前面加 envelopeMagic 与 8 字节的过期时刻（unix 纳秒，大端），
// 没有 ttl 的值原样存储. 后端自身不支持逐键过期时（memory、nats、groupcache）使用.
var envelopeMagic = []byte("svttl\x01")

const envelopeHeader = 6 + 8

var errEnvelope = errors.New("kv: truncated ttl envelope")

// seal 为 ttl>0 的值加上过期时刻.
func seal(value []byte, ttl time.Duration, now time.Time) []byte {
	if ttl <= 0 {
		return value
	}

	out := make([]byte, envelopeHeader, envelopeHeader+len(value))
	copy(out, envelopeMagic)
	binary.BigEndian.PutUint64(out[len(envelopeMagic):], uint64(now.Add(ttl).UnixNano()))

	return append(out, value...)
}

// unseal 拆出原值，live 为 false 表示已过期.
func unseal(b []byte, now time.Time) (value []byte, live bool, err error) {
	if !bytes.HasPrefix(b, envelopeMagic) {
		return b, true, nil
	}

	if len(b) < envelopeHeader {
		return nil, false, errEnvelope
	}

	expires := int64(binary.BigEndian.Uint64(b[len(envelopeMagic):envelopeHeader]))
	if now.UnixNano() >= expires {
		return nil, false, nil
	}

	return b[envelopeHeader:], true, nil
}
