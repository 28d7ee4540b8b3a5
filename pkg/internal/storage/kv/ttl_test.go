package kv

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestSealUnseal(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	plain := seal([]byte("v"), 0, now)
	if !bytes.Equal(plain, []byte("v")) {
		t.Fatalf("value without ttl must be stored as is, got %q", plain)
	}

	sealed := seal([]byte("v"), time.Second, now)

	val, live, err := unseal(sealed, now.Add(999*time.Millisecond))
	if err != nil || !live || string(val) != "v" {
		t.Fatalf("before expiry = %q %v %v", val, live, err)
	}

	if _, live, _ := unseal(sealed, now.Add(time.Second)); live {
		t.Fatal("value must expire at the deadline")
	}

	if _, _, err := unseal(envelopeMagic, now); !errors.Is(err, errEnvelope) {
		t.Fatalf("truncated envelope err = %v", err)
	}
}
