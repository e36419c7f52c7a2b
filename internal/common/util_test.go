package common

import (
	"strings"
	"testing"
)

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}

func TestCredentialKeys_CoverEveryCredentialField(t *testing.T) {
	want := []string{KeyAuthToken, KeyAccessToken, KeyRefreshToken, KeyUserEmail, KeyTokenExpiry}
	if len(CredentialKeys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(CredentialKeys))
	}
	for i := range want {
		if CredentialKeys[i] != want[i] {
			t.Fatalf("key %d: expected %q, got %q", i, want[i], CredentialKeys[i])
		}
	}
}

func TestInternalPagePrefixes_AreSchemes(t *testing.T) {
	for _, p := range InternalPagePrefixes {
		if !strings.HasSuffix(p, "://") && !strings.HasSuffix(p, ":") {
			t.Fatalf("prefix %q does not look like a scheme", p)
		}
	}
}
