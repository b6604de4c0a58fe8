package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptKey_RoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if strings.Contains(string(blob), testKeyHex) {
		t.Fatal("ciphertext blob contains the plaintext key")
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("decrypted = %s, want original key", got)
	}
}

func TestDecryptKey_WrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatal("expected decryption with the wrong password to fail")
	}
}

func TestEncryptKey_EmptyPassword(t *testing.T) {
	if _, err := EncryptKey(testKeyHex, ""); err == nil {
		t.Fatal("expected an error for an empty password")
	}
}

func TestLoadKey(t *testing.T) {
	t.Run("raw key wins", func(t *testing.T) {
		got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
		if err != nil {
			t.Fatalf("LoadKey: %v", err)
		}
		if !strings.HasSuffix(got, testKeyHex) {
			t.Errorf("got %s", got)
		}
	})

	t.Run("encrypted file", func(t *testing.T) {
		blob, err := EncryptKey(testKeyHex, "hunter2")
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(t.TempDir(), "key.json")
		if err := os.WriteFile(path, blob, 0o600); err != nil {
			t.Fatal(err)
		}

		got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
		if err != nil {
			t.Fatalf("LoadKey: %v", err)
		}
		if got != testKeyHex {
			t.Errorf("got %s, want original key", got)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		if _, err := LoadKey(KeyConfig{}); err == nil {
			t.Fatal("expected an error when no key source is configured")
		}
	})
}

func TestSigner_SignOrder(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if s.Address().Hex() == "" {
		t.Fatal("signer has no address")
	}

	order := OrderPayload{
		Salt:        "12345",
		Maker:       s.Address().Hex(),
		Signer:      s.Address().Hex(),
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     "7136059",
		MakerAmount: "50000000",
		TakerAmount: "100000000",
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
		Side:        0,
	}
	sig1, err := s.SignOrder(order)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	sig2, err := s.SignOrder(order)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	if sig1 != sig2 {
		t.Error("signing the same order twice must be deterministic")
	}
	if !strings.HasPrefix(sig1, "0x") || len(sig1) != 132 {
		t.Errorf("signature format: %s", sig1)
	}

	// Any field change must change the signature.
	order.MakerAmount = "50000001"
	sig3, err := s.SignOrder(order)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	if sig3 == sig1 {
		t.Error("different orders produced the same signature")
	}
}
