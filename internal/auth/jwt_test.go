package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateAndParseJWT(t *testing.T) {
	secret := "test-secret"
	walletID := uuid.New()

	token, err := GenerateJWT(secret, "EQTestAddress", walletID, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT(secret, token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.Address != "EQTestAddress" {
		t.Errorf("address = %q", claims.Address)
	}
	if claims.WalletID != walletID {
		t.Errorf("wallet id = %s, want %s", claims.WalletID, walletID)
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT("secret-a", "EQTestAddress", uuid.New(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT("secret-b", token); err == nil {
		t.Fatal("token accepted with wrong secret")
	}
}

func TestParseJWT_Expired(t *testing.T) {
	token, err := GenerateJWT("secret", "EQTestAddress", uuid.New(), -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT("secret", token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestParseJWT_Garbage(t *testing.T) {
	if _, err := ParseJWT("secret", "not.a.token"); err == nil {
		t.Fatal("garbage token accepted")
	}
}
