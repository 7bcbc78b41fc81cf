package auth

import (
	"testing"

	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "thriftndrift",
		ExpirationMinutes: 60,
	}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	want := Identity{ID: "user-1", Email: "user@example.com", DisplayName: "Pat"}

	token, err := IssueAccessToken(cfg, want)
	if err != nil {
		t.Fatalf("IssueAccessToken error = %v", err)
	}

	got, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseAccessToken error = %v", err)
	}
	if got != want {
		t.Errorf("identity = %+v, want %+v", got, want)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	token, err := IssueAccessToken(cfg, Identity{ID: "user-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken error = %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); !apperrors.Is(err, apperrors.CodeUnauthorized) {
		t.Fatalf("ParseAccessToken error = %v, want unauthorized", err)
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	token, err := IssueAccessToken(cfg, Identity{ID: "user-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken error = %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); !apperrors.Is(err, apperrors.CodeUnauthorized) {
		t.Fatalf("ParseAccessToken error = %v, want unauthorized", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	cfg.ExpirationMinutes = -5

	token, err := IssueAccessToken(cfg, Identity{ID: "user-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken error = %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); !apperrors.Is(err, apperrors.CodeUnauthorized) {
		t.Fatalf("ParseAccessToken error = %v, want unauthorized", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := ParseAccessToken(testJWTConfig(), "not-a-token"); !apperrors.Is(err, apperrors.CodeUnauthorized) {
		t.Fatalf("ParseAccessToken error = %v, want unauthorized", err)
	}
}
