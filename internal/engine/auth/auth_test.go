package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
)

func TestVerifySignatures(t *testing.T) {
	owner := solana.NewWallet()
	other := solana.NewWallet()
	msg := []byte("message")
	sig, err := owner.PrivateKey.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	forged, err := other.PrivateKey.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	accounts := []*solana.AccountMeta{
		solana.Meta(owner.PublicKey()).SIGNER(),
		solana.Meta(other.PublicKey()),
	}

	signed := VerifySignatures(msg, accounts, []solana.Signature{sig})
	if _, err := RequireSigner(accounts, 0, signed); err != nil {
		t.Fatalf("expected owner signed: %v", err)
	}
	if _, err := RequireSigner(accounts, 1, signed); !errors.Is(err, domain.ErrMissingRequiredSignature) {
		t.Fatalf("expected missing signature for non-signer, got %v", err)
	}
	if _, err := RequireSigner(accounts, 2, signed); !errors.Is(err, domain.ErrInvalidInstruction) {
		t.Fatalf("expected invalid instruction for missing account, got %v", err)
	}

	signed = VerifySignatures(msg, accounts, []solana.Signature{forged})
	if _, err := RequireSigner(accounts, 0, signed); !errors.Is(err, domain.ErrMissingRequiredSignature) {
		t.Fatalf("expected forged signature rejected, got %v", err)
	}
	signed = VerifySignatures(msg, accounts, nil)
	if _, err := RequireSigner(accounts, 0, signed); !errors.Is(err, domain.ErrMissingRequiredSignature) {
		t.Fatalf("expected missing signature, got %v", err)
	}
}

func TestOwnerAndSurveyChecks(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	if err := RequireOwner(a, a); err != nil {
		t.Fatalf("owner match: %v", err)
	}
	if err := RequireOwner(a, b); !errors.Is(err, domain.ErrInvalidOwner) {
		t.Fatalf("expected invalid owner, got %v", err)
	}
	if err := RequireSurvey("s1", "s1"); err != nil {
		t.Fatalf("survey match: %v", err)
	}
	if err := RequireSurvey("s1", "s2"); !errors.Is(err, domain.ErrSurveyNotFound) {
		t.Fatalf("expected survey not found, got %v", err)
	}
}

func TestValidateSurveyID(t *testing.T) {
	if err := ValidateSurveyID(strings.Repeat("a", 64)); err != nil {
		t.Fatalf("64 bytes should pass: %v", err)
	}
	for _, id := range []string{"", strings.Repeat("a", 65)} {
		if err := ValidateSurveyID(id); !errors.Is(err, domain.ErrInvalidMetadata) {
			t.Fatalf("expected invalid metadata for %d bytes, got %v", len(id), err)
		}
	}
}
