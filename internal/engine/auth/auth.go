// Package auth holds the authorization checks every instruction runs before touching state:
// signature verification over the submitted message, owner matching and record matching.
package auth

import (
	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
)

// Signers is the set of account keys whose signatures verified over the message.
type Signers map[solana.PublicKey]struct{}

func (s Signers) Has(key solana.PublicKey) bool {
	_, ok := s[key]
	return ok
}

// VerifySignatures checks signatures against the accounts flagged as signers, in order. Extra
// signatures are ignored; a missing or invalid one yields no entry for that key, and the
// operation that needs it reports MissingRequiredSignature.
func VerifySignatures(message []byte, accounts []*solana.AccountMeta, signatures []solana.Signature) Signers {
	out := make(Signers)
	i := 0
	for _, meta := range accounts {
		if meta == nil || !meta.IsSigner {
			continue
		}
		if i >= len(signatures) {
			break
		}
		if signatures[i].Verify(meta.PublicKey, message) {
			out[meta.PublicKey] = struct{}{}
		}
		i++
	}
	return out
}

// RequireSigner returns the key of accounts[idx] if it is flagged as a signer and its signature
// verified. A missing account is an InvalidInstruction.
func RequireSigner(accounts []*solana.AccountMeta, idx int, signed Signers) (solana.PublicKey, error) {
	if idx >= len(accounts) || accounts[idx] == nil {
		return solana.PublicKey{}, domain.Errorf(domain.CodeInvalidInstruction, "missing account %d", idx)
	}
	meta := accounts[idx]
	if !meta.IsSigner || !signed.Has(meta.PublicKey) {
		return solana.PublicKey{}, domain.Errorf(domain.CodeMissingRequiredSignature, "%s", meta.PublicKey)
	}
	return meta.PublicKey, nil
}

// RequireOwner fails with InvalidOwner unless signer is the stored owner.
func RequireOwner(signer, owner solana.PublicKey) error {
	if !signer.Equals(owner) {
		return domain.Errorf(domain.CodeInvalidOwner, "signer %s is not the survey owner", signer)
	}
	return nil
}

// RequireSurvey fails with SurveyNotFound unless the payload names the stored survey.
func RequireSurvey(payload, stored string) error {
	if payload != stored {
		return domain.Errorf(domain.CodeSurveyNotFound, "record holds survey %q, instruction names %q", stored, payload)
	}
	return nil
}

// ValidateSurveyID fails with InvalidMetadata for an empty or oversized survey id.
func ValidateSurveyID(id string) error {
	if id == "" {
		return domain.Errorf(domain.CodeInvalidMetadata, "survey id is empty")
	}
	if len(id) > domain.MaxSurveyIDLen {
		return domain.Errorf(domain.CodeInvalidMetadata, "survey id is %d bytes, max %d", len(id), domain.MaxSurveyIDLen)
	}
	return nil
}
