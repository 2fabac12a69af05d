// Package keys derives the record addresses the engine reads and writes. Addresses are
// program-derived, so callers can never choose which record an instruction touches.
package keys

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	surveySeed      = "survey"
	participantSeed = "participant"
	programSeed     = "survey-rewards-program"
)

// DefaultProgramID is used when no program id is configured.
var DefaultProgramID = func() solana.PublicKey {
	sum := sha256.Sum256([]byte(programSeed))
	return solana.PublicKeyFromBytes(sum[:])
}()

// SurveySeed hashes the survey id into a fixed 32-byte seed; ids can exceed the seed limit.
func SurveySeed(surveyID string) []byte {
	sum := sha256.Sum256([]byte(surveyID))
	return sum[:]
}

// Campaign returns the campaign record address for surveyID.
func Campaign(programID solana.PublicKey, surveyID string) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(surveySeed), SurveySeed(surveyID)}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive campaign address: %w", err)
	}
	return addr, nil
}

// Participant returns the participant record address for (surveyID, participant).
func Participant(programID solana.PublicKey, surveyID string, participant solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(participantSeed), SurveySeed(surveyID), participant.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive participant address: %w", err)
	}
	return addr, nil
}

// TokenAccount returns the token account address holding mint for owner.
func TokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive token account: %w", err)
	}
	return addr, nil
}
