package keys

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestCampaignAddressIsDeterministic(t *testing.T) {
	a, err := Campaign(DefaultProgramID, "s1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := Campaign(DefaultProgramID, "s1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !a.Equals(b) {
		t.Fatalf("expected same address, got %s and %s", a, b)
	}
	c, err := Campaign(DefaultProgramID, "s2")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a.Equals(c) {
		t.Fatalf("expected distinct addresses per survey")
	}
}

func TestLongSurveyIDDerives(t *testing.T) {
	if _, err := Campaign(DefaultProgramID, strings.Repeat("x", 64)); err != nil {
		t.Fatalf("derive long id: %v", err)
	}
}

func TestParticipantAddressScopedBySurvey(t *testing.T) {
	who := solana.NewWallet().PublicKey()
	a, err := Participant(DefaultProgramID, "s1", who)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := Participant(DefaultProgramID, "s2", who)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a.Equals(b) {
		t.Fatalf("participant address must differ across surveys")
	}
	other := solana.NewWallet().PublicKey()
	c, err := Participant(DefaultProgramID, "s1", other)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a.Equals(c) {
		t.Fatalf("participant address must differ across participants")
	}
}

func TestProgramIDChangesAddresses(t *testing.T) {
	other := solana.NewWallet().PublicKey()
	a, _ := Campaign(DefaultProgramID, "s1")
	b, _ := Campaign(other, "s1")
	if a.Equals(b) {
		t.Fatalf("expected program id to scope addresses")
	}
}
