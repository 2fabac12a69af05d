package instruction

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
)

func TestEncodeDecode(t *testing.T) {
	cases := []Instruction{
		InitializeSurvey{SurveyID: "s1", NativeRewardAmount: 1000, TokenRewardAmount: 50, MaxParticipants: 2},
		ClaimReward{SurveyID: "s1"},
		DistributeNft{SurveyID: "survey-é"},
		CloseSurvey{SurveyID: ""},
	}
	for _, ix := range cases {
		data, err := Encode(ix)
		if err != nil {
			t.Fatalf("encode %s: %v", ix.Tag(), err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("decode %s: %v", ix.Tag(), err)
		}
		if diff := cmp.Diff(ix, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", ix.Tag(), diff)
		}
	}
}

func TestEncodeWireFormat(t *testing.T) {
	data := MustEncode(InitializeSurvey{SurveyID: "ab", NativeRewardAmount: 1, TokenRewardAmount: 2, MaxParticipants: 3})
	want := []byte{
		0,
		2, 0, 0, 0, 'a', 'b',
		1, 0, 0, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0,
		3, 0, 0, 0,
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Fatalf("wire mismatch (-want +got):\n%s", diff)
	}
	claim := MustEncode(ClaimReward{SurveyID: "s1"})
	if diff := cmp.Diff([]byte{1, 2, 0, 0, 0, 's', '1'}, claim); diff != "" {
		t.Fatalf("claim mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeInvalid(t *testing.T) {
	valid := MustEncode(InitializeSurvey{SurveyID: "s1", NativeRewardAmount: 1, TokenRewardAmount: 1, MaxParticipants: 1})
	cases := map[string][]byte{
		"empty":            nil,
		"unknown tag":      {4, 0, 0, 0, 0},
		"tag only":         {1},
		"short length":     {1, 2, 0},
		"truncated string": {1, 5, 0, 0, 0, 'a'},
		"truncated ints":   valid[:len(valid)-1],
		"trailing bytes":   append(MustEncode(CloseSurvey{SurveyID: "s1"}), 0),
		"invalid utf8":     {2, 1, 0, 0, 0, 0xff},
		"huge length":      {3, 0xff, 0xff, 0xff, 0xff},
	}
	for name, data := range cases {
		_, err := Decode(data)
		if !errors.Is(err, domain.ErrInvalidInstruction) {
			t.Fatalf("%s: expected invalid instruction, got %v", name, err)
		}
	}
}
