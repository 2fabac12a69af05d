// Package instruction decodes and encodes the survey program's instruction data: a one-byte
// operation tag followed by a borsh payload.
package instruction

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
)

type Tag uint8

const (
	TagInitializeSurvey Tag = iota
	TagClaimReward
	TagDistributeNft
	TagCloseSurvey
)

func (t Tag) String() string {
	switch t {
	case TagInitializeSurvey:
		return "InitializeSurvey"
	case TagClaimReward:
		return "ClaimReward"
	case TagDistributeNft:
		return "DistributeNft"
	case TagCloseSurvey:
		return "CloseSurvey"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Instruction is one of InitializeSurvey, ClaimReward, DistributeNft or CloseSurvey.
type Instruction interface {
	Tag() Tag
	Survey() string
	sealed()
}

type InitializeSurvey struct {
	SurveyID           string `json:"survey_id"`
	NativeRewardAmount uint64 `json:"native_reward_amount"`
	TokenRewardAmount  uint64 `json:"token_reward_amount"`
	MaxParticipants    uint32 `json:"max_participants"`
}

type ClaimReward struct {
	SurveyID string `json:"survey_id"`
}

type DistributeNft struct {
	SurveyID string `json:"survey_id"`
}

type CloseSurvey struct {
	SurveyID string `json:"survey_id"`
}

func (InitializeSurvey) Tag() Tag { return TagInitializeSurvey }
func (ClaimReward) Tag() Tag      { return TagClaimReward }
func (DistributeNft) Tag() Tag    { return TagDistributeNft }
func (CloseSurvey) Tag() Tag      { return TagCloseSurvey }

func (i InitializeSurvey) Survey() string { return i.SurveyID }
func (i ClaimReward) Survey() string      { return i.SurveyID }
func (i DistributeNft) Survey() string    { return i.SurveyID }
func (i CloseSurvey) Survey() string      { return i.SurveyID }

func (InitializeSurvey) sealed() {}
func (ClaimReward) sealed()      {}
func (DistributeNft) sealed()    {}
func (CloseSurvey) sealed()      {}

// Decode parses instruction data. Any input that does not match its tag's schema exactly,
// including trailing bytes, fails with InvalidInstruction.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, domain.Errorf(domain.CodeInvalidInstruction, "empty instruction data")
	}
	dec := bin.NewBorshDecoder(data[1:])
	var (
		ix  Instruction
		err error
	)
	switch Tag(data[0]) {
	case TagInitializeSurvey:
		var v InitializeSurvey
		if v.SurveyID, err = readString(dec); err != nil {
			break
		}
		if v.NativeRewardAmount, err = dec.ReadUint64(bin.LE); err != nil {
			break
		}
		if v.TokenRewardAmount, err = dec.ReadUint64(bin.LE); err != nil {
			break
		}
		v.MaxParticipants, err = dec.ReadUint32(bin.LE)
		ix = v
	case TagClaimReward:
		var v ClaimReward
		v.SurveyID, err = readString(dec)
		ix = v
	case TagDistributeNft:
		var v DistributeNft
		v.SurveyID, err = readString(dec)
		ix = v
	case TagCloseSurvey:
		var v CloseSurvey
		v.SurveyID, err = readString(dec)
		ix = v
	default:
		return nil, domain.Errorf(domain.CodeInvalidInstruction, "unknown tag %d", data[0])
	}
	if err != nil {
		return nil, domain.Errorf(domain.CodeInvalidInstruction, "%s: %v", Tag(data[0]), err)
	}
	if dec.HasRemaining() {
		return nil, domain.Errorf(domain.CodeInvalidInstruction, "%s: %d trailing bytes", Tag(data[0]), dec.Remaining())
	}
	return ix, nil
}

// Encode is the inverse of Decode.
func Encode(ix Instruction) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(uint8(ix.Tag())); err != nil {
		return nil, err
	}
	if err := writeString(enc, ix.Survey()); err != nil {
		return nil, err
	}
	if v, ok := ix.(InitializeSurvey); ok {
		if err := enc.WriteUint64(v.NativeRewardAmount, bin.LE); err != nil {
			return nil, err
		}
		if err := enc.WriteUint64(v.TokenRewardAmount, bin.LE); err != nil {
			return nil, err
		}
		if err := enc.WriteUint32(v.MaxParticipants, bin.LE); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// MustEncode panics if ix cannot be encoded.
func MustEncode(ix Instruction) []byte {
	data, err := Encode(ix)
	if err != nil {
		panic(err)
	}
	return data
}

func readString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return "", err
	}
	if int(n) > dec.Remaining() {
		return "", fmt.Errorf("string length %d exceeds remaining %d", n, dec.Remaining())
	}
	b, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("string is not valid utf-8")
	}
	return string(b), nil
}

func writeString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}
