// Package records holds the fixed-width byte layouts of the persisted campaign and participant
// records. Each record is borsh-encoded and zero-padded to its width, so an all-zero buffer
// decodes as an uninitialized record.
package records

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
)

const (
	// CampaignLen is 1+(4+64)+32+8+8+32+4+4+8+1+(1+32).
	CampaignLen = 199
	// ParticipantLen is 1+(4+64)+32+1+1+1+(1+8)+1.
	ParticipantLen = 114
)

var (
	ErrShortBuffer  = errors.New("record buffer too short")
	ErrRecordTooBig = errors.New("record exceeds fixed width")
	ErrBadString    = errors.New("record string invalid")
)

// EncodeCampaign returns the CampaignLen-byte representation of c.
func EncodeCampaign(c domain.Campaign) ([]byte, error) {
	if len(c.SurveyID) > domain.MaxSurveyIDLen {
		return nil, fmt.Errorf("survey id: %w", ErrRecordTooBig)
	}
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	w := &writer{enc: enc}
	w.bool(c.Initialized)
	w.string(c.SurveyID)
	w.key(c.Owner)
	w.u64(c.NativeRewardAmount)
	w.u64(c.TokenRewardAmount)
	w.key(c.RewardTokenMint)
	w.u32(c.MaxParticipants)
	w.u32(c.CurrentParticipants)
	w.i64(c.CreatedAt)
	w.bool(c.Active)
	if c.NFTCollection != nil {
		w.u8(1)
		w.key(*c.NFTCollection)
	} else {
		w.u8(0)
	}
	if w.err != nil {
		return nil, w.err
	}
	return pad(buf.Bytes(), CampaignLen)
}

// DecodeCampaign parses a campaign record. A buffer whose initialized flag is clear yields the
// zero Campaign.
func DecodeCampaign(data []byte) (domain.Campaign, error) {
	var c domain.Campaign
	if len(data) < CampaignLen {
		return c, ErrShortBuffer
	}
	r := &reader{dec: bin.NewBorshDecoder(data)}
	c.Initialized = r.bool()
	if r.err == nil && !c.Initialized {
		return domain.Campaign{}, nil
	}
	c.SurveyID = r.string()
	c.Owner = r.key()
	c.NativeRewardAmount = r.u64()
	c.TokenRewardAmount = r.u64()
	c.RewardTokenMint = r.key()
	c.MaxParticipants = r.u32()
	c.CurrentParticipants = r.u32()
	c.CreatedAt = r.i64()
	c.Active = r.bool()
	if r.u8() == 1 {
		k := r.key()
		c.NFTCollection = &k
	}
	if r.err != nil {
		return domain.Campaign{}, fmt.Errorf("decode campaign: %w", r.err)
	}
	return c, nil
}

// EncodeParticipant returns the ParticipantLen-byte representation of p.
func EncodeParticipant(p domain.Participant) ([]byte, error) {
	if len(p.SurveyID) > domain.MaxSurveyIDLen {
		return nil, fmt.Errorf("survey id: %w", ErrRecordTooBig)
	}
	buf := new(bytes.Buffer)
	w := &writer{enc: bin.NewBorshEncoder(buf)}
	w.bool(p.Initialized)
	w.string(p.SurveyID)
	w.key(p.Participant)
	w.bool(p.ClaimedNative)
	w.bool(p.ClaimedToken)
	w.bool(p.ReceivedNFT)
	if p.ClaimedAt != nil {
		w.u8(1)
		w.i64(*p.ClaimedAt)
	} else {
		w.u8(0)
	}
	w.bool(p.Counted)
	if w.err != nil {
		return nil, w.err
	}
	return pad(buf.Bytes(), ParticipantLen)
}

func DecodeParticipant(data []byte) (domain.Participant, error) {
	var p domain.Participant
	if len(data) < ParticipantLen {
		return p, ErrShortBuffer
	}
	r := &reader{dec: bin.NewBorshDecoder(data)}
	p.Initialized = r.bool()
	if r.err == nil && !p.Initialized {
		return domain.Participant{}, nil
	}
	p.SurveyID = r.string()
	p.Participant = r.key()
	p.ClaimedNative = r.bool()
	p.ClaimedToken = r.bool()
	p.ReceivedNFT = r.bool()
	if r.u8() == 1 {
		ts := r.i64()
		p.ClaimedAt = &ts
	}
	p.Counted = r.bool()
	if r.err != nil {
		return domain.Participant{}, fmt.Errorf("decode participant: %w", r.err)
	}
	return p, nil
}

func pad(b []byte, width int) ([]byte, error) {
	if len(b) > width {
		return nil, ErrRecordTooBig
	}
	out := make([]byte, width)
	copy(out, b)
	return out, nil
}

type writer struct {
	enc *bin.Encoder
	err error
}

func (w *writer) do(f func() error) {
	if w.err == nil {
		w.err = f()
	}
}

func (w *writer) u8(v uint8) { w.do(func() error { return w.enc.WriteUint8(v) }) }
func (w *writer) u32(v uint32) { w.do(func() error { return w.enc.WriteUint32(v, bin.LE) }) }
func (w *writer) u64(v uint64) { w.do(func() error { return w.enc.WriteUint64(v, bin.LE) }) }
func (w *writer) i64(v int64) { w.do(func() error { return w.enc.WriteInt64(v, bin.LE) }) }
func (w *writer) key(k solana.PublicKey) { w.do(func() error { return w.enc.WriteBytes(k[:], false) }) }

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) string(s string) {
	w.u32(uint32(len(s)))
	w.do(func() error { return w.enc.WriteBytes([]byte(s), false) })
}

type reader struct {
	dec *bin.Decoder
	err error
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.err = err
	return v
}

func (r *reader) bool() bool {
	v := r.u8()
	if r.err == nil && v > 1 {
		r.err = fmt.Errorf("invalid bool byte %d", v)
	}
	return v == 1
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint32(bin.LE)
	r.err = err
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(bin.LE)
	r.err = err
	return v
}

func (r *reader) i64() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(bin.LE)
	r.err = err
	return v
}

func (r *reader) key() solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	b, err := r.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		r.err = err
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(b)
}

func (r *reader) string() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	if n > domain.MaxSurveyIDLen {
		r.err = ErrBadString
		return ""
	}
	b, err := r.dec.ReadNBytes(int(n))
	if err != nil {
		r.err = err
		return ""
	}
	if !utf8.Valid(b) {
		r.err = ErrBadString
		return ""
	}
	return string(b)
}
