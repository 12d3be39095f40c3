package domain

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Channel is one of the two independent verification paths.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ParseChannel converts a wire value into a Channel.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelEmail, ChannelSMS:
		return Channel(s), nil
	default:
		return "", fmt.Errorf("unknown channel %q: %w", s, ErrBadRequest)
	}
}

// VerificationCode is an outstanding one-time code for (identifier, channel).
// PK: identifier, SK: channel. The plaintext code never reaches a store —
// only its bcrypt hash. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type VerificationCode struct {
	Identifier string  `json:"identifier" dynamodbav:"identifier"`
	Channel    Channel `json:"channel" dynamodbav:"channel"`
	CodeHash   string  `json:"-" dynamodbav:"code_hash"`
	IssuedAt   int64   `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt  int64   `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// NewVerificationCode hashes the plaintext code and stamps issue/expiry times.
func NewVerificationCode(identifier string, ch Channel, code string, ttl time.Duration) (*VerificationCode, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash verification code: %w", err)
	}
	now := time.Now()
	return &VerificationCode{
		Identifier: identifier,
		Channel:    ch,
		CodeHash:   string(hash),
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(ttl).Unix(),
	}, nil
}

// Matches reports whether the submitted plaintext matches the stored hash.
func (v *VerificationCode) Matches(submitted string) bool {
	return bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(submitted)) == nil
}

// Expired reports whether the code has passed its expiry at the given instant.
func (v *VerificationCode) Expired(now time.Time) bool {
	return v.ExpiresAt < now.Unix()
}

// ConsumeResult is the outcome of a single-use code consumption attempt.
type ConsumeResult int

const (
	ConsumeValid ConsumeResult = iota
	ConsumeInvalidCode
	ConsumeExpired
	ConsumeNotFound
)
