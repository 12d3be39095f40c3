package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stocklaabh/verify-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	t.Cleanup(s.Close)
	return s
}

func mustCode(t *testing.T, identifier string, ch domain.Channel, plain string, ttl time.Duration) *domain.VerificationCode {
	t.Helper()
	c, err := domain.NewVerificationCode(identifier, ch, plain, ttl)
	require.NoError(t, err)
	return c
}

func TestGet_NotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "a@b.com", domain.ChannelEmail)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put(context.Background(), mustCode(t, "a@b.com", domain.ChannelEmail, "482913", 10*time.Minute)))

	got, err := s.Get(context.Background(), "a@b.com", domain.ChannelEmail)
	require.NoError(t, err)
	assert.True(t, got.Matches("482913"))
	assert.False(t, got.Matches("482914"))
}

func TestGet_ExpiredTreatedAsAbsent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put(context.Background(), mustCode(t, "a@b.com", domain.ChannelEmail, "482913", -time.Minute)))

	_, err := s.Get(context.Background(), "a@b.com", domain.ChannelEmail)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConsume_Valid_DeletesEntry(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put(context.Background(), mustCode(t, "a@b.com", domain.ChannelEmail, "482913", 10*time.Minute)))

	res, err := s.Consume(context.Background(), "a@b.com", domain.ChannelEmail, "482913")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeValid, res)

	res, err = s.Consume(context.Background(), "a@b.com", domain.ChannelEmail, "482913")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeNotFound, res)
}

func TestConsume_Mismatch_KeepsEntry(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put(context.Background(), mustCode(t, "a@b.com", domain.ChannelEmail, "482913", 10*time.Minute)))

	res, err := s.Consume(context.Background(), "a@b.com", domain.ChannelEmail, "111111")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeInvalidCode, res)

	res, err = s.Consume(context.Background(), "a@b.com", domain.ChannelEmail, "482913")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeValid, res)
}

func TestConsume_Expired(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put(context.Background(), mustCode(t, "a@b.com", domain.ChannelEmail, "482913", -time.Minute)))

	res, err := s.Consume(context.Background(), "a@b.com", domain.ChannelEmail, "482913")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeExpired, res)
}

func TestPut_OverwritesPreviousCode(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put(context.Background(), mustCode(t, "a@b.com", domain.ChannelEmail, "111111", 10*time.Minute)))
	require.NoError(t, s.Put(context.Background(), mustCode(t, "a@b.com", domain.ChannelEmail, "222222", 10*time.Minute)))

	res, err := s.Consume(context.Background(), "a@b.com", domain.ChannelEmail, "111111")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeInvalidCode, res)

	res, err = s.Consume(context.Background(), "a@b.com", domain.ChannelEmail, "222222")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeValid, res)
}

func TestChannelsAreIndependentKeys(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put(context.Background(), mustCode(t, "x", domain.ChannelEmail, "111111", 10*time.Minute)))
	require.NoError(t, s.Put(context.Background(), mustCode(t, "x", domain.ChannelSMS, "222222", 10*time.Minute)))

	res, err := s.Consume(context.Background(), "x", domain.ChannelEmail, "111111")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeValid, res)

	res, err = s.Consume(context.Background(), "x", domain.ChannelSMS, "222222")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeValid, res)
}

func TestConsume_ConcurrentAttempts_SingleWinner(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put(context.Background(), mustCode(t, "a@b.com", domain.ChannelEmail, "482913", 10*time.Minute)))

	const attempts = 8
	results := make(chan domain.ConsumeResult, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			res, _ := s.Consume(context.Background(), "a@b.com", domain.ChannelEmail, "482913")
			results <- res
		}()
	}

	valid := 0
	for i := 0; i < attempts; i++ {
		if <-results == domain.ConsumeValid {
			valid++
		}
	}
	assert.Equal(t, 1, valid, "exactly one concurrent attempt may win")
}

func TestConsume_DistinctKeys_BothWin(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put(context.Background(), mustCode(t, "a@b.com", domain.ChannelEmail, "111111", 10*time.Minute)))
	require.NoError(t, s.Put(context.Background(), mustCode(t, "+919876543210", domain.ChannelSMS, "222222", 10*time.Minute)))

	results := make(chan domain.ConsumeResult, 2)
	go func() {
		res, _ := s.Consume(context.Background(), "a@b.com", domain.ChannelEmail, "111111")
		results <- res
	}()
	go func() {
		res, _ := s.Consume(context.Background(), "+919876543210", domain.ChannelSMS, "222222")
		results <- res
	}()

	for i := 0; i < 2; i++ {
		assert.Equal(t, domain.ConsumeValid, <-results)
	}
}

func TestDeleteIfHash_RefusesStaleHash(t *testing.T) {
	// A resend replaces the stored hash; an attempt that read the old entry
	// must not be able to remove the new one.
	s := newStore(t)
	first := mustCode(t, "a@b.com", domain.ChannelEmail, "111111", 10*time.Minute)
	require.NoError(t, s.Put(context.Background(), first))
	require.NoError(t, s.Put(context.Background(), mustCode(t, "a@b.com", domain.ChannelEmail, "222222", 10*time.Minute)))

	assert.False(t, s.deleteIfHash(codeKey{"a@b.com", domain.ChannelEmail}, first.CodeHash))

	res, err := s.Consume(context.Background(), "a@b.com", domain.ChannelEmail, "222222")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsumeValid, res)
}

func TestClose_Idempotent(t *testing.T) {
	s := New()
	s.Close()
	s.Close()
}
