package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/auth"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memMeta struct {
	m   map[string]string
	err error
}

func newMemMeta() *memMeta { return &memMeta{m: map[string]string{}} }

func (s *memMeta) Meta(_ context.Context, key string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memMeta) SetMeta(_ context.Context, key, value string) error {
	if s.err != nil {
		return s.err
	}
	s.m[key] = value
	return nil
}

func (s *memMeta) DeleteMeta(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.m, k)
	}
	return nil
}

func TestProvider_LoginLogout(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(newMemMeta())

	_, ok, err := p.CurrentUserID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.AccessToken(ctx)
	require.ErrorIs(t, err, common.ErrNoSession)

	tok, err := auth.GenerateToken("alice", []byte("k"), time.Hour)
	require.NoError(t, err)

	uid, err := p.Login(ctx, " "+tok+"\n")
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)

	uid, ok, err = p.CurrentUserID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", uid)

	got, err := p.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	require.NoError(t, p.Logout(ctx))
	_, ok, err = p.CurrentUserID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProvider_LoginRejectsGarbage(t *testing.T) {
	p := NewProvider(newMemMeta())
	_, err := p.Login(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestProvider_StorageError(t *testing.T) {
	st := newMemMeta()
	st.err = errors.New("disk gone")
	p := NewProvider(st)

	_, _, err := p.CurrentUserID(context.Background())
	require.Error(t, err)
}
