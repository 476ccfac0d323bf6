// Package session remembers who the client is signed in as. It keeps the
// access token issued by the server and the user id carried in it in the
// local metadata table.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/moodkeeper/internal/auth"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
)

// Storage is the metadata part of the local store.
type Storage interface {
	Meta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
	DeleteMeta(ctx context.Context, keys ...string) error
}

type Provider struct {
	st Storage
}

func NewProvider(st Storage) *Provider {
	return &Provider{st: st}
}

// CurrentUserID returns the signed-in user id; ok is false when nobody is
// signed in.
func (p *Provider) CurrentUserID(ctx context.Context) (string, bool, error) {
	uid, ok, err := p.st.Meta(ctx, common.MetaUserID)
	if err != nil {
		return "", false, err
	}
	if !ok || uid == "" {
		return "", false, nil
	}
	return uid, true, nil
}

// AccessToken returns the stored token or common.ErrNoSession.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	tok, ok, err := p.st.Meta(ctx, common.MetaAccessToken)
	if err != nil {
		return "", err
	}
	if !ok || tok == "" {
		return "", common.ErrNoSession
	}
	return tok, nil
}

// Login stores token and the user id it names, replacing any previous
// session, and returns that user id.
func (p *Provider) Login(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	uid, err := auth.PeekUserID(token)
	if err != nil {
		return "", err
	}
	if err := p.st.SetMeta(ctx, common.MetaAccessToken, token); err != nil {
		return "", fmt.Errorf("failed to save access token: %w", err)
	}
	if err := p.st.SetMeta(ctx, common.MetaUserID, uid); err != nil {
		return "", fmt.Errorf("failed to save user id: %w", err)
	}
	return uid, nil
}

// Logout forgets the session. Local journal data is kept.
func (p *Provider) Logout(ctx context.Context) error {
	return p.st.DeleteMeta(ctx, common.MetaUserID, common.MetaAccessToken)
}
