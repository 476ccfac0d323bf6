package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/auth"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// helper to build server
func newTestServer(secret string) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop{}, remote.NewMemory(), secret)
}

func tokenContext(t *testing.T, token string) context.Context {
	t.Helper()
	md := metadata.New(map[string]string{common.AccessTokenHeaderName: token})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestInterceptor_HealthAllowsWithoutToken(t *testing.T) {
	s := newTestServer("secret")

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handlerCalled := false

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer("secret")

	info := &grpc.UnaryServerInfo{FullMethod: rpc.SetMethod}

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
	if status.Convert(err).Message() != "missing token" {
		t.Fatalf("expected 'missing token', got %q", status.Convert(err).Message())
	}
}

func TestInterceptor_InvalidToken(t *testing.T) {
	s := newTestServer("secret")

	info := &grpc.UnaryServerInfo{FullMethod: rpc.PushMethod}

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called for invalid token")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(tokenContext(t, "not-a-valid-jwt"), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
}

func TestInterceptor_ExpiredToken(t *testing.T) {
	s := newTestServer("secret")

	token, err := auth.GenerateToken("u1", []byte("secret"), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called for expired token")
		return nil, nil
	}

	_, err = s.accessTokenInterceptor(tokenContext(t, token), nil, &grpc.UnaryServerInfo{FullMethod: rpc.SetMethod}, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
	if status.Convert(err).Message() != common.ErrTokenExpired.Error() {
		t.Fatalf("expected expiry message, got %q", status.Convert(err).Message())
	}
}

func TestInterceptor_ValidToken_SetsUserID(t *testing.T) {
	secret := "super-secret"
	s := newTestServer(secret)

	token, err := auth.GenerateToken("user-123", []byte(secret), time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	var gotUID string
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		gotUID, _ = userIDFromContext(ctx)
		return "ok", nil
	}

	if _, err := s.accessTokenInterceptor(tokenContext(t, token), nil, &grpc.UnaryServerInfo{FullMethod: rpc.SetMethod}, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUID != "user-123" {
		t.Fatalf("expected user-123 in context, got %q", gotUID)
	}
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func TestStreamInterceptor(t *testing.T) {
	secret := "secret"
	s := newTestServer(secret)
	info := &grpc.StreamServerInfo{FullMethod: rpc.WatchMethod, IsServerStream: true}

	err := s.accessTokenStreamInterceptor(nil, &fakeServerStream{ctx: context.Background()}, info,
		func(srv interface{}, ss grpc.ServerStream) error {
			t.Fatal("handler should not be called without token")
			return nil
		})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}

	token, err := auth.GenerateToken("u7", []byte(secret), time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	var gotUID string
	err = s.accessTokenStreamInterceptor(nil, &fakeServerStream{ctx: tokenContext(t, token)}, info,
		func(srv interface{}, ss grpc.ServerStream) error {
			gotUID, _ = userIDFromContext(ss.Context())
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUID != "u7" {
		t.Fatalf("expected u7 in stream context, got %q", gotUID)
	}
}
