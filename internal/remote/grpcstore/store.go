// Package grpcstore implements remote.Store on top of the moodkeeper server's
// KeyPathStore gRPC service.
package grpcstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// TokenSource yields the access token attached to every call.
// common.ErrNoSession means "call anonymously".
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Store struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.KeyPathStoreClient
	health      healthpb.HealthClient
	tokens      TokenSource
	logger      logging.Logger
}

var _ remote.Store = (*Store)(nil)

// New connects lazily to endpointURL. Extra dial options are appended after
// the defaults, so tests can swap the dialer.
func New(endpointURL string, tokens TokenSource, l logging.Logger, opts ...grpc.DialOption) (*Store, error) {
	s := &Store{endpointURL: endpointURL, tokens: tokens, logger: l.With("module", "grpc_store")}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.accessTokenStreamInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	s.client = rpc.NewKeyPathStoreClient(conn)
	s.health = healthpb.NewHealthClient(conn)
	return s, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *Store) authorize(ctx context.Context) (context.Context, error) {
	if s.tokens == nil {
		return ctx, nil
	}
	token, err := s.tokens.AccessToken(ctx)
	if errors.Is(err, common.ErrNoSession) {
		return ctx, nil
	}
	if err != nil {
		return nil, err
	}
	return withAccessToken(ctx, token), nil
}

func (s *Store) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	ctx, err := s.authorize(ctx)
	if err != nil {
		return err
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (s *Store) accessTokenStreamInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	ctx, err := s.authorize(ctx)
	if err != nil {
		return nil, err
	}
	return streamer(ctx, desc, cc, method, opts...)
}

func (s *Store) Set(ctx context.Context, path string, value map[string]any) error {
	req, err := rpc.NewWriteRequest(path, value)
	if err != nil {
		return err
	}
	if _, err := s.client.Set(ctx, req); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Store) Push(ctx context.Context, path string, value map[string]any) (string, error) {
	req, err := rpc.NewWriteRequest(path, value)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Push(ctx, req)
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.GetValue(), nil
}

// Subscribe opens a Watch stream. Stream errors close the channel; they are
// logged, not returned.
func (s *Store) Subscribe(ctx context.Context, prefix string) (<-chan remote.ChangeEvent, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := s.client.Watch(ctx, wrapperspb.String(prefix))
	if err != nil {
		cancel()
		return nil, s.mapError(err)
	}

	out := make(chan remote.ChangeEvent)
	go func() {
		defer close(out)
		defer cancel()
		for {
			m, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					s.logger.Warn(ctx, "watch stream ended", "prefix", prefix, "error", s.mapError(err))
				}
				return
			}
			ev, err := rpc.ParseEvent(m)
			if err != nil {
				s.logger.Warn(ctx, "skipping malformed event", "error", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return common.ErrUnavailable
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", common.ErrUnavailable, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrValidation, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
