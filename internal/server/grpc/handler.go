package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// authorizePath checks that p lies in the caller's subtree.
func authorizePath(ctx context.Context, p string) error {
	uid, ok := userIDFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "no user in context")
	}
	if !remote.Under(p, remote.UserRoot(uid)) {
		return status.Error(codes.PermissionDenied, "path outside of user tree")
	}
	return nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrUnavailable), errors.Is(err, remote.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) parseWrite(ctx context.Context, req *structpb.Struct) (string, map[string]any, error) {
	path, value, err := rpc.ParseWriteRequest(req)
	if err != nil {
		return "", nil, toStatus(err)
	}
	if _, err := remote.Clean(path); err != nil {
		return "", nil, toStatus(err)
	}
	if err := authorizePath(ctx, path); err != nil {
		return "", nil, err
	}
	return path, value, nil
}

func (s *GRPCServer) Set(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	path, value, err := s.parseWrite(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, path, value); err != nil {
		s.logger.Error(ctx, "set failed", "path", path, "error", err)
		return nil, toStatus(err)
	}
	s.logger.Debug(ctx, "set", "path", path)
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Push(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	path, value, err := s.parseWrite(ctx, req)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Push(ctx, path, value)
	if err != nil {
		s.logger.Error(ctx, "push failed", "path", path, "error", err)
		return nil, toStatus(err)
	}
	s.logger.Debug(ctx, "push", "path", path, "child", id)
	return wrapperspb.String(id), nil
}

func (s *GRPCServer) Watch(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	prefix := req.GetValue()
	if err := authorizePath(ctx, prefix); err != nil {
		return err
	}

	events, err := s.store.Subscribe(ctx, prefix)
	if err != nil {
		return toStatus(err)
	}
	s.logger.Info(ctx, "watch started", "prefix", prefix)

	for ev := range events {
		m, err := rpc.NewEvent(ev)
		if err != nil {
			s.logger.Warn(ctx, "skipping unencodable event", "path", ev.Path, "error", err)
			continue
		}
		if err := stream.Send(m); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	return status.Error(codes.Unavailable, "subscription ended")
}
