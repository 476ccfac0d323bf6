// Package backend opens the remote.Store implementation named in
// configuration.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/grpcstore"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/pgstore"
	"github.com/dmitrijs2005/moodkeeper/internal/remote/s3store"
)

type Kind string

const (
	KindGRPC     Kind = "grpc"
	KindMemory   Kind = "memory"
	KindPostgres Kind = "postgres"
	KindS3       Kind = "s3"
)

// ParseKind accepts the names above case-insensitively; "pg" is an alias of
// postgres.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindGRPC, KindMemory, KindPostgres, KindS3:
		return k, nil
	case "pg":
		return KindPostgres, nil
	default:
		return "", fmt.Errorf("unknown remote backend %q", s)
	}
}

type Options struct {
	Kind Kind

	// grpc
	Endpoint string
	Tokens   grpcstore.TokenSource

	// postgres
	DatabaseDSN string

	// s3
	S3 s3store.Options
}

func Open(ctx context.Context, opts Options, l logging.Logger) (remote.Store, error) {
	switch opts.Kind {
	case KindGRPC:
		s, err := grpcstore.New(opts.Endpoint, opts.Tokens, l)
		if err != nil {
			return nil, fmt.Errorf("grpc backend: %w", err)
		}
		return s, nil
	case KindMemory:
		return remote.NewMemory(), nil
	case KindPostgres:
		s, err := pgstore.Open(ctx, opts.DatabaseDSN, l)
		if err != nil {
			return nil, fmt.Errorf("postgres backend: %w", err)
		}
		return s, nil
	case KindS3:
		s, err := s3store.Open(ctx, opts.S3, l)
		if err != nil {
			return nil, fmt.Errorf("s3 backend: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", opts.Kind)
	}
}
