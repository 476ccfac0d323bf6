// Package s3store implements remote.Store on an S3-compatible bucket.
//
// Each node is one JSON object whose key is KeyPrefix followed by the node
// path. S3 has no change feed, so Subscribe polls the listing and compares
// ETags.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/logging"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
	"github.com/google/uuid"
)

// S3API is the part of *s3.Client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// DefaultPollInterval is how often Subscribe lists the bucket.
const DefaultPollInterval = 5 * time.Second

type Options struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	KeyPrefix    string
	PollInterval time.Duration
}

type Store struct {
	api    S3API
	bucket string
	prefix string
	poll   time.Duration
	logger logging.Logger
	newID  func() string
}

var _ remote.Store = (*Store)(nil)

// Open builds an S3 client from opts. A non-empty Endpoint switches to
// path-style addressing for MinIO and similar servers.
func Open(ctx context.Context, opts Options, l logging.Logger) (*Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, opts, l), nil
}

func New(api S3API, opts Options, l logging.Logger) *Store {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Store{
		api:    api,
		bucket: opts.Bucket,
		prefix: opts.KeyPrefix,
		poll:   poll,
		logger: l.With("module", "s3_store"),
		newID:  newChildID,
	}
}

func (s *Store) key(p string) string { return s.prefix + p }

func (s *Store) Set(ctx context.Context, p string, value map[string]any) error {
	if _, err := remote.Clean(p); err != nil {
		return err
	}
	return s.put(ctx, p, value)
}

func (s *Store) Push(ctx context.Context, p string, value map[string]any) (string, error) {
	if _, err := remote.Clean(p); err != nil {
		return "", err
	}
	id := s.newID()
	if err := s.put(ctx, p+"/"+id, value); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) put(ctx context.Context, p string, value map[string]any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(p)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %w", common.ErrUnavailable, p, err)
	}
	return nil
}

// Get reads the node at p. A missing object is common.ErrNotFound.
func (s *Store) Get(ctx context.Context, p string) (map[string]any, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %s: %w", common.ErrUnavailable, p, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrUnavailable, p, err)
	}
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: object %s: %w", common.ErrValidation, p, err)
	}
	return v, nil
}

// list returns path -> ETag for every object under prefix.
func (s *Store) list(ctx context.Context, prefix string) (map[string]string, error) {
	out := map[string]string{}
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list: %w", common.ErrUnavailable, err)
		}
		for _, obj := range page.Contents {
			path := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if remote.Under(path, prefix) {
				out[path] = aws.ToString(obj.ETag)
			}
		}
	}
	return out, nil
}

// Subscribe emits every node under prefix, then polls for changes. A failed
// poll ends the subscription.
func (s *Store) Subscribe(ctx context.Context, prefix string) (<-chan remote.ChangeEvent, error) {
	seen, err := s.list(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make(chan remote.ChangeEvent)
	go func() {
		defer close(out)

		if !s.emit(ctx, out, map[string]string{}, seen) {
			return
		}

		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cur, err := s.list(ctx, prefix)
				if err != nil {
					if ctx.Err() == nil {
						s.logger.Warn(ctx, "poll failed", "prefix", prefix, "error", err)
					}
					return
				}
				if !s.emit(ctx, out, seen, cur) {
					return
				}
				seen = cur
			}
		}
	}()
	return out, nil
}

// emit sends the difference between prev and cur in path order.
func (s *Store) emit(ctx context.Context, out chan<- remote.ChangeEvent, prev, cur map[string]string) bool {
	var events []remote.ChangeEvent
	for _, p := range sortedKeys(cur) {
		if tag, ok := prev[p]; ok && tag == cur[p] {
			continue
		}
		v, err := s.Get(ctx, p)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable node", "path", p, "error", err)
			continue
		}
		events = append(events, remote.ChangeEvent{Path: p, Value: v, Kind: remote.ChangePut})
	}
	for _, p := range sortedKeys(prev) {
		if _, ok := cur[p]; !ok {
			events = append(events, remote.ChangeEvent{Path: p, Kind: remote.ChangeDelete})
		}
	}

	for _, ev := range events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func newChildID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
