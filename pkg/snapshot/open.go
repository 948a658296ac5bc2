package snapshot

import (
	"context"
	"fmt"

	"github.com/vango-dev/vdiff/internal/errors"
)

// Backend names accepted by Open.
const (
	BackendNone = ""
	BackendDisk = "disk"
	BackendS3   = "s3"
)

// Options selects and configures a snapshot backend.
type Options struct {
	Backend  string
	Dir      string
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// Open returns the store for opts.Backend, or nil for BackendNone.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendNone:
		return nil, nil
	case BackendDisk:
		s, err := NewDiskStore(opts.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendS3:
		s, err := NewS3StoreFromConfig(ctx, opts.Bucket, opts.Prefix, opts.Region, opts.Endpoint)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.New("E042").
			WithDetail(fmt.Sprintf("unknown snapshot backend %q", opts.Backend)).
			WithSuggestion(`Use "disk", "s3" or leave it empty`)
	}
}
