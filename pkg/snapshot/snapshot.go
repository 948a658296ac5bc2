package snapshot

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"time"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/treedoc"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// ErrNotFound is returned when a snapshot doesn't exist.
var ErrNotFound = stderrors.New("snapshot: not found")

// ErrInvalidName is returned for names that cannot be stored safely.
var ErrInvalidName = stderrors.New("snapshot: invalid name")

// Store is the interface for snapshot storage backends.
type Store interface {
	// Save stores node under name, replacing any earlier snapshot.
	Save(ctx context.Context, name string, node *vdom.VNode) error

	// Load returns the tree stored under name.
	Load(ctx context.Context, name string) (*vdom.VNode, error)

	// Delete removes the snapshot stored under name.
	Delete(ctx context.Context, name string) error

	// List returns every stored snapshot, sorted by name.
	List(ctx context.Context) ([]Info, error)
}

// Info describes a stored snapshot.
type Info struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Extension is appended to snapshot names to form file and object names.
const Extension = ".yaml"

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// CheckName reports whether name can be used as a snapshot name.
func CheckName(name string) error {
	if !validName.MatchString(name) {
		return errors.New("E031").
			WithDetail(fmt.Sprintf("snapshot name %q is not allowed", name)).
			WithSuggestion("Use letters, digits, '.', '_' and '-' only").
			Wrap(ErrInvalidName)
	}
	return nil
}

func notFound(name string) error {
	return errors.New("E030").
		WithDetail(fmt.Sprintf("no snapshot named %q", name)).
		Wrap(ErrNotFound)
}

func storageError(op, name string, err error) error {
	return errors.New("E031").
		WithDetail(fmt.Sprintf("%s %q", op, name)).
		Wrap(err)
}

func encode(name string, node *vdom.VNode) ([]byte, error) {
	if node == nil {
		return nil, storageError("save", name, stderrors.New("nothing rendered"))
	}
	data, err := treedoc.Marshal(treedoc.FormatYAML, node)
	if err != nil {
		return nil, storageError("encode", name, err)
	}
	return data, nil
}

func decode(name string, data []byte) (*vdom.VNode, error) {
	node, err := treedoc.ParseBytes(treedoc.FormatYAML, data)
	if err != nil {
		return nil, storageError("decode", name, err)
	}
	return node, nil
}
