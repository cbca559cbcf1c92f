package port

import "context"

// DocumentStorage stores uploaded documents by relative path.
// The core never inspects the contents.
type DocumentStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}
