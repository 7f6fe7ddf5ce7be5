package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/vaintrub/hrsession/models"
)

// DefaultFileName is the name of the session document inside the store directory.
const DefaultFileName = "session.json"

// File persists the session as a single JSON document. Writes go through a
// temporary file and a rename so readers never observe a half-written document.
// Several processes may share the same directory; the last write wins.
type File struct {
	dir    string
	path   string
	logger *zap.Logger

	mu sync.Mutex // serializes read-modify-write cycles inside this process
}

var (
	_ Store   = (*File)(nil)
	_ Watcher = (*File)(nil)
)

// FileOption configures a File store.
type FileOption func(*File)

// WithFileName overrides DefaultFileName.
func WithFileName(name string) FileOption {
	return func(f *File) {
		if name != "" {
			f.path = filepath.Join(f.dir, name)
		}
	}
}

// WithFileLogger sets the logger used to report unreadable documents.
func WithFileLogger(l *zap.Logger) FileOption {
	return func(f *File) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFile returns a store rooted at dir, creating the directory if needed.
func NewFile(dir string, opts ...FileOption) (*File, error) {
	if dir == "" {
		return nil, &FieldError{Field: "dir", Message: "cannot be empty"}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "create store directory %s", dir)
	}
	f := &File{
		dir:    dir,
		path:   filepath.Join(dir, DefaultFileName),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Path returns the location of the session document.
func (f *File) Path() string {
	return f.path
}

func (f *File) Read(_ context.Context) (*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	return doc.credential(), nil
}

func (f *File) Write(_ context.Context, cred models.Credential) error {
	if err := validCredential(cred); err != nil {
		return err
	}
	return f.update(func(doc *document) {
		doc.Token = cred.Token
		doc.User = cred.User.Clone()
	})
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove session document")
	}
	return nil
}

func (f *File) PutPendingInvitation(_ context.Context, token string) error {
	return f.update(func(doc *document) {
		doc.PendingInvitation = token
	})
}

func (f *File) PendingInvitation(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return "", err
	}
	return doc.PendingInvitation, nil
}

func (f *File) TakePendingInvitation(_ context.Context) (string, error) {
	var token string
	err := f.update(func(doc *document) {
		token = doc.PendingInvitation
		doc.PendingInvitation = ""
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Watch reports changes made to the session document by any process.
func (f *File) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create file watcher")
	}
	// Watch the directory: rename-based writes replace the file inode.
	if err := w.Add(f.dir); err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "watch %s", f.dir)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					notify(ch)
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				f.logger.Warn("session file watcher error", zap.Error(werr))
			}
		}
	}()
	return ch, nil
}

// load reads the document. A missing or malformed document reads as empty.
// Callers must hold f.mu.
func (f *File) load() (*document, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session document")
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		f.logger.Warn("discarding malformed session document", zap.String("path", f.path), zap.Error(err))
		return &document{}, nil
	}
	if doc.Token == "" || doc.User == nil {
		doc.Token, doc.User = "", nil
	}
	return &doc, nil
}

func (f *File) update(mutate func(*document)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	mutate(doc)

	if doc.Token == "" && doc.User == nil && doc.PendingInvitation == "" {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrap(err, "remove session document")
		}
		return nil
	}
	return f.save(doc)
}

func (f *File) save(doc *document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode session document")
	}

	tmp, err := os.CreateTemp(f.dir, ".session-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp session document")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp session document")
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod temp session document")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp session document")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Wrap(err, "replace session document")
	}
	return nil
}
