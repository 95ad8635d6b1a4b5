package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"
)

const objectsDir = "objects"

// Store is a content-addressed object store. Objects live flat under
// objects/<hash>, each holding the zstd-compressed envelope
// "type len\0content".
type Store struct {
	fs  billy.Filesystem
	log *slog.Logger
}

// NewStore creates a Store over the repository metadata filesystem. The
// objects/ directory is created lazily on first write. A nil logger
// discards.
func NewStore(fs billy.Filesystem, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{fs: fs, log: logger}
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return s.fs.Join(objectsDir, string(h))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !ValidHash(h) {
		return false
	}
	_, err := s.fs.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. Writing content that
// is already present returns the existing hash without touching disk.
// Writes are atomic: data is written to a temp file and then renamed into
// place.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	raw := append(envelopeHeader(objType, data), data...)
	compressed, err := compressZstd(raw)
	if err != nil {
		return "", fmt.Errorf("object write compress: %w", err)
	}

	if err := s.fs.MkdirAll(objectsDir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := s.fs.TempFile(objectsDir, ".tmp-")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	if err := s.fs.Rename(tmpName, s.objectPath(h)); err != nil {
		s.fs.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	s.log.Debug("object written", slog.String("type", string(objType)), slog.String("hash", string(h)), slog.Int("size", len(data)))
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !ValidHash(h) {
		return "", nil, &NotFoundError{Hash: h}
	}
	compressed, err := s.readFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, &NotFoundError{Hash: h}
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	raw, err := decompressZstd(compressed)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
	}

	// Parse envelope: "type len\0content"
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object read %s: invalid format (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	typ, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("object read %s: invalid header %q", h, header)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: invalid length %q: %w", h, lenStr, err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", h, length, len(content))
	}

	return ObjectType(typ), content, nil
}

// Type returns the type of the object stored under h.
func (s *Store) Type(h Hash) (ObjectType, error) {
	objType, _, err := s.Read(h)
	return objType, err
}

// ResolvePrefix expands an abbreviated hash of at least four hex characters
// to the single stored object it identifies. Unknown and ambiguous prefixes
// both report ErrObjectNotFound.
func (s *Store) ResolvePrefix(prefix string) (Hash, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < 4 || len(prefix) > 64 || !isLowerHex(prefix) {
		return "", &NotFoundError{Hash: Hash(prefix)}
	}
	if len(prefix) == 64 {
		if s.Has(Hash(prefix)) {
			return Hash(prefix), nil
		}
		return "", &NotFoundError{Hash: Hash(prefix)}
	}

	infos, err := s.fs.ReadDir(objectsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &NotFoundError{Hash: Hash(prefix)}
		}
		return "", fmt.Errorf("resolve prefix %q: %w", prefix, err)
	}
	var match Hash
	for _, info := range infos {
		name := info.Name()
		if !strings.HasPrefix(name, prefix) || !ValidHash(Hash(name)) {
			continue
		}
		if match != "" {
			s.log.Debug("ambiguous hash prefix", slog.String("prefix", prefix))
			return "", &NotFoundError{Hash: Hash(prefix)}
		}
		match = Hash(name)
	}
	if match == "" {
		return "", &NotFoundError{Hash: Hash(prefix)}
	}
	return match, nil
}

func (s *Store) readFile(name string) ([]byte, error) {
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj. The empty hash reads as the
// empty tree so callers can treat "no commit yet" uniformly.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	if h == "" || h == EmptyTreeHash {
		return &TreeObj{}, nil
	}
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(data)
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, &TypeMismatchError{Hash: h, Got: objType, Want: want}
	}
	return data, nil
}
