package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Blobstore implements content-addressed storage for screenshot artifacts.
// Blobs are stored under the root directory using the SHA-256 hash as the
// filename, with the first two characters forming a subdirectory to avoid too
// many files in one directory. Reports reference screenshots by hash.
type Blobstore struct {
	root string
}

// New creates a Blobstore rooted at the given directory.
func New(root string) (*Blobstore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blobs directory: %w", err)
	}
	return &Blobstore{root: root}, nil
}

// Put stores content and returns its content-addressed ID (SHA-256 hex).
// If the content already exists, it returns the existing ID without rewriting.
func (bs *Blobstore) Put(data []byte) (string, error) {
	hash := sha256.Sum256(data)
	hashStr := hex.EncodeToString(hash[:])

	blobPath := bs.blobPath(hashStr)
	if _, err := os.Stat(blobPath); err == nil {
		return hashStr, nil
	}

	if err := atomicWriteFile(blobPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	return hashStr, nil
}

// Get retrieves content by its content-addressed ID, verifying integrity.
func (bs *Blobstore) Get(blobID string) ([]byte, error) {
	blobPath := bs.blobPath(blobID)
	data, err := os.ReadFile(blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", blobID)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	hash := sha256.Sum256(data)
	hashStr := hex.EncodeToString(hash[:])
	if hashStr != blobID {
		return nil, fmt.Errorf("blob integrity check failed: expected %s, got %s", blobID, hashStr)
	}

	return data, nil
}

// Exists checks if a blob with the given ID exists.
func (bs *Blobstore) Exists(blobID string) bool {
	_, err := os.Stat(bs.blobPath(blobID))
	return err == nil
}

// Path returns the filesystem path a blob would live at, for report links.
// It does not check existence.
func (bs *Blobstore) Path(blobID string) string {
	return bs.blobPath(blobID)
}

// blobPath returns the filesystem path for a given blob ID.
// Format: root/{first2chars}/{fullhash}
func (bs *Blobstore) blobPath(blobID string) string {
	// SHA-256 hex is always 64 characters; anything shorter is routed to a
	// subdirectory that can never match a real blob.
	if len(blobID) < 2 {
		return filepath.Join(bs.root, "__invalid__", blobID)
	}
	return filepath.Join(bs.root, blobID[:2], blobID)
}

// atomicWriteFile writes data to a file atomically using a temp file + rename
// strategy so a blob is either fully written or not written at all.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Copy streams a blob to w without loading it into memory twice.
func (bs *Blobstore) Copy(w io.Writer, blobID string) error {
	f, err := os.Open(bs.blobPath(blobID))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob not found: %s", blobID)
		}
		return fmt.Errorf("failed to open blob: %w", err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
