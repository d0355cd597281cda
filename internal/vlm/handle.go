package vlm

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/raysh454/miru/internal/logging"
)

// Handle is an opaque reference to a model file that has been resolved and
// validated. It is immutable once constructed. At most one Handle exists per
// distinct model path per process; concurrent evaluators share the same one.
type Handle struct {
	path string // resolved, decompressed .mf path
	tag  string // model version tag used in cache keys
}

// Path returns the decompressed model file path.
func (h *Handle) Path() string { return h.path }

// Tag returns a model version tag (basename plus content length) so cached
// verdicts are never silently reused across different model files.
func (h *Handle) Tag() string { return h.tag }

var (
	handleMu sync.Mutex
	handles  = map[string]*Handle{}
)

// Load resolves a model path to a Handle. Repeated calls with the same path
// return the cached Handle rather than re-validating or re-decompressing.
//
// A ".mf" path loads without overhead. A ".mf.gz" path is gunzipped once to a
// sibling ".mf" file; the cost is paid at load time, not per inference.
func Load(path string, logger logging.Logger) (*Handle, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %q: %v", ErrModelLoad, path, err)
	}

	handleMu.Lock()
	defer handleMu.Unlock()

	if h, ok := handles[abs]; ok {
		return h, nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: model not found at %s: %v", ErrModelLoad, abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrModelLoad, abs)
	}

	resolved := abs
	switch {
	case strings.HasSuffix(abs, ".mf.gz"):
		resolved, err = decompressModel(abs, logger)
		if err != nil {
			return nil, err
		}
	case strings.HasSuffix(abs, ".mf"):
		// loads directly
	default:
		return nil, fmt.Errorf("%w: unsupported model file extension on %s", ErrModelLoad, abs)
	}

	resolvedInfo, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: stat decompressed model %s: %v", ErrModelLoad, resolved, err)
	}

	h := &Handle{
		path: resolved,
		tag:  fmt.Sprintf("%s@%d", filepath.Base(resolved), resolvedInfo.Size()),
	}
	handles[abs] = h

	if logger != nil {
		logger.Info("model handle loaded",
			logging.Field{Key: "path", Value: resolved},
			logging.Field{Key: "tag", Value: h.tag})
	}
	return h, nil
}

// decompressModel gunzips src (".mf.gz") to the sibling ".mf" path. If the
// sibling already exists it is reused, so the decompression cost is paid once
// across repeated process runs.
func decompressModel(src string, logger logging.Logger) (string, error) {
	dst := strings.TrimSuffix(src, ".gz")
	if _, err := os.Stat(dst); err == nil {
		if logger != nil {
			logger.Debug("reusing previously decompressed model", logging.Field{Key: "path", Value: dst})
		}
		return dst, nil
	}

	if logger != nil {
		logger.Info("decompressing model (one-time setup cost; pre-decompress to avoid it)",
			logging.Field{Key: "src", Value: src})
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrModelLoad, src, err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not valid gzip: %v", ErrModelLoad, src, err)
	}
	defer gz.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".mf-tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", ErrModelLoad, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, gz); err != nil {
		return "", fmt.Errorf("%w: decompress %s: %v", ErrModelLoad, src, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close temp file: %v", ErrModelLoad, err)
	}
	tmp = nil
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("%w: rename decompressed model: %v", ErrModelLoad, err)
	}
	return dst, nil
}

// ResetHandles drops all cached handles. Intended for process teardown and
// tests; loaded model files on disk are left in place.
func ResetHandles() {
	handleMu.Lock()
	defer handleMu.Unlock()
	handles = map[string]*Handle{}
}
