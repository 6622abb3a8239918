package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ccollins476ad/hostdl/fileutil"
	"github.com/flytam/filenamify"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrFileExists       = errors.New("destination file already exists")
	ErrMissingParentDir = errors.New("parent of target directory does not exist")
)

// MaxFilenameLength is the longest file name Filename produces. Most
// filesystems allow 255.
const MaxFilenameLength = 255

// ChunkSize is the size of the buffer used to stream a response body to disk.
const ChunkSize = 1 << 20

// Store streams remote files into local directories. It never overwrites an
// existing file.
type Store struct {
	hc  *http.Client
	log log.FieldLogger
}

// NewStore returns a store that uses the given http client and logger. Nil
// arguments select a default client and the standard logrus logger.
func NewStore(hc *http.Client, logger log.FieldLogger) *Store {
	if hc == nil {
		hc = &http.Client{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &Store{
		hc:  hc,
		log: logger,
	}
}

// HTTPClient returns the store's http client.
func (s *Store) HTTPClient() *http.Client {
	return s.hc
}

// Logger returns the logger events are reported to.
func (s *Store) Logger() log.FieldLogger {
	return s.log
}

// Filename converts a remote file name into one that is safe to create inside
// a target directory. Path separators and other reserved characters are
// replaced.
func Filename(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}

	filename, err := filenamify.Filenamify(name, filenamify.Options{
		Replacement: "_",
		MaxLength:   MaxFilenameLength,
	})
	if err != nil {
		return "", fmt.Errorf("failed to convert file name: name=%s err=%w", name, err)
	}

	return filename, nil
}

// Transfer downloads url=u into targetDir/name and returns the path of the
// saved file. It creates targetDir if needed (but not its parent), and fails
// with ErrFileExists if the destination is already present. The response
// status is checked before anything is written; a non-success status yields
// an *UpstreamError.
func (s *Store) Transfer(ctx context.Context, u string, targetDir string, name string, header http.Header) (string, error) {
	filename, err := Filename(name)
	if err != nil {
		return "", err
	}

	created, err := fileutil.EnsureDir(targetDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: dir=%s", ErrMissingParentDir, targetDir)
		}
		return "", fmt.Errorf("failed to create target directory: dir=%s err=%w", targetDir, err)
	}
	if created {
		s.log.Debugf("created directory: %s", targetDir)
	}

	destPath := filepath.Join(targetDir, filename)
	if fileutil.FileExists(destPath) {
		return "", fmt.Errorf("%w: path=%s", ErrFileExists, destPath)
	}

	body, err := GetBody(ctx, s.hc, u, header)
	if err != nil {
		return "", err
	}
	defer body.Close()

	err = save(body, destPath)
	if err != nil {
		return "", err
	}

	s.log.WithFields(log.Fields{
		"url":  u,
		"path": destPath,
	}).Info("downloaded successfully")

	return destPath, nil
}

// save writes r to a hidden partial file in the directory of destPath, then
// moves it into place. The partial file is removed if anything fails.
func save(r io.Reader, destPath string) (err error) {
	partPath := filepath.Join(filepath.Dir(destPath), "."+uuid.NewString()+".part")

	f, err := os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(partPath)
		}
	}()

	err = writeChunks(f, r)
	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("failed to save http response: path=%s err=%w", destPath, err)
	}
	if closeErr != nil {
		return closeErr
	}

	return commit(partPath, destPath)
}

// commit moves partPath to destPath unless destPath exists. A hard link fails
// atomically if the destination is taken; filesystems without hard links fall
// back to a checked rename.
func commit(partPath string, destPath string) error {
	err := os.Link(partPath, destPath)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: path=%s", ErrFileExists, destPath)
	}
	if err == nil {
		return os.Remove(partPath)
	}

	if fileutil.FileExists(destPath) {
		return fmt.Errorf("%w: path=%s", ErrFileExists, destPath)
	}
	return os.Rename(partPath, destPath)
}

func writeChunks(w io.Writer, r io.Reader) error {
	buf := make([]byte, ChunkSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			_, err := w.Write(buf[:n])
			if err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read: %w", readErr)
		}
	}
}
