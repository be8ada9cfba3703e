//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/rolodex/internal/errors"
)

// openNoFollow opens path with O_NOFOLLOW|O_CLOEXEC. Only the last component
// is protected; ValidatePath keeps files directly inside an allowed directory.
func openNoFollow(path string, flag int, perm os.FileMode, verb string) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	switch {
	case err == nil:
		return os.NewFile(uintptr(fd), path), nil
	case stderrors.Is(err, syscall.ELOOP):
		return nil, errors.NewInvalidRequest("cannot " + verb + " symlink")
	case flag&(syscall.O_WRONLY|syscall.O_RDWR) == 0 && stderrors.Is(err, syscall.ENOENT):
		return nil, errors.NewFileNotFound(path)
	}
	return nil, err
}

// openFileNoFollow opens an export temp file for writing.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return openNoFollow(path, flag, perm, "write to")
}

// openFileNoFollowRead opens an import file.
func openFileNoFollowRead(path string) (*os.File, error) {
	return openNoFollow(path, syscall.O_RDONLY, 0, "read from")
}
