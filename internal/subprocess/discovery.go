package subprocess

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wagiedev/mediaroute-go/internal/errors"
)

// defaultSearchDirs returns the directories searched after PATH for a bare
// executable name.
func defaultSearchDirs() []string {
	dirs := []string{
		"/usr/local/libexec/mediaroute",
		"/usr/libexec/mediaroute",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(homeDir, ".local/libexec/mediaroute"))
	}

	return dirs
}

// findExecutable resolves executable to a path.
//
// A name containing a path separator is used as is. A bare name is looked
// up in PATH and then in searchDirs. Returns ServiceNotFoundError when
// nothing matches and an error wrapping ErrSecurity when the file exists
// but may not be executed.
func findExecutable(log *slog.Logger, executable string, searchDirs []string) (string, error) {
	if strings.ContainsRune(executable, os.PathSeparator) {
		log.Debug("Using explicit service path", "path", executable)

		if err := checkExecutable(executable); err != nil {
			return "", err
		}

		return executable, nil
	}

	searchedPaths := make([]string, 0, len(searchDirs)+1)

	if path, err := exec.LookPath(executable); err == nil {
		log.Debug("Found service in PATH", "path", path)

		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	for _, dir := range searchDirs {
		path := filepath.Join(dir, executable)
		searchedPaths = append(searchedPaths, path)

		err := checkExecutable(path)
		if err == nil {
			log.Debug("Found service in search directory", "path", path)

			return path, nil
		}

		if stderrors.Is(err, errors.ErrSecurity) {
			return "", err
		}
	}

	return "", &errors.ServiceNotFoundError{Name: executable, SearchedPaths: searchedPaths}
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("stat %s: %w", path, errors.ErrSecurity)
		}

		return &errors.ServiceNotFoundError{Name: filepath.Base(path), SearchedPaths: []string{path}}
	}

	if info.IsDir() {
		return &errors.ServiceNotFoundError{Name: filepath.Base(path), SearchedPaths: []string{path}}
	}

	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable: %w", path, errors.ErrSecurity)
	}

	return nil
}
