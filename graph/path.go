package graph

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/jrsteele09/go-onedrive-upload/internal/errors"
)

// ValidateFilename rejects names that would escape the drive root or that
// OneDrive cannot store.
func ValidateFilename(name string) error {
	switch name {
	case "":
		return errors.Wrapf(errors.ErrInvalidFilename, "empty name")
	case ".", "..":
		return errors.Wrapf(errors.ErrInvalidFilename, "%q", name)
	}
	if strings.ContainsAny(name, `/\:`) {
		return errors.Wrapf(errors.ErrInvalidFilename, "%q contains a path separator", name)
	}
	if strings.ContainsFunc(name, unicode.IsControl) {
		return errors.Wrapf(errors.ErrInvalidFilename, "%q contains control characters", name)
	}
	return nil
}

// UploadPath returns the path, relative to the Graph base URL, of the
// simple-upload endpoint for name in the drive root.
func UploadPath(name string) (string, error) {
	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	return fmt.Sprintf("/me/drive/root:/%s:/content", url.PathEscape(name)), nil
}
