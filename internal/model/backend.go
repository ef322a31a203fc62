package model

import (
	"strings"

	"github.com/pkg/errors"
)

// Backend selects where published metric batches are written.
type Backend int

const (
	Stdout Backend = iota
	LocalDisk
	S3
)

func (b Backend) String() string {
	switch b {
	case Stdout:
		return "stdout"
	case LocalDisk:
		return "local_disk"
	case S3:
		return "s3"
	}
	return "unknown"
}

// ParseBackend resolves a backend name as printed by Backend.String.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stdout", "":
		return Stdout, nil
	case "local_disk", "disk":
		return LocalDisk, nil
	case "s3":
		return S3, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedBackend, "%q", s)
}

func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Backend) UnmarshalText(text []byte) error {
	parsed, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
