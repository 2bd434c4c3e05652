package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// FileFingerprint is the size and content hash of a source file,
// recorded in the document registry at ingest time.
type FileFingerprint struct {
	Size int64
	Hash string
}

func Fingerprint(path string) (*FileFingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return &FileFingerprint{
		Size: info.Size(),
		Hash: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
