package sandbox

import (
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"
)

// Stat wraps the standard library file information for a directory entry with
// the detected MIME type. Instances are produced transiently by listing and
// never persisted.
type Stat struct {
	os.FileInfo
	Mimetype string
}

func (s *Stat) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name      string `json:"name"`
		Size      int64  `json:"size"`
		Modified  string `json:"modified"`
		Directory bool   `json:"directory"`
		Mime      string `json:"mime"`
	}{
		Name:      s.Name(),
		Size:      s.Size(),
		Modified:  s.ModTime().Format(time.RFC3339),
		Directory: s.IsDir(),
		Mime:      s.Mimetype,
	})
}

// Stat returns information about a file or directory within the sandbox.
func (s *Sandbox) Stat(p string) (*Stat, error) {
	cleaned, err := s.SafePath(p)
	if err != nil {
		return nil, err
	}
	return unsafeStat(cleaned)
}

func unsafeStat(p string) (*Stat, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, wrapError(err, p)
	}

	st := &Stat{FileInfo: info, Mimetype: "inode/directory"}
	if !info.IsDir() {
		st.Mimetype = "application/octet-stream"
		if m, err := mimetype.DetectFile(p); err == nil {
			st.Mimetype = m.String()
		}
	}
	return st, nil
}
