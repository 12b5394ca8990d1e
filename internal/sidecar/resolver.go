package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"permavid/internal/fileutil"
	"permavid/internal/logging"
	"permavid/internal/services"
	"permavid/internal/sourceurl"
)

const sidecarSuffix = ".info.json"

// Artifact describes what the resolver recovered for a downloaded item.
// LocalPath is empty when no on-disk media file could be confirmed; the item
// still completes and the upload stage reports the missing file instead.
type Artifact struct {
	Title        string
	ThumbnailURL string
	LocalPath    string
}

// info mirrors the sidecar fields the resolver consumes. yt-dlp emits far
// more; everything else is ignored.
type info struct {
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	Thumbnail   string `json:"thumbnail"`
	Ext         string `json:"ext"`
	Filename    string `json:"_filename"`
	WebpageURL  string `json:"webpage_url"`
	OriginalURL string `json:"original_url"`
}

func (i info) sourceURL() string {
	if i.WebpageURL != "" {
		return i.WebpageURL
	}
	return i.OriginalURL
}

// Resolver matches sidecars to queue items.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver constructs a resolver. A nil logger disables logging.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logging.NewComponentLogger(logger, "sidecar")}
}

// Resolve scans dir for the sidecar matching url and extracts the artifact
// from it. The matched sidecar is removed; others are left untouched. A scan
// with no match returns a zero Artifact and no error.
func (r *Resolver) Resolve(dir, url string) (Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrTransient, "sidecar", "scan", fmt.Sprintf("read directory %s", dir), err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sidecarSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		parsed, err := readInfo(path)
		if err != nil {
			r.logger.Warn("skipping unreadable sidecar", logging.String("path", path), logging.Error(err))
			continue
		}
		jsonURL := parsed.sourceURL()
		if jsonURL == "" {
			r.logger.Debug("sidecar carries no source url", logging.String("path", path))
			continue
		}
		if !sourceurl.Match(url, jsonURL) {
			continue
		}

		artifact := r.extract(dir, path, parsed)
		if err := os.Remove(path); err != nil {
			r.logger.Warn("failed to remove matched sidecar", logging.String("path", path), logging.Error(err))
		}
		return artifact, nil
	}

	r.logger.Warn("no sidecar matched source url; media path unknown", logging.String(logging.FieldURL, url), logging.String("dir", dir))
	return Artifact{}, nil
}

func (r *Resolver) extract(dir, sidecarPath string, parsed info) Artifact {
	artifact := Artifact{
		Title:        strings.TrimSpace(parsed.Title),
		ThumbnailURL: strings.TrimSpace(parsed.Thumbnail),
	}
	artifact.LocalPath = r.resolveMediaPath(dir, sidecarPath, parsed)

	if artifact.Title == "" && artifact.LocalPath != "" {
		artifact.Title = titleFromFilename(artifact.LocalPath)
	}
	return artifact
}

// resolveMediaPath locates the downloaded media file. Priority order:
// the sidecar's _filename field, a "<title> by <channel>" construction, and
// finally the sidecar's own path with the media extension swapped in. Each
// candidate must exist on disk to win.
func (r *Resolver) resolveMediaPath(dir, sidecarPath string, parsed info) string {
	if name := strings.TrimSpace(parsed.Filename); name != "" {
		candidate := name
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(dir, candidate)
		}
		if fileExists(candidate) {
			return candidate
		}
		r.logger.Debug("sidecar _filename does not exist on disk", logging.String("path", candidate))
	}

	title := strings.TrimSpace(parsed.Title)
	ext := strings.TrimSpace(parsed.Ext)
	if title != "" && ext != "" {
		channel := strings.TrimSpace(parsed.Channel)
		if channel == "" {
			channel = "UnknownChannel"
		}
		name := fmt.Sprintf("%s by %s.%s", fileutil.SanitizeFileName(title), fileutil.SanitizeFileName(channel), ext)
		candidate := filepath.Join(dir, name)
		if fileExists(candidate) {
			return candidate
		}
	}

	if ext != "" {
		candidate := strings.TrimSuffix(sidecarPath, sidecarSuffix) + "." + ext
		if fileExists(candidate) {
			return candidate
		}
	}

	return ""
}

func fileExists(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !stat.IsDir()
}

// titleFromFilename derives a presentable title from a media filename when
// the sidecar lacks one.
func titleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return ""
	}
	return cases.Title(language.Und).String(title)
}

func readInfo(path string) (info, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return info{}, err
	}
	var parsed info
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return info{}, errors.New("malformed sidecar json")
	}
	return parsed, nil
}
