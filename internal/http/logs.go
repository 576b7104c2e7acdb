package http

import (
	"bufio"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type logsHandler struct {
	cfg *config.AppConfig
}

func newLogsHandler(cfg *config.AppConfig) *logsHandler {
	return &logsHandler{cfg: cfg}
}

func (h logsHandler) Routes(r chi.Router) {
	r.Get("/files", h.files)
	r.Get("/files/{logFile}", h.downloadFile)
}

type logFile struct {
	Name      string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Size      string    `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LogfilesResponse struct {
	Files []logFile `json:"files"`
	Count int       `json:"count"`
}

func (h logsHandler) files(w http.ResponseWriter, r *http.Request) {
	response := LogfilesResponse{
		Files: []logFile{},
		Count: 0,
	}

	if h.cfg.Config.Logging.Path == "" {
		render.JSON(w, r, response)
		return
	}

	logsDir := h.cfg.Config.Logging.Path

	var walk = func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".log" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		response.Files = append(response.Files, logFile{
			Name:      d.Name(),
			SizeBytes: info.Size(),
			Size:      humanize.Bytes(uint64(info.Size())),
			UpdatedAt: info.ModTime(),
		})

		return nil
	}

	if err := filepath.WalkDir(logsDir, walk); err != nil {
		// a missing directory just means nothing was written yet
		render.JSON(w, r, LogfilesResponse{Files: []logFile{}})
		return
	}

	response.Count = len(response.Files)

	render.JSON(w, r, response)
}

var validLogFile = regexp.MustCompile(`^[\w.-]+\.log$`)

func (h logsHandler) downloadFile(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Config.Logging.Path == "" {
		http.Error(w, "log file not found", http.StatusNotFound)
		return
	}

	file := chi.URLParam(r, "logFile")
	if !validLogFile.MatchString(file) {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}

	sanitized, err := SanitizeLogFile(filepath.Join(h.cfg.Config.Logging.Path, file))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.Remove(sanitized)

	f, err := os.Open(sanitized)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+file+`"`)
	_, _ = io.Copy(w, f)
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(apikey|passkey|password|token)=([^\s"&]+)`),
	regexp.MustCompile(`(?i)("(?:password|token)"\s*:\s*")([^"]+)`),
}

// SanitizeLogFile writes a copy of path with secrets redacted and returns the
// copy's path. The caller removes the copy.
func SanitizeLogFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp("", "hiatus-sanitized-*.log")
	if err != nil {
		return "", err
	}
	defer out.Close()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	writer := bufio.NewWriter(out)

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		line = secretPatterns[0].ReplaceAllString(line, "${1}=REDACTED")
		line = secretPatterns[1].ReplaceAllString(line, "${1}REDACTED")

		if !first {
			_ = writer.WriteByte('\n')
		}
		first = false
		_, _ = writer.WriteString(strings.TrimRight(line, "\r"))
	}
	if err := scanner.Err(); err != nil {
		_ = os.Remove(out.Name())
		return "", err
	}

	if err := writer.Flush(); err != nil {
		_ = os.Remove(out.Name())
		return "", err
	}

	return out.Name(), nil
}
