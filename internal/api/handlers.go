package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"beatshop/internal/ingest"
	"beatshop/internal/services"
)

const maxCodeBytes = 1024

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runPreflight(r.Context()))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.catalog.Summaries(r.Context())
	if err != nil {
		s.writeError(w, r, "categories", err)
		return
	}
	s.writeJSON(w, http.StatusOK, CategoryListResponse{Categories: FromSummaries(summaries)})
}

func (s *Server) handleListBeats(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	ctx := services.WithCategory(r.Context(), category)
	refs, err := s.catalog.List(ctx, category)
	if err != nil {
		s.writeError(w, r, "list", err)
		return
	}
	s.writeJSON(w, http.StatusOK, BeatListResponse{Category: strings.ToLower(category), Beats: FromAssetRefs(refs)})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	category, name := r.PathValue("category"), r.PathValue("name")
	ctx := services.WithCategory(r.Context(), category)
	ref, data, err := s.catalog.Fetch(ctx, category, name)
	if err != nil {
		s.writeError(w, r, "download", err)
		return
	}
	contentType := ref.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": ref.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	category, name := r.PathValue("category"), r.PathValue("name")
	ctx := services.WithCategory(r.Context(), category)

	duration := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("duration")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, "preview", services.Wrap(services.ErrValidation, "api", "preview", fmt.Sprintf("invalid duration %q", raw), nil))
			return
		}
		if parsed == 0 {
			// An explicit zero is out of range; only an absent parameter selects the default.
			parsed = -1
		}
		duration = parsed
	}

	clip, ref, err := s.catalog.Preview(ctx, category, name, duration)
	if err != nil {
		s.writeError(w, r, "preview", err)
		return
	}
	w.Header().Set("Content-Type", clip.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(clip.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": previewName(ref.Name)}))
	w.Header().Set("X-Preview-Seconds", strconv.FormatFloat(clip.Duration.Seconds(), 'f', 3, 64))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(clip.Data)
}

func previewName(name string) string {
	base := name
	if i := strings.LastIndex(name, "."); i > 0 {
		base = name[:i]
	}
	return base + "-preview.mp3"
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	ctx := services.WithCategory(services.WithOperation(r.Context(), "upload"), category)
	r = r.WithContext(ctx)

	limit := s.ingest.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, "upload", services.Wrap(services.ErrValidation, "api", "upload", "expected multipart/form-data body", err))
		return
	}

	code := strings.TrimSpace(r.Header.Get(UploadCodeHeader))
	var (
		filename string
		payload  []byte
		haveFile bool
	)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeUploadReadError(w, r, err)
			return
		}
		switch part.FormName() {
		case "code":
			value, err := io.ReadAll(io.LimitReader(part, maxCodeBytes))
			if err != nil {
				s.writeUploadReadError(w, r, err)
				return
			}
			if code == "" {
				code = strings.TrimSpace(string(value))
			}
		case "file":
			if haveFile {
				_ = part.Close()
				continue
			}
			filename = part.FileName()
			// One byte past the ceiling so ingest can tell "too large".
			data, err := io.ReadAll(io.LimitReader(part, limit+1))
			if err != nil {
				s.writeUploadReadError(w, r, err)
				return
			}
			payload = data
			haveFile = true
		}
		_ = part.Close()
	}
	if !haveFile {
		s.writeError(w, r, "upload", services.Wrap(services.ErrValidation, "api", "upload", `missing "file" part`, nil))
		return
	}

	declared, _ := strconv.ParseInt(r.Header.Get("X-Upload-Size"), 10, 64)
	decision, err := s.ingest.Ingest(ctx, ingest.Request{
		Filename:     filename,
		DeclaredSize: declared,
		Category:     category,
		SuppliedCode: code,
		Payload:      bytes.NewReader(payload),
	})
	if err != nil {
		s.writeError(w, r, "upload", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, UploadResponse{Reason: string(decision.Reason), Beat: FromAssetRef(decision.Ref)})
}

func (s *Server) writeUploadReadError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, r, "upload", &ingest.Rejection{
			Reason:  ingest.ReasonTooLarge,
			Message: fmt.Sprintf("upload exceeds %d MB", s.ingest.MaxUploadBytes()/(1024*1024)),
		})
		return
	}
	s.writeError(w, r, "upload", services.Wrap(services.ErrValidation, "api", "upload", "could not read upload body", err))
}

func asRejection(err error) (*ingest.Rejection, bool) {
	var rejection *ingest.Rejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}
