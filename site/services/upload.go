package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"labsite/site/auth"
	"labsite/site/storage"
	"labsite/utils"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxImageBytes    = 5 * 1024 * 1024
	maxDocumentBytes = 10 * 1024 * 1024

	thumbnailMaxDim = 400
)

var imageMimeTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var documentMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Openxml files are zip containers and DetectContentType reports them as
// application/zip, so the sniffed type is paired with the declared extension
// to keep arbitrary archives out.
var openxmlExtensions = map[string]string{
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

type UploadService struct {
	storage  storage.Storage
	userAuth auth.IdentityProvider
}

func (s *UploadService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.EditorOnly())
		r.Use(checkSufficientStorage(s.storage))

		r.Post("/image", s.UploadImage)
		r.Post("/document", s.UploadDocument)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.EditorOnly())

		r.Get("/files", s.ListFiles)
		r.Get("/file/*", s.Download)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly())

		r.Delete("/*", s.Delete)
	})

	return r
}

func getMultipartBoundary(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return "", CodedError(fmt.Errorf("missing 'Content-Type' header"), http.StatusBadRequest)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", CodedError(fmt.Errorf("error parsing media type in request: %w", err), http.StatusBadRequest)
	}
	if mediaType != "multipart/form-data" {
		return "", CodedError(fmt.Errorf("expected media type to be 'multipart/form-data'"), http.StatusBadRequest)
	}

	boundary, ok := params["boundary"]
	if !ok {
		return "", CodedError(fmt.Errorf("missing 'boundary' parameter in 'Content-Type' header"), http.StatusBadRequest)
	}

	return boundary, nil
}

var fieldNameRegex = regexp.MustCompile(`^\w+$`)

// readPart buffers a multipart file part, enforcing the size ceiling before
// anything touches disk.
func readPart(part *multipart.Part, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxBytes+1))
	if err != nil {
		return nil, CodedError(fmt.Errorf("error reading upload: %w", err), http.StatusBadRequest)
	}
	if int64(len(data)) > maxBytes {
		return nil, CodedError(fmt.Errorf("file exceeds the %d byte limit", maxBytes), http.StatusRequestEntityTooLarge)
	}
	if len(data) == 0 {
		return nil, CodedError(errors.New("uploaded file is empty"), http.StatusBadRequest)
	}
	return data, nil
}

func uniqueFilename(original, ext string) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = strings.Map(func(c rune) rune {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' {
			return c
		}
		return '-'
	}, base)
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s-%s%s", base, uuid.New().String()[:8], ext)
}

type UploadedFile struct {
	Filename     string `json:"filename"`
	Path         string `json:"path"`
	Url          string `json:"url"`
	ThumbnailUrl string `json:"thumbnail_url,omitempty"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
}

func (s *UploadService) UploadImage(w http.ResponseWriter, r *http.Request) {
	boundary, err := getMultipartBoundary(r)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	reader := multipart.NewReader(r.Body, boundary)

	uploaded := make([]UploadedFile, 0)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("error parsing upload: %v", err), http.StatusBadRequest)
			return
		}
		if part.FileName() == "" {
			continue
		}

		field := part.FormName()
		if !fieldNameRegex.MatchString(field) {
			http.Error(w, "invalid upload field name, must be alphanumeric or _ characters only", http.StatusUnprocessableEntity)
			return
		}

		data, err := readPart(part, maxImageBytes)
		if err != nil {
			http.Error(w, err.Error(), GetResponseCode(err))
			return
		}

		mimeType := http.DetectContentType(data)
		ext, allowed := imageMimeTypes[mimeType]
		if !allowed {
			http.Error(w, fmt.Sprintf("unsupported image type '%v'", mimeType), http.StatusBadRequest)
			return
		}

		filename := uniqueFilename(part.FileName(), ext)
		path := storage.ImagePath(field, filename)

		if err := s.storage.Write(path, bytes.NewReader(data)); err != nil {
			http.Error(w, fmt.Sprintf("error storing image: %v", err), http.StatusInternalServerError)
			return
		}

		thumbnailUrl := ""
		if thumbPath, err := s.writeThumbnail(field, filename, data); err != nil {
			slog.Error("error generating thumbnail", "path", path, "error", err)
		} else {
			thumbnailUrl = "/uploads/" + filepath.ToSlash(thumbPath)
		}

		uploadsMetric.Inc()
		uploadBytesMetric.Observe(float64(len(data)))

		uploaded = append(uploaded, UploadedFile{
			Filename:     filename,
			Path:         path,
			Url:          "/uploads/" + filepath.ToSlash(path),
			ThumbnailUrl: thumbnailUrl,
			Size:         int64(len(data)),
			ContentType:  mimeType,
		})
	}

	if len(uploaded) == 0 {
		http.Error(w, "no files found in upload", http.StatusBadRequest)
		return
	}

	slog.Info("images uploaded", "count", len(uploaded))

	utils.WriteJsonResponseStatus(w, http.StatusCreated, uploaded)
}

func (s *UploadService) writeThumbnail(field, filename string, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("error decoding image: %w", err)
	}

	thumb := imaging.Fit(img, thumbnailMaxDim, thumbnailMaxDim, imaging.Lanczos)

	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		format = imaging.JPEG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format); err != nil {
		return "", fmt.Errorf("error encoding thumbnail: %w", err)
	}

	path := storage.ThumbnailPath(field, filename)
	if err := s.storage.Write(path, &buf); err != nil {
		return "", err
	}

	return path, nil
}

func (s *UploadService) UploadDocument(w http.ResponseWriter, r *http.Request) {
	boundary, err := getMultipartBoundary(r)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	reader := multipart.NewReader(r.Body, boundary)

	uploaded := make([]UploadedFile, 0)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("error parsing upload: %v", err), http.StatusBadRequest)
			return
		}
		if part.FileName() == "" {
			continue
		}

		field := part.FormName()
		if !fieldNameRegex.MatchString(field) {
			http.Error(w, "invalid upload field name, must be alphanumeric or _ characters only", http.StatusUnprocessableEntity)
			return
		}

		data, err := readPart(part, maxDocumentBytes)
		if err != nil {
			http.Error(w, err.Error(), GetResponseCode(err))
			return
		}

		mimeType := http.DetectContentType(data)
		if mimeType == "application/zip" {
			openxmlType, ok := openxmlExtensions[strings.ToLower(filepath.Ext(part.FileName()))]
			if !ok {
				http.Error(w, fmt.Sprintf("unsupported document type '%v'", mimeType), http.StatusBadRequest)
				return
			}
			mimeType = openxmlType
		} else if !documentMimeTypes[mimeType] {
			http.Error(w, fmt.Sprintf("unsupported document type '%v'", mimeType), http.StatusBadRequest)
			return
		}

		filename := uniqueFilename(part.FileName(), filepath.Ext(part.FileName()))
		path := storage.DocumentPath(field, filename)

		if err := s.storage.Write(path, bytes.NewReader(data)); err != nil {
			http.Error(w, fmt.Sprintf("error storing document: %v", err), http.StatusInternalServerError)
			return
		}

		uploadsMetric.Inc()
		uploadBytesMetric.Observe(float64(len(data)))

		uploaded = append(uploaded, UploadedFile{
			Filename:    filename,
			Path:        path,
			Url:         "/uploads/" + filepath.ToSlash(path),
			Size:        int64(len(data)),
			ContentType: mimeType,
		})
	}

	if len(uploaded) == 0 {
		http.Error(w, "no files found in upload", http.StatusBadRequest)
		return
	}

	slog.Info("documents uploaded", "count", len(uploaded))

	utils.WriteJsonResponseStatus(w, http.StatusCreated, uploaded)
}

type StoredFile struct {
	Path string `json:"path"`
	Url  string `json:"url"`
	Size int64  `json:"size"`
}

func (s *UploadService) ListFiles(w http.ResponseWriter, r *http.Request) {
	files := make([]StoredFile, 0)

	for _, dir := range []string{storage.ImageDir, storage.DocumentDir, storage.ThumbnailDir} {
		fields, err := s.storage.List(dir)
		if err != nil {
			http.Error(w, fmt.Sprintf("error listing files: %v", err), http.StatusInternalServerError)
			return
		}
		for _, field := range fields {
			names, err := s.storage.List(filepath.Join(dir, field))
			if err != nil {
				http.Error(w, fmt.Sprintf("error listing files: %v", err), http.StatusInternalServerError)
				return
			}
			for _, name := range names {
				path := filepath.Join(dir, field, name)
				size, err := s.storage.Size(path)
				if err != nil {
					size = 0
				}
				files = append(files, StoredFile{
					Path: path,
					Url:  "/uploads/" + filepath.ToSlash(path),
					Size: size,
				})
			}
		}
	}

	utils.WriteJsonResponse(w, files)
}

// cleanStoragePath normalizes a user-supplied file path and confines it to
// the known upload directories.
func cleanStoragePath(path string) (string, error) {
	cleaned := filepath.Clean(path)
	if cleaned == "" || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", CodedError(errors.New("invalid file path"), http.StatusBadRequest)
	}

	topDir := strings.SplitN(filepath.ToSlash(cleaned), "/", 2)[0]
	if topDir != storage.ImageDir && topDir != storage.DocumentDir && topDir != storage.ThumbnailDir {
		return "", CodedError(errors.New("invalid file path"), http.StatusBadRequest)
	}

	return cleaned, nil
}

func (s *UploadService) Download(w http.ResponseWriter, r *http.Request) {
	path, err := cleanStoragePath(chi.URLParam(r, "*"))
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	exists, err := s.storage.Exists(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("error reading file: %v", err), http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, fmt.Sprintf("file '%v' not found", path), http.StatusNotFound)
		return
	}

	file, err := s.storage.Read(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("error reading file: %v", err), http.StatusInternalServerError)
		return
	}
	defer file.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	if _, err := io.Copy(w, file); err != nil {
		slog.Error("error streaming file", "path", path, "error", err)
	}
}

func (s *UploadService) Delete(w http.ResponseWriter, r *http.Request) {
	cleaned, err := cleanStoragePath(chi.URLParam(r, "*"))
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	topDir := strings.SplitN(filepath.ToSlash(cleaned), "/", 2)[0]

	exists, err := s.storage.Exists(cleaned)
	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting file: %v", err), http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, fmt.Sprintf("file '%v' not found", cleaned), http.StatusNotFound)
		return
	}

	if err := s.storage.Delete(cleaned); err != nil {
		http.Error(w, fmt.Sprintf("error deleting file: %v", err), http.StatusInternalServerError)
		return
	}

	// remove the matching thumbnail when an image is deleted
	if topDir == storage.ImageDir {
		rest := strings.TrimPrefix(filepath.ToSlash(cleaned), storage.ImageDir+"/")
		thumbPath := filepath.Join(storage.ThumbnailDir, rest)
		if exists, err := s.storage.Exists(thumbPath); err == nil && exists {
			if err := s.storage.Delete(thumbPath); err != nil {
				slog.Error("error deleting thumbnail", "path", thumbPath, "error", err)
			}
		}
	}

	slog.Info("file deleted", "path", cleaned)

	utils.WriteSuccess(w)
}
