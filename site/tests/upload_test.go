package tests

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"labsite/site/schema"
	"labsite/site/services"
)

func pngBytes(t *testing.T, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, content []byte) (io.Reader, string) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	return body, writer.FormDataContentType()
}

func TestImageUpload(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	body, contentType := multipartBody(t, "projects", "wake.png", pngBytes(t, 600, 400))

	var uploaded []services.UploadedFile
	err := editor.Post("/upload/image").Header("Content-Type", contentType).Body(body).Do(&uploaded)
	if err != nil {
		t.Fatal(err)
	}

	if len(uploaded) != 1 {
		t.Fatalf("expected 1 uploaded file, got %v", uploaded)
	}
	if uploaded[0].ContentType != "image/png" {
		t.Fatalf("unexpected content type %v", uploaded[0].ContentType)
	}
	if !strings.HasPrefix(uploaded[0].Path, "images/projects/") {
		t.Fatalf("file should be namespaced by field, got %v", uploaded[0].Path)
	}
	if uploaded[0].ThumbnailUrl == "" {
		t.Fatal("thumbnail should be generated for images")
	}

	exists, err := env.storage.Exists(uploaded[0].Path)
	if err != nil || !exists {
		t.Fatalf("uploaded file missing from storage: %v", err)
	}
}

func TestImageUploadRejectsWrongType(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	body, contentType := multipartBody(t, "projects", "notes.txt", []byte("plain text, not an image"))

	status, _ := editor.Post("/upload/image").Header("Content-Type", contentType).Body(body).Raw()
	if status != http.StatusBadRequest {
		t.Fatalf("text file upload should 400, got %d", status)
	}

	files, err := env.storage.List("images")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Fatalf("rejected upload should persist nothing, got %v", files)
	}
}

func TestImageUploadRejectsOversize(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	// larger than the 5 MiB image ceiling; prefixed with a png header so the
	// size check is what rejects it
	big := append(pngBytes(t, 8, 8), make([]byte, 6*1024*1024)...)
	body, contentType := multipartBody(t, "projects", "big.png", big)

	status, _ := editor.Post("/upload/image").Header("Content-Type", contentType).Body(body).Raw()
	if status != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversize upload should 413, got %d", status)
	}
}

func TestDocumentUpload(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF")
	body, contentType := multipartBody(t, "reports", "annual.pdf", pdf)

	var uploaded []services.UploadedFile
	err := editor.Post("/upload/document").Header("Content-Type", contentType).Body(body).Do(&uploaded)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploaded) != 1 || uploaded[0].ContentType != "application/pdf" {
		t.Fatalf("unexpected upload result %v", uploaded)
	}
	if !strings.HasPrefix(uploaded[0].Path, "documents/reports/") {
		t.Fatalf("document should be namespaced by field, got %v", uploaded[0].Path)
	}
}

func TestDocumentUploadRejectsPlainArchive(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	zipData := append([]byte("PK\x03\x04"), make([]byte, 64)...)

	// a bare zip archive is not a document
	body, contentType := multipartBody(t, "reports", "archive.zip", zipData)
	status, respBody := editor.Post("/upload/document").Header("Content-Type", contentType).Body(body).Raw()
	if status != http.StatusBadRequest {
		t.Fatalf("zip upload should 400, got %d: %v", status, respBody)
	}

	// the same container bytes with an openxml extension are accepted and
	// reported with the openxml mime type
	body, contentType = multipartBody(t, "reports", "minutes.docx", zipData)
	var uploaded []services.UploadedFile
	err := editor.Post("/upload/document").Header("Content-Type", contentType).Body(body).Do(&uploaded)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploaded) != 1 || uploaded[0].ContentType != "application/vnd.openxmlformats-officedocument.wordprocessingml.document" {
		t.Fatalf("unexpected upload result %v", uploaded)
	}
}

func TestDocumentDownload(t *testing.T) {
	env := setupTestEnv(t)

	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF")
	body, contentType := multipartBody(t, "reports", "annual.pdf", pdf)

	var uploaded []services.UploadedFile
	err := editor.Post("/upload/document").Header("Content-Type", contentType).Body(body).Do(&uploaded)
	if err != nil {
		t.Fatal(err)
	}

	status, downloaded := editor.Get("/upload/file/" + uploaded[0].Path).Raw()
	if status != http.StatusOK {
		t.Fatalf("download should succeed, got %d", status)
	}
	if downloaded != string(pdf) {
		t.Fatalf("downloaded bytes do not match the upload")
	}

	status, _ = editor.Get("/upload/file/documents/reports/missing.pdf").Raw()
	if status != http.StatusNotFound {
		t.Fatalf("missing file should 404, got %d", status)
	}

	status, _ = editor.Get("/upload/file/../../etc/passwd").Raw()
	if status != http.StatusBadRequest && status != http.StatusNotFound {
		t.Fatalf("traversal path should be rejected, got %d", status)
	}

	anonymous := env.newClient()
	err = anonymous.Get("/upload/file/" + uploaded[0].Path).Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous download should be unauthorized, got %v", err)
	}
}

func TestUploadRequiresEditor(t *testing.T) {
	env := setupTestEnv(t)

	viewer, err := env.newUser("viewer1")
	if err != nil {
		t.Fatal(err)
	}

	body, contentType := multipartBody(t, "projects", "wake.png", pngBytes(t, 10, 10))

	err = viewer.Post("/upload/image").Header("Content-Type", contentType).Body(body).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewer upload should be forbidden, got %v", err)
	}
}

func TestFileListAndDelete(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	editor := env.newUserWithRole(t, "editor1", schema.RoleEditor)

	body, contentType := multipartBody(t, "team", "portrait.png", pngBytes(t, 64, 64))

	var uploaded []services.UploadedFile
	err = editor.Post("/upload/image").Header("Content-Type", contentType).Body(body).Do(&uploaded)
	if err != nil {
		t.Fatal(err)
	}

	var files []services.StoredFile
	err = editor.Get("/upload/files").Do(&files)
	if err != nil {
		t.Fatal(err)
	}
	// image plus its thumbnail
	if len(files) != 2 {
		t.Fatalf("expected 2 stored files, got %v", files)
	}

	// editors cannot delete files
	err = editor.Delete("/upload/" + uploaded[0].Path).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("editor file delete should be forbidden, got %v", err)
	}

	err = admin.Delete("/upload/" + uploaded[0].Path).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	exists, err := env.storage.Exists(uploaded[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("deleted file should be removed from storage")
	}

	// thumbnail removed along with the image
	err = editor.Get("/upload/files").Do(&files)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no stored files after delete, got %v", files)
	}

	status, _ := admin.Delete("/upload/images/team/missing.png").Raw()
	if status != http.StatusNotFound {
		t.Fatalf("deleting a missing file should 404, got %d", status)
	}

	status, _ = admin.Delete("/upload/../../etc/passwd").Raw()
	if status != http.StatusBadRequest {
		t.Fatalf("path traversal should 400, got %d", status)
	}
}
