package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/snzark/crm/server/gstorage"
)

// multipart headers & boundaries on top of the file itself
const multipartOverheadBytes = 1 << 20

type uploadedFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

func uploadFile(rw http.ResponseWriter, r *http.Request) {
	maxBytes := crmConfig.Uploads.MaxBytes
	r.Body = http.MaxBytesReader(rw, r.Body, maxBytes+multipartOverheadBytes)

	err := r.ParseMultipartForm(maxBytes)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeResponse(rw, ResponsePayload{Errors: []string{"file is too large"}}, http.StatusRequestEntityTooLarge)
			return
		}
		writeResponse(rw, ResponsePayload{Errors: []string{"a multipart form with a 'file' field is required"}}, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"a multipart form with a 'file' field is required"}}, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		writeResponse(rw, ResponsePayload{Errors: []string{"file is too large"}}, http.StatusRequestEntityTooLarge)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url, err := fileStorage.Upload(r.Context(), gstorage.NewObjectKey(header.Filename), file, contentType)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: uploadedFile{
		Name: header.Filename,
		Size: header.Size,
		Type: contentType,
		URL:  url,
	}}, http.StatusCreated)
}

func serveUpload(rw http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	rc, err := fileStorage.Open(r.Context(), key)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		writeResponse(rw, ResponsePayload{Errors: []string{"file not found"}}, http.StatusNotFound)
		return
	}
	if errors.Is(err, gstorage.ErrInvalidKey) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}
	defer rc.Close()

	if contentType := mime.TypeByExtension(filepath.Ext(key)); contentType != "" {
		rw.Header().Set("Content-Type", contentType)
	}
	rw.Header().Set("X-Content-Type-Options", "nosniff")

	if _, err := io.Copy(rw, rc); err != nil {
		logg.Error(err)
	}
}
