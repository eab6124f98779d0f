// internal/handler/media_handler.go
package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/omnipost-backend/internal/capability"
	"github.com/unclebandit/omnipost-backend/internal/media"
	"github.com/unclebandit/omnipost-backend/internal/model"
)

const maxMultipartMemory = 32 << 20

// MediaHandler accepts uploads and hands back asset references for drafts.
type MediaHandler struct {
	Store media.Store
	Log   logrus.FieldLogger
}

// Upload handles POST /media with one or more "files" parts.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(capability.MaxMediaItems)*media.MaxFileSize)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		WriteError(w, r, h.Log, BadRequest("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		WriteError(w, r, h.Log, BadRequest("no files uploaded"))
		return
	}
	if len(files) > capability.MaxMediaItems {
		WriteError(w, r, h.Log, BadRequest(fmt.Sprintf("at most %d files per upload", capability.MaxMediaItems)))
		return
	}

	assets := make([]model.MediaAsset, 0, len(files))
	for _, fh := range files {
		asset, err := h.store(r, fh)
		if err != nil {
			WriteError(w, r, h.Log, err)
			return
		}
		assets = append(assets, asset)
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"data": assets})
}

func (h *MediaHandler) store(r *http.Request, fh *multipart.FileHeader) (model.MediaAsset, error) {
	if fh.Size > media.MaxFileSize {
		return model.MediaAsset{}, BadRequest(fh.Filename + ": " + media.ErrFileTooLarge.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return model.MediaAsset{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return model.MediaAsset{}, err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	asset, err := h.Store.Upload(r.Context(), data, contentType)
	if err != nil {
		if errors.Is(err, media.ErrEmptyFile) || errors.Is(err, media.ErrFileTooLarge) || errors.Is(err, media.ErrInvalidFileType) {
			return model.MediaAsset{}, BadRequest(fh.Filename + ": " + err.Error())
		}
		return model.MediaAsset{}, err
	}
	h.Log.WithFields(logrus.Fields{"url": asset.URL, "kind": asset.Kind, "size": len(data)}).Info("media uploaded")
	return asset, nil
}

func (h *MediaHandler) Routes(r chi.Router) {
	r.Post("/media", h.Upload)
}
