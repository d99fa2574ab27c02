package handlers

import (
	"fmt"
	"net/http"
	"path"

	"go.uber.org/zap"

	"whisperboard/pkg/auth"
	"whisperboard/pkg/blob"
	"whisperboard/pkg/logger"
	"whisperboard/pkg/utils"

	"github.com/gorilla/mux"
)

// maxUploadBytes caps a single attachment upload.
const maxUploadBytes = 25 << 20

// RegisterAttachments registers the upload route. provider may be nil when
// no blob storage is configured; uploads then fail with 503.
func RegisterAttachments(r *mux.Router, provider blob.Provider) {
	r.HandleFunc("/attachments", uploadAttachment(provider)).Methods(http.MethodPost)
}

// uploadAttachment handles POST /attachments with a multipart form holding
// a single "file" part. The response carries the attachment id, public URL
// and the storage ref the caller embeds in its node content.
func uploadAttachment(provider blob.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			utils.JSONError(w, http.StatusServiceUnavailable, "attachment storage not configured")
			return
		}
		principal := auth.PrincipalFromContext(r.Context())
		if principal == "" {
			utils.JSONError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, "file part is required")
			return
		}
		defer file.Close()

		id := utils.GenAttachmentID()
		ext := path.Ext(header.Filename)
		objPath := fmt.Sprintf("attachments/%s%s", id, ext)
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		res, err := provider.Put(r.Context(), objPath, file, header.Size, contentType)
		if err != nil {
			logger.Error("attachment_upload_failed", zap.String("id", id), zap.Error(err))
			utils.JSONError(w, http.StatusInternalServerError, "upload failed")
			return
		}
		logger.Info("attachment_uploaded", zap.String("id", id), zap.String("ref", res.StorageRef), zap.Int64("bytes", header.Size))
		utils.JSONWrite(w, http.StatusCreated, struct {
			ID         string `json:"id"`
			URL        string `json:"url"`
			StorageRef string `json:"storage_ref"`
		}{ID: id, URL: res.URL, StorageRef: res.StorageRef})
	}
}
