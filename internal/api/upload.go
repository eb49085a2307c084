package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/starford/postdesk/internal/blogservice"
)

const (
	maxUploadBytes  = 50 << 20 // 50 MB per request
	multipartMemory = 32 << 20
	uploadFieldFile = "file"
	uploadFieldName = "name"
)

// UploadHandler lists, accepts and removes blog images.
type UploadHandler struct {
	svc *blogservice.Service
}

// NewUploadHandler creates an image handler.
func NewUploadHandler(svc *blogservice.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// List handles GET /api/upload.
//
//	@Summary		List blog images
//	@Tags			images
//	@Produce		json
//	@Success		200	{object}	ImageListResponse
//	@Router			/upload [get]
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.ListImages(r.Context())
	if err != nil {
		writeError(w, r, "list images", err)
		return
	}
	writeJSON(w, http.StatusOK, ImageListResponse{Images: images})
}

// Upload handles POST /api/upload (multipart/form-data, one or more "file"
// parts, optional "name").
//
//	@Summary		Upload one or more images
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Success		201	{object}	ImageUploadResponse
//	@Success		200	{object}	ImageBatchResponse
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Router			/upload [post]
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[uploadFieldFile]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}

	uploads := make([]blogservice.ImageUpload, 0, len(files))
	for _, fh := range files {
		in, err := h.readPart(fh)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read uploaded file"))
			return
		}
		uploads = append(uploads, in)
	}

	if len(uploads) == 1 {
		uploads[0].Name = strings.TrimSpace(r.FormValue(uploadFieldName))
		img, err := h.svc.UploadImage(r.Context(), uploads[0])
		if err != nil {
			writeError(w, r, "upload image", err)
			return
		}
		writeJSON(w, http.StatusCreated, ImageUploadResponse{Success: true, UploadedImage: *img})
		return
	}

	resp := ImageBatchResponse{Results: make([]ImageBatchItem, 0, len(uploads))}
	for _, res := range h.svc.UploadImages(r.Context(), uploads) {
		item := ImageBatchItem{Filename: res.Filename}
		if res.Err != nil {
			item.Status, item.Error = describe(res.Err)
			resp.Failed++
		} else {
			item.Success = true
			item.UploadedImage = res.Image
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// readPart loads one multipart file. Parts larger than the image limit are
// not read; the service rejects them by their declared size.
func (h *UploadHandler) readPart(fh *multipart.FileHeader) (blogservice.ImageUpload, error) {
	in := blogservice.ImageUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}
	if fh.Size > h.svc.Layout().MaxImageBytes {
		return in, nil
	}
	f, err := fh.Open()
	if err != nil {
		return in, err
	}
	defer f.Close()
	in.Data, err = io.ReadAll(f)
	return in, err
}

// Delete handles DELETE /api/upload.
//
//	@Summary		Delete an image
//	@Tags			images
//	@Accept			json
//	@Param			body	body		DeleteImageRequest	true	"Image to delete"
//	@Success		200		{object}	ImageDeleteResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/upload [delete]
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.DeleteImage(r.Context(), req.Filename, req.SHA)
	if err != nil {
		writeError(w, r, "delete image", err)
		return
	}
	writeJSON(w, http.StatusOK, ImageDeleteResponse{
		Success:  true,
		Filename: res.Filename,
		Path:     res.Path,
		Commit:   res.Commit,
	})
}
