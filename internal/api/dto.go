package api

import (
	"github.com/starford/postdesk/internal/blogservice"
	"github.com/starford/postdesk/internal/models"
)

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest = blogservice.CreatePostInput

// UpdatePostRequest is the request body for replacing a post.
type UpdatePostRequest = blogservice.UpdatePostInput

// DeletePostRequest is the request body for deleting a post.
type DeletePostRequest struct {
	SHA     string `json:"sha" validate:"required"`
	Message string `json:"message,omitempty"`
}

// DeleteImageRequest is the request body for deleting an image.
type DeleteImageRequest struct {
	Filename string `json:"filename" example:"cover.png" validate:"required"`
	SHA      string `json:"sha" validate:"required"`
}

// PostListResponse wraps post listings.
type PostListResponse struct {
	Posts []blogservice.PostSummary `json:"posts" validate:"required"`
}

// PostDetail is the single post response type (aliased from the domain layer).
type PostDetail = blogservice.PostDetail

// PostCreatedResponse is returned after a post is created.
type PostCreatedResponse struct {
	Success  bool          `json:"success"`
	Path     string        `json:"path" example:"content/posts/2024-01-01-hi.mdx"`
	Filename string        `json:"filename" example:"2024-01-01-hi.mdx"`
	SHA      string        `json:"sha"`
	Commit   models.Commit `json:"commit"`
}

// PostWriteResponse is returned after a post is updated or deleted. SHA
// is omitted after a delete.
type PostWriteResponse struct {
	Success bool          `json:"success"`
	Path    string        `json:"path"`
	SHA     string        `json:"sha,omitempty"`
	Commit  models.Commit `json:"commit"`
}

// ImageListResponse wraps image listings.
type ImageListResponse struct {
	Images []blogservice.ImageSummary `json:"images" validate:"required"`
}

// ImageUploadResponse is returned after a single image upload.
type ImageUploadResponse struct {
	Success bool `json:"success"`
	blogservice.UploadedImage
}

// ImageBatchItem is one entry of a multi-file upload response.
type ImageBatchItem struct {
	Success bool `json:"success"`
	*blogservice.UploadedImage
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
	Status   int    `json:"status,omitempty"`
}

// ImageBatchResponse is returned when several files are uploaded at once.
type ImageBatchResponse struct {
	Results   []ImageBatchItem `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// ImageDeleteResponse is returned after an image is deleted.
type ImageDeleteResponse struct {
	Success  bool          `json:"success"`
	Filename string        `json:"filename"`
	Path     string        `json:"path"`
	Commit   models.Commit `json:"commit"`
}
