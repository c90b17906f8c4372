package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tqminh/formextract-be/internal/api/domain"
	"github.com/tqminh/formextract-be/internal/api/dto"
	"github.com/tqminh/formextract-be/internal/api/model"
	"github.com/tqminh/formextract-be/internal/api/storage"
)

// CreateImage handles POST /images
func (h *Handler) CreateImage(c *gin.Context) {
	var req dto.CreateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	createdAt := req.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format("20060102_150405")
	}

	image := &model.ImageDetail{
		ImageName:  req.ImageName,
		Status:     req.Status,
		ImagePath:  req.ImagePath,
		CreatedAt:  createdAt,
		FolderPath: req.FolderPath,
		SizeMB:     req.SizeMB,
	}

	if err := h.storage.UpsertImage(c.Request.Context(), image); err != nil {
		h.logger.Error("Failed to create image record", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create image record"})
		return
	}

	c.JSON(http.StatusCreated, imageToDTO(image))
}

// GetImage handles GET /images/:image_name
func (h *Handler) GetImage(c *gin.Context) {
	imageName := c.Param("image_name")

	image, err := h.storage.GetImage(c.Request.Context(), imageName)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		h.logger.Error("Failed to get image", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get image"})
		return
	}

	c.JSON(http.StatusOK, imageToDTO(image))
}

// ListImages handles GET /images with folder filtering and keyset pagination
func (h *Handler) ListImages(c *gin.Context) {
	var req dto.ListImagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeImageCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
		return
	}

	images, err := h.storage.ListImages(c.Request.Context(), storage.ImageFilter{
		FolderPath: req.FolderPath,
		Status:     req.Status,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list images", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list images"})
		return
	}

	hasMore := len(images) > req.PageSize
	if hasMore {
		images = images[:req.PageSize]
	}

	response := dto.ListImagesResponse{
		Images: make([]dto.ImageDTO, len(images)),
	}
	for i := range images {
		response.Images[i] = imageToDTO(&images[i])
	}

	if hasMore {
		last := images[len(images)-1]
		response.NextCursor = EncodeImageCursor(&storage.ImageCursor{
			CreatedAt: last.CreatedAt,
			ImageName: last.ImageName,
		})
	}

	c.JSON(http.StatusOK, response)
}

// DeleteImage handles DELETE /images/:image_name. The stored object goes
// first; a record without an object is worse than the reverse.
func (h *Handler) DeleteImage(c *gin.Context) {
	imageName := c.Param("image_name")

	image, err := h.storage.GetImage(c.Request.Context(), imageName)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
		h.logger.Error("Failed to get image", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete image"})
		return
	}

	objectKey := imageName
	if image.FolderPath != "" {
		objectKey = path.Join(image.FolderPath, imageName)
	}
	if err := h.objects.Delete(c.Request.Context(), objectKey); err != nil {
		h.logger.Error("Failed to delete stored object",
			slog.String("object_key", objectKey),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete image"})
		return
	}

	if err := h.storage.DeleteImage(c.Request.Context(), imageName); err != nil && !errors.Is(err, domain.ErrImageNotFound) {
		h.logger.Error("Failed to delete image record", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete image"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetForm handles GET /forms/:image_name
func (h *Handler) GetForm(c *gin.Context) {
	imageName := c.Param("image_name")

	form, err := h.storage.GetFormExtraction(c.Request.Context(), imageName)
	if err != nil {
		if errors.Is(err, domain.ErrFormNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "form extraction not found"})
			return
		}
		h.logger.Error("Failed to get form extraction", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get form extraction"})
		return
	}

	c.JSON(http.StatusOK, dto.FormDTO{
		ImageName:  form.ImageName,
		Status:     form.Status,
		ImagePath:  form.ImagePath,
		CreatedAt:  form.CreatedAt,
		FolderPath: form.FolderPath,
		SizeMB:     form.SizeMB,
		Analysis:   form.Analysis,
	})
}

func imageToDTO(image *model.ImageDetail) dto.ImageDTO {
	return dto.ImageDTO{
		ImageName:  image.ImageName,
		Status:     image.Status,
		ImagePath:  image.ImagePath,
		CreatedAt:  image.CreatedAt,
		FolderPath: image.FolderPath,
		SizeMB:     image.SizeMB,
	}
}
