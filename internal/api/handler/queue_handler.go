package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tqminh/formextract-be/internal/api/domain"
	"github.com/tqminh/formextract-be/internal/api/dto"
	"github.com/tqminh/formextract-be/internal/api/model"
	"github.com/tqminh/formextract-be/internal/api/upload"
	"github.com/tqminh/formextract-be/internal/jobqueue"
)

// QueueUploadImage handles POST /queue/upload-image.
// The file is staged on local disk, then a job descriptor is enqueued.
// The response only acknowledges queueing; the upload itself runs async.
func (h *Handler) QueueUploadImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	if err := upload.ValidateFilename(fileHeader.Filename, h.upload.AllowedExtensions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := upload.ValidateSize(fileHeader.Size, h.upload.MaxFileSize); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	folderPath, err := upload.SanitizeFolderPath(c.PostForm("folderPath"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := c.PostForm("status")
	if status == "" {
		status = model.ImageStatusUploaded
	}

	if err := os.MkdirAll(h.upload.TempDir, 0o755); err != nil {
		h.logger.Error("Failed to create temp dir", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stage upload"})
		return
	}

	tempPath := filepath.Join(h.upload.TempDir,
		fmt.Sprintf("%s%s", uuid.New().String(), filepath.Ext(fileHeader.Filename)))
	if err := c.SaveUploadedFile(fileHeader, tempPath); err != nil {
		h.logger.Error("Failed to save uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stage upload"})
		return
	}

	jobID, err := h.submitter.Submit(c.Request.Context(), jobqueue.JobTypeUploadImage, &jobqueue.UploadImagePayload{
		TempPath:         tempPath,
		OriginalFilename: fileHeader.Filename,
		Status:           status,
		FolderPath:       folderPath,
	})
	if err != nil {
		// The job never queued; the staged file has no owner anymore
		if removeErr := os.Remove(tempPath); removeErr != nil {
			h.logger.Warn("Failed to remove staged file",
				slog.String("temp_path", tempPath),
				slog.String("error", removeErr.Error()),
			)
		}
		h.respondSubmitError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.QueueJobResponse{JobID: jobID, Status: "queued"})
}

// QueueExtractForm handles POST /queue/extract-form
func (h *Handler) QueueExtractForm(c *gin.Context) {
	var req dto.ExtractFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	image, err := h.storage.GetImage(c.Request.Context(), req.ImageName)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found, upload first"})
			return
		}
		h.logger.Error("Failed to load image record", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load image record"})
		return
	}

	if image.Status == model.ImageStatusProcessing {
		c.JSON(http.StatusOK, gin.H{
			"image_name": image.ImageName,
			"status":     "already_processing",
		})
		return
	}

	// Visible immediately so a double submit short-circuits above
	marked := *image
	marked.Status = model.ImageStatusProcessing
	if err := h.storage.UpsertImage(c.Request.Context(), &marked); err != nil {
		h.logger.Warn("Failed to mark image as processing",
			slog.String("image_name", image.ImageName),
			slog.String("error", err.Error()),
		)
	}

	createdAt := req.CreatedAt
	if createdAt == "" {
		createdAt = image.CreatedAt
	}

	jobID, err := h.submitter.Submit(c.Request.Context(), jobqueue.JobTypeExtractForm, &jobqueue.ExtractFormPayload{
		ImageName:  req.ImageName,
		ImagePath:  image.ImagePath,
		Size:       image.SizeMB,
		Status:     image.Status,
		CreatedAt:  createdAt,
		FolderPath: image.FolderPath,
	})
	if err != nil {
		h.respondSubmitError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.QueueJobResponse{JobID: jobID, Status: "queued"})
}

func (h *Handler) respondSubmitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobqueue.ErrInvalidPayload), errors.Is(err, jobqueue.ErrUnknownJobType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, jobqueue.ErrQueueUnavailable):
		h.logger.Error("Job queue unavailable", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue unavailable, try again later"})

	default:
		h.logger.Error("Failed to submit job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit job"})
	}
}
