package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tqminh/formextract-be/internal/api/domain"
	"github.com/tqminh/formextract-be/internal/api/dto"
	"github.com/tqminh/formextract-be/internal/api/upload"
)

// ListFolders handles GET /folders
func (h *Handler) ListFolders(c *gin.Context) {
	folders, err := h.storage.ListFolders(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list folders", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list folders"})
		return
	}

	response := make([]dto.FolderDTO, len(folders))
	for i, folder := range folders {
		response[i] = dto.FolderDTO{
			FolderPath: folder.FolderPath,
			CreatedAt:  folder.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"folders": response})
}

// CreateFolder handles POST /folders
func (h *Handler) CreateFolder(c *gin.Context) {
	var req dto.CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	folderPath, err := upload.SanitizeFolderPath(req.FolderPath)
	if err != nil || folderPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder path"})
		return
	}

	if err := h.storage.CreateFolder(c.Request.Context(), folderPath); err != nil {
		if errors.Is(err, domain.ErrFolderExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "folder already exists"})
			return
		}
		h.logger.Error("Failed to create folder", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create folder"})
		return
	}

	c.JSON(http.StatusCreated, dto.FolderDTO{
		FolderPath: folderPath,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	})
}

// DeleteFolder handles DELETE /folders/*folder_path.
// Removes the stored objects first, then the records.
func (h *Handler) DeleteFolder(c *gin.Context) {
	folderPath, err := upload.SanitizeFolderPath(c.Param("folder_path"))
	if err != nil || folderPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder path"})
		return
	}

	if _, err := h.objects.DeletePrefix(c.Request.Context(), folderPath+"/"); err != nil {
		h.logger.Error("Failed to delete folder objects",
			slog.String("folder_path", folderPath),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete folder"})
		return
	}

	if err := h.storage.DeleteFolder(c.Request.Context(), folderPath); err != nil {
		if errors.Is(err, domain.ErrFolderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
			return
		}
		h.logger.Error("Failed to delete folder", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete folder"})
		return
	}

	c.Status(http.StatusNoContent)
}

// RenameFolder handles POST /folders/rename. Objects are copied to the
// new prefix before the old prefix is removed, so a crash mid-rename
// leaves duplicates rather than losses.
func (h *Handler) RenameFolder(c *gin.Context) {
	var req dto.RenameFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	oldPath, err := upload.SanitizeFolderPath(req.OldPath)
	if err != nil || oldPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid old folder path"})
		return
	}
	newPath, err := upload.SanitizeFolderPath(req.NewPath)
	if err != nil || newPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid new folder path"})
		return
	}
	if oldPath == newPath {
		c.JSON(http.StatusBadRequest, gin.H{"error": "old and new folder paths are identical"})
		return
	}

	if err := h.objects.CopyPrefix(c.Request.Context(), oldPath+"/", newPath+"/"); err != nil {
		h.logger.Error("Failed to copy folder objects",
			slog.String("old_path", oldPath),
			slog.String("new_path", newPath),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rename folder"})
		return
	}

	if err := h.storage.RenameFolder(c.Request.Context(), oldPath, newPath); err != nil {
		if errors.Is(err, domain.ErrFolderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
			return
		}
		h.logger.Error("Failed to rename folder", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rename folder"})
		return
	}

	if _, err := h.objects.DeletePrefix(c.Request.Context(), oldPath+"/"); err != nil {
		h.logger.Warn("Failed to remove old folder objects after rename",
			slog.String("old_path", oldPath),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(http.StatusOK, dto.FolderDTO{FolderPath: newPath})
}
