package handler

import (
	"context"
	"log/slog"

	"github.com/tqminh/formextract-be/internal/api/model"
	"github.com/tqminh/formextract-be/internal/api/storage"
	"github.com/tqminh/formextract-be/internal/config"
)

// RecordStore is the database surface the handlers need
type RecordStore interface {
	GetJobRecord(ctx context.Context, jobID string) (*model.JobRecord, error)
	ImageExists(ctx context.Context, imageName string) (bool, error)
	GetImage(ctx context.Context, imageName string) (*model.ImageDetail, error)
	UpsertImage(ctx context.Context, image *model.ImageDetail) error
	DeleteImage(ctx context.Context, imageName string) error
	ListImages(ctx context.Context, filter storage.ImageFilter) ([]model.ImageDetail, error)
	GetFormExtraction(ctx context.Context, imageName string) (*model.FormExtraction, error)
	ListFolders(ctx context.Context) ([]model.ImageFolder, error)
	CreateFolder(ctx context.Context, folderPath string) error
	DeleteFolder(ctx context.Context, folderPath string) error
	RenameFolder(ctx context.Context, oldPath, newPath string) error
}

// JobSubmitter enqueues jobs and returns their ids
type JobSubmitter interface {
	Submit(ctx context.Context, jobType string, payload any) (string, error)
}

// ObjectStore is the bucket surface the handlers need
type ObjectStore interface {
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	CopyPrefix(ctx context.Context, oldPrefix, newPrefix string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Storage   RecordStore
	Submitter JobSubmitter
	Objects   ObjectStore
	Upload    config.UploadConfig
}

// Handler serves the HTTP API
type Handler struct {
	logger    *slog.Logger
	storage   RecordStore
	submitter JobSubmitter
	objects   ObjectStore
	upload    config.UploadConfig
}

// NewHandler creates a new Handler instance
func NewHandler(deps *Dependencies) *Handler {
	return &Handler{
		logger:    deps.Logger,
		storage:   deps.Storage,
		submitter: deps.Submitter,
		objects:   deps.Objects,
		upload:    deps.Upload,
	}
}
