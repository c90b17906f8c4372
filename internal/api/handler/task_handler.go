package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tqminh/formextract-be/internal/api/domain"
	"github.com/tqminh/formextract-be/internal/api/dto"
	"github.com/tqminh/formextract-be/internal/jobqueue"
)

// GetTaskStatus handles GET /tasks/:job_id.
// A job id with no record yet reads as PENDING: the descriptor may still
// be in flight between the queue and a worker.
func (h *Handler) GetTaskStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	record, err := h.storage.GetJobRecord(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobRecordNotFound) {
			c.JSON(http.StatusOK, dto.TaskStatusResponse{
				JobID: jobID,
				State: jobqueue.StatePending,
			})
			return
		}
		h.logger.Error("Failed to get job record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get task status"})
		return
	}

	response := dto.TaskStatusResponse{
		JobID: record.JobID,
		State: record.State,
	}

	switch record.State {
	case jobqueue.StateSuccess:
		response.Result = record.Result

	case jobqueue.StateFailure:
		taskErr := &dto.TaskError{}
		if record.ErrorKind != nil {
			taskErr.Kind = *record.ErrorKind
		}
		if record.ErrorMessage != nil {
			taskErr.Message = *record.ErrorMessage
		}
		response.Error = taskErr

	case jobqueue.StateRetry:
		retryCount := record.RetryCount
		response.RetryCount = &retryCount
	}

	c.JSON(http.StatusOK, response)
}
