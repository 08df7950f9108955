// internal/workers/loan/update-application-status/handler.go
package updateapplicationstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"loan-api/internal/common/errors"
	"loan-api/internal/common/logger"
	"loan-api/internal/common/metrics"
	"loan-api/internal/common/validation"
	"loan-api/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "update-loan-application-status"
)

// variablesSchema only checks what the process must supply. The status value
// itself is left to the store so an unknown status maps to INVALID_STATUS.
var variablesSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"applicationId"},
	"properties": map[string]interface{}{
		"applicationId": map[string]interface{}{"type": "string", "minLength": 1},
	},
}

type Handler struct {
	config       *Config
	store        *store.Store
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, s *store.Store, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        s,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &vars); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}
	if msg, ok := checkVariables(vars); !ok {
		h.failJob(client, job, "INVALID_JOB_VARIABLES", msg)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandardError(err).Code)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func checkVariables(vars map[string]interface{}) (string, bool) {
	result, err := validation.ValidateInput(vars, variablesSchema)
	if err != nil {
		return err.Error(), false
	}
	if !result.Valid {
		return strings.Join(result.GetErrorMessages(), "; "), false
	}
	return "", true
}

// execute hands the raw status to the store, which checks the id first and
// only then whether the status is one of the four known values.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	app, err := h.store.UpdateStatus(ctx, input.ApplicationID, input.Status)
	if err != nil {
		return nil, err
	}

	updatedAt := ""
	if app.UpdatedAt != nil {
		updatedAt = app.UpdatedAt.Format(time.RFC3339)
	}

	return &Output{
		ApplicationID:     app.ID,
		ApplicationStatus: string(app.Status),
		UpdatedAt:         updatedAt,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":            job.Key,
		"applicationId":     output.ApplicationID,
		"applicationStatus": output.ApplicationStatus,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
