package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/live"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/workflow"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

const streamHeartbeat = 15 * time.Second

// ComplaintsHandler manages complaint endpoints.
type ComplaintsHandler struct {
	service *service.ComplaintService
	logger  *zap.Logger
	now     func() time.Time
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(complaintService *service.ComplaintService, logger *zap.Logger) *ComplaintsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintsHandler{service: complaintService, logger: logger, now: time.Now}
}

// CreateComplaint POST /complaints.
func (h *ComplaintsHandler) CreateComplaint(c *fiber.Ctx) error {
	var req dto.CreateComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.service.CreateComplaint(requestContext(c), service.IntakeInput{
		Name:                  req.Name,
		ContactPerson:         req.ContactPerson,
		RegisteredContactNo:   req.RegisteredContactNo,
		Address:               req.Address,
		Product:               req.Product,
		NatureOfComplaint:     req.NatureOfComplaint,
		ComplaintReceivedFrom: req.ComplaintReceivedFrom,
		WarrantyStatus:        req.WarrantyStatus,
		DateOfInstallation:    req.DateOfInstallation,
		InvoiceMeta:           req.InvoiceMeta,
		ImageMeta:             req.ImageMeta,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewComplaintDetail(complaint, h.now())})
}

// ListComplaints GET /complaints.
func (h *ComplaintsHandler) ListComplaints(c *fiber.Ctx) error {
	filter, err := parseComplaintFilter(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListComplaints(requestContext(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintSummaries(items)})
}

// GetComplaint GET /complaints/:id.
func (h *ComplaintsHandler) GetComplaint(c *fiber.Ctx) error {
	complaint, err := h.service.GetComplaint(requestContext(c), complaintID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintDetail(complaint, h.now())})
}

// ApplyStage POST /complaints/:id/stages/:stage.
func (h *ComplaintsHandler) ApplyStage(c *fiber.Ctx) error {
	stage, err := strconv.Atoi(c.Params("stage"))
	if err != nil {
		return apperrors.NewValidationError("stage must be a number", map[string]any{"fields": []string{"stage"}})
	}
	payload := workflow.Payload{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	id := complaintID(c)
	result, err := h.service.ApplyStage(requestContext(c), id, stage, payload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StageResultResponse{
		ID:           id,
		CurrentStage: result.CurrentStage,
		Status:       result.Status,
	}})
}

// SetHold PUT /complaints/:id/hold.
func (h *ComplaintsHandler) SetHold(c *fiber.Ctx) error {
	var req dto.HoldRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.OnHold == nil {
		return apperrors.NewMissingFields([]string{"onHold"})
	}
	complaint, err := h.service.SetOnHold(requestContext(c), complaintID(c), *req.OnHold)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplaintSummary(complaint)})
}

// Stream GET /complaints/stream. Sends a server-sent "snapshot" event with
// the filtered collection now and after every change.
func (h *ComplaintsHandler) Stream(c *fiber.Ctx) error {
	filter, err := parseComplaintFilter(c)
	if err != nil {
		return err
	}
	// The fiber context is recycled once the handler returns, so the stream
	// owns its own context and ends when the client goes away.
	streamCtx, cancel := context.WithCancel(service.WithActor(context.Background(), actorFrom(c)))
	snapshots, err := h.service.Watch(streamCtx, filter)
	if err != nil {
		cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := h.logger
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(streamHeartbeat)
		defer ticker.Stop()
		if err := writeSnapshots(w, snapshots, ticker.C); err != nil {
			logger.Debug("live stream ended", zap.Error(err))
		}
	})
	return nil
}

// writeSnapshots copies snapshots to w as SSE frames until the channel
// closes or a write fails.
func writeSnapshots(w *bufio.Writer, snapshots <-chan live.Snapshot, heartbeat <-chan time.Time) error {
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			body, err := json.Marshal(dto.SnapshotEvent{
				Complaints: dto.NewComplaintSummaries(snap.Complaints),
				Taken:      snap.Taken,
			})
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", body); err != nil {
				return err
			}
		case <-heartbeat:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

func parseComplaintFilter(c *fiber.Ctx) (service.ComplaintFilter, error) {
	filter := service.ComplaintFilter{Search: c.Query("search")}
	var invalid []string

	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := domain.ComplaintStatus(raw)
		if status != domain.ComplaintStatusOpen && status != domain.ComplaintStatusClosed {
			invalid = append(invalid, "status")
		} else {
			filter.Status = &status
		}
	}
	if raw := c.Query("stage"); raw != "" {
		stage, err := strconv.Atoi(raw)
		if err != nil || stage < domain.FirstStage || stage > domain.FinalStage+1 {
			invalid = append(invalid, "stage")
		} else {
			filter.Stage = &stage
		}
	}
	if raw := c.Query("on_hold"); raw != "" {
		onHold, err := strconv.ParseBool(raw)
		if err != nil {
			invalid = append(invalid, "on_hold")
		} else {
			filter.OnHold = &onHold
		}
	}
	if len(invalid) > 0 {
		return service.ComplaintFilter{}, apperrors.NewValidationError("invalid query", map[string]any{"fields": invalid})
	}
	return filter, nil
}

func actorFrom(c *fiber.Ctx) events.Actor {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return events.Actor{}
	}
	return events.Actor{SubjectID: principal.SubjectID, Email: principal.Email}
}

// complaintID copies the path id out of fiber's reused request buffer.
func complaintID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}

func requestContext(c *fiber.Ctx) context.Context {
	return service.WithActor(c.UserContext(), actorFrom(c))
}
