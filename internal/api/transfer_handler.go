package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/runq/internal/api/shared"
	"github.com/phrazzld/runq/internal/platform/logger"
	"github.com/phrazzld/runq/internal/transfer"
)

// TransferService is the part of *transfer.Service the handlers use.
type TransferService interface {
	Enqueue(ctx context.Context, req transfer.Request) (*transfer.Item, error)
	Cancel(ctx context.Context, id int) error
	Retry(ctx context.Context, id int) (*transfer.Item, error)
	List() []*transfer.Item
	Get(id int) (*transfer.Item, error)
	View(item *transfer.Item) transfer.View
	Stats() transfer.Stats
}

var _ TransferService = (*transfer.Service)(nil)

// TransferHandler serves the transfer endpoints.
type TransferHandler struct {
	service TransferService
	logger  *slog.Logger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(service TransferService, log *slog.Logger) *TransferHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TransferHandler{
		service: service,
		logger:  log.With(slog.String("component", "transfer_handler")),
	}
}

// CreateTransfer handles POST /api/transfers.
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTransferRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	item, err := h.service.Enqueue(r.Context(), req.toServiceRequest())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("transfer enqueued",
		slog.Int("transfer_id", item.ID()),
		slog.String("direction", string(item.Direction)))
	shared.RespondWithJSON(w, r, http.StatusAccepted, h.service.View(item))
}

// ListTransfers handles GET /api/transfers.
func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	items := h.service.List()
	views := make([]transfer.View, 0, len(items))
	for _, item := range items {
		views = append(views, h.service.View(item))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TransferListResponse{
		Transfers: views,
		Count:     len(views),
	})
}

// GetTransfer handles GET /api/transfers/{id}.
func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	item, err := h.service.Get(id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, h.service.View(item))
}

// CancelTransfer handles DELETE /api/transfers/{id}. The item is removed
// from the queue and its running task, if any, is cancelled.
func (h *TransferHandler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).
		Info("transfer cancelled", slog.Int("transfer_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// RetryTransfer handles POST /api/transfers/{id}/retry.
func (h *TransferHandler) RetryTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	item, err := h.service.Retry(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).
		Info("transfer resubmitted", slog.Int("transfer_id", id))
	shared.RespondWithJSON(w, r, http.StatusAccepted, h.service.View(item))
}

// GetStats handles GET /api/stats.
func (h *TransferHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.service.Stats())
}

// Health handles GET /healthz.
func (h *TransferHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		QueueSize: h.service.Stats().QueueSize,
	})
}
