package procurement

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/farmsync/farmsync/internal/platform/httpx"
	"github.com/farmsync/farmsync/internal/rbac"
	"github.com/farmsync/farmsync/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.CapProcurementView))
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/pending-approval", h.PendingApprovalOrders)
		r.Get("/orders/available-for-receiving", h.AvailableForReceiving)
		r.Get("/orders/{id}", h.ShowOrder)
		r.Get("/receipts", h.ListReceipts)
		r.Get("/receipts/pending-approval", h.PendingApprovalReceipts)
		r.Get("/receipts/{id}", h.ShowReceipt)
	})
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.CapProcurementEdit))
		r.Post("/orders", h.CreateOrder)
		r.Put("/orders/{id}", h.UpdateOrder)
		r.Delete("/orders/{id}", h.DeleteOrder)
		r.Post("/orders/{id}/cancel", h.CancelOrder)
		r.Post("/orders/{id}/close", h.CloseOrder)
		r.Post("/receipts", h.CreateReceipt)
	})
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.CapProcurementApprove))
		r.Post("/orders/{id}/approve", h.ApproveOrder)
		r.Post("/receipts/{id}/approve", h.ApproveReceipt)
		r.Post("/receipts/{id}/reject", h.RejectReceipt)
	})
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id", shared.ErrInvalidArgument)
	}
	return id, nil
}

func actorID(r *http.Request) uuid.UUID {
	if actor := shared.ActorFromContext(r.Context()); actor != nil {
		return actor.UserID
	}
	return uuid.Nil
}

var validStatuses = map[POStatus]struct{}{
	POStatusCreated: {}, POStatusApproved: {}, POStatusPartiallyReceived: {},
	POStatusFullyReceived: {}, POStatusClosed: {}, POStatusClosedWithIssues: {}, POStatusCancelled: {},
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status *POStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		candidate := POStatus(raw)
		if _, ok := validStatuses[candidate]; !ok {
			httpx.RespondError(w, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, raw))
			return
		}
		status = &candidate
	}
	orders, err := h.service.Orders(r.Context(), status)
	if err != nil {
		h.logger.Error("list orders failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_orders": orders})
}

func (h *Handler) PendingApprovalOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.PendingApprovalOrders(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_orders": orders})
}

func (h *Handler) AvailableForReceiving(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.AvailableForReceiving(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_orders": orders})
}

func (h *Handler) ShowOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Order(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var input CreateOrderInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", shared.ErrInvalidArgument))
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrInvalidArgument, err))
		return
	}
	po, err := h.service.CreateOrder(r.Context(), actorID(r), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input UpdateOrderInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", shared.ErrInvalidArgument))
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrInvalidArgument, err))
		return
	}
	po, err := h.service.UpdateOrder(r.Context(), actorID(r), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteOrder(r.Context(), actorID(r), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request,
	fn func(*http.Request, uuid.UUID) (PurchaseOrder, error)) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := fn(r, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionOrder(w, r, func(r *http.Request, id uuid.UUID) (PurchaseOrder, error) {
		return h.service.ApproveOrder(r.Context(), actorID(r), id)
	})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionOrder(w, r, func(r *http.Request, id uuid.UUID) (PurchaseOrder, error) {
		return h.service.CancelOrder(r.Context(), actorID(r), id)
	})
}

func (h *Handler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	h.transitionOrder(w, r, func(r *http.Request, id uuid.UUID) (PurchaseOrder, error) {
		return h.service.CloseOrder(r.Context(), actorID(r), id)
	})
}

func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	var poID *uuid.UUID
	if raw := r.URL.Query().Get("purchase_order_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid purchase_order_id", shared.ErrInvalidArgument))
			return
		}
		poID = &id
	}
	receipts, err := h.service.Receipts(r.Context(), poID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"goods_receipts": receipts})
}

func (h *Handler) PendingApprovalReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.service.PendingApprovalReceipts(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"goods_receipts": receipts})
}

func (h *Handler) ShowReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	receipt, err := h.service.Receipt(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	var input CreateReceiptInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", shared.ErrInvalidArgument))
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrInvalidArgument, err))
		return
	}
	receipt, err := h.service.CreateReceipt(r.Context(), actorID(r), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) ApproveReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	receipt, err := h.service.ApproveReceipt(r.Context(), actorID(r), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) RejectReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input struct {
		Reason string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", shared.ErrInvalidArgument))
		return
	}
	receipt, err := h.service.RejectReceipt(r.Context(), actorID(r), id, input.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}
