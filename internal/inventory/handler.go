package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/farmsync/farmsync/internal/platform/httpx"
	"github.com/farmsync/farmsync/internal/rbac"
	"github.com/farmsync/farmsync/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require(rbac.CapInventoryView))
		r.Get("/stock", h.ListStock)
		r.Get("/stock/{itemID}", h.StockByItem)
		r.Get("/valuation/{itemID}", h.Valuation)
		r.Get("/valuation/{itemID}/audit", h.Audit)
	})
}

func (h *Handler) ListStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.service.ListStockLevels(r.Context())
	if err != nil {
		h.logger.Error("stock list failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock_levels": levels})
}

func (h *Handler) StockByItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid item id", shared.ErrInvalidArgument))
		return
	}
	levels, err := h.service.StockByItem(r.Context(), itemID)
	if err != nil {
		h.logger.Error("stock lookup failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock_levels": levels})
}

func (h *Handler) Valuation(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid item id", shared.ErrInvalidArgument))
		return
	}
	valuation, err := h.service.Valuation(r.Context(), itemID)
	if err != nil {
		httpx.RespondError(w, mapStockErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, valuation)
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid item id", shared.ErrInvalidArgument))
		return
	}
	audit, err := h.service.AuditItem(r.Context(), itemID)
	if err != nil {
		httpx.RespondError(w, mapStockErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, audit)
}

func mapStockErr(err error) error {
	if errors.Is(err, ErrStockNotFound) {
		return fmt.Errorf("%w: item has no valuation", shared.ErrNotFound)
	}
	return err
}
