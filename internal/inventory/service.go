package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmsync/farmsync/internal/masterdata/locations"
	"github.com/farmsync/farmsync/internal/shared"
)

const idempotencyModule = "inventory"

// StockRepository is the persistence surface the service depends on.
type StockRepository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	StockByItem(ctx context.Context, itemID uuid.UUID) ([]StockLevel, error)
	ListStockLevels(ctx context.Context) ([]StockLevel, error)
	Valuation(ctx context.Context, itemID uuid.UUID) (ItemValuation, error)
	CostHistory(ctx context.Context, itemID uuid.UUID) ([]CostEvent, error)
	ListItemIDs(ctx context.Context) ([]uuid.UUID, error)
}

// LocationDirectory resolves the active locations goods can be received into.
type LocationDirectory interface {
	ListActive(ctx context.Context) ([]locations.Location, error)
}

// IdempotencyGuard prevents a receipt from posting stock twice.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ValuationAudit compares the stored moving average against a full replay of
// the receipt history.
type ValuationAudit struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Stored   ItemValuation   `json:"stored"`
	Replayed decimal.Decimal `json:"replayed_average"`
	Drift    bool            `json:"drift"`
}

// Service owns stock levels and the moving-average unit cost.
type Service struct {
	logger      *slog.Logger
	repo        StockRepository
	locations   LocationDirectory
	idempotency IdempotencyGuard
}

func NewService(logger *slog.Logger, repo StockRepository, locs LocationDirectory, guard IdempotencyGuard) *Service {
	return &Service{logger: logger, repo: repo, locations: locs, idempotency: guard}
}

// ApplyReceipt posts the net quantities of an approved goods receipt into the
// default location and folds each line's purchase price into the item's
// weighted average cost. A repeat call for the same receipt number is a no-op.
func (s *Service) ApplyReceipt(ctx context.Context, app ReceiptApplication) error {
	lines := make([]ApplicationLine, 0, len(app.Lines))
	for _, line := range app.Lines {
		if line.Quantity.IsPositive() {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	locationID, err := s.defaultLocation(ctx)
	if err != nil {
		return err
	}

	key := "GR:" + app.ReceiptNumber
	if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			s.logger.Info("receipt already applied", slog.String("receipt", app.ReceiptNumber))
			return nil
		}
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, line := range lines {
			if err := applyLine(ctx, tx, locationID, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if delErr := s.idempotency.Delete(ctx, key); delErr != nil {
			s.logger.Error("failed to release idempotency key", slog.String("key", key), slog.Any("error", delErr))
		}
		return err
	}
	return nil
}

func applyLine(ctx context.Context, tx TxRepository, locationID uuid.UUID, line ApplicationLine) error {
	avg, err := tx.GetAverageCostForUpdate(ctx, line.ItemID)
	if err != nil {
		return err
	}

	level, err := tx.GetStockLevelForUpdate(ctx, line.ItemID, locationID)
	switch {
	case errors.Is(err, ErrStockNotFound):
		level = StockLevel{
			ID:         uuid.New(),
			ItemID:     line.ItemID,
			LocationID: locationID,
			UpdatedAt:  time.Now().UTC(),
		}
		if err := tx.InsertStockLevel(ctx, level); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	oldQty := level.Quantity
	newQty := oldQty.Add(line.Quantity)
	newAvg := oldQty.Mul(avg).Add(line.Quantity.Mul(line.UnitPrice)).Div(newQty)

	if err := tx.UpdateStockQuantity(ctx, level.ID, newQty); err != nil {
		return err
	}
	return tx.UpdateAverageCost(ctx, line.ItemID, newAvg)
}

// StockByItem returns stock rows for one item.
func (s *Service) StockByItem(ctx context.Context, itemID uuid.UUID) ([]StockLevel, error) {
	return s.repo.StockByItem(ctx, itemID)
}

// ListStockLevels returns all stock rows across items and locations.
func (s *Service) ListStockLevels(ctx context.Context) ([]StockLevel, error) {
	return s.repo.ListStockLevels(ctx)
}

// Valuation returns the stored average cost with total stock on hand.
func (s *Service) Valuation(ctx context.Context, itemID uuid.UUID) (ItemValuation, error) {
	return s.repo.Valuation(ctx, itemID)
}

// AuditItem replays the item's receipt history and flags drift from the
// stored average.
func (s *Service) AuditItem(ctx context.Context, itemID uuid.UUID) (ValuationAudit, error) {
	stored, err := s.repo.Valuation(ctx, itemID)
	if err != nil {
		return ValuationAudit{}, err
	}
	history, err := s.repo.CostHistory(ctx, itemID)
	if err != nil {
		return ValuationAudit{}, err
	}
	replayed := ReplayAverageCost(history)
	return ValuationAudit{
		ItemID:   itemID,
		Stored:   stored,
		Replayed: replayed,
		Drift:    !replayed.Equal(stored.AverageUnitCost),
	}, nil
}

// AuditAll runs the valuation audit over every item carrying stock and logs
// any drift it finds.
func (s *Service) AuditAll(ctx context.Context) (int, error) {
	ids, err := s.repo.ListItemIDs(ctx)
	if err != nil {
		return 0, err
	}
	drifted := 0
	for _, id := range ids {
		audit, err := s.AuditItem(ctx, id)
		if err != nil {
			return drifted, err
		}
		if audit.Drift {
			drifted++
			s.logger.Warn("average cost drift detected",
				slog.String("item_id", id.String()),
				slog.String("stored", audit.Stored.AverageUnitCost.String()),
				slog.String("replayed", audit.Replayed.String()))
		}
	}
	return drifted, nil
}

func (s *Service) defaultLocation(ctx context.Context) (uuid.UUID, error) {
	active, err := s.locations.ListActive(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if len(active) == 0 {
		return uuid.Nil, fmt.Errorf("%w: no inventory location configured", shared.ErrPreconditionFailed)
	}
	return active[0].ID, nil
}
