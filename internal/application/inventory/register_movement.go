package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jhoicas/retail-ops/internal/application/dto"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

// RecordMovementFromRequest adapta el request HTTP al caso de uso RecordMovement.
func (uc *LedgerUseCase) RecordMovementFromRequest(ctx context.Context, actor, idempotencyKey string, in dto.RecordMovementRequest) (*dto.MovementResponse, error) {
	mov, err := uc.RecordMovement(ctx, RecordMovementInput{
		ProductID:      in.ProductID,
		Type:           in.Type,
		Quantity:       in.Quantity,
		Reason:         in.Reason,
		Reference:      in.Reference,
		Actor:          actor,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	resp := ToMovementResponse(mov)
	return &resp, nil
}

// AdjustFromRequest adapta el request HTTP al caso de uso Adjust.
func (uc *LedgerUseCase) AdjustFromRequest(ctx context.Context, actor, idempotencyKey string, in dto.AdjustStockRequest) (*dto.MovementResponse, error) {
	mov, err := uc.Adjust(ctx, AdjustInput{
		ProductID:      in.ProductID,
		TargetBalance:  in.TargetBalance,
		Reason:         in.Reason,
		Actor:          actor,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	resp := ToMovementResponse(mov)
	return &resp, nil
}

// ToMovementResponse convierte la entidad al DTO de respuesta.
func ToMovementResponse(m *entity.StockMovement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:        m.ID,
		ProductID: m.ProductID,
		Type:      m.Type,
		Quantity:  m.Quantity,
		Date:      m.Date,
		Reason:    m.Reason,
		Reference: m.Reference,
		CreatedBy: m.CreatedBy,
	}
}

func unmarshalResult(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode idempotent result: %w", err)
	}
	return nil
}
