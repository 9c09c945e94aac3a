package dto

import "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"

// ChargeRequest is POST /api/credits/charge's body.
type ChargeRequest struct {
	Action     string        `json:"action" binding:"required"`
	JobID      string        `json:"job_id" binding:"required"`
	UpstreamID string        `json:"upstream_id,omitempty"`
	Metadata   types.JSONMap `json:"metadata,omitempty"`
}

type ChargeResponse struct {
	NewBalance int64 `json:"new_balance"`
	Charged    int64 `json:"charged"`
	Idempotent bool  `json:"idempotent"`
}

// InsufficientCreditsResponse is the 402 body both charge and reserve
// return when available balance is too low.
type InsufficientCreditsResponse struct {
	Required  int64  `json:"required"`
	Balance   int64  `json:"balance"`
	Available int64  `json:"available,omitempty"`
	Class     string `json:"class,omitempty"`
}
