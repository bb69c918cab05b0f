package api

import "github.com/phrazzld/runq/internal/transfer"

// CreateTransferRequest is the body of POST /api/transfers.
type CreateTransferRequest struct {
	Direction string `json:"direction" validate:"required,oneof=upload download"`
	File      string `json:"file"      validate:"required,max=4096"`
	URL       string `json:"url"       validate:"required,url,max=4096"`
	Name      string `json:"name"      validate:"omitempty,max=200"`
}

func (r CreateTransferRequest) toServiceRequest() transfer.Request {
	return transfer.Request{
		Direction: transfer.Direction(r.Direction),
		File:      r.File,
		URL:       r.URL,
		Name:      r.Name,
	}
}

// TransferListResponse is the body of GET /api/transfers.
type TransferListResponse struct {
	Transfers []transfer.View `json:"transfers"`
	Count     int             `json:"count"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	QueueSize int    `json:"queue_size"`
}
