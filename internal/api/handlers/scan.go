// Package handlers provides HTTP request handlers for the ragescanner API.
// This file implements the scan control endpoints: start, stop and status.
package handlers

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/anstrom/ragescanner/internal/api/middleware"
	"github.com/anstrom/ragescanner/internal/bridge"
	"github.com/anstrom/ragescanner/internal/errors"
	"github.com/anstrom/ragescanner/internal/logging"
	"github.com/anstrom/ragescanner/internal/scanning"
)

// ScanController is the part of the bridge the scan endpoints drive.
type ScanController interface {
	Send(ctx context.Context, cmd bridge.Command) error
	Status() bridge.Status
}

// ScanHandler handles scan control endpoints.
type ScanHandler struct {
	scans  ScanController
	logger *logging.Logger
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(scans ScanController, logger *logging.Logger) *ScanHandler {
	return &ScanHandler{
		scans:  scans,
		logger: logger.WithComponent("scan_handler"),
	}
}

// StartScanRequest selects the targets of a new scan, either as text or as
// a pair of addresses.
type StartScanRequest struct {
	Range string `json:"range,omitempty" validate:"required_without=Start"`
	Start string `json:"start,omitempty" validate:"required_without=Range,omitempty,ipv4"`
	End   string `json:"end,omitempty" validate:"required_with=Start,omitempty,ipv4"`
}

// command converts a validated request into a bridge command.
func (req StartScanRequest) command() (bridge.Command, error) {
	if req.Range != "" {
		if req.Start != "" || req.End != "" {
			return bridge.Command{}, errors.NewInternalError(errors.CodeValidation,
				"range cannot be combined with start and end")
		}
		return bridge.StartScan(req.Range), nil
	}

	start, err := netip.ParseAddr(req.Start)
	if err != nil {
		return bridge.Command{}, errors.ErrInvalidRange("invalid start address %q", req.Start)
	}
	end, err := netip.ParseAddr(req.End)
	if err != nil {
		return bridge.Command{}, errors.ErrInvalidRange("invalid end address %q", req.End)
	}
	return bridge.StartScanRange(start, end), nil
}

// StartScanResponse acknowledges an accepted start command.
type StartScanResponse struct {
	Status  string `json:"status"`
	Range   string `json:"range"`
	Targets uint64 `json:"targets"`
}

// StartScan queues a scan of the requested range.
// POST /api/v1/scans
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req StartScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	cmd, err := req.command()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	rng, err := cmd.Range()
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	if status := h.scans.Status(); status.Active {
		writeError(w, r, http.StatusConflict, errors.ErrScanInProgress(status.ScanID))
		return
	}

	if err := h.scans.Send(r.Context(), cmd); err != nil {
		h.logger.Warn("Failed to queue scan",
			"request_id", middleware.GetRequestID(r),
			"command", cmd.String(),
			"error", err)
		writeError(w, r, statusFor(err), err)
		return
	}

	h.logger.Info("Scan requested",
		"request_id", middleware.GetRequestID(r),
		"range", rng.String(),
		"targets", rng.Size())

	writeJSON(w, r, http.StatusAccepted, StartScanResponse{
		Status:  "accepted",
		Range:   rng.String(),
		Targets: rng.Size(),
	})
}

// StopScan requests cancellation of the active scan.
// DELETE /api/v1/scans/current
func (h *ScanHandler) StopScan(w http.ResponseWriter, r *http.Request) {
	status := h.scans.Status()
	if !status.Active {
		writeError(w, r, http.StatusNotFound, errors.NewInternalError(errors.CodeValidation, "no scan is active"))
		return
	}

	if err := h.scans.Send(r.Context(), bridge.StopScan()); err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	h.logger.Info("Scan stop requested",
		"request_id", middleware.GetRequestID(r),
		"scan_id", status.ScanID)

	writeJSON(w, r, http.StatusAccepted, map[string]string{
		"status":  "stopping",
		"scan_id": status.ScanID,
	})
}

// GetStatus reports the active or most recent scan.
// GET /api/v1/scans/current
func (h *ScanHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.scans.Status())
}

// ListPorts returns the well-known port table probed on every online host.
// GET /api/v1/ports
func (h *ScanHandler) ListPorts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, scanning.WellKnownPorts())
}
