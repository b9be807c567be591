package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatherly/internal/core"
	"gatherly/internal/types"
)

// DeviceStore is the device registry surface the device handler needs.
type DeviceStore interface {
	RegisterDevice(ctx context.Context, dev *types.Device) error
	ListDevices(ctx context.Context, userID string) ([]*types.Device, error)
	DeactivateDevice(ctx context.Context, userID, deviceID string) (bool, error)
}

// RegisterDeviceRequest is the request body for POST /v1/devices.
// Re-registering an existing token reactivates it under the caller.
type RegisterDeviceRequest struct {
	Token      string `json:"token" validate:"required,max=4096"`
	Platform   string `json:"platform" validate:"required,oneof=ios android web"`
	DeviceName string `json:"device_name,omitempty" validate:"omitempty,max=100"`
}

// DeviceResponse is the wire form of a registered push device. The token is
// never echoed back.
type DeviceResponse struct {
	ID         string     `json:"id"`
	Platform   string     `json:"platform"`
	DeviceName string     `json:"device_name,omitempty"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toDeviceResponse(dev *types.Device) DeviceResponse {
	return DeviceResponse{
		ID:         dev.ID,
		Platform:   string(dev.Platform),
		DeviceName: dev.DeviceName,
		IsActive:   dev.IsActive,
		LastUsedAt: nilIfZero(dev.LastUsedAt),
		CreatedAt:  dev.CreatedAt,
	}
}

// DeviceHandler manages push device registration for the caller.
type DeviceHandler struct {
	devices   DeviceStore
	validator *core.Validator
}

// NewDeviceHandler creates a DeviceHandler.
func NewDeviceHandler(devices DeviceStore, v *core.Validator) *DeviceHandler {
	return &DeviceHandler{devices: devices, validator: v}
}

// RegisterRoutes mounts device routes on the provided router.
func (h *DeviceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/devices", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/", h.List)
		r.Delete("/{id}", h.Deactivate)
	})
}

// Register handles POST /v1/devices.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	var req RegisterDeviceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	dev := &types.Device{
		UserID:     userID,
		Token:      req.Token,
		Platform:   types.DevicePlatform(req.Platform),
		DeviceName: req.DeviceName,
	}
	if err := h.devices.RegisterDevice(r.Context(), dev); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, toDeviceResponse(dev))
}

// List handles GET /v1/devices.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	devs, err := h.devices.ListDevices(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	out := make([]DeviceResponse, 0, len(devs))
	for _, dev := range devs {
		out = append(out, toDeviceResponse(dev))
	}
	core.JSON(w, r, http.StatusOK, out)
}

// Deactivate handles DELETE /v1/devices/{id}. Only the owner's devices are
// visible; anyone else's device id reads as missing.
func (h *DeviceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())

	ok, err := h.devices.DeactivateDevice(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundDevice, "Device not found", nil))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
