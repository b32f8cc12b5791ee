package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m1ckyb/commutecompute-core/internal/device"
	"github.com/m1ckyb/commutecompute-core/internal/infrastructure/mqtt"
	"github.com/m1ckyb/commutecompute-core/internal/synccache"
)

// handleCheckin records a device health report.
//
// POST /api/devices/checkin
//
// Body: {firmware_version?, battery_mv?, rssi?}
// Zero-valued fields are treated as unreported.
//
// Responses:
//   - 204: recorded
//   - 400: malformed body
func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	var checkin device.Checkin
	if err := json.NewDecoder(r.Body).Decode(&checkin); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	deviceKey := synccache.DeviceKey(r.Header.Get(headerDeviceToken))
	dev, err := s.devices.RecordCheckin(r.Context(), deviceKey, checkin)
	if err != nil {
		s.logger.Error("checkin failed", "device", deviceKey, "error", err)
		writeInternalError(w, "checkin failed")
		return
	}

	s.publishDeviceStatus(dev)
	if s.influx != nil {
		s.influx.WriteDeviceStatus(dev.Key, checkin.BatteryMillivolts, checkin.RSSI)
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListDevices returns every device the server has seen.
//
// GET /api/devices
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.ListDevices(r.Context())
	if err != nil {
		s.logger.Error("device list failed", "error", err)
		writeInternalError(w, "device list failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one device by key.
//
// GET /api/devices/{key}
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	dev, err := s.devices.GetDevice(r.Context(), key)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "unknown device")
			return
		}
		s.logger.Error("device lookup failed", "device", key, "error", err)
		writeInternalError(w, "device lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// publishDeviceStatus announces a checkin on MQTT, if connected. Retained
// so dashboards joining later see the last known state.
func (s *Server) publishDeviceStatus(dev *device.Device) {
	if s.mqtt == nil || !s.mqtt.IsConnected() {
		return
	}

	payload, err := json.Marshal(dev)
	if err != nil {
		return
	}
	topic := mqtt.Topics{}.DeviceStatus(dev.Key)
	if err := s.mqtt.PublishRetained(topic, payload); err != nil {
		s.logger.Warn("device status publish failed", "topic", topic, "error", err)
	}
}
