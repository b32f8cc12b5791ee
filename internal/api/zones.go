package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/m1ckyb/commutecompute-core/internal/synccache"
	"github.com/m1ckyb/commutecompute-core/internal/zone"
)

// Wire headers shared with the device client.
const (
	headerDeviceToken = "X-Device-Token"
	headerFingerprint = "X-Zone-Fingerprint"
	headerZoneX       = "X-Zone-X"
	headerZoneY       = "X-Zone-Y"
	headerZoneWidth   = "X-Zone-Width"
	headerZoneHeight  = "X-Zone-Height"
)

// handleZoneData serves one zone's current content as a 1-bit BMP.
//
// GET /api/zonedata?id=<zone>[&force=1]
//
// Responses:
//   - 200: BMP payload with fingerprint and rect headers
//   - 304: device already holds this content (fingerprint header set)
//   - 404: unknown zone id
//   - 412: server setup incomplete (no public URL configured)
func (s *Server) handleZoneData(w http.ResponseWriter, r *http.Request) {
	if s.webhookURL == "" {
		writeError(w, http.StatusPreconditionFailed, ErrCodeSetupRequired, "server setup incomplete")
		return
	}

	zoneID := r.URL.Query().Get("id")
	if zoneID == "" {
		writeBadRequest(w, "missing zone id")
		return
	}
	force := r.URL.Query().Get("force") == "1"
	deviceKey := synccache.DeviceKey(r.Header.Get(headerDeviceToken))

	res, err := s.dispatcher.Dispatch(r.Context(), deviceKey, zoneID, force)
	if err != nil {
		if errors.Is(err, zone.ErrUnknownZone) {
			writeNotFound(w, "unknown zone: "+zoneID)
			return
		}
		s.logger.Error("zone dispatch failed", "zone", zoneID, "device", deviceKey, "error", err)
		writeInternalError(w, "zone dispatch failed")
		return
	}

	// Fetches count toward device liveness even when nothing is sent.
	if err := s.devices.RecordFetch(r.Context(), deviceKey); err != nil {
		s.logger.Warn("recording fetch failed", "device", deviceKey, "error", err)
	}

	w.Header().Set(headerFingerprint, res.Fingerprint)
	if res.Unchanged {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "image/bmp")
	w.Header().Set(headerZoneX, strconv.Itoa(res.Rect.X))
	w.Header().Set(headerZoneY, strconv.Itoa(res.Rect.Y))
	w.Header().Set(headerZoneWidth, strconv.Itoa(res.Rect.W))
	w.Header().Set(headerZoneHeight, strconv.Itoa(res.Rect.H))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Bytes)))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(res.Bytes)
}

// handleChangedZones lists the primitive zones whose content differs from
// what the requesting device last received. A cheap pre-flight for devices
// that want to skip fetch cycles entirely.
//
// GET /api/zones
func (s *Server) handleChangedZones(w http.ResponseWriter, r *http.Request) {
	if s.webhookURL == "" {
		writeError(w, http.StatusPreconditionFailed, ErrCodeSetupRequired, "server setup incomplete")
		return
	}

	deviceKey := synccache.DeviceKey(r.Header.Get(headerDeviceToken))
	changed, err := s.dispatcher.Changed(r.Context(), deviceKey)
	if err != nil {
		s.logger.Error("changed-zone scan failed", "device", deviceKey, "error", err)
		writeInternalError(w, "changed-zone scan failed")
		return
	}
	if changed == nil {
		changed = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"zones": changed})
}
