package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/maptile"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AlissonDuarte/itssafe-backend/internal/model"
	"github.com/AlissonDuarte/itssafe-backend/internal/service"
	"github.com/AlissonDuarte/itssafe-backend/internal/zones"
)

// Messages shared with the mobile client.
const (
	cleanZoneMessage    = "Clean Zone"
	wideViewportMessage = "Very wide viewing area. Zoom in on the map to load risk zones."
)

// maxTileZoom bounds the slippy-map zoom accepted by the tile endpoint.
const maxTileZoom = 22

type handlers struct {
	deps Deps
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health(r.Context()); err != nil {
			zap.L().Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// zonesInBBox serves GET /api/zones?swLat&swLng&neLat&neLng.
func (h *handlers) zonesInBBox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coords, err := floats(q, "swLat", "swLng", "neLat", "neLng")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	swLat, swLng, neLat, neLng := coords[0], coords[1], coords[2], coords[3]
	bbox := zones.BBox{
		MinLng: math.Min(swLng, neLng),
		MinLat: math.Min(swLat, neLat),
		MaxLng: math.Max(swLng, neLng),
		MaxLat: math.Max(swLat, neLat),
	}

	query, err := parseQuery(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.deps.Zones.ZonesInBBox(r.Context(), bbox, query)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeResult(w, res, true)
}

// dangerZones serves GET /api/danger-zones?lat&lng&radius.
func (h *handlers) dangerZones(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vals, err := floats(q, "lat", "lng", "radius")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query, err := parseQuery(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.deps.Zones.ZonesAround(r.Context(), zones.GeoPoint{Lat: vals[0], Lng: vals[1]}, vals[2], query)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if user, ok := UserFrom(r.Context()); ok && res.Features.Len() > 0 {
		zap.L().Info("user inside risk zones", zap.String("user", user), zap.Int("zones", res.Features.Len()))
	}
	writeResult(w, res, false)
}

// zonesForTile serves GET /api/zones/tiles/{z}/{x}/{y} for slippy-map clients.
func (h *handlers) zonesForTile(w http.ResponseWriter, r *http.Request) {
	z, errZ := strconv.ParseUint(chi.URLParam(r, "z"), 10, 32)
	x, errX := strconv.ParseUint(chi.URLParam(r, "x"), 10, 32)
	y, errY := strconv.ParseUint(strings.TrimSuffix(chi.URLParam(r, "y"), ".geojson"), 10, 32)
	if errZ != nil || errX != nil || errY != nil || z > maxTileZoom {
		writeError(w, http.StatusBadRequest, "invalid tile coordinates")
		return
	}
	if n := uint64(1) << z; x >= n || y >= n {
		writeError(w, http.StatusBadRequest, "tile out of range")
		return
	}

	query, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bound := maptile.New(uint32(x), uint32(y), maptile.Zoom(z)).Bound()
	bbox := zones.BBox{MinLng: bound.Min.Lon(), MinLat: bound.Min.Lat(), MaxLng: bound.Max.Lon(), MaxLat: bound.Max.Lat()}

	res, err := h.deps.Zones.ZonesInBBox(r.Context(), bbox, query)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeResult(w, res, false)
}

func (h *handlers) cacheStats(w http.ResponseWriter, _ *http.Request) {
	if h.deps.Memory == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "cache disabled"})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Memory.Stats())
}

func (h *handlers) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrViewportTooLarge):
		writeError(w, http.StatusBadRequest, wideViewportMessage)
	case errors.Is(err, service.ErrInvalidBBox),
		errors.Is(err, service.ErrInvalidPosition),
		errors.Is(err, service.ErrInvalidRadius):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("zone query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseQuery reads the occurrenceType, shifts and exclude parameters. Unknown
// types and shifts are dropped; unknown risk levels are rejected.
func parseQuery(q url.Values) (service.Query, error) {
	var names []string
	for _, v := range q["exclude"] {
		names = append(names, strings.Split(v, ",")...)
	}
	exclude, err := zones.ParseRiskLevels(names)
	if err != nil {
		return service.Query{}, eris.Wrap(err, "invalid exclude")
	}
	return service.Query{
		Filter:  model.ParseFilter(q["occurrenceType"], q["shifts"]),
		Exclude: exclude,
	}, nil
}

func floats(q url.Values, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		raw := q.Get(n)
		if raw == "" {
			return nil, eris.Errorf("missing parameter %s", n)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, eris.Errorf("invalid parameter %s", n)
		}
		out[i] = v
	}
	return out, nil
}

func writeResult(w http.ResponseWriter, res service.Result, cleanMessage bool) {
	if res.TileID != "" {
		w.Header().Set("X-Tile-ID", res.TileID)
		if res.CacheHit {
			w.Header().Set("X-Cache", "hit")
		} else {
			w.Header().Set("X-Cache", "miss")
		}
	}
	if cleanMessage && res.Clean() {
		writeJSON(w, http.StatusOK, map[string]string{"message": cleanZoneMessage})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(res.Features); err != nil {
		zap.L().Warn("encode zones", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
