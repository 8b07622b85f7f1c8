package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"skctl/internal/detection"
	"skctl/internal/geo"
	"skctl/internal/imagery"
	"skctl/pkg/api"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func httpError(w http.ResponseWriter, message string, code int) {
	respondJSON(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// pipelineError maps lookup failures onto status codes.
func pipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errPipelineNotFound):
		httpError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errNotResolved):
		httpError(w, err.Error(), http.StatusConflict)
	default:
		httpError(w, err.Error(), http.StatusInternalServerError)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func validExtent(w http.ResponseWriter, extent json.RawMessage) bool {
	if _, err := geo.ParseExtent(extent); err != nil {
		httpError(w, fmt.Sprintf("Invalid extent: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// Healthz is a liveness probe.
func (b *Backend) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Status handles POST /tasking/get-status.
func (b *Backend) Status(w http.ResponseWriter, r *http.Request) {
	var req api.PipelineRequest
	if !decode(w, r, &req) {
		return
	}
	status, err := b.advance(req.PipelineID)
	if err != nil {
		pipelineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, api.PipelineResponse{PipelineID: req.PipelineID, Status: status.String()})
}

// InitiateSearch handles POST /imagery/search/initiate.
func (b *Backend) InitiateSearch(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if !decode(w, r, &req) {
		return
	}
	search := imagery.Search{
		Provider:        req.Provider,
		Dataset:         req.Dataset,
		Extent:          req.Extent,
		StartDatetime:   req.StartDatetime,
		EndDatetime:     req.EndDatetime,
		MinIntersection: req.MinIntersection,
	}
	if _, err := search.BuildRequest(); err != nil {
		httpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !validExtent(w, req.Extent) {
		return
	}

	scenes := b.scenes
	if len(scenes) == 0 {
		scenes = generateScenes(req)
	}
	b.remember(scenes)
	respondJSON(w, http.StatusOK, b.create(&pipeline{kind: kindSearch, scenes: scenes}))
}

// RetrieveSearch handles POST /imagery/search/retrieve.
func (b *Backend) RetrieveSearch(w http.ResponseWriter, r *http.Request) {
	var req api.PipelineRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := b.resolved(req.PipelineID, kindSearch)
	if err != nil {
		pipelineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, api.SearchResponse{Results: p.scenes})
}

// InitiateImage handles POST /imagery/get-image/initiate.
func (b *Backend) InitiateImage(w http.ResponseWriter, r *http.Request) {
	var req api.ImageRequest
	if !decode(w, r, &req) {
		return
	}
	op := imagery.GetImage{SceneID: req.SceneID, Extent: req.Extent, Resolution: req.Resolution}
	if _, err := op.BuildRequest(); err != nil {
		httpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !validExtent(w, req.Extent) {
		return
	}

	scene := b.scene(req.SceneID)
	rows, cols := imageSize(req.Resolution)
	archive, err := buildArchive(scene, rows, cols)
	if err != nil {
		httpError(w, "Failed to render image", http.StatusInternalServerError)
		return
	}

	p := &pipeline{
		kind:  kindImage,
		fail:  b.failing[req.SceneID],
		image: &imageJob{scene: scene, rows: rows, cols: cols, archive: archive},
	}
	respondJSON(w, http.StatusOK, b.create(p))
}

// RetrieveImage handles POST /imagery/get-image/retrieve and publishes the
// archive for download.
func (b *Backend) RetrieveImage(w http.ResponseWriter, r *http.Request) {
	var req api.PipelineRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := b.resolved(req.PipelineID, kindImage)
	if err != nil {
		pipelineError(w, err)
		return
	}
	b.publish(p.id, p.image)

	meta, _ := json.Marshal(p.image.scene)
	respondJSON(w, http.StatusOK, api.ImageResult{
		Meta:   meta,
		Extent: p.image.scene.Footprint,
		URL:    fmt.Sprintf("%s/downloads/%s.ski", origin(r), p.id),
	})
}

// Download handles GET /downloads/{file}. It needs no credentials.
func (b *Backend) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(r.PathValue("file"), ".ski")
	if !ok {
		http.NotFound(w, r)
		return
	}
	job, ok := b.archive(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(job.archive)))
	w.Write(job.archive)
}

// InitiateDetection handles POST /kraken/release/{mapType}/geojson/initiate.
func (b *Backend) InitiateDetection(w http.ResponseWriter, r *http.Request) {
	mt, err := detection.ParseMapType(r.PathValue("mapType"))
	if err != nil {
		httpError(w, err.Error(), http.StatusNotFound)
		return
	}
	var req api.DetectionRequest
	if !decode(w, r, &req) {
		return
	}
	op := detection.Kraken{SceneID: req.SceneID, Extent: req.Extent, MapType: mt}
	if _, err := op.BuildRequest(); err != nil {
		httpError(w, err.Error(), http.StatusBadRequest)
		return
	}
	g, err := geo.ParseExtent(req.Extent)
	if err != nil {
		httpError(w, fmt.Sprintf("Invalid extent: %v", err), http.StatusBadRequest)
		return
	}

	p := &pipeline{
		kind:    kindKraken,
		fail:    b.failing[req.SceneID],
		mapType: mt,
		tiles:   tilesFor(g),
	}
	respondJSON(w, http.StatusOK, b.create(p))
}

// RetrieveDetection handles POST /kraken/release/{mapType}/geojson/retrieve.
func (b *Backend) RetrieveDetection(w http.ResponseWriter, r *http.Request) {
	var req api.PipelineRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := b.resolved(req.PipelineID, kindKraken)
	if err != nil {
		pipelineError(w, err)
		return
	}
	if string(p.mapType) != r.PathValue("mapType") {
		pipelineError(w, errPipelineNotFound)
		return
	}
	respondJSON(w, http.StatusOK, api.DetectionResult{MapID: p.id, Tiles: p.tiles})
}

// Tile handles GET /kraken/grid/{mapId}/{geometryId}/{z}/{x}/{y}/detections.geojson.
func (b *Backend) Tile(w http.ResponseWriter, r *http.Request) {
	p, ok := b.detectionMap(r.PathValue("mapId"))
	if !ok {
		httpError(w, "map not found", http.StatusNotFound)
		return
	}

	var tile api.Tile
	for i, key := range []string{"z", "x", "y"} {
		n, err := strconv.Atoi(r.PathValue(key))
		if err != nil {
			httpError(w, fmt.Sprintf("Invalid tile coordinate %s", key), http.StatusBadRequest)
			return
		}
		tile[i] = n
	}
	found := false
	for _, t := range p.tiles {
		if t == tile {
			found = true
			break
		}
	}
	if !found {
		httpError(w, "tile not in map", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, tileFeatures(p.mapType, tile))
}

func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
