package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/erazemk/komponente/internal/blob"
	"github.com/erazemk/komponente/internal/component"
	"github.com/erazemk/komponente/internal/imaging"
	"github.com/erazemk/komponente/internal/model"
)

// maxUploadBytes bounds multipart request bodies: the image plus the form.
const maxUploadBytes = imaging.DefaultMaxBytes + 1<<20

// ComponentsHandler handles component and allocation endpoints.
type ComponentsHandler struct {
	Service *component.Service
	Images  *blob.Resolver
}

type componentResponse struct {
	*model.Component
	Allocated int `json:"allocated"`
	Remaining int `json:"remaining"`
}

type checkinRequest struct {
	Quantity int `json:"quantity"`
}

// List handles GET /api/components.
func (h *ComponentsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid filter")
		return
	}

	components := []model.Component{}
	for c, err := range h.Service.List(r.Context(), GetActor(r.Context()), filter) {
		if err != nil {
			serviceError(w, err, "component")
			return
		}
		components = append(components, c)
	}
	jsonResponse(w, http.StatusOK, components)
}

// Create handles POST /api/components. The body is either a JSON component
// or a multipart form with the JSON in "component" and an optional "image".
func (h *ComponentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields model.ComponentFields
	upload, ok := readComponentRequest(w, r, &fields)
	if !ok {
		return
	}
	if upload != nil {
		defer upload.Close()
	}

	c, err := h.Service.Create(r.Context(), GetActor(r.Context()), fields, upload)
	if err != nil {
		serviceError(w, err, "component")
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

// Get handles GET /api/components/{id}.
func (h *ComponentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid component id")
		return
	}

	c, stock, err := h.Service.Stock(r.Context(), GetActor(r.Context()), id)
	if err != nil {
		serviceError(w, err, "component")
		return
	}

	jsonResponse(w, http.StatusOK, componentResponse{
		Component: c,
		Allocated: stock.Allocated,
		Remaining: stock.Remaining,
	})
}

// Update handles PUT /api/components/{id}. Every field is replaced; omitted
// fields are cleared. ?remove_image=true drops the current image.
func (h *ComponentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid component id")
		return
	}

	var fields model.ComponentFields
	upload, ok := readComponentRequest(w, r, &fields)
	if !ok {
		return
	}
	if upload != nil {
		defer upload.Close()
	}

	change := component.ImageChange{
		Upload: upload,
		Remove: r.URL.Query().Get("remove_image") == "true",
	}
	c, err := h.Service.Update(r.Context(), GetActor(r.Context()), id, fields, change)
	if err != nil {
		serviceError(w, err, "component")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Delete handles DELETE /api/components/{id}.
func (h *ComponentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid component id")
		return
	}

	if err := h.Service.Delete(r.Context(), GetActor(r.Context()), id); err != nil {
		serviceError(w, err, "component")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "component deleted"})
}

// Clone handles GET /api/components/{id}/clone. The returned draft is not
// saved; POST it to /api/components to create it.
func (h *ComponentsHandler) Clone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid component id")
		return
	}

	draft, err := h.Service.Clone(r.Context(), GetActor(r.Context()), id)
	if err != nil {
		serviceError(w, err, "component")
		return
	}
	jsonResponse(w, http.StatusOK, draft)
}

// UploadImage handles PUT /api/components/{id}/image.
func (h *ComponentsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid component id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	c, err := h.Service.SetImage(r.Context(), GetActor(r.Context()), id, component.ImageChange{Upload: file})
	if err != nil {
		serviceError(w, err, "component")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// DeleteImage handles DELETE /api/components/{id}/image.
func (h *ComponentsHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid component id")
		return
	}

	c, err := h.Service.SetImage(r.Context(), GetActor(r.Context()), id, component.ImageChange{Remove: true})
	if err != nil {
		serviceError(w, err, "component")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// GetImage handles GET /api/components/{id}/image.
func (h *ComponentsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid component id")
		return
	}

	c, err := h.Service.Get(r.Context(), GetActor(r.Context()), id)
	if err != nil {
		serviceError(w, err, "component")
		return
	}
	if c.Image == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	data, mimeType, err := h.Images.Open(r.Context(), *c.Image)
	if errors.Is(err, blob.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}
	if err != nil {
		slog.Error("failed to read component image", "component", id, "error", err)
		jsonError(w, http.StatusServiceUnavailable, "failed to get image")
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// Allocations handles GET /api/components/{id}/allocations. Only active
// allocations are listed unless ?all=true.
func (h *ComponentsHandler) Allocations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid component id")
		return
	}

	activeOnly := r.URL.Query().Get("all") != "true"
	allocations, err := h.Service.Allocations(r.Context(), GetActor(r.Context()), id, activeOnly)
	if err != nil {
		serviceError(w, err, "component")
		return
	}
	if allocations == nil {
		allocations = []model.Allocation{}
	}
	jsonResponse(w, http.StatusOK, allocations)
}

// Checkout handles POST /api/components/{id}/allocations.
func (h *ComponentsHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid component id")
		return
	}

	var req model.Assignment
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.Service.Checkout(r.Context(), GetActor(r.Context()), id, req)
	if err != nil {
		serviceError(w, err, "component")
		return
	}
	jsonResponse(w, http.StatusCreated, a)
}

// Checkin handles POST /api/allocations/{id}/checkin. A missing or zero
// quantity returns every unit.
func (h *ComponentsHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid allocation id")
		return
	}

	var req checkinRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.Service.Checkin(r.Context(), GetActor(r.Context()), id, req.Quantity)
	if err != nil {
		serviceError(w, err, "allocation")
		return
	}
	jsonResponse(w, http.StatusOK, a)
}

// readComponentRequest decodes component fields from a JSON or multipart
// body. The returned upload is nil when no image was sent. On failure it
// writes the error response and returns false.
func readComponentRequest(w http.ResponseWriter, r *http.Request, fields *model.ComponentFields) (io.ReadCloser, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := decodeJSON(r, fields); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return nil, false
		}
		return nil, true
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return nil, false
	}

	if err := json.Unmarshal([]byte(r.FormValue("component")), fields); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid component field")
		return nil, false
	}

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid image file")
		return nil, false
	}
	return file, true
}

func parseFilter(r *http.Request) (model.ComponentFilter, bool) {
	q := r.URL.Query()
	filter := model.ComponentFilter{Search: q.Get("search")}

	for _, p := range []struct {
		name string
		dst  **int64
	}{
		{"category_id", &filter.CategoryID},
		{"location_id", &filter.LocationID},
		{"company_id", &filter.CompanyID},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, false
		}
		*p.dst = &v
	}
	filter.ScopeCompany = filter.CompanyID != nil

	return filter, true
}
