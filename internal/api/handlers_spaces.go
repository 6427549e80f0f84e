package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"spacebook/internal/models"
	"spacebook/internal/service"
)

const multipartMemory = 8 << 20

func (s *HTTPServer) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.deps.Spaces.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spaces)
}

func (s *HTTPServer) handleGetSpace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	space, err := s.deps.Spaces.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, space)
}

func (s *HTTPServer) handleCreateSpace(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(multipartMemory)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	case errors.Is(err, http.ErrNotMultipart):
		writeMessage(w, http.StatusBadRequest, "No image file part")
		return
	case err != nil:
		writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var image service.ImageUpload
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		image = service.ImageUpload{Filename: header.Filename, Reader: file}
	case errors.Is(err, http.ErrMissingFile) && len(r.MultipartForm.Value["image"]) > 0:
		// a file input submitted with nothing selected arrives as a plain value
		image = service.ImageUpload{Reader: strings.NewReader("")}
	}

	space := &models.Space{
		Name:      r.FormValue("name"),
		Location:  r.FormValue("location"),
		Amenities: r.FormValue("amenities"),
	}
	if raw := strings.TrimSpace(r.FormValue("capacity")); raw != "" {
		capacity, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Capacity must be a positive integer")
			return
		}
		space.Capacity = capacity
	}
	if raw := strings.TrimSpace(r.FormValue("ratecard")); raw != "" {
		ratecard, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Ratecard must be a positive number")
			return
		}
		space.Ratecard = ratecard
	}

	created, err := s.deps.Spaces.Create(r.Context(), space, image)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Space created successfully", "id": created.ID})
}

func (s *HTTPServer) handleUpdateSpace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.SpacePatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	if _, err := s.deps.Spaces.Update(r.Context(), id, patch); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Space updated successfully")
}

func (s *HTTPServer) handleDeleteSpace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Spaces.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Space deleted successfully")
}
