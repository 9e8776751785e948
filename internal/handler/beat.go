package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/nzoschke/beatmarket/internal/ctxkeys"
	"github.com/nzoschke/beatmarket/internal/metrics"
	"github.com/nzoschke/beatmarket/internal/model"
	"github.com/nzoschke/beatmarket/internal/service"
)

type BeatHandler struct {
	beatService   *service.BeatService
	maxUploadSize int64
}

func NewBeatHandler(beatService *service.BeatService, maxUploadSize int64) *BeatHandler {
	return &BeatHandler{
		beatService:   beatService,
		maxUploadSize: maxUploadSize,
	}
}

type beatResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	Price        string    `json:"price"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toBeatResponse(b *model.Beat) beatResponse {
	return beatResponse{
		ID:           b.ID,
		UserID:       b.UserID,
		Title:        b.Title,
		Price:        b.Price(),
		OriginalName: b.OriginalName,
		MimeType:     b.MimeType,
		Size:         b.Size,
		URL:          b.URL,
		CreatedAt:    b.CreatedAt,
	}
}

// Upload accepts multipart form data with title, price and file fields.
func (h *BeatHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := ctxkeys.Session(r.Context())

	// Room for the form fields on top of the file
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+(1<<20))

	err := r.ParseMultipartForm(10 << 20)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			metrics.RecordBeatUpload("too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		metrics.RecordBeatUpload("rejected")
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	input := service.UploadBeatInput{
		UserID: claims.UserID,
		Title:  r.FormValue("title"),
		Price:  r.FormValue("price"),
	}
	if files := r.MultipartForm.File["file"]; len(files) > 0 {
		input.File = files[0]
	}

	beat, err := h.beatService.Upload(r.Context(), input)
	if err != nil {
		if statusFor(err) >= http.StatusInternalServerError {
			metrics.RecordBeatUpload("error")
		} else {
			metrics.RecordBeatUpload("rejected")
		}
		handleError(w, r, err)
		return
	}

	metrics.RecordBeatUpload("created")
	writeJSON(w, http.StatusCreated, toBeatResponse(beat))
}

func (h *BeatHandler) List(w http.ResponseWriter, r *http.Request) {
	beats, err := h.beatService.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}

	out := make([]beatResponse, 0, len(beats))
	for _, b := range beats {
		out = append(out, toBeatResponse(b))
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *BeatHandler) Show(w http.ResponseWriter, r *http.Request) {
	beat, err := h.beatService.ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBeatResponse(beat))
}

// Mine lists the beats uploaded by the current user.
func (h *BeatHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := ctxkeys.Session(r.Context())

	beats, err := h.beatService.ByUser(r.Context(), claims.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	out := make([]beatResponse, 0, len(beats))
	for _, b := range beats {
		out = append(out, toBeatResponse(b))
	}

	writeJSON(w, http.StatusOK, out)
}
