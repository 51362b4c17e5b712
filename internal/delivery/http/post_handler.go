package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"socialnet/infrastructure/telemetry"
	"socialnet/internal/entity"
	"socialnet/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const multipartMemory = 32 << 20

type PostHandler struct {
	postUc    usecase.PostUsecase
	feedUc    usecase.FeedUsecase
	maxImages int
	metrics   *telemetry.Metrics
}

func NewPostHandler(postUc usecase.PostUsecase, feedUc usecase.FeedUsecase, maxImages int, metrics *telemetry.Metrics) *PostHandler {
	if maxImages <= 0 {
		maxImages = usecase.DefaultMaxPostImages
	}
	return &PostHandler{
		postUc:    postUc,
		feedUc:    feedUc,
		maxImages: maxImages,
		metrics:   metrics,
	}
}

// GET /posts?page=&limit=
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", usecase.DefaultPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", usecase.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feed, err := h.feedUc.ListPosts(r.Context(), page, limit)
	if err != nil {
		writeUsecaseError(w, r, err, "internal server error while fetching posts")
		return
	}

	writeJSON(w, http.StatusOK, "success", feed)
}

// POST /posts (multipart: content, images)
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoToken.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxImages+1)*usecase.MaxImageSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	if len(files) > h.maxImages {
		writeUsecaseError(w, r, usecase.ErrTooManyImages, "")
		return
	}

	images := make([]entity.ImageUpload, 0, len(files))
	for _, fh := range files {
		img, err := readImage(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		images = append(images, img)
	}

	post, err := h.postUc.CreatePost(r.Context(), user, r.FormValue("content"), images)
	if err != nil {
		writeUsecaseError(w, r, err, "internal server error while creating post")
		return
	}

	h.metrics.PostCreated()
	writeJSON(w, http.StatusCreated, "post created successfully", map[string]entity.PostView{"post": post})
}

// GET /posts/{postId}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.postUc.GetPost(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		writeUsecaseError(w, r, err, "internal server error while fetching post")
		return
	}

	writeJSON(w, http.StatusOK, "success", map[string]entity.PostView{"post": post})
}

// POST /posts/{postId}/comment
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoToken.Error())
		return
	}

	var req entity.CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.postUc.AddComment(r.Context(), chi.URLParam(r, "postId"), user, req.Text)
	if err != nil {
		writeUsecaseError(w, r, err, "internal server error while adding comment")
		return
	}

	writeJSON(w, http.StatusOK, "comment added", map[string]entity.PostView{"post": post})
}

// POST /posts/{postId}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoToken.Error())
		return
	}

	res, err := h.postUc.ToggleLike(r.Context(), chi.URLParam(r, "postId"), user.Id)
	if err != nil {
		writeUsecaseError(w, r, err, "internal server error while toggling like")
		return
	}

	message := "post unliked"
	if res.Liked {
		message = "post liked"
	}
	writeJSON(w, http.StatusOK, message, res)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// readImage reads at most one byte past the size limit so oversized files are still reported
// as too large by validation.
func readImage(fh *multipart.FileHeader) (entity.ImageUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return entity.ImageUpload{}, fmt.Errorf("cannot read image %s", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, usecase.MaxImageSize+1))
	if err != nil {
		return entity.ImageUpload{}, fmt.Errorf("cannot read image %s", fh.Filename)
	}

	return entity.ImageUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
