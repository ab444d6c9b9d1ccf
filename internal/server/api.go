package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zeebo/xxh3"

	"github.com/lepinkainen/librarian/internal/catalog"
	apperrors "github.com/lepinkainen/librarian/internal/errors"
	"github.com/lepinkainen/librarian/internal/fileutil"
	"github.com/lepinkainen/librarian/internal/ingest"
	"github.com/lepinkainen/librarian/internal/listing"
	"github.com/lepinkainen/librarian/internal/ratelimit"
	"github.com/lepinkainen/librarian/internal/search"
	"github.com/lepinkainen/librarian/internal/session"
)

// Library is the part of library.Service the API needs.
type Library interface {
	LoadCollection(ctx context.Context) (ingest.Stats, error)
	ReloadCollection(ctx context.Context) (ingest.Stats, error)
	Search(ctx context.Context, mode search.Mode, query string) ([]catalog.Book, error)
	GetBookFile(ctx context.Context, id string) ([]byte, error)
	PayloadExt() string
}

// Handler serves the librarian HTTP API.
type Handler struct {
	lib       Library
	sessions  *session.Table
	downloads *ratelimit.Keyed
	pageSize  int
	now       func() time.Time
}

// NewHandler creates the API handler.
func NewHandler(lib Library, sessions *session.Table, downloads *ratelimit.Keyed, pageSize int) *Handler {
	return &Handler{
		lib:       lib,
		sessions:  sessions,
		downloads: downloads,
		pageSize:  pageSize,
		now:       time.Now,
	}
}

// HandleLoad (re)loads the collection. force=1 ignores the fingerprint.
func (h *Handler) HandleLoad(w http.ResponseWriter, r *http.Request) error {
	load := h.lib.LoadCollection
	if force, _ := strconv.ParseBool(r.URL.Query().Get("force")); force {
		load = h.lib.ReloadCollection
	}

	// The rebuild runs to completion even if the client goes away.
	stats, err := load(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
		RespondWithJSON(w, http.StatusOK, stats)
		return nil
	case apperrors.IsLoadInProgress(err):
		return ErrConflictWrap("A collection load is already running", err)
	case apperrors.IsSourceNotFound(err):
		return ErrNotFoundWrap("Collection bundle not found", err)
	default:
		return ErrInternalServerWrap(err)
	}
}

// HandleSearch runs a search and starts a new result session for the caller.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) error {
	mode, err := search.ParseMode(chi.URLParam(r, paramMode))
	if err != nil {
		return ErrBadRequestWrap(err.Error(), err)
	}
	query := r.URL.Query().Get("q")

	books, err := h.lib.Search(r.Context(), mode, query)
	if err != nil {
		return ErrInternalServerWrap(err)
	}

	page := h.sessions.Put(CallerID(r.Context()), query, string(mode), books)
	h.respondPage(w, r, page)
	return nil
}

// HandlePage returns another page of the caller's last search.
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) error {
	n, err := strconv.Atoi(chi.URLParam(r, paramPage))
	if err != nil {
		return ErrBadRequestWrap("Page must be a number", err)
	}

	page, err := h.sessions.Page(CallerID(r.Context()), n)
	switch {
	case errors.Is(err, session.ErrNoSession):
		return ErrNotFoundWrap("No search results, run a search first", err)
	case errors.Is(err, session.ErrPageOutOfRange):
		return ErrNotFoundWrap(fmt.Sprintf("Page %d does not exist", n), err)
	case err != nil:
		return ErrInternalServerWrap(err)
	}

	h.respondPage(w, r, page)
	return nil
}

func (h *Handler) respondPage(w http.ResponseWriter, r *http.Request, page session.Page) {
	if r.URL.Query().Get("format") == string(listing.FormatText) {
		RespondWithText(w, http.StatusOK, listing.Text(page, h.pageSize))
		return
	}
	RespondWithJSON(w, http.StatusOK, page)
}

// HandleBookFile streams a book payload as an attachment.
func (h *Handler) HandleBookFile(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, paramID)

	if err := h.downloads.Get(clientAddr(r)).Check(h.now()); err != nil {
		return err
	}

	data, err := h.lib.GetBookFile(r.Context(), id)
	if err != nil {
		fe, ok := apperrors.AsFetchError(err)
		if !ok {
			return ErrInternalServerWrap(err)
		}
		if fe.Kind == apperrors.KindInvalidID {
			return ErrBadRequestWrap(fe.UserMessage(), err)
		}
		return ErrNotFoundWrap(fe.UserMessage(), err)
	}

	etag := fmt.Sprintf(`"%016x"`, xxh3.Hash(data))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, payloadFilename(id, h.lib.PayloadExt())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set(headerContentType, contentTypeFictionBook)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

// clientAddr is the host part of the remote address, which RealIP has
// already replaced with the forwarded client address when present.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// payloadFilename names the attachment after the numeric book id.
func payloadFilename(id, ext string) string {
	if n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil {
		id = strconv.FormatInt(n, 10)
	}
	return fileutil.BookFilePath("", id, ext)
}

func handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
