package handlers

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"imagestudio/internal/domain"
	"imagestudio/internal/form"
	"imagestudio/internal/middleware"
)

type noticeResponse struct {
	Kind    form.NoticeKind `json:"kind"`
	Message string          `json:"message"`
}

type viewResponse struct {
	ID         string                  `json:"id"`
	FileName   string                  `json:"file_name,omitempty"`
	PreviewURL string                  `json:"preview_url,omitempty"`
	Tags       []domain.Tag            `json:"tags"`
	Images     []domain.ProcessedImage `json:"images"`
	Loading    bool                    `json:"loading"`
	Notice     *noticeResponse         `json:"notice,omitempty"`
}

func newViewResponse(st form.State) viewResponse {
	resp := viewResponse{
		ID:         st.ID,
		FileName:   st.FileName,
		PreviewURL: st.PreviewURL,
		Tags:       st.Tags,
		Images:     st.Results,
		Loading:    st.Loading,
	}
	if resp.Tags == nil {
		resp.Tags = []domain.Tag{}
	}
	if resp.Images == nil {
		resp.Images = []domain.ProcessedImage{}
	}
	if st.Notice != nil {
		resp.Notice = &noticeResponse{Kind: st.Notice.Kind, Message: st.Notice.Message}
	}
	return resp
}

// NewView starts a fresh form and redirects the browser to it.
func (a *App) NewView(w http.ResponseWriter, r *http.Request) {
	v := a.Views.Create()
	a.Logger.Debug().Str("view_id", v.ID()).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("view created")
	if wantsJSON(r) {
		a.json(w, http.StatusCreated, newViewResponse(v.Snapshot()))
		return
	}
	http.Redirect(w, r, viewPath(v.ID()), http.StatusSeeOther)
}

// ShowView renders the form, preview and result gallery.
func (a *App) ShowView(w http.ResponseWriter, r *http.Request) {
	v, ok := a.lookupView(w, r)
	if !ok {
		return
	}
	st := v.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := a.page.Execute(w, st); err != nil {
		a.Logger.Error().Err(err).Str("view_id", st.ID).Msg("render page")
	}
}

// ViewState reports the view as JSON, for polling clients.
func (a *App) ViewState(w http.ResponseWriter, r *http.Request) {
	v, ok := a.lookupView(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, newViewResponse(v.Snapshot()))
}

// SelectFile stores the uploaded image field as the selected file.
func (a *App) SelectFile(w http.ResponseWriter, r *http.Request) {
	v, ok := a.lookupView(w, r)
	if !ok {
		return
	}
	if err := a.parseForm(w, r); err != nil {
		a.formError(w, r, v, err)
		return
	}
	file, name, err := openFile(r)
	if err != nil {
		a.respondError(w, r, v, err)
		return
	}
	if file == nil {
		v.Notify(form.NoticeError, "Please select an image.")
		a.respondError(w, r, v, domain.ErrNoFile)
		return
	}
	defer file.Close()
	if err := v.SelectFile(name, file); err != nil {
		a.respondError(w, r, v, err)
		return
	}
	// The preview button posts the whole form; keep the checkboxes.
	if hasTags(r) {
		if err := v.SetTags(r.Form["tags"]); err != nil {
			a.respondError(w, r, v, err)
			return
		}
	}
	a.respond(w, r, v, http.StatusOK)
}

// ToggleTag checks or unchecks one transformation.
func (a *App) ToggleTag(w http.ResponseWriter, r *http.Request) {
	v, ok := a.lookupView(w, r)
	if !ok {
		return
	}
	if err := a.parseForm(w, r); err != nil {
		a.formError(w, r, v, err)
		return
	}
	selected := parseBool(r.FormValue("selected"))
	if err := v.ToggleTag(r.FormValue("tag"), selected); err != nil {
		a.respondError(w, r, v, err)
		return
	}
	a.respond(w, r, v, http.StatusOK)
}

// Submit applies the posted file and checkboxes, if any, and dispatches the
// submission. The request returns as soon as the submission is in flight.
func (a *App) Submit(w http.ResponseWriter, r *http.Request) {
	v, ok := a.lookupView(w, r)
	if !ok {
		return
	}
	if err := a.parseForm(w, r); err != nil {
		a.formError(w, r, v, err)
		return
	}
	in := form.SubmitInput{
		SetTags:   hasTags(r),
		Tags:      r.Form["tags"],
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}
	file, name, err := openFile(r)
	if err != nil {
		a.respondError(w, r, v, err)
		return
	}
	if file != nil {
		defer file.Close()
		in.File = file
		in.FileName = name
	}
	if _, err := v.SubmitWith(in); err != nil {
		a.respondError(w, r, v, err)
		return
	}
	a.respond(w, r, v, http.StatusAccepted)
}

// DownloadImage serves one processed image as a PNG attachment.
func (a *App) DownloadImage(w http.ResponseWriter, r *http.Request) {
	v, ok := a.lookupView(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "index must be a number")
		return
	}
	dl, err := v.Download(index)
	if err != nil {
		a.respondError(w, r, v, err)
		return
	}
	a.attachment(w, dl.Filename, dl.MIME, dl.Data)
}

// DownloadArchive serves every processed image in one zip file.
func (a *App) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	v, ok := a.lookupView(w, r)
	if !ok {
		return
	}
	data, err := v.DownloadAll()
	if err != nil {
		a.respondError(w, r, v, err)
		return
	}
	a.attachment(w, "processed-images.zip", "application/zip", data)
}

// CloseView tears the view down.
func (a *App) CloseView(w http.ResponseWriter, r *http.Request) {
	if err := a.Views.Close(chi.URLParam(r, "id")); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "view not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) lookupView(w http.ResponseWriter, r *http.Request) (*form.View, bool) {
	v, err := a.Views.Get(chi.URLParam(r, "id"))
	if err != nil {
		if r.Method == http.MethodGet && !wantsJSON(r) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return nil, false
		}
		a.error(w, http.StatusNotFound, "not_found", "view not found")
		return nil, false
	}
	return v, true
}

func (a *App) parseForm(w http.ResponseWriter, r *http.Request) error {
	// Leave room for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+1<<20)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return r.ParseMultipartForm(a.MaxUploadBytes)
	}
	return r.ParseForm()
}

// formError reports a body that could not be parsed. Browser posts get the
// reason as a notice on the page.
func (a *App) formError(w http.ResponseWriter, r *http.Request, v *form.View, err error) {
	code, kind, msg := http.StatusBadRequest, "bad_request", "invalid form payload"
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		code, kind = http.StatusRequestEntityTooLarge, "too_large"
		msg = fmt.Sprintf("upload exceeds %d bytes", a.MaxUploadBytes)
	}
	a.Logger.Debug().Err(err).Str("view_id", v.ID()).Int("status", code).Msg("form rejected")
	if !wantsJSON(r) {
		v.Notify(form.NoticeError, "Could not read the form: "+msg+".")
		http.Redirect(w, r, viewPath(v.ID()), http.StatusSeeOther)
		return
	}
	a.error(w, code, kind, msg)
}

// openFile returns the posted image field, or a nil file when none was sent.
func openFile(r *http.Request) (multipart.File, string, error) {
	if r.MultipartForm == nil {
		return nil, "", nil
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return file, header.Filename, nil
}

func hasTags(r *http.Request) bool {
	return r.Form.Has("tags") || r.FormValue("tagset") != ""
}

func (a *App) respond(w http.ResponseWriter, r *http.Request, v *form.View, code int) {
	if wantsJSON(r) {
		a.json(w, code, newViewResponse(v.Snapshot()))
		return
	}
	http.Redirect(w, r, viewPath(v.ID()), http.StatusSeeOther)
}

func (a *App) respondError(w http.ResponseWriter, r *http.Request, v *form.View, err error) {
	code, kind := statusFor(err)
	a.Logger.Debug().Err(err).Str("view_id", v.ID()).Int("status", code).Msg("request rejected")
	if !wantsJSON(r) && r.Method == http.MethodPost {
		// The view carries the notice; show it on the page.
		http.Redirect(w, r, viewPath(v.ID()), http.StatusSeeOther)
		return
	}
	a.error(w, code, kind, err.Error())
}

func (a *App) attachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNoFile):
		return http.StatusUnprocessableEntity, "no_file"
	case errors.Is(err, domain.ErrUnknownTag):
		return http.StatusBadRequest, "unknown_tag"
	case errors.Is(err, domain.ErrSubmissionInFlight):
		return http.StatusConflict, "in_flight"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoImage):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, form.ErrViewClosed):
		return http.StatusGone, "closed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func viewPath(id string) string {
	return "/views/" + id
}
