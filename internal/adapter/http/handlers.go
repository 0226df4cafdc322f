package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/csrf"
	"github.com/skip2/go-qrcode"

	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/flow"
)

const (
	sessionCookie = "safesea_session"
	csrfField     = "csrf_token"
	qrSize        = 256
	maxFormBytes  = 64 << 10
)

// invalidEventMessage is shown when a POST carries an event the current page does not accept.
const invalidEventMessage = "That action is not available on this page."

// handlePage renders the session's current page. On the map page, lat and
// lon query parameters recenter the map.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := sessionID(r)

	if q := r.URL.Query(); q.Has("lat") && q.Has("lon") {
		if err := s.applyZoom(r, id, q.Get("lat"), q.Get("lon")); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	v, err := s.app.View(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSessionCookie(w, v.Session.ID)

	status := http.StatusOK
	if v.MapErr != nil {
		s.logger.ErrorContext(ctx, "coral map unavailable", "session_id", v.Session.ID, "error", v.MapErr)
		v.Error = v.MapErr.Error()
		status = http.StatusInternalServerError
	}
	s.renderView(w, r, status, v)
}

func (s *Server) applyZoom(r *http.Request, id, latStr, lonStr string) error {
	ctx := r.Context()
	sess, err := s.app.Session(ctx, id)
	if err != nil {
		return err
	}
	if sess.Page != domain.PageMap {
		return nil
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil {
		sess.Error = "Latitude and longitude must be numbers."
		return s.app.Save(ctx, sess)
	}
	if err := s.app.SetZoom(ctx, sess, domain.Coordinate{Lat: lat, Lon: lon}); err != nil {
		sess.Error = "Latitude must be within [-90, 90] and longitude within [-180, 180]."
		return s.app.Save(ctx, sess)
	}
	return nil
}

// handleEvent applies one form event and redirects back to the page.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fail(w, r, &httpError{status: http.StatusRequestEntityTooLarge, msg: "form too large", err: err})
			return
		}
		s.fail(w, r, &httpError{status: http.StatusBadRequest, msg: "malformed form", err: err})
		return
	}

	sess, err := s.app.Session(ctx, sessionID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSessionCookie(w, sess.ID)

	form := flow.Form{
		Event:  r.PostForm.Get("event"),
		Name:   r.PostForm.Get("name"),
		HullID: r.PostForm.Get("hull_id"),
	}
	err = s.app.Handle(ctx, sess, form, clientIP(r))
	switch {
	case err == nil:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, domain.ErrInvalidTransition):
		s.logger.InfoContext(ctx, "event rejected", "session_id", sess.ID, "page", sess.Page, "event", form.Event)
		if err := s.app.Save(ctx, sess); err != nil {
			s.fail(w, r, err)
			return
		}
		v, err := s.app.View(ctx, sess.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		v.Error = invalidEventMessage
		s.renderView(w, r, http.StatusConflict, v)
	default:
		s.fail(w, r, err)
	}
}

// handleReset discards the session and starts over on the home page.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Reset(r.Context(), sessionID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSessionCookie(w, sess.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleMapJSON returns the session's map model.
func (s *Server) handleMapJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.app.Session(ctx, sessionID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.app.Save(ctx, sess); err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSessionCookie(w, sess.ID)

	m, err := s.app.MapView(ctx, sess)
	if err != nil {
		s.logger.ErrorContext(ctx, "coral map unavailable", "session_id", sess.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleQR renders the badge of the session's latest check-in.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := sessionID(r)
	if id == "" {
		s.fail(w, r, errCheckinNotFound)
		return
	}
	sess, err := s.app.Session(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c := sess.LastCheckin
	if c == nil || c.ID != r.PathValue("id") {
		s.fail(w, r, errCheckinNotFound)
		return
	}

	png, err := qrcode.Encode(badgeContent(*c), qrcode.Medium, qrSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(png)
}

func badgeContent(c domain.Checkin) string {
	return "safesea:checkin:" + c.ID + ":" + string(c.Role)
}

func (s *Server) renderView(w http.ResponseWriter, r *http.Request, status int, v *flow.View) {
	d, err := s.pages.data(v, csrf.TemplateField(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.pages.render(w, status, d); err != nil {
		s.fail(w, r, err)
	}
}

// httpError carries the status and public message a handler responds with.
type httpError struct {
	status int
	msg    string
	err    error
}

func (e *httpError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *httpError) Unwrap() error { return e.err }

var errCheckinNotFound = &httpError{status: http.StatusNotFound, msg: "check-in not found"}

// fail writes err's status and message when it is an httpError, otherwise
// it logs err and writes a generic 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var he *httpError
	if errors.As(err, &he) && he.status < http.StatusInternalServerError {
		s.logger.DebugContext(r.Context(), "request refused",
			"path", r.URL.Path,
			"status", he.status,
			"error", err,
		)
		http.Error(w, he.msg, he.status)
		return
	}
	s.logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func sessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.sessionTTL / time.Second),
		Secure:   s.secure,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
