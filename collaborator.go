package alpalo

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/publish"
	"github.com/quilpalta/alpalo/views"
)

const (
	msgTooManyPublishes = "Demasiadas publicaciones seguidas. Esperá un minuto y volvé a intentar."
	msgBusy             = "Ya estamos subiendo esta noticia. Esperá a que termine."
)

// formState is everything the publish form is rendered from.
type formState struct {
	form    publish.Form
	success string
	alert   string
	errors  map[publish.Field]string
	busy    bool
}

func (a *App) loginRequired() bool {
	return a.Config.CollaboratorPassword != ""
}

func (a *App) handleCollaborators(c echo.Context) error {
	if a.loginRequired() && !IsCollaborator(c) {
		return Render(c, a.Views.Login(views.LoginPage{CSRF: CsrfToken(c)}))
	}
	return a.renderPublish(c, http.StatusOK, formState{
		form:    publish.NewForm(),
		success: popFlash(c),
	})
}

func (a *App) handleLogin(c echo.Context) error {
	if !a.loginRequired() {
		return c.Redirect(http.StatusSeeOther, "/colaboradores/")
	}
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return RenderStatus(c, http.StatusTooManyRequests, a.Views.Login(views.LoginPage{CSRF: CsrfToken(c), Limited: true}))
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.CollaboratorPassword)) == 1 {
		if err := setCollaboratorSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/colaboradores/")
	}
	a.loginLimiter.Record(ip)
	a.logger.Warn("collaborator login failed", zap.String("ip", ip))
	return RenderStatus(c, http.StatusUnauthorized, a.Views.Login(views.LoginPage{CSRF: CsrfToken(c), ShowError: true}))
}

func handleLogout(c echo.Context) error {
	if err := clearCollaboratorSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/colaboradores/")
}

// handlePublish runs the publish workflow for one form submission. While a
// submission of the same form instance is running, further ones are answered
// with 409 and never reach the backend.
func (a *App) handlePublish(c echo.Context) error {
	if a.loginRequired() && !IsCollaborator(c) {
		return c.Redirect(http.StatusSeeOther, "/colaboradores/")
	}

	form, err := a.formFromRequest(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return a.renderTooLarge(c)
		}
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form").SetInternal(err)
	}

	if !a.guard.TryAcquire(form.ID()) {
		a.metrics.Published("busy")
		return a.renderPublish(c, http.StatusConflict, formState{form: form, alert: msgBusy, busy: true})
	}
	defer a.guard.Release(form.ID())

	if !a.publishLimiter.Allow(c.RealIP()) {
		a.metrics.Published("limited")
		return a.renderPublish(c, http.StatusTooManyRequests, formState{form: form, alert: msgTooManyPublishes})
	}

	if err := form.Validate(!a.Config.ImageOptional); err != nil {
		var verr *publish.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		a.metrics.Published("invalid")
		return a.renderPublish(c, http.StatusUnprocessableEntity, formState{form: form, errors: verr.Fields})
	}

	// A started publish runs to completion even if the client goes away.
	ctx := context.WithoutCancel(c.Request().Context())
	if _, err := a.workflow.Publish(ctx, form.Submission()); err != nil {
		return a.renderPublish(c, http.StatusBadGateway, formState{form: form, alert: publish.UserMessage(err)})
	}

	if err := addFlash(c, publish.SuccessMessage); err != nil {
		a.logger.Warn("flash not saved", zap.Error(err))
	}
	return c.Redirect(http.StatusSeeOther, "/colaboradores/")
}

// formFromRequest builds the form state from a multipart submission. A
// missing form_id gets a fresh one.
func (a *App) formFromRequest(c echo.Context) (publish.Form, error) {
	form := publish.NewForm()
	if id := strings.TrimSpace(c.FormValue("form_id")); id != "" {
		form = form.WithID(id)
	}
	for _, field := range publish.TextFields() {
		v := c.FormValue(string(field))
		if field == publish.FieldCategory && v == "" {
			continue
		}
		var err error
		if form, err = form.Set(field, v); err != nil {
			return form, err
		}
	}

	fh, err := c.FormFile(string(publish.FieldImage))
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return form, nil
	case err != nil:
		return form, err
	}
	img, err := a.readImage(fh)
	if err != nil {
		return form, err
	}
	return form.WithImage(img), nil
}

func (a *App) readImage(fh *multipart.FileHeader) (*publish.Image, error) {
	if fh.Size > a.Config.MaxUploadSize {
		return nil, &http.MaxBytesError{Limit: a.Config.MaxUploadSize}
	}
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, a.Config.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > a.Config.MaxUploadSize {
		return nil, &http.MaxBytesError{Limit: a.Config.MaxUploadSize}
	}
	if len(data) == 0 {
		return nil, nil
	}
	ct := fh.Header.Get(echo.HeaderContentType)
	if ct == "" || ct == echo.MIMEOctetStream {
		ct = http.DetectContentType(data)
	}
	return &publish.Image{Name: fh.Filename, Data: data, ContentType: ct}, nil
}

func (a *App) renderPublish(c echo.Context, code int, st formState) error {
	errs := make(map[string]string, len(st.errors))
	for f, msg := range st.errors {
		errs[string(f)] = msg
	}
	alert := st.alert
	if alert == "" && len(errs) > 0 {
		alert = "Revisá los campos marcados."
	}
	return RenderStatus(c, code, a.Views.Publish(views.PublishPage{
		Form:         st.form,
		CSRF:         CsrfToken(c),
		Success:      st.success,
		Alert:        alert,
		Errors:       errs,
		Busy:         st.busy,
		RequireImage: !a.Config.ImageOptional,
		MaxUploadMB:  a.Config.MaxUploadSize >> 20,
		CanLogout:    a.loginRequired(),
	}))
}

// renderTooLarge answers an oversized upload. The body was not read, so the
// form comes back empty; the CSRF token is taken from its cookie because the
// CSRF middleware has not run for this request.
func (a *App) renderTooLarge(c echo.Context) error {
	a.metrics.Published("too_large")
	token := CsrfToken(c)
	if token == "" {
		if ck, err := c.Cookie("_csrf"); err == nil {
			token = ck.Value
		}
	}
	return RenderStatus(c, http.StatusRequestEntityTooLarge, a.Views.Publish(views.PublishPage{
		Form:         publish.NewForm(),
		CSRF:         token,
		Alert:        fmt.Sprintf("La imagen supera el máximo de %d MB.", a.Config.MaxUploadSize>>20),
		RequireImage: !a.Config.ImageOptional,
		MaxUploadMB:  a.Config.MaxUploadSize >> 20,
		CanLogout:    a.loginRequired(),
	}))
}
