package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/logger"
	"github.com/kbukum/bizbackend/provisioning"
	"github.com/kbukum/bizbackend/validation"
)

// Backends is the part of backend.Manager the gateway uses.
type Backends interface {
	Provider() backend.Provider
	SetProvider(ctx context.Context, kind backend.Kind) error
	Status(ctx context.Context) backend.Status
	Kinds() []backend.Kind
}

// Provisioner establishes the profile of the signed-in user.
type Provisioner interface {
	EnsureCurrent(ctx context.Context) (*backend.UserProfile, provisioning.Report, error)
}

var (
	_ Backends    = (*backend.Manager)(nil)
	_ Provisioner = (*provisioning.Protocol)(nil)
)

// API exposes the backend contract over HTTP for the app shell.
type API struct {
	backends    Backends
	provisioner Provisioner
	log         *logger.Logger
}

// NewAPI creates the handlers.
func NewAPI(backends Backends, provisioner Provisioner, log *logger.Logger) *API {
	return &API{backends: backends, provisioner: provisioner, log: log.WithComponent("api")}
}

// Register mounts the /v1 routes on r.
func (a *API) Register(r gin.IRouter) {
	v1 := r.Group("/v1")

	v1.GET("/provider", a.getProvider)
	v1.PUT("/provider", a.setProvider)

	auth := v1.Group("/auth")
	auth.POST("/sign-up", a.signUp)
	auth.POST("/sign-in", a.signIn)
	auth.POST("/sign-out", a.signOut)
	auth.GET("/session", a.session)

	v1.POST("/profile/provision", a.provision)

	records := v1.Group("/records/:table")
	records.GET("", a.listRecords)
	records.POST("", a.insertRecord)
	records.GET("/:id", a.getRecord)
	records.PATCH("/:id", a.updateRecord)
	records.DELETE("/:id", a.deleteRecord)
}

// --- provider ---

type providerView struct {
	backend.Status
	Kinds []backend.Kind `json:"kinds"`
}

type switchRequest struct {
	Kind string `json:"kind" validate:"required,backend_kind"`
}

func (a *API) getProvider(c *gin.Context) {
	RespondOK(c, providerView{Status: a.backends.Status(c.Request.Context()), Kinds: a.backends.Kinds()})
}

func (a *API) setProvider(c *gin.Context) {
	var req switchRequest
	if !bind(c, &req) {
		return
	}
	kind, _ := backend.ParseKind(req.Kind)
	if err := a.backends.SetProvider(c.Request.Context(), kind); err != nil {
		RespondWithError(c, err)
		return
	}
	a.getProvider(c)
}

// --- auth ---

type signUpRequest struct {
	Email    string           `json:"email" validate:"required,email"`
	Password string           `json:"password" validate:"required,min=6"`
	Metadata backend.Metadata `json:"metadata"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// sessionView leaves the refresh token inside the core.
type sessionView struct {
	User      backend.AuthIdentity `json:"user"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
}

func (a *API) signUp(c *gin.Context) {
	var req signUpRequest
	if !bind(c, &req) {
		return
	}
	identity, err := a.backends.Provider().SignUp(c.Request.Context(), req.Email, req.Password, req.Metadata)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, identity)
}

func (a *API) signIn(c *gin.Context) {
	var req signInRequest
	if !bind(c, &req) {
		return
	}
	identity, err := a.backends.Provider().SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, identity)
}

func (a *API) signOut(c *gin.Context) {
	if err := a.backends.Provider().SignOut(c.Request.Context()); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

// session answers data:null when nobody is signed in.
func (a *API) session(c *gin.Context) {
	s, err := a.backends.Provider().CurrentSession(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if s == nil {
		RespondOK(c, nil)
		return
	}
	RespondOK(c, sessionView{User: s.User, ExpiresAt: s.ExpiresAt})
}

// --- profile ---

type provisionResponse struct {
	Profile *backend.UserProfile `json:"profile"`
	Report  provisioning.Report  `json:"report"`
}

func (a *API) provision(c *gin.Context) {
	profile, report, err := a.provisioner.EnsureCurrent(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, provisionResponse{Profile: profile, Report: report})
}

// --- records ---

func (a *API) listRecords(c *gin.Context) {
	q, err := backend.ParseQuery(c.Param("table"), c.Request.URL.Query())
	if err != nil {
		RespondWithError(c, asInvalidQuery(err))
		return
	}
	res := a.backends.Provider().Query(c.Request.Context(), q)
	if res.Error != nil {
		RespondWithError(c, res.Error)
		return
	}
	if res.Data == nil {
		res.Data = []backend.Record{}
	}
	RespondOK(c, res.Data)
}

func (a *API) getRecord(c *gin.Context) {
	table, id, ok := rowParams(c)
	if !ok {
		return
	}
	q := backend.From(table).Eq("id", id)
	if sel := c.Query("select"); sel != "" {
		parsed, err := backend.ParseQuery(table, c.Request.URL.Query())
		if err != nil {
			RespondWithError(c, asInvalidQuery(err))
			return
		}
		q = q.Select(parsed.Columns...)
	}
	res := a.backends.Provider().QueryOne(c.Request.Context(), q)
	if res.Error != nil {
		RespondWithError(c, res.Error)
		return
	}
	if res.Data == nil {
		RespondWithError(c, errors.NotFound(table, id))
		return
	}
	RespondOK(c, res.Data)
}

func (a *API) insertRecord(c *gin.Context) {
	table := c.Param("table")
	if appErr := validation.New().Identifier("table", table).Validate(); appErr != nil {
		RespondWithError(c, appErr)
		return
	}
	var rec backend.Record
	if !bindRecord(c, &rec) {
		return
	}
	res := a.backends.Provider().Insert(c.Request.Context(), table, rec)
	if res.Error != nil {
		RespondWithError(c, res.Error)
		return
	}
	RespondCreated(c, res.Data)
}

func (a *API) updateRecord(c *gin.Context) {
	table, id, ok := rowParams(c)
	if !ok {
		return
	}
	var rec backend.Record
	if !bindRecord(c, &rec) {
		return
	}
	res := a.backends.Provider().Update(c.Request.Context(), table, id, rec)
	if res.Error != nil {
		RespondWithError(c, res.Error)
		return
	}
	if res.Data == nil {
		RespondWithError(c, errors.NotFound(table, id))
		return
	}
	RespondOK(c, res.Data)
}

func (a *API) deleteRecord(c *gin.Context) {
	table, id, ok := rowParams(c)
	if !ok {
		return
	}
	if res := a.backends.Provider().Delete(c.Request.Context(), table, id); res.Error != nil {
		RespondWithError(c, res.Error)
		return
	}
	RespondNoContent(c)
}

// --- helpers ---

// bind decodes and validates a JSON body, answering 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondWithError(c, errors.Validation("request body must be a JSON object").WithCause(err))
		return false
	}
	if err := validation.Validate(dst); err != nil {
		RespondWithError(c, err)
		return false
	}
	return true
}

func bindRecord(c *gin.Context, rec *backend.Record) bool {
	if err := c.ShouldBindJSON(rec); err != nil || *rec == nil {
		RespondWithError(c, errors.Validation("request body must be a JSON object").WithCause(err))
		return false
	}
	return true
}

func rowParams(c *gin.Context) (table, id string, ok bool) {
	table, id = c.Param("table"), c.Param("id")
	if appErr := validation.New().Identifier("table", table).Required("id", id).Validate(); appErr != nil {
		RespondWithError(c, appErr)
		return "", "", false
	}
	return table, id, true
}

func asInvalidQuery(err error) *errors.AppError {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	return errors.InvalidInput("query", err.Error())
}

func errNoRoute(method, path string) *errors.AppError {
	return errors.New(errors.ErrCodeNotFound, fmt.Sprintf("no route for %s %s", method, path), http.StatusNotFound)
}

func errNoMethod(method, path string) *errors.AppError {
	return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("%s is not allowed on %s", method, path), http.StatusMethodNotAllowed)
}
