package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"cashadvance/models"
	"cashadvance/pkg/apperr"
	"cashadvance/pkg/metrics"
	"cashadvance/service"
	"cashadvance/store"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type server struct {
	auth        *service.AuthService
	apps        *service.ApplicationService
	st          *store.Store
	log         *slog.Logger
	metrics     *metrics.Metrics
	limiter     *ipRateLimiter
	corsOrigins []string
}

func newServer(cfg *Config, st *store.Store, auth *service.AuthService, apps *service.ApplicationService, m *metrics.Metrics, log *slog.Logger) *server {
	s := &server{
		auth:        auth,
		apps:        apps,
		st:          st,
		log:         log,
		metrics:     m,
		corsOrigins: cfg.CORSOrigins,
	}
	if cfg.AuthRateLimit > 0 {
		s.limiter = newIPRateLimiter(cfg.AuthRateLimit, cfg.AuthBurst)
	}
	return s
}

var registerTagNames sync.Once

// newRouter builds the engine with the middleware chain and every route.
func newRouter(s *server) *gin.Engine {
	registerTagNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(f reflect.StructField) string {
				name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})
		}
	})
	r := gin.New()
	r.Use(s.recovery(), s.requestLogger(), s.metricsMiddleware(), corsMiddleware(s.corsOrigins))
	setupRoutes(r, s)
	return r
}

func setupRoutes(r *gin.Engine, s *server) {
	r.GET("/healthz", s.healthHandler)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", s.rateLimit(), s.registerHandler)
	auth.POST("/login", s.rateLimit(), s.loginHandler)
	auth.POST("/refresh", s.rateLimit(), s.refreshHandler)
	auth.POST("/logout", s.logoutHandler)
	auth.GET("/me", s.authMiddleware(), s.meHandler)

	authed := api.Group("")
	authed.Use(s.authMiddleware())
	authed.POST("/applications", s.createApplicationHandler)
	authed.GET("/applications", s.listApplicationsHandler)
	authed.GET("/applications/:id", s.getApplicationHandler)
	authed.PATCH("/applications/:id", s.updateApplicationHandler)
	authed.POST("/applications/:id/disbursement", s.disburseHandler)
	authed.POST("/applications/:id/repayment", s.repayHandler)
	authed.POST("/applications/:id/cancel", s.cancelHandler)
	authed.GET("/transactions", s.listTransactionsHandler)

	admin := authed.Group("/admin")
	admin.Use(s.adminOnly())
	admin.GET("/applications", s.reviewListHandler)
	admin.POST("/applications/:id/reject", s.rejectHandler)
}

type publicUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func toPublicUser(u *models.User) publicUser {
	return publicUser{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

// applicationView adds the derived outstanding balance to the stored record.
type applicationView struct {
	*models.Application
	OutstandingAmount decimal.NullDecimal `json:"outstandingAmount"`
}

func toView(a *models.Application) applicationView {
	return applicationView{Application: a, OutstandingAmount: a.Outstanding()}
}

func toViews(items []models.Application) []applicationView {
	out := make([]applicationView, 0, len(items))
	for i := range items {
		out = append(out, toView(&items[i]))
	}
	return out
}

func errorBody(msg string) gin.H {
	return gin.H{"status": "error", "message": msg}
}

// writeError is the single place where errors become HTTP responses.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		log.ErrorContext(c.Request.Context(), "request failed",
			"err", err, "path", c.Request.URL.Path, "request_id", c.GetString(ctxRequestIDKey))
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), errorBody(apperr.PublicMessage(err)))
}

// bind decodes the JSON body and turns decoder and validator failures into
// validation errors. An empty body is accepted when optional is set.
func bind(c *gin.Context, dst any, optional bool) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return apperr.Validation(fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			return apperr.Validation(fmt.Sprintf("%s must be a valid email address", fe.Field()))
		default:
			return apperr.Validation(fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return apperr.Validation("invalid request body")
}

func (s *server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.st.Ping(ctx); err != nil {
		s.log.Warn("health check failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type registerRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

func (s *server) registerHandler(c *gin.Context) {
	var req registerRequest
	if err := bind(c, &req, false); err != nil {
		writeError(c, s.log, err)
		return
	}
	res, err := s.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":        res.Token,
		"refreshToken": res.RefreshToken,
		"user":         toPublicUser(res.User),
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *server) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := bind(c, &req, false); err != nil {
		writeError(c, s.log, err)
		return
	}
	res, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":        res.Token,
		"refreshToken": res.RefreshToken,
		"user":         toPublicUser(res.User),
	})
}

func (s *server) meHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		writeError(c, s.log, apperr.Auth("authentication required"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toPublicUser(user)})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (s *server) refreshHandler(c *gin.Context) {
	var req refreshRequest
	if err := bind(c, &req, false); err != nil {
		writeError(c, s.log, err)
		return
	}
	res, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": res.Token, "refreshToken": res.RefreshToken})
}

func (s *server) logoutHandler(c *gin.Context) {
	var req refreshRequest
	if err := bind(c, &req, false); err != nil {
		writeError(c, s.log, err)
		return
	}
	if err := s.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type createApplicationRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	Purpose         string           `json:"purpose"`
	ExpressDelivery *bool            `json:"expressDelivery"`
	Tip             *decimal.Decimal `json:"tip"`
}

func (s *server) createApplicationHandler(c *gin.Context) {
	user, _ := currentUser(c)
	var req createApplicationRequest
	if err := bind(c, &req, false); err != nil {
		writeError(c, s.log, err)
		return
	}
	app, err := s.apps.Create(c.Request.Context(), user.ID, service.CreateInput{
		Amount:          req.Amount,
		Purpose:         req.Purpose,
		ExpressDelivery: req.ExpressDelivery,
		Tip:             req.Tip,
	})
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"application": toView(app)})
}

func (s *server) listApplicationsHandler(c *gin.Context) {
	user, _ := currentUser(c)
	items, err := s.apps.List(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": toViews(items)})
}

func (s *server) getApplicationHandler(c *gin.Context) {
	user, _ := currentUser(c)
	app, err := s.apps.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": toView(app)})
}

type updateApplicationRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	Purpose         *string          `json:"purpose"`
	ExpressDelivery *bool            `json:"expressDelivery"`
	Tip             *decimal.Decimal `json:"tip"`
}

func (s *server) updateApplicationHandler(c *gin.Context) {
	user, _ := currentUser(c)
	var req updateApplicationRequest
	if err := bind(c, &req, true); err != nil {
		writeError(c, s.log, err)
		return
	}
	app, err := s.apps.Update(c.Request.Context(), user.ID, c.Param("id"), service.UpdateInput{
		Amount:          req.Amount,
		Purpose:         req.Purpose,
		ExpressDelivery: req.ExpressDelivery,
		Tip:             req.Tip,
	})
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": toView(app)})
}

type amountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (s *server) disburseHandler(c *gin.Context) {
	user, _ := currentUser(c)
	var req amountRequest
	if err := bind(c, &req, true); err != nil {
		writeError(c, s.log, err)
		return
	}
	app, err := s.apps.Disburse(c.Request.Context(), user.ID, c.Param("id"), req.Amount)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": toView(app)})
}

func (s *server) repayHandler(c *gin.Context) {
	user, _ := currentUser(c)
	var req amountRequest
	if err := bind(c, &req, true); err != nil {
		writeError(c, s.log, err)
		return
	}
	app, err := s.apps.Repay(c.Request.Context(), user.ID, c.Param("id"), req.Amount)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": toView(app)})
}

func (s *server) cancelHandler(c *gin.Context) {
	user, _ := currentUser(c)
	app, err := s.apps.Cancel(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": toView(app)})
}

func (s *server) listTransactionsHandler(c *gin.Context) {
	user, _ := currentUser(c)
	items, err := s.apps.Transactions(c.Request.Context(), user.ID, strings.TrimSpace(c.Query("applicationId")))
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	if items == nil {
		items = []models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": items})
}

func (s *server) reviewListHandler(c *gin.Context) {
	items, err := s.apps.ListForReview(c.Request.Context(), c.Query("status"))
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": toViews(items)})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *server) rejectHandler(c *gin.Context) {
	reviewer, _ := currentUser(c)
	var req rejectRequest
	if err := bind(c, &req, true); err != nil {
		writeError(c, s.log, err)
		return
	}
	app, err := s.apps.Reject(c.Request.Context(), reviewer.ID, c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": toView(app)})
}
