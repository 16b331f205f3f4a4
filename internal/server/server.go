// Package server is the HTTP adapter over the engine. Handlers translate
// JSON and status codes; every invariant lives below in the engine, storage,
// and billing packages.
package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/t2tlabs/t2t-backend/internal/billing"
	"github.com/t2tlabs/t2t-backend/internal/crm"
	"github.com/t2tlabs/t2t-backend/internal/engine"
	"github.com/t2tlabs/t2t-backend/internal/models"
	"github.com/t2tlabs/t2t-backend/internal/storage"
	"github.com/t2tlabs/t2t-backend/pkg/config"
	"go.uber.org/zap"
)

// accountHeader carries the authenticated account id, set by the fronting
// proxy. Credential handling is outside this service.
const accountHeader = "X-Account-ID"

type Server struct {
	engine     *engine.Engine
	store      storage.Storage
	reconciler *billing.Reconciler
	crm        crm.Client
	payments   config.PaymentsConfig
	logger     *zap.Logger
}

func New(eng *engine.Engine, store storage.Storage, reconciler *billing.Reconciler, crmClient crm.Client, payments config.PaymentsConfig, logger *zap.Logger) *Server {
	return &Server{
		engine:     eng,
		store:      store,
		reconciler: reconciler,
		crm:        crmClient,
		payments:   payments,
		logger:     logger,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/webhooks/payment", s.handlePaymentWebhook)

	api := router.Group("/api")
	{
		api.POST("/signup", s.handleSignup)

		authed := api.Group("")
		authed.Use(s.requireAccount())
		authed.GET("/account", s.handleGetAccount)
		authed.POST("/upgrade", s.handleUpgrade)
		authed.POST("/chat", s.handleChat)
		authed.GET("/threads", s.handleListThreads)
		authed.POST("/threads", s.handleCreateThread)
		authed.GET("/threads/:id", s.handleGetThread)
		authed.PUT("/threads/:id", s.handleRenameThread)
		authed.DELETE("/threads/:id", s.handleDeleteThread)
	}

	return router
}

func (s *Server) requireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetHeader(accountHeader)
		if accountID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Set("account_id", accountID)
		c.Next()
	}
}

func accountID(c *gin.Context) string {
	return c.GetString("account_id")
}

// writeError maps the engine's typed errors onto status codes. Foreign and
// absent threads produce the identical 404 body.
func (s *Server) writeError(c *gin.Context, err error) {
	var validationErr *engine.ValidationError
	var entitlementErr *engine.EntitlementError
	var providerErr *engine.ProviderError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
	case errors.As(err, &entitlementErr):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":       entitlementErr.Error(),
			"upgrade_url": entitlementErr.UpgradeURL,
		})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Assistant is unavailable, please try again"})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		s.logger.Error("Request failed", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func (s *Server) handleSignup(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and email are required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.store.GetAccountByEmail(ctx, req.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.writeError(c, err)
		return
	}

	// CRM contact creation is advisory; signup proceeds without it.
	contactID, err := s.crm.CreateContact(ctx, req.Name, req.Email, req.Phone)
	if err != nil {
		s.logger.Warn("CRM contact create failed", zap.Error(err), zap.String("email", req.Email))
	}

	account := &models.Account{
		Email:        req.Email,
		Name:         req.Name,
		Phone:        req.Phone,
		Tier:         models.TierNone,
		CRMContactID: contactID,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": account})
}

func (s *Server) handleGetAccount(c *gin.Context) {
	account, err := s.store.GetAccount(c.Request.Context(), accountID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

func (s *Server) handleUpgrade(c *gin.Context) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	url := s.payments.CheckoutURLOneTime
	if req.Kind == string(billing.PurchaseRecurring) {
		url = s.payments.CheckoutURLRecurring
	}
	if url == "" {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Checkout is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout_url": url})
}

func (s *Server) handleChat(c *gin.Context) {
	var req struct {
		Message  string `json:"message"`
		Mode     string `json:"mode"`
		ThreadID string `json:"thread_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Mode == "" {
		req.Mode = string(models.ModeChat)
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.SubmitTurn(c.Request.Context(), accountID(c), req.ThreadID, mode, req.Message)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := gin.H{
		"success":   true,
		"message":   result.AssistantText,
		"mode":      mode,
		"thread_id": result.Thread.ID,
		"thread":    result.Thread,
	}
	if mode == models.ModeCareer {
		resp["question_index"] = result.QuestionIndex
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateThread(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
		Mode  string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Mode == "" {
		req.Mode = string(models.ModeChat)
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = "New Conversation"
	}

	thread := &models.Thread{
		AccountID: accountID(c),
		Title:     req.Title,
		Mode:      mode,
	}
	if err := s.store.CreateThread(c.Request.Context(), thread); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"thread": thread})
}

func (s *Server) handleListThreads(c *gin.Context) {
	threads, err := s.engine.ListThreads(c.Request.Context(), accountID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (s *Server) handleGetThread(c *gin.Context) {
	thread, msgs, err := s.engine.GetThread(c.Request.Context(), accountID(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread": thread, "messages": msgs})
}

func (s *Server) handleRenameThread(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := s.engine.RenameThread(c.Request.Context(), accountID(c), c.Param("id"), req.Title); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeleteThread(c *gin.Context) {
	if err := s.engine.DeleteThread(c.Request.Context(), accountID(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// signatureHeader carries the processor's HMAC over the raw payload.
const signatureHeader = "X-Webhook-Signature"

func (s *Server) handlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable payload"})
		return
	}

	// Reject unauthenticated deliveries before touching any state. The
	// processor does not retry verification failures; its transport does.
	if !billing.VerifySignature(payload, c.GetHeader(signatureHeader), s.payments.WebhookSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	evt, err := billing.ParseEvent(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.reconciler.Apply(c.Request.Context(), evt); err != nil {
		s.logger.Error("Payment event failed", zap.Error(err), zap.String("kind", string(evt.Kind)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
