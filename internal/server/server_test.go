package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/t2tlabs/t2t-backend/internal/billing"
	"github.com/t2tlabs/t2t-backend/internal/crm"
	"github.com/t2tlabs/t2t-backend/internal/engine"
	"github.com/t2tlabs/t2t-backend/internal/models"
	"github.com/t2tlabs/t2t-backend/internal/provider"
	"github.com/t2tlabs/t2t-backend/internal/storage"
	"github.com/t2tlabs/t2t-backend/pkg/config"
	"go.uber.org/zap"
)

const testSecret = "whsec_test"

func init() {
	gin.SetMode(gin.TestMode)
}

type scriptedProvider struct {
	reply string
	err   error
}

func (p *scriptedProvider) Complete(ctx context.Context, system string, history []provider.ChatMessage, opts provider.Options) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func newTestServer(t *testing.T, p *scriptedProvider) (*gin.Engine, *storage.MemoryStorage, *models.Account) {
	t.Helper()
	store := storage.NewMemoryStorage()
	account := &models.Account{Email: "coach@example.com", Name: "Test Coach"}
	require.NoError(t, store.CreateAccount(context.Background(), account))

	logger := zap.NewNop()
	eng := engine.New(store, p, "https://pay.example.com/upgrade", logger)
	reconciler := billing.NewReconciler(store, crm.Noop{}, logger)
	payments := config.PaymentsConfig{
		WebhookSecret:        testSecret,
		CheckoutURLOneTime:   "https://pay.example.com/one-time",
		CheckoutURLRecurring: "https://pay.example.com/recurring",
	}
	srv := New(eng, store, reconciler, crm.Noop{}, payments, logger)
	return srv.Router(), store, account
}

func doJSON(router *gin.Engine, method, path, accountID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if accountID != "" {
		req.Header.Set(accountHeader, accountID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postWebhook(router *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, signature)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatRequiresAuthentication(t *testing.T) {
	router, _, _ := newTestServer(t, &scriptedProvider{reply: "hi"})

	w := doJSON(router, http.MethodPost, "/api/chat", "", gin.H{"message": "hello"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatHappyPath(t *testing.T) {
	router, store, account := newTestServer(t, &scriptedProvider{reply: "A structured reply."})

	w := doJSON(router, http.MethodPost, "/api/chat", account.ID, gin.H{
		"message": "Help me plan a workshop",
		"mode":    "chat",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		ThreadID string `json:"thread_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "A structured reply.", resp.Message)

	msgs, err := store.RecentMessages(context.Background(), resp.ThreadID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

func TestChatRejectsUnknownMode(t *testing.T) {
	router, _, account := newTestServer(t, &scriptedProvider{reply: "hi"})

	w := doJSON(router, http.MethodPost, "/api/chat", account.ID, gin.H{
		"message": "hello",
		"mode":    "therapy",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCareerChatWithoutTierIsPaymentRequired(t *testing.T) {
	router, store, account := newTestServer(t, &scriptedProvider{reply: "hi"})

	w := doJSON(router, http.MethodPost, "/api/chat", account.ID, gin.H{
		"message": "hello",
		"mode":    "career",
	})
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	require.Contains(t, w.Body.String(), "https://pay.example.com/upgrade")

	threads, err := store.ListThreads(context.Background(), account.ID)
	require.NoError(t, err)
	require.Empty(t, threads)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	router, store, account := newTestServer(t, &scriptedProvider{reply: "hi"})

	payload := []byte(fmt.Sprintf(
		`{"kind":"checkout.completed","account_ref":%q,"customer_id":"cus_1","purchase_kind":"recurring"}`,
		account.ID))

	w := postWebhook(router, payload, "not-a-signature")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	tier, err := store.GetTier(context.Background(), account.ID)
	require.NoError(t, err)
	require.Equal(t, models.TierNone, tier)
}

func TestWebhookGrantThenCancelEndToEnd(t *testing.T) {
	router, store, account := newTestServer(t, &scriptedProvider{reply: "Question 1 of 8"})

	grant := []byte(fmt.Sprintf(
		`{"kind":"checkout.completed","account_ref":%q,"customer_id":"cus_1","purchase_kind":"recurring"}`,
		account.ID))
	w := postWebhook(router, grant, billing.Sign(grant, testSecret))
	require.Equal(t, http.StatusOK, w.Code)

	tier, err := store.GetTier(context.Background(), account.ID)
	require.NoError(t, err)
	require.Equal(t, models.TierSubscription, tier)

	// The career gate observes the committed grant immediately.
	chat := doJSON(router, http.MethodPost, "/api/chat", account.ID, gin.H{
		"message": "hello",
		"mode":    "career",
	})
	require.Equal(t, http.StatusOK, chat.Code)
	require.Contains(t, chat.Body.String(), `"question_index":1`)

	ended := []byte(`{"kind":"subscription.ended","customer_id":"cus_1"}`)
	w = postWebhook(router, ended, billing.Sign(ended, testSecret))
	require.Equal(t, http.StatusOK, w.Code)

	tier, err = store.GetTier(context.Background(), account.ID)
	require.NoError(t, err)
	require.Equal(t, models.TierNone, tier)
}

func TestThreadLifecycleOverHTTP(t *testing.T) {
	router, _, account := newTestServer(t, &scriptedProvider{reply: "ok"})

	w := doJSON(router, http.MethodPost, "/api/chat", account.ID, gin.H{"message": "first"})
	require.Equal(t, http.StatusOK, w.Code)
	var chat struct {
		ThreadID string `json:"thread_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chat))

	w = doJSON(router, http.MethodGet, "/api/threads", account.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), chat.ThreadID)

	w = doJSON(router, http.MethodPut, "/api/threads/"+chat.ThreadID, account.ID, gin.H{"title": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/threads/"+chat.ThreadID, account.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Renamed")

	// A different account sees the same thread id as missing.
	other := doJSON(router, http.MethodGet, "/api/threads/"+chat.ThreadID, "someone-else", nil)
	require.Equal(t, http.StatusNotFound, other.Code)

	w = doJSON(router, http.MethodDelete, "/api/threads/"+chat.ThreadID, account.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/threads/"+chat.ThreadID, account.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateThreadEndpoint(t *testing.T) {
	router, store, account := newTestServer(t, &scriptedProvider{reply: "ok"})

	w := doJSON(router, http.MethodPost, "/api/threads", account.ID, gin.H{
		"title": "Quarterly TNA",
		"mode":  "document",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Thread struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Mode  string `json:"mode"`
		} `json:"thread"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Quarterly TNA", resp.Thread.Title)
	require.Equal(t, "document", resp.Thread.Mode)

	thread, err := store.GetThread(context.Background(), account.ID, resp.Thread.ID)
	require.NoError(t, err)
	require.Equal(t, models.ModeDocument, thread.Mode)

	// Omitted fields fall back to the defaults.
	w = doJSON(router, http.MethodPost, "/api/threads", account.ID, gin.H{})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), "New Conversation")
	require.Contains(t, w.Body.String(), `"mode":"chat"`)

	w = doJSON(router, http.MethodPost, "/api/threads", account.ID, gin.H{"mode": "therapy"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignupCreatesAccount(t *testing.T) {
	router, store, _ := newTestServer(t, &scriptedProvider{reply: "ok"})

	w := doJSON(router, http.MethodPost, "/api/signup", "", gin.H{
		"name":  "New Person",
		"email": "new@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	account, err := store.GetAccountByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	require.Equal(t, models.TierNone, account.Tier)

	// Duplicate email is rejected.
	w = doJSON(router, http.MethodPost, "/api/signup", "", gin.H{
		"name":  "New Person",
		"email": "new@example.com",
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestUpgradeReturnsCheckoutURL(t *testing.T) {
	router, _, account := newTestServer(t, &scriptedProvider{reply: "ok"})

	w := doJSON(router, http.MethodPost, "/api/upgrade", account.ID, gin.H{"kind": "recurring"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "https://pay.example.com/recurring")

	w = doJSON(router, http.MethodPost, "/api/upgrade", account.ID, gin.H{"kind": "one_time"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "https://pay.example.com/one-time")
}

func TestUpgradeRejectsMalformedBody(t *testing.T) {
	router, _, account := newTestServer(t, &scriptedProvider{reply: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/api/upgrade", bytes.NewReader([]byte(`{"kind":`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accountHeader, account.ID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
