package v1

import (
	"bytes"
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"go-dishlens-backend/config"
	"go-dishlens-backend/internal/delivery/http/response"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/logger"
	"go-dishlens-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	paymentUC domain.PaymentUsecase
	config    *config.Config
	forward   *http.Client
}

func NewWebhookHandler(public *gin.RouterGroup, staff *gin.RouterGroup, paymentUC domain.PaymentUsecase, cfg *config.Config, webhookLimiter gin.HandlerFunc) {
	handler := &WebhookHandler{
		paymentUC: paymentUC,
		config:    cfg,
		forward:   &http.Client{Timeout: 10 * time.Second},
	}

	public.POST("/webhooks/icount", webhookLimiter, handler.Receive)
	staff.GET("/payments", handler.ListPayments)
}

// ICountWebhookPayload carries the fields of an iCount invoice event
// this service reads. Unknown fields are preserved in the raw body for
// forwarding.
type ICountWebhookPayload struct {
	DocNum      string  `json:"docnum" form:"docnum" binding:"required"`
	TotalSum    float64 `json:"totalsum" form:"totalsum" binding:"required"`
	ClientName  string  `json:"client_name" form:"client_name"`
	ClientEmail string  `json:"email" form:"email"`
}

// Receive godoc
// @Summary      iCount invoice webhook
// @Description  Records an invoice pushed by iCount. With a forward URL configured the raw payload is relayed downstream and the downstream status is returned; otherwise the recorded payment is returned directly.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /webhooks/icount [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	if !h.secretValid(c) {
		h.audit(c, security.EventWebhookRejected, map[string]interface{}{"reason": "bad_secret"})
		response.Error(c, http.StatusUnauthorized, "Invalid webhook secret", nil)
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.Error(apperror.BadRequest("Unreadable payload"))
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var payload ICountWebhookPayload
	if err := c.ShouldBind(&payload); err != nil {
		h.audit(c, security.EventWebhookRejected, map[string]interface{}{"reason": "bad_payload"})
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	payment, err := h.paymentUC.RecordWebhook(c.Request.Context(), payload.DocNum, payload.TotalSum, payload.ClientName, payload.ClientEmail)
	if err != nil {
		c.Error(err)
		return
	}

	h.audit(c, security.EventWebhookAccepted, map[string]interface{}{
		"doc_id": payment.DocID,
		"tier":   string(payment.DetectedPackageType),
	})

	if h.config.ICountForwardURL == "" {
		// Debug variant: no downstream, answer with what was recorded.
		response.Success(c, http.StatusOK, "Payment recorded", payment)
		return
	}

	h.relay(c, raw)
}

// relay forwards the untouched payload downstream and mirrors the
// downstream verdict back to iCount, so its redelivery logic reacts to
// the real end-to-end outcome.
func (h *WebhookHandler) relay(c *gin.Context, raw []byte) {
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, h.config.ICountForwardURL, bytes.NewReader(raw))
	if err != nil {
		c.Error(apperror.Internal(err))
		return
	}
	req.Header.Set("Content-Type", c.ContentType())

	resp, err := h.forward.Do(req)
	if err != nil {
		logger.Log.Error("webhook forward failed", "error", err)
		response.Error(c, http.StatusBadGateway, "Downstream forwarding failed", nil)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), body)
}

func (h *WebhookHandler) secretValid(c *gin.Context) bool {
	secret := c.GetHeader("X-Icount-Secret")
	if h.config.ICountWebhookSecret == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(h.config.ICountWebhookSecret)) == 1
}

func (h *WebhookHandler) audit(c *gin.Context, event security.EventType, details map[string]interface{}) {
	if audit := security.Default(); audit != nil {
		reqID, _ := c.Get("RequestID")
		reqIDStr, _ := reqID.(string)
		audit.Log(security.Event{
			Event:     event,
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
			RequestID: reqIDStr,
			Details:   details,
		})
	}
}

func (h *WebhookHandler) ListPayments(c *gin.Context) {
	limit, offset := paginationParams(c)
	payments, err := h.paymentUC.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Payments", payments)
}
