package v1

import (
	"net/http"
	"strconv"

	"go-dishlens-backend/internal/delivery/http/response"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type LeadHandler struct {
	leadUC domain.LeadUsecase
}

func NewLeadHandler(public *gin.RouterGroup, staff *gin.RouterGroup, leadUC domain.LeadUsecase, leadLimiter gin.HandlerFunc) {
	handler := &LeadHandler{leadUC: leadUC}

	// Marketing-site contact form, no auth.
	public.POST("/leads", leadLimiter, handler.SubmitPublic)

	leads := staff.Group("/leads")
	{
		leads.GET("", handler.List)
		leads.GET("/:id", handler.Get)
		leads.PUT("/:id", handler.Update)
	}
}

type SubmitLeadRequest struct {
	BusinessName string `json:"business_name" binding:"required,min=2"`
	ContactName  string `json:"contact_name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone"`
	Source       string `json:"source"`
	Notes        string `json:"notes"`
}

// SubmitPublic godoc
// @Summary      Submit a lead
// @Description  Unauthenticated lead capture from the marketing site.
// @Tags         leads
// @Accept       json
// @Produce      json
// @Param        lead  body      SubmitLeadRequest  true  "Lead details"
// @Success      201   {object}  response.Response
// @Failure      400   {object}  response.Response
// @Router       /leads [post]
func (h *LeadHandler) SubmitPublic(c *gin.Context) {
	var req SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	lead := &domain.Lead{
		BusinessName: req.BusinessName,
		ContactName:  req.ContactName,
		Email:        req.Email,
		Phone:        req.Phone,
		Source:       req.Source,
		Notes:        req.Notes,
	}
	if err := h.leadUC.SubmitPublic(c.Request.Context(), lead); err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusCreated, "Thanks! We will be in touch shortly.", gin.H{"id": lead.ID})
}

func (h *LeadHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := domain.LeadStatus(c.Query("status"))

	leads, err := h.leadUC.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Leads", leads)
}

func (h *LeadHandler) Get(c *gin.Context) {
	lead, err := h.leadUC.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Lead", lead)
}

type UpdateLeadRequest struct {
	Status      domain.LeadStatus `json:"status" binding:"required,oneof=new contacted converted closed"`
	ContactName string            `json:"contact_name"`
	Phone       string            `json:"phone"`
	Notes       string            `json:"notes"`
}

func (h *LeadHandler) Update(c *gin.Context) {
	var req UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	lead := &domain.Lead{
		ID:          c.Param("id"),
		Status:      req.Status,
		ContactName: req.ContactName,
		Phone:       req.Phone,
		Notes:       req.Notes,
	}
	if err := h.leadUC.Update(c.Request.Context(), lead); err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Lead updated", lead)
}
