package v1

import (
	"net/http"
	"strconv"

	"go-dishlens-backend/internal/delivery/http/response"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type ClientHandler struct {
	clientUC domain.ClientUsecase
}

func NewClientHandler(protected *gin.RouterGroup, staff *gin.RouterGroup, clientUC domain.ClientUsecase) {
	handler := &ClientHandler{clientUC: clientUC}

	me := protected.Group("/clients")
	{
		me.GET("/me", handler.GetOwnProfile)
		me.PUT("/me", handler.UpdateOwnProfile)
	}

	admin := staff.Group("/clients")
	{
		admin.GET("", handler.List)
		admin.GET("/:id", handler.Get)
		admin.PUT("/:id", handler.Update)
	}
}

// GetOwnProfile godoc
// @Summary      Own client profile
// @Description  Returns the caller's client record. 404 until profile setup has happened.
// @Tags         clients
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /clients/me [get]
func (h *ClientHandler) GetOwnProfile(c *gin.Context) {
	client, err := h.clientUC.GetOwnProfile(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Client profile", client)
}

type UpdateProfileRequest struct {
	BusinessName string `json:"business_name" binding:"required,min=2"`
	ContactName  string `json:"contact_name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone"`
}

func (h *ClientHandler) UpdateOwnProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	// Quota and package fields are deliberately absent from the
	// request shape: those only move via payments.
	client := &domain.Client{
		BusinessName: req.BusinessName,
		ContactName:  req.ContactName,
		Email:        req.Email,
		Phone:        req.Phone,
	}
	updated, err := h.clientUC.UpdateOwnProfile(c.Request.Context(), client)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Profile updated", updated)
}

func (h *ClientHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	clients, err := h.clientUC.ListClients(c.Request.Context(), limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Clients", clients)
}

func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.clientUC.GetClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Client", client)
}

func (h *ClientHandler) Update(c *gin.Context) {
	var client domain.Client
	if err := c.ShouldBindJSON(&client); err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}
	client.ID = c.Param("id")

	if err := h.clientUC.UpdateClient(c.Request.Context(), &client); err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Client updated", client)
}
