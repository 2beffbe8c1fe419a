package v1

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"go-dishlens-backend/internal/delivery/http/response"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/imaging"

	"github.com/gin-gonic/gin"
)

type DishHandler struct {
	dishUC domain.DishUsecase
}

func NewDishHandler(protected *gin.RouterGroup, staff *gin.RouterGroup, dishUC domain.DishUsecase, uploadLimiter gin.HandlerFunc) {
	handler := &DishHandler{dishUC: dishUC}

	own := protected.Group("/dishes")
	{
		own.POST("", uploadLimiter, handler.Submit)
		own.GET("", handler.ListOwn)
		own.GET("/:id", handler.GetOwn)
	}

	queue := staff.Group("/dishes")
	{
		queue.GET("/queue", handler.ListQueue)
		queue.PATCH("/:id/status", handler.Transition)
	}
}

// Submit godoc
// @Summary      Submit a dish
// @Description  Multipart submission of one dish with its reference photo. Consumes one dish credit.
// @Tags         dishes
// @Accept       multipart/form-data
// @Produce      json
// @Param        photo  formData  file    true   "Reference photo (jpeg/png/webp, max 10MB)"
// @Param        name   formData  string  true   "Dish name"
// @Success      201    {object}  response.Response
// @Failure      400    {object}  response.Response
// @Failure      402    {object}  response.Response
// @Router       /dishes [post]
func (h *DishHandler) Submit(c *gin.Context) {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.Error(apperror.BadRequest("Photo file is required"))
		return
	}
	if fileHeader.Size > imaging.MaxPhotoBytes {
		c.Error(apperror.BadRequest("Photo exceeds the 10MB limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.Error(apperror.Internal(err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, imaging.MaxPhotoBytes+1))
	if err != nil {
		c.Error(apperror.Internal(err))
		return
	}

	dish := &domain.Dish{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
	}
	if tags := c.PostForm("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				dish.Tags = append(dish.Tags, t)
			}
		}
	}

	created, err := h.dishUC.Submit(c.Request.Context(), dish, data, fileHeader.Filename)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusCreated, "Dish submitted", created)
}

func (h *DishHandler) ListOwn(c *gin.Context) {
	dishes, err := h.dishUC.ListOwn(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Dishes", dishes)
}

func (h *DishHandler) GetOwn(c *gin.Context) {
	dish, err := h.dishUC.GetOwn(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Dish", dish)
}

// ListQueue is the editor work queue, oldest submissions first.
func (h *DishHandler) ListQueue(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := domain.DishStatus(c.DefaultQuery("status", string(domain.DishSubmitted)))

	dishes, err := h.dishUC.ListQueue(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Dish queue", dishes)
}

type TransitionRequest struct {
	Status domain.DishStatus `json:"status" binding:"required,oneof=processing ready rejected"`
	Note   string            `json:"note"`
}

func (h *DishHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	dish, err := h.dishUC.Transition(c.Request.Context(), c.Param("id"), req.Status, req.Note)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Dish status updated", dish)
}
