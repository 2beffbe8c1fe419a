package v1

import (
	"net/http"

	"go-dishlens-backend/internal/delivery/http/response"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type PackageHandler struct {
	packageUC domain.PackageUsecase
}

func NewPackageHandler(public *gin.RouterGroup, admin *gin.RouterGroup, packageUC domain.PackageUsecase) {
	handler := &PackageHandler{packageUC: packageUC}

	// The pricing page reads these without logging in.
	publicPkgs := public.Group("/packages")
	{
		publicPkgs.GET("", handler.ListActive)
		publicPkgs.GET("/:id", handler.Get)
	}

	adminPkgs := admin.Group("/packages")
	{
		adminPkgs.POST("", handler.Create)
		adminPkgs.PUT("/:id", handler.Update)
	}
}

// ListActive godoc
// @Summary      Active packages
// @Description  Public listing of purchasable packages for the pricing page.
// @Tags         packages
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /packages [get]
func (h *PackageHandler) ListActive(c *gin.Context) {
	pkgs, err := h.packageUC.ListActive(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Packages", pkgs)
}

func (h *PackageHandler) Get(c *gin.Context) {
	pkg, err := h.packageUC.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Package", pkg)
}

func (h *PackageHandler) Create(c *gin.Context) {
	var pkg domain.Package
	if err := c.ShouldBindJSON(&pkg); err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	if err := h.packageUC.Create(c.Request.Context(), &pkg); err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusCreated, "Package created", pkg)
}

func (h *PackageHandler) Update(c *gin.Context) {
	var pkg domain.Package
	if err := c.ShouldBindJSON(&pkg); err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}
	pkg.ID = c.Param("id")

	if err := h.packageUC.Update(c.Request.Context(), &pkg); err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Package updated", pkg)
}
