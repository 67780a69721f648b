package dentition

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/odonto/charting/internal/platform/auth"
)

// Handler serves the static anatomical reference data charts are drawn from.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/dentition", auth.ReadRoles())
	read.GET("/teeth", h.ListTeeth)
	read.GET("/teeth/:tooth/surfaces", h.GetSurfaceMap)
}

type toothInfo struct {
	Tooth       Tooth  `json:"tooth_number"`
	Arch        Arch   `json:"arch"`
	Kind        Kind   `json:"kind"`
	QuadrantKey string `json:"quadrant_key"`
	PositionKey string `json:"position_key"`
}

func describe(t Tooth) toothInfo {
	q, p := t.NameKeys()
	return toothInfo{Tooth: t, Arch: t.Arch(), Kind: t.Kind(), QuadrantKey: q, PositionKey: p}
}

func (h *Handler) ListTeeth(c echo.Context) error {
	layout := ChartLayout()
	resp := struct {
		Upper []toothInfo `json:"upper"`
		Lower []toothInfo `json:"lower"`
	}{}
	for _, t := range layout.Upper {
		resp.Upper = append(resp.Upper, describe(t))
	}
	for _, t := range layout.Lower {
		resp.Lower = append(resp.Lower, describe(t))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetSurfaceMap(c echo.Context) error {
	t, err := ParseTooth(c.Param("tooth"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slots, err := SurfaceMap(t)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tooth":    describe(t),
		"surfaces": slots,
	})
}
