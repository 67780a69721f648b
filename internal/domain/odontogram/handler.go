package odontogram

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/odonto/charting/internal/domain/contribution"
	"github.com/odonto/charting/internal/platform/apperr"
	"github.com/odonto/charting/internal/platform/auth"
	"github.com/odonto/charting/internal/platform/versioning"
	"github.com/odonto/charting/pkg/pagination"
)

// Handler provides HTTP handlers for charts, their records and their ledger.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.ReadRoles())
	read.GET("/odontograms/:id", h.GetOdontogram)
	read.GET("/odontograms/:id/contributions", h.ListContributions)
	read.GET("/odontograms/:id/notes-history", h.NotesHistory)
	read.GET("/patients/:patientId/odontograms", h.ListByPatient)
	// ?create=true also writes; GetLatest checks the write role itself.
	read.GET("/patients/:patientId/odontograms/latest", h.GetLatest)
	read.GET("/patients/:patientId/planned-treatments", h.PlannedTreatments)

	write := api.Group("", auth.WriteRoles())
	write.POST("/odontograms", h.CreateOdontogram)
	write.DELETE("/odontograms/:id", h.DeleteOdontogram)
	write.PATCH("/odontograms/:id/notes", h.UpdateNotes)
	write.PATCH("/odontograms/:id/teeth", h.UpsertTooth)
	write.PATCH("/odontograms/:id/surfaces", h.UpsertSurface)
	write.POST("/odontograms/:id/treatments", h.AddTreatment)
	write.PATCH("/treatments/:id", h.UpdateTreatment)
}

func httpError(err error) error {
	if he, ok := err.(*echo.HTTPError); ok {
		return he
	}
	return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
}

func actorFrom(c echo.Context) (auth.Actor, error) {
	a, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return auth.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "no authenticated dentist")
	}
	return a, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func parsePatientID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("patientId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

func canWrite(c echo.Context) bool {
	for _, r := range auth.RolesFromContext(c.Request().Context()) {
		if r == auth.RoleDentist || r == auth.RoleAdmin {
			return true
		}
	}
	return false
}

// -- Charts --

func (h *Handler) CreateOdontogram(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.CreateOdontogram(c.Request().Context(), actor, req)
	if err != nil {
		return httpError(err)
	}
	versioning.SetVersionHeaders(c, o.Version, o.UpdatedAt)
	c.Response().Header().Set("Location", "/api/v1/odontograms/"+o.ID.String())
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOdontogram(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	o, err := h.svc.GetOdontogram(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	versioning.SetVersionHeaders(c, o.Version, o.UpdatedAt)
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) GetLatest(c echo.Context) error {
	patientID, err := parsePatientID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if create, _ := strconv.ParseBool(c.QueryParam("create")); create {
		if !canWrite(c) {
			return echo.NewHTTPError(http.StatusForbidden, "required role: dentist")
		}
		actor, err := actorFrom(c)
		if err != nil {
			return err
		}
		o, created, err := h.svc.GetLatestOrCreate(ctx, actor, patientID)
		if err != nil {
			return httpError(err)
		}
		versioning.SetVersionHeaders(c, o.Version, o.UpdatedAt)
		if created {
			return c.JSON(http.StatusCreated, o)
		}
		return c.JSON(http.StatusOK, o)
	}

	o, err := h.svc.GetLatest(ctx, patientID)
	if err != nil {
		return httpError(err)
	}
	versioning.SetVersionHeaders(c, o.Version, o.UpdatedAt)
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := parsePatientID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Odontogram{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteOdontogram(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteOdontogram(c.Request().Context(), actor, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateNotes accepts either a JSON body or the raw notes as text/plain.
func (h *Handler) UpdateNotes(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req NotesRequest
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMETextPlain) {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		req.GeneralNotes = string(body)
	} else if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ExpectedVersion, err = versioning.ExpectedFromRequest(c, req.ExpectedVersion); err != nil {
		return err
	}

	o, err := h.svc.UpdateGeneralNotes(c.Request().Context(), actor, id, req)
	if err != nil {
		return httpError(err)
	}
	versioning.SetVersionHeaders(c, o.Version, o.UpdatedAt)
	return c.JSON(http.StatusOK, o)
}

// -- Teeth and surfaces --

func (h *Handler) UpsertTooth(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ToothRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ExpectedVersion, err = versioning.ExpectedFromRequest(c, req.ExpectedVersion); err != nil {
		return err
	}

	t, err := h.svc.UpsertTooth(c.Request().Context(), actor, id, req)
	if err != nil {
		return httpError(err)
	}
	versioning.SetVersionHeaders(c, t.Version, t.UpdatedAt)
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpsertSurface(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req SurfaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ExpectedVersion, err = versioning.ExpectedFromRequest(c, req.ExpectedVersion); err != nil {
		return err
	}

	s, err := h.svc.UpsertSurface(c.Request().Context(), actor, id, req)
	if err != nil {
		return httpError(err)
	}
	versioning.SetVersionHeaders(c, s.Version, s.UpdatedAt)
	return c.JSON(http.StatusOK, s)
}

// -- Treatment plans --

func (h *Handler) AddTreatment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req TreatmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.svc.AddTreatmentPlan(c.Request().Context(), actor, id, req)
	if err != nil {
		return httpError(err)
	}
	versioning.SetVersionHeaders(c, p.Version, p.UpdatedAt)
	return c.JSON(http.StatusCreated, p)
}

// UpdateTreatment takes the new status from the body, or from the status and
// completedDate query parameters when there is no body.
func (h *Handler) UpdateTreatment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req TreatmentStatusRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	if req.Status == "" {
		req.Status = TreatmentStatus(c.QueryParam("status"))
	}
	if req.CompletedDate == nil {
		if v := c.QueryParam("completedDate"); v != "" {
			d, err := ParseDate(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			req.CompletedDate = &d
		}
	}
	if req.ExpectedVersion, err = versioning.ExpectedFromRequest(c, req.ExpectedVersion); err != nil {
		return err
	}

	p, err := h.svc.UpdateTreatmentStatus(c.Request().Context(), actor, id, req)
	if err != nil {
		return httpError(err)
	}
	versioning.SetVersionHeaders(c, p.Version, p.UpdatedAt)
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) PlannedTreatments(c echo.Context) error {
	patientID, err := parsePatientID(c)
	if err != nil {
		return err
	}
	plans, err := h.svc.PlannedTreatments(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, plans)
}

// -- Ledger --

func (h *Handler) ListContributions(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	action := contribution.ActionType(strings.ToUpper(c.QueryParam("action_type")))
	items, total, err := h.svc.History(c.Request().Context(), id, action, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(contribution.DescribeAll(items), total, pg.Limit, pg.Offset))
}

func (h *Handler) NotesHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	notes, err := h.svc.NotesHistory(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notes)
}
