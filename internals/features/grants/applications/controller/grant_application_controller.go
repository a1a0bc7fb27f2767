// file: internals/features/grants/applications/controller/grant_application_controller.go
package controller

import (
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"grantku_backend/internals/features/grants/applications/dto"
	"grantku_backend/internals/features/grants/applications/flow"
	"grantku_backend/internals/features/grants/applications/form"
	"grantku_backend/internals/features/grants/applications/workspace"
	helper "grantku_backend/internals/helpers"
	authMw "grantku_backend/internals/middlewares/auth"
)

const MaxPassportBytes = 5 << 20

type GrantApplicationController struct {
	Workspaces *workspace.Registry
	Validator  *validator.Validate
}

func NewGrantApplicationController(reg *workspace.Registry) *GrantApplicationController {
	v := validator.New()
	_ = v.RegisterValidation("study_level", func(fl validator.FieldLevel) bool {
		return dto.IsStudyLevel(fl.Field().String())
	})
	_ = v.RegisterValidation("bank", func(fl validator.FieldLevel) bool {
		return dto.IsBank(fl.Field().String())
	})
	return &GrantApplicationController{Workspaces: reg, Validator: v}
}

// workspace: key registry = user id kanonik (uuid), bukan string mentah token.
func (ctrl *GrantApplicationController) workspace(c *fiber.Ctx) (*workspace.Workspace, bool) {
	if _, ok := authMw.IdentityFrom(c); !ok {
		return nil, false
	}
	uid, err := helper.GetUserIDFromLocals(c)
	if err != nil {
		log.WithError(err).Warn("[GRANT] user_id di locals tidak valid")
		return nil, false
	}
	return ctrl.Workspaces.Get(uid.String()), true
}

// =========================================================
// GET /api/u/grant-application
// Draft + state + notifikasi (notifikasi di-drain).
// =========================================================
func (ctrl *GrantApplicationController) GetWorkspace(c *fiber.Ctx) error {
	ws, ok := ctrl.workspace(c)
	if !ok {
		return helper.JsonUnauthorized(c, "", "")
	}
	return helper.JsonOK(c, "ok", ctrl.view(ws))
}

func (ctrl *GrantApplicationController) view(ws *workspace.Workspace) dto.WorkspaceResponse {
	snap := ws.Flow.Snapshot()
	out := dto.WorkspaceResponse{
		State:           snap.State,
		PaymentRequired: ws.Flow.PaymentRequired(),
		Draft:           dto.FromDraft(ws.Flow.Form().Snapshot()),
		Payment:         snap.Handoff,
		Result:          snap.Result,
		Notifications:   ws.Inbox.Drain(),
		StudyLevels:     dto.StudyLevels,
		Banks:           dto.Banks,
	}
	if snap.LastError != nil {
		out.LastError = snap.LastError.Error()
	}
	return out
}

// =========================================================
// PATCH /api/u/grant-application/draft
// =========================================================
func (ctrl *GrantApplicationController) UpdateDraft(c *fiber.Ctx) error {
	ws, ok := ctrl.workspace(c)
	if !ok {
		return helper.JsonUnauthorized(c, "", "")
	}

	var req dto.UpdateDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ctrl.Validator.Struct(&req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrorsToMap(err))
	}

	fields := req.Fields()
	if len(fields) == 0 {
		return helper.JsonError(c, fiber.StatusBadRequest, "no fields to update")
	}
	for _, f := range fields {
		if err := ws.Flow.Form().UpdateField(f[0], f[1]); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
		}
	}
	return helper.JsonUpdated(c, "draft updated", dto.FromDraft(ws.Flow.Form().Snapshot()))
}

// =========================================================
// PUT /api/u/grant-application/passport (multipart: passport)
// =========================================================
func (ctrl *GrantApplicationController) UploadPassport(c *fiber.Ctx) error {
	ws, ok := ctrl.workspace(c)
	if !ok {
		return helper.JsonUnauthorized(c, "", "")
	}

	fh, err := c.FormFile(form.FieldPassport)
	if err != nil {
		return helper.JsonValidationError(c, map[string][]string{form.FieldPassport: {"required"}})
	}
	if fh.Size <= 0 || fh.Size > MaxPassportBytes {
		return helper.JsonValidationError(c, map[string][]string{form.FieldPassport: {"max=5MB"}})
	}

	f, err := fh.Open()
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "cannot read passport file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxPassportBytes+1))
	if err != nil {
		log.WithError(err).Error("[GRANT] read passport upload")
		return helper.JsonError(c, fiber.StatusBadRequest, "cannot read passport file")
	}

	ws.Flow.Form().UpdateFileField(&form.Attachment{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	})
	return helper.JsonUpdated(c, "passport attached", dto.FromDraft(ws.Flow.Form().Snapshot()))
}

// =========================================================
// DELETE /api/u/grant-application/draft
// =========================================================
func (ctrl *GrantApplicationController) ResetDraft(c *fiber.Ctx) error {
	ws, ok := ctrl.workspace(c)
	if !ok {
		return helper.JsonUnauthorized(c, "", "")
	}
	if err := ws.Flow.Reset(); err != nil {
		return helper.JsonError(c, fiber.StatusConflict, err.Error())
	}
	return helper.JsonDeleted(c, "draft cleared", ctrl.view(ws))
}

// =========================================================
// POST /api/u/grant-application/submit
// 202 + handoff widget saat menunggu pembayaran; hasil akhir lewat GET.
// =========================================================
func (ctrl *GrantApplicationController) Submit(c *fiber.Ctx) error {
	ws, ok := ctrl.workspace(c)
	if !ok {
		return helper.JsonUnauthorized(c, "", "")
	}

	snap, err := ws.Flow.Start(c.UserContext(), helper.GetRawAccessToken(c))
	switch {
	case errors.Is(err, flow.ErrBusy):
		return helper.JsonError(c, fiber.StatusConflict, err.Error())
	case err != nil:
		return helper.JsonAppError(c, err)
	}

	msg := "payment required"
	if snap.State != flow.PendingPayment {
		msg = "submission in progress"
	}
	if strings.EqualFold(c.Query("wait"), "true") && snap.State == flow.Submitting {
		if err := ws.Flow.Wait(c.UserContext()); err == nil {
			snap = ws.Flow.Snapshot()
			if snap.LastError != nil {
				return helper.JsonAppError(c, snap.LastError)
			}
			return helper.JsonCreated(c, "application submitted", dto.SubmitResponse{State: snap.State, Result: snap.Result})
		}
	}
	return helper.JsonAccepted(c, msg, dto.SubmitResponse{State: snap.State, Payment: snap.Handoff})
}
