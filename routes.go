package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/middlewares"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"gorm.io/gorm"
)

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError maps validation problems to 400, missing records to 404 and
// everything else to a logged 500.
func respondError(c *gin.Context, funcName string, err error) {
	var (
		rangeErr *analysis.InvalidRangeError
		dimErr   *analysis.InvalidDimensionError
		verrs    validator.ValidationErrors
		syntax   *json.SyntaxError
		typeErr  *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
	case utils.IsValidationError(err), errors.As(err, &rangeErr), errors.As(err, &dimErr),
		errors.As(err, &syntax), errors.As(err, &typeErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, models.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, models.ErrUserDisabled):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	default:
		ctx := c.Request.Context()
		userId, _ := utils.GetUserIdFromContext(ctx)
		name, _ := utils.GetUserNameFromContext(ctx)
		email, _ := utils.GetUserEmailFromContext(ctx)
		userTypeId, _ := utils.GetUserTypeIdFromContext(ctx)
		config.LogError(config.GetLogger(), "server.go", funcName, c.Request.URL.Path,
			map[string]any{"user_id": userId, "user_name": name, "email": email, "user_type_id": userTypeId}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
	}
}

func idParam(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, utils.NewFieldError(name, "invalid %s %q", name, c.Param(name))
	}
	return id, nil
}

func bindJSON(c *gin.Context, dest any) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return err
		}
		return utils.NewValidationError("invalid request: %v", err)
	}
	return nil
}

func rangeQuery(c *gin.Context) (analysis.RangeRequest, error) {
	var req analysis.RangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return req, utils.NewValidationError("invalid query: %v", err)
	}
	return req, nil
}

// currentUserId is the authenticated caller; RequireAuth guarantees it is set.
func currentUserId(c *gin.Context) int {
	id, _ := utils.GetUserIdFromContext(c.Request.Context())
	return id
}

// handle runs fn and writes its result with status, or the mapped error.
func handle[T any](funcName string, status int, fn func(c *gin.Context) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := fn(c)
		if err != nil {
			respondError(c, funcName, err)
			return
		}
		respondOK(c, status, out)
	}
}

func registerLookupRoutes[T any, PT models.LookupModel[T]](g *gin.RouterGroup, name string) {
	admin := middlewares.RequireAdmin()
	g.POST("/add", admin, handle(name+".add", http.StatusCreated, func(c *gin.Context) (*T, error) {
		var input models.NewLookup
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.CreateLookup[T, PT](c.Request.Context(), &input)
	}))
	g.GET("/fetchAll", handle(name+".fetchAll", http.StatusOK, func(c *gin.Context) ([]*T, error) {
		return models.ListLookups[T](c.Request.Context())
	}))
	g.GET("/fetchSingle/:id", handle(name+".fetchSingle", http.StatusOK, func(c *gin.Context) (*T, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.GetLookup[T, PT](c.Request.Context(), id)
	}))
	g.PUT("/update/:id", admin, handle(name+".update", http.StatusOK, func(c *gin.Context) (*T, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		var input models.NewLookup
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.UpdateLookup[T, PT](c.Request.Context(), id, &input)
	}))
	g.DELETE("/delete/:id", admin, handle(name+".delete", http.StatusOK, func(c *gin.Context) (*T, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.DeleteLookup[T, PT](c.Request.Context(), id)
	}))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

func registerUserRoutes(public, g *gin.RouterGroup) {
	admin := middlewares.RequireAdmin()

	public.POST("/users/login", handle("users.login", http.StatusOK, func(c *gin.Context) (*models.LoginInfo, error) {
		var req loginRequest
		if err := bindJSON(c, &req); err != nil {
			return nil, err
		}
		return models.Login(c.Request.Context(), req.Email, req.Password)
	}))

	users := g.Group("/users")
	users.POST("/logout", handle("users.logout", http.StatusOK, func(c *gin.Context) (bool, error) {
		return models.Logout(c.Request.Context())
	}))
	users.POST("/change-password", handle("users.changePassword", http.StatusOK, func(c *gin.Context) (*models.User, error) {
		var req changePasswordRequest
		if err := bindJSON(c, &req); err != nil {
			return nil, err
		}
		return models.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword)
	}))
	users.GET("/me", handle("users.me", http.StatusOK, func(c *gin.Context) (*models.User, error) {
		return models.GetUser(c.Request.Context(), currentUserId(c))
	}))
	users.POST("/photo", userPhotoUploadHandler())
	users.GET("/list", handle("users.list", http.StatusOK, func(c *gin.Context) ([]*models.User, error) {
		return models.GetAllUsers(c.Request.Context())
	}))
	users.GET("/list/:id", handle("users.get", http.StatusOK, func(c *gin.Context) (*models.User, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.GetUser(c.Request.Context(), id)
	}))
	users.POST("/add", admin, handle("users.add", http.StatusCreated, func(c *gin.Context) (*models.User, error) {
		var input models.NewUser
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.CreateUser(c.Request.Context(), &input)
	}))
	users.PUT("/update/:id", admin, handle("users.update", http.StatusOK, func(c *gin.Context) (*models.User, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		var input models.UpdateUserInput
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.UpdateUser(c.Request.Context(), id, &input)
	}))
	users.DELETE("/delete/:id", admin, handle("users.delete", http.StatusOK, func(c *gin.Context) (*models.User, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.DeleteUser(c.Request.Context(), id)
	}))

	registerLookupRoutes[models.Gender](g.Group("/genders"), "genders")
	registerLookupRoutes[models.UserType](g.Group("/usertypes"), "usertypes")
	registerLookupRoutes[models.Position](g.Group("/positions"), "positions")
}

func registerCoSheetRoutes(g *gin.RouterGroup) {
	cs := g.Group("/cosheet")
	cs.POST("/add", handle("cosheet.add", http.StatusCreated, func(c *gin.Context) ([]models.RowResult[models.CoSheet], error) {
		var inputs []*models.NewCoSheet
		if err := bindJSON(c, &inputs); err != nil {
			return nil, err
		}
		return models.CreateCoSheets(c.Request.Context(), inputs, currentUserId(c))
	}))
	cs.POST("/import", handle("cosheet.import", http.StatusCreated, func(c *gin.Context) ([]models.RowResult[models.CoSheet], error) {
		file, err := c.FormFile("file")
		if err != nil {
			return nil, utils.NewFieldError("file", "xlsx file is required")
		}
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return models.ImportCoSheets(c.Request.Context(), f, currentUserId(c))
	}))
	cs.PUT("/update/:id", handle("cosheet.updateConnect", http.StatusOK, func(c *gin.Context) (*models.CoSheet, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		var input models.ConnectUpdate
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.UpdateConnectFields(c.Request.Context(), id, &input)
	}))
	cs.GET("/list", handle("cosheet.list", http.StatusOK, func(c *gin.Context) (*models.Page[models.CoSheet], error) {
		var filter models.CoSheetFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			return nil, utils.NewValidationError("invalid query: %v", err)
		}
		return models.ListCoSheets(c.Request.Context(), filter)
	}))
	cs.GET("/list/jdsent", handle("cosheet.listJdSent", http.StatusOK, func(c *gin.Context) ([]*models.CoSheet, error) {
		req, err := rangeQuery(c)
		if err != nil {
			return nil, err
		}
		userId, _ := strconv.Atoi(c.Query("userId"))
		return models.ListJdSentCoSheets(c.Request.Context(), userId, req)
	}))
	cs.GET("/list/connected/:userId", handle("cosheet.listConnected", http.StatusOK, func(c *gin.Context) ([]*models.CoSheet, error) {
		userId, err := idParam(c, "userId")
		if err != nil {
			return nil, err
		}
		req, err := rangeQuery(c)
		if err != nil {
			return nil, err
		}
		return models.ListConnectedCoSheets(c.Request.Context(), userId, req)
	}))
	cs.GET("/list/:id", handle("cosheet.get", http.StatusOK, func(c *gin.Context) (*models.CoSheet, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.GetCoSheet(c.Request.Context(), id)
	}))
	cs.POST("/:id/send-jd", handle("cosheet.sendJD", http.StatusAccepted, func(c *gin.Context) (*models.MailStatus, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		var input models.SendJDInput
		if c.Request.ContentLength > 0 {
			if err := bindJSON(c, &input); err != nil {
				return nil, err
			}
		}
		if _, err := models.RequestJDSend(c.Request.Context(), id, &input); err != nil {
			return nil, err
		}
		return models.GetMailStatus(c.Request.Context(), models.MailReferenceCoSheet, id)
	}))
	cs.DELETE("/cosheet/:id", handle("cosheet.delete", http.StatusOK, func(c *gin.Context) (*models.CoSheet, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.DeleteCoSheet(c.Request.Context(), id)
	}))

	rd := g.Group("/resumedetails")
	rd.PUT("/update/:id", handle("resumedetails.update", http.StatusOK, func(c *gin.Context) (*models.CoSheet, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		var input models.ResumeUpdate
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.UpdateResumeFields(c.Request.Context(), id, &input)
	}))
	rd.GET("/followup/:userId", handle("resumedetails.followUp", http.StatusOK, func(c *gin.Context) ([]*models.CoSheet, error) {
		userId, err := idParam(c, "userId")
		if err != nil {
			return nil, err
		}
		return models.ListFollowUpData(c.Request.Context(), userId)
	}))
}

func withOwnerNames(c *gin.Context, targets ...*models.MyTarget) error {
	ids := make([]int, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.UserId)
	}
	names, err := middlewares.UserNames(c.Request.Context(), utils.UniqueSlice(ids))
	if err != nil {
		return err
	}
	for _, t := range targets {
		t.UserName = names[t.UserId]
	}
	return nil
}

func registerTargetRoutes(g *gin.RouterGroup) {
	mt := g.Group("/mytarget")
	mt.POST("/add", handle("mytarget.add", http.StatusCreated, func(c *gin.Context) ([]*models.MyTarget, error) {
		var input models.NewTargetRange
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.AddTargets(c.Request.Context(), &input)
	}))
	mt.POST("/upsert", handle("mytarget.upsert", http.StatusOK, func(c *gin.Context) (*models.MyTarget, error) {
		var input models.NewTarget
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.UpsertTarget(c.Request.Context(), &input)
	}))
	mt.GET("/list", handle("mytarget.list", http.StatusOK, func(c *gin.Context) ([]*models.MyTarget, error) {
		var userId *int
		if raw := c.Query("userId"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return nil, utils.NewFieldError("userId", "invalid userId %q", raw)
			}
			userId = &id
		}
		targets, err := models.ListTargets(c.Request.Context(), userId)
		if err != nil {
			return nil, err
		}
		return targets, withOwnerNames(c, targets...)
	}))
	mt.GET("/list/:id", handle("mytarget.get", http.StatusOK, func(c *gin.Context) (*models.MyTarget, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.GetTarget(c.Request.Context(), id)
	}))
	mt.PUT("/update/:id", handle("mytarget.update", http.StatusOK, func(c *gin.Context) (*models.MyTarget, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		var input models.TargetFields
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.UpdateTarget(c.Request.Context(), id, &input)
	}))
	mt.DELETE("/delete/:id", handle("mytarget.delete", http.StatusOK, func(c *gin.Context) (*models.MyTarget, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.DeleteTarget(c.Request.Context(), id)
	}))
}

func registerResumeRoutes(g *gin.RouterGroup) {
	sr := g.Group("/studentresume")
	sr.POST("/create", handle("studentresume.create", http.StatusCreated, func(c *gin.Context) ([]models.RowResult[models.StudentResume], error) {
		var inputs []*models.NewStudentResume
		if err := bindJSON(c, &inputs); err != nil {
			return nil, err
		}
		return models.CreateStudentResumes(c.Request.Context(), inputs, currentUserId(c))
	}))
	sr.PUT("/update/:id", handle("studentresume.update", http.StatusOK, func(c *gin.Context) (*models.StudentResume, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		var input models.UpdateStudentResumeInput
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.UpdateStudentResume(c.Request.Context(), id, &input)
	}))
	sr.PUT("/interview/:id", handle("studentresume.interviewScore", http.StatusOK, func(c *gin.Context) (*models.StudentResume, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		var input models.InterviewScoreInput
		if err := bindJSON(c, &input); err != nil {
			return nil, err
		}
		return models.UpdateInterviewScore(c.Request.Context(), id, &input)
	}))
	sr.GET("/list", handle("studentresume.list", http.StatusOK, func(c *gin.Context) ([]*models.StudentResume, error) {
		return models.ListStudentResumes(c.Request.Context())
	}))
	sr.GET("/list/user/:userId", handle("studentresume.listByUser", http.StatusOK, func(c *gin.Context) ([]*models.StudentResume, error) {
		userId, err := idParam(c, "userId")
		if err != nil {
			return nil, err
		}
		return models.ListStudentResumesByUser(c.Request.Context(), userId)
	}))
	sr.GET("/list/user/future/:userId", handle("studentresume.listUpcoming", http.StatusOK, func(c *gin.Context) ([]*models.StudentResume, error) {
		userId, err := idParam(c, "userId")
		if err != nil {
			return nil, err
		}
		return models.ListUpcomingInterviews(c.Request.Context(), userId)
	}))
	sr.DELETE("/delete/:id", handle("studentresume.delete", http.StatusOK, func(c *gin.Context) (*models.StudentResume, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.DeleteStudentResume(c.Request.Context(), id)
	}))
	sr.POST("/send-mail/:id", handle("studentresume.sendMail", http.StatusAccepted, func(c *gin.Context) (*models.MailStatus, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		if _, err := models.RequestStudentMail(c.Request.Context(), id); err != nil {
			return nil, err
		}
		return models.GetMailStatus(c.Request.Context(), models.MailReferenceStudentResume, id)
	}))
}

// interviewDetailResponse keeps the "null data when missing" contract of GET /interviewdetails/:id.
type interviewDetailResponse struct {
	Created bool                    `json:"created"`
	Data    *models.InterviewDetail `json:"interview"`
}

func registerInterviewRoutes(g *gin.RouterGroup) {
	details := g.Group("/interviewdetails")
	details.POST("/upsert", func(c *gin.Context) {
		var input models.InterviewDetailInput
		if err := bindJSON(c, &input); err != nil {
			respondError(c, "interviewdetails.upsert", err)
			return
		}
		detail, created, err := models.UpsertInterviewDetail(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "interviewdetails.upsert", err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		respondOK(c, status, interviewDetailResponse{Created: created, Data: detail})
	})
	details.GET("/list", handle("interviewdetails.list", http.StatusOK, func(c *gin.Context) ([]*models.InterviewDetail, error) {
		return models.ListInterviewDetails(c.Request.Context())
	}))
	details.GET("/:interviewID", handle("interviewdetails.get", http.StatusOK, func(c *gin.Context) (*models.InterviewDetail, error) {
		id, err := idParam(c, "interviewID")
		if err != nil {
			return nil, err
		}
		return models.GetInterviewDetail(c.Request.Context(), id)
	}))

	ia := g.Group("/interviewanalysis")
	ia.POST("/upsert", func(c *gin.Context) {
		var input models.InterviewAnalysisInput
		if err := bindJSON(c, &input); err != nil {
			respondError(c, "interviewanalysis.upsert", err)
			return
		}
		row, created, err := models.UpsertInterviewAnalysis(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "interviewanalysis.upsert", err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		respondOK(c, status, row)
	})
	ia.GET("/list", handle("interviewanalysis.list", http.StatusOK, listInterviewAnalysis))
	ia.GET("/:userId", handle("interviewanalysis.byUser", http.StatusOK, interviewAnalysisByUser))
}

func registerMailRoutes(g *gin.RouterGroup) {
	mail := g.Group("/mail")
	mail.GET("/status/:referenceType/:referenceId", handle("mail.status", http.StatusOK, func(c *gin.Context) (*models.MailStatus, error) {
		refId, err := idParam(c, "referenceId")
		if err != nil {
			return nil, err
		}
		return models.GetMailStatus(c.Request.Context(), c.Param("referenceType"), refId)
	}))
	mail.GET("/outbox/:id", middlewares.RequireAdmin(), handle("mail.outbox", http.StatusOK, func(c *gin.Context) (*models.MailOutbox, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.GetMailOutbox(c.Request.Context(), id)
	}))
	mail.POST("/outbox/:id/reprocess", middlewares.RequireAdmin(), handle("mail.reprocess", http.StatusOK, func(c *gin.Context) (*models.MailStatus, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return models.ReprocessMailOutbox(c.Request.Context(), id)
	}))
}
