package main

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/models/reports"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// reportUserId reads the :userId path param, then ?userId=, then falls back to the caller.
func reportUserId(c *gin.Context) (int, error) {
	if c.Param("userId") != "" {
		return idParam(c, "userId")
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return 0, utils.NewFieldError("userId", "invalid userId %q", raw)
		}
		return id, nil
	}
	return currentUserId(c), nil
}

// reportArgs is the common (user, range) input of the per-user reports.
func reportArgs(c *gin.Context) (int, analysis.RangeRequest, error) {
	userId, err := reportUserId(c)
	if err != nil {
		return 0, analysis.RangeRequest{}, err
	}
	req, err := rangeQuery(c)
	return userId, req, err
}

func dailyAnalysis(c *gin.Context) (*reports.DailyAnalysis, error) {
	userId, req, err := reportArgs(c)
	if err != nil {
		return nil, err
	}
	return reports.GetDailyAnalysis(c.Request.Context(), userId, req)
}

func exportDailyAnalysisHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := dailyAnalysis(c)
		if err != nil {
			respondError(c, "analysis.dailyExport", err)
			return
		}
		var buf bytes.Buffer
		if err := reports.ExportDailyAnalysisExcel(&buf, resp); err != nil {
			respondError(c, "analysis.dailyExport", err)
			return
		}
		name := fmt.Sprintf("daily-analysis-%d-%s-%s.xlsx", resp.UserID, resp.FromDate, resp.ToDate)
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

// targetAnalysisFor serves GetTargetAnalysis. Without ?dims the given defaults are used.
func targetAnalysisFor(defaults ...analysis.DimensionKey) func(c *gin.Context) (*reports.TargetAnalysis, error) {
	return func(c *gin.Context) (*reports.TargetAnalysis, error) {
		userId, req, err := reportArgs(c)
		if err != nil {
			return nil, err
		}
		dims := defaults
		if raw := c.Query("dims"); raw != "" {
			if dims, err = analysis.ParseDimensions(raw); err != nil {
				return nil, err
			}
		}
		if len(dims) == 0 {
			return nil, &analysis.InvalidDimensionError{Key: ""}
		}
		g, err := analysis.ParseGranularity(c.Query("granularity"), analysis.GranularityDay)
		if err != nil {
			return nil, err
		}
		return reports.GetTargetAnalysis(c.Request.Context(), userId, req, dims, g)
	}
}

func callResponseCounts(c *gin.Context) (*reports.CallResponseCounts, error) {
	userId, err := reportUserId(c)
	if err != nil {
		return nil, err
	}
	return reports.GetCallResponseCounts(c.Request.Context(), userId, c.Query("fromDate"), c.Query("toDate"))
}

func callResponseCountsAllUsers(c *gin.Context) ([]*reports.CallResponseCounts, error) {
	users, err := models.GetAllUsers(c.Request.Context())
	if err != nil {
		return nil, err
	}
	out := make([]*reports.CallResponseCounts, 0, len(users))
	for _, u := range users {
		counts, err := reports.GetCallResponseCounts(c.Request.Context(), u.ID, c.Query("fromDate"), c.Query("toDate"))
		if err != nil {
			return nil, err
		}
		out = append(out, counts)
	}
	return out, nil
}

func listInterviewAnalysis(c *gin.Context) ([]reports.InterviewerAnalysis, error) {
	return reports.GetInterviewAnalysis(c.Request.Context())
}

func interviewAnalysisByUser(c *gin.Context) (*reports.InterviewerAnalysis, error) {
	userId, err := idParam(c, "userId")
	if err != nil {
		return nil, err
	}
	return reports.GetInterviewAnalysisByUser(c.Request.Context(), userId)
}

func registerReportRoutes(g *gin.RouterGroup) {
	an := g.Group("/analysis")
	an.GET("/daily", handle("analysis.daily", http.StatusOK, dailyAnalysis))
	an.GET("/daily-analysis/:userId", handle("analysis.dailyByUser", http.StatusOK, dailyAnalysis))
	an.GET("/daily-analysis/:userId/export", exportDailyAnalysisHandler())
	an.GET("/target/:userId", handle("analysis.target", http.StatusOK, targetAnalysisFor(analysis.DimCalls, analysis.DimJds)))

	cs := g.Group("/cosheet")
	cs.GET("/stats/all", handle("cosheet.statsAll", http.StatusOK, callResponseCountsAllUsers))
	cs.GET("/stats/user/:userId", handle("cosheet.statsUser", http.StatusOK, callResponseCounts))
	cs.GET("/stats/user/jd/:userId", handle("cosheet.statsJd", http.StatusOK, targetAnalysisFor(analysis.DimJds)))
	cs.GET("/internship-stats/:userId", handle("cosheet.internshipStats", http.StatusOK, func(c *gin.Context) (*reports.InternshipStats, error) {
		userId, req, err := reportArgs(c)
		if err != nil {
			return nil, err
		}
		return reports.GetInternshipStats(c.Request.Context(), userId, req)
	}))

	rd := g.Group("/resumedetails")
	rd.GET("/analysis/:userId", handle("resumedetails.perFollowUp", http.StatusOK, func(c *gin.Context) ([]reports.FollowUpResumeAnalysis, error) {
		userId, req, err := reportArgs(c)
		if err != nil {
			return nil, err
		}
		return reports.GetResumeAnalysisPerFollowUp(c.Request.Context(), userId, req, c.Query("period"))
	}))
	rd.GET("/total-analysis/:userId", handle("resumedetails.total", http.StatusOK, func(c *gin.Context) (*reports.ResumeFollowUpAnalysis, error) {
		userId, req, err := reportArgs(c)
		if err != nil {
			return nil, err
		}
		return reports.GetResumeFollowUpAnalysis(c.Request.Context(), userId, req, c.Query("period"))
	}))
	rd.GET("/analysis-per-cosheet/:userId", handle("resumedetails.perCoSheet", http.StatusOK, func(c *gin.Context) ([]reports.CoSheetResumeAnalysis, error) {
		userId, req, err := reportArgs(c)
		if err != nil {
			return nil, err
		}
		return reports.GetResumeAnalysisPerCoSheet(c.Request.Context(), userId, req, c.Query("period"))
	}))

	sr := g.Group("/studentresume")
	sr.GET("/work-analysis", handle("studentresume.workAnalysis", http.StatusOK, func(c *gin.Context) ([]reports.UserTargetAnalysis, error) {
		userId, req, err := reportArgs(c)
		if err != nil {
			return nil, err
		}
		return reports.GetUserTargetAnalysis(c.Request.Context(), userId, req)
	}))
	sr.GET("/resumes-achieved", handle("studentresume.resumesAchieved", http.StatusOK, targetAnalysisFor(analysis.DimResumes)))
	sr.GET("/interviews-achieved", handle("studentresume.interviewsAchieved", http.StatusOK, targetAnalysisFor(analysis.DimInterviews)))
	sr.GET("/college", handle("studentresume.college", http.StatusOK, func(c *gin.Context) ([]reports.CollegeAnalysis, error) {
		userId, err := reportUserId(c)
		if err != nil {
			return nil, err
		}
		return reports.GetCollegeAnalysis(c.Request.Context(), userId)
	}))
	sr.GET("/daily-calendar", handle("studentresume.dailyCalendar", http.StatusOK, func(c *gin.Context) ([]reports.CalendarDay, error) {
		userId, req, err := reportArgs(c)
		if err != nil {
			return nil, err
		}
		return reports.GetDailyCalendarAnalysis(c.Request.Context(), userId, req)
	}))
	sr.GET("/user-work", handle("studentresume.userWork", http.StatusOK, func(c *gin.Context) ([]reports.WorkAnalysis, error) {
		return reports.GetUserWorkAnalysis(c.Request.Context(), c.Query("fromDate"), c.Query("toDate"))
	}))
	sr.GET("/response", handle("studentresume.response", http.StatusOK, func(c *gin.Context) (*reports.RAnalysis, error) {
		return reports.GetRAnalysis(c.Request.Context(), c.Query("fromDate"), c.Query("toDate"))
	}))
}
