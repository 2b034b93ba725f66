package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"gorm.io/gorm"
)

// CoSheet is one college on a user's call sheet, carrying the call, JD and
// resume follow-up state of that college.
type CoSheet struct {
	ID              int     `gorm:"primary_key" json:"id"`
	Sr              *int    `json:"sr"`
	CollegeName     *string `gorm:"size:255;index" json:"collegeName"`
	CoordinatorName *string `gorm:"size:255" json:"coordinatorName"`
	MobileNumber    *string `gorm:"size:20" json:"mobileNumber"`
	EmailId         *string `gorm:"size:255" json:"emailId"`
	City            *string `gorm:"size:100" json:"city"`
	State           *string `gorm:"size:100" json:"state"`
	Course          *string `gorm:"size:100" json:"course"`
	// connect
	ConnectedBy      *string    `gorm:"size:100" json:"connectedBy"`
	DateOfConnect    *time.Time `gorm:"index:idx_cosheet_user_connect,priority:2" json:"dateOfConnect"`
	CallResponse     *string    `gorm:"size:50" json:"callResponse"`
	InternshipType   *string    `gorm:"size:50" json:"internshipType"`
	DetailedResponse *string    `gorm:"type:text" json:"detailedResponse"`
	JdSentAt         *time.Time `gorm:"index:idx_cosheet_user_jd,priority:2" json:"jdSentAt"`
	// resume follow-up
	FollowUpBy           *string    `gorm:"size:100" json:"followUpBy"`
	FollowUpDate         *time.Time `json:"followUpDate"`
	FollowUpResponse     *string    `gorm:"size:50" json:"followUpResponse"`
	ResumeDate           *time.Time `gorm:"index:idx_cosheet_user_resume,priority:2" json:"resumeDate"`
	ResumeCount          *int       `json:"resumeCount"`
	ExpectedResponseDate *time.Time `json:"expectedResponseDate"`
	UserId               *int       `gorm:"index:idx_cosheet_user_connect,priority:1;index:idx_cosheet_user_jd,priority:1;index:idx_cosheet_user_resume,priority:1" json:"userId"`
	IsActive             bool       `gorm:"not null;default:true" json:"isActive"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (c CoSheet) GetCursor() string {
	return fmt.Sprint(c.ID)
}

type CollegeDetails struct {
	Sr              *int    `json:"sr"`
	CollegeName     *string `json:"collegeName"`
	CoordinatorName *string `json:"coordinatorName"`
	MobileNumber    *string `json:"mobileNumber"`
	EmailId         *string `json:"emailId"`
	City            *string `json:"city"`
	State           *string `json:"state"`
	Course          *string `json:"course"`
}

type ConnectDetails struct {
	ConnectedBy      *string `json:"connectedBy"`
	DateOfConnect    *string `json:"dateOfConnect"`
	CallResponse     *string `json:"callResponse"`
	InternshipType   *string `json:"internshipType"`
	DetailedResponse *string `json:"detailedResponse"`
}

// NewCoSheet accepts the nested {collegeDetails, connect} layout as well as flat fields.
// Nested values win.
type NewCoSheet struct {
	CollegeDetails
	ConnectDetails
	NestedCollege *CollegeDetails `json:"collegeDetails"`
	NestedConnect *ConnectDetails `json:"connect"`
	UserId        *int            `json:"userId"`
}

type ConnectUpdate struct {
	ConnectedBy      *string `json:"connectedBy"`
	DateOfConnect    *string `json:"dateOfConnect"`
	CallResponse     *string `json:"callResponse"`
	InternshipType   *string `json:"internshipType"`
	DetailedResponse *string `json:"detailedResponse"`
}

type ResumeUpdate struct {
	FollowUpBy           *string `json:"followUpBy"`
	FollowUpDate         *string `json:"followUpDate"`
	FollowUpResponse     *string `json:"followUpResponse"`
	ResumeDate           *string `json:"resumeDate"`
	ResumeCount          *int    `json:"resumeCount"`
	ExpectedResponseDate *string `json:"expectedResponseDate"`
}

type CoSheetFilter struct {
	UserId      *int   `form:"userId"`
	CollegeName string `form:"collegeName"`
	Limit       int    `form:"limit"`
	After       string `form:"after"`
}

func pick[T any](nested *T, flat *T) *T {
	if nested != nil {
		return nested
	}
	return flat
}

func (input *NewCoSheet) toModel(defaultUserId int) (*CoSheet, error) {
	college := input.NestedCollege
	if college == nil {
		college = &CollegeDetails{}
	}
	connect := input.NestedConnect
	if connect == nil {
		connect = &ConnectDetails{}
	}

	c := &CoSheet{
		Sr:               pick(college.Sr, input.CollegeDetails.Sr),
		CollegeName:      trimmedPtr(pick(college.CollegeName, input.CollegeDetails.CollegeName)),
		CoordinatorName:  trimmedPtr(pick(college.CoordinatorName, input.CollegeDetails.CoordinatorName)),
		City:             trimmedPtr(pick(college.City, input.CollegeDetails.City)),
		State:            trimmedPtr(pick(college.State, input.CollegeDetails.State)),
		Course:           trimmedPtr(pick(college.Course, input.CollegeDetails.Course)),
		ConnectedBy:      trimmedPtr(pick(connect.ConnectedBy, input.ConnectDetails.ConnectedBy)),
		CallResponse:     trimmedPtr(pick(connect.CallResponse, input.ConnectDetails.CallResponse)),
		InternshipType:   trimmedPtr(pick(connect.InternshipType, input.ConnectDetails.InternshipType)),
		DetailedResponse: trimmedPtr(pick(connect.DetailedResponse, input.ConnectDetails.DetailedResponse)),
		IsActive:         true,
	}
	var err error
	if c.MobileNumber, err = normalizePhone("mobileNumber", pick(college.MobileNumber, input.CollegeDetails.MobileNumber)); err != nil {
		return nil, err
	}
	if c.EmailId, err = normalizeEmail("emailId", pick(college.EmailId, input.CollegeDetails.EmailId)); err != nil {
		return nil, err
	}
	if c.DateOfConnect, err = parseTimestamp("dateOfConnect", pick(connect.DateOfConnect, input.ConnectDetails.DateOfConnect)); err != nil {
		return nil, err
	}
	if input.UserId != nil && *input.UserId != 0 {
		c.UserId = input.UserId
	} else if defaultUserId != 0 {
		c.UserId = &defaultUserId
	}
	return c, nil
}

// CreateCoSheets inserts every row independently and reports a result per row.
// Rows without a userId belong to defaultUserId.
func CreateCoSheets(ctx context.Context, inputs []*NewCoSheet, defaultUserId int) ([]RowResult[CoSheet], error) {
	if len(inputs) == 0 {
		return nil, utils.NewValidationError("No data provided")
	}
	db := config.GetDB()
	results := make([]RowResult[CoSheet], 0, len(inputs))
	for _, input := range inputs {
		if input == nil {
			results = append(results, RowResult[CoSheet]{Error: "empty row"})
			continue
		}
		record, err := input.toModel(defaultUserId)
		if err == nil && record.UserId != nil {
			err = utils.ValidateReference[User](ctx, *record.UserId, "User ID is not registered")
		}
		if err == nil {
			err = db.WithContext(ctx).Create(record).Error
		}
		if err != nil {
			if !utils.IsValidationError(err) {
				config.LogError(config.GetLogger(), "CoSheet", "CreateCoSheets", "create row", input, err)
			}
			results = append(results, RowResult[CoSheet]{Error: err.Error()})
			continue
		}
		results = append(results, RowResult[CoSheet]{Success: true, Data: record})
	}
	return results, nil
}

func GetCoSheet(ctx context.Context, id int) (*CoSheet, error) {
	return utils.FetchSingleModel[CoSheet](ctx, id)
}

// ListCoSheets pages active rows by id.
func ListCoSheets(ctx context.Context, filter CoSheetFilter) (*Page[CoSheet], error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&CoSheet{}).Where("is_active = ?", true)
	if filter.UserId != nil {
		dbCtx = dbCtx.Where("user_id = ?", *filter.UserId)
	}
	if name := strings.TrimSpace(filter.CollegeName); name != "" {
		dbCtx = dbCtx.Where("college_name LIKE ?", "%"+name+"%")
	}
	var after *string
	if filter.After != "" {
		after = &filter.After
	}
	return FetchPageCursor[CoSheet](dbCtx, filter.Limit, after, "id")
}

// UpdateConnectFields updates the call outcome of a row.
func UpdateConnectFields(ctx context.Context, id int, input *ConnectUpdate) (*CoSheet, error) {
	record, err := GetCoSheet(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if input.ConnectedBy != nil {
		updates["connected_by"] = trimmedPtr(input.ConnectedBy)
	}
	if input.DateOfConnect != nil {
		v, err := parseTimestamp("dateOfConnect", input.DateOfConnect)
		if err != nil {
			return nil, err
		}
		updates["date_of_connect"] = v
	}
	if input.CallResponse != nil {
		v := trimmedPtr(input.CallResponse)
		if v != nil {
			if _, ok := analysis.ClassifyOutcome(mustDimension(analysis.DimCalls), *v); !ok {
				return nil, utils.NewFieldError("callResponse", "Invalid callResponse. Allowed: %s", allowedOutcomes(analysis.CallCategories))
			}
			lower := analysis.NormalizeOutcome(*v)
			v = &lower
		}
		updates["call_response"] = v
	}
	if input.InternshipType != nil {
		updates["internship_type"] = trimmedPtr(input.InternshipType)
	}
	if input.DetailedResponse != nil {
		updates["detailed_response"] = trimmedPtr(input.DetailedResponse)
	}
	if len(updates) == 0 {
		return nil, utils.NewValidationError("No fields to update")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetCoSheet(ctx, id)
}

// UpdateResumeFields updates the follow-up state of a row.
func UpdateResumeFields(ctx context.Context, id int, input *ResumeUpdate) (*CoSheet, error) {
	record, err := GetCoSheet(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if input.FollowUpBy != nil {
		updates["follow_up_by"] = trimmedPtr(input.FollowUpBy)
	}
	if input.FollowUpResponse != nil {
		v := trimmedPtr(input.FollowUpResponse)
		if v != nil {
			if _, ok := analysis.ClassifyOutcome(mustDimension(analysis.DimResumes), *v); !ok {
				return nil, utils.NewFieldError("followUpResponse", "Invalid followUpResponse. Allowed: %s", allowedOutcomes(analysis.FollowUpCategories))
			}
			lower := analysis.NormalizeOutcome(*v)
			v = &lower
		}
		updates["follow_up_response"] = v
	}
	dates := []struct {
		field  string
		column string
		value  *string
	}{
		{"followUpDate", "follow_up_date", input.FollowUpDate},
		{"resumeDate", "resume_date", input.ResumeDate},
		{"expectedResponseDate", "expected_response_date", input.ExpectedResponseDate},
	}
	for _, d := range dates {
		if d.value == nil {
			continue
		}
		v, err := parseTimestamp(d.field, d.value)
		if err != nil {
			return nil, err
		}
		updates[d.column] = v
	}
	if input.ResumeCount != nil {
		if *input.ResumeCount < 0 {
			return nil, utils.NewFieldError("resumeCount", "must not be negative")
		}
		updates["resume_count"] = *input.ResumeCount
	}
	if len(updates) == 0 {
		return nil, utils.NewValidationError("No resume fields to update")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetCoSheet(ctx, id)
}

// DeleteCoSheet deactivates the row; its history stays in the analytics.
func DeleteCoSheet(ctx context.Context, id int) (*CoSheet, error) {
	record, err := GetCoSheet(ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(record).UpdateColumn("is_active", false).Error; err != nil {
		return nil, err
	}
	record.IsActive = false
	return record, nil
}

// ListConnectedCoSheets returns the user's connected calls in the range, oldest first.
// The range defaults to the current month.
func ListConnectedCoSheets(ctx context.Context, userId int, req analysis.RangeRequest) ([]*CoSheet, error) {
	r, err := analysis.ResolveRange(req, analysis.DefaultCurrentMonth, config.Now())
	if err != nil {
		return nil, err
	}
	from, to := analysis.DayBounds(r.Start, r.End, config.Location())

	db := config.GetDB()
	var results []*CoSheet
	if err := db.WithContext(ctx).
		Where("user_id = ? AND LOWER(TRIM(call_response)) = ?", userId, "connected").
		Where("date_of_connect >= ? AND date_of_connect < ?", from.UTC(), to.UTC()).
		Order("date_of_connect").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListJdSentCoSheets returns the rows whose JD went out in the range (default current month).
func ListJdSentCoSheets(ctx context.Context, userId int, req analysis.RangeRequest) ([]*CoSheet, error) {
	r, err := analysis.ResolveRange(req, analysis.DefaultCurrentMonth, config.Now())
	if err != nil {
		return nil, err
	}
	from, to := analysis.DayBounds(r.Start, r.End, config.Location())

	db := config.GetDB()
	var results []*CoSheet
	if err := db.WithContext(ctx).
		Where("user_id = ? AND jd_sent_at >= ? AND jd_sent_at < ?", userId, from.UTC(), to.UTC()).
		Order("jd_sent_at").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListFollowUpData returns every row of the user ordered by resume date.
func ListFollowUpData(ctx context.Context, userId int) ([]*CoSheet, error) {
	db := config.GetDB()
	var results []*CoSheet
	if err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("resume_date").Order("id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return results, nil
}

// latestCoSheetId is the newest CoSheet of the user, nil when there is none.
func latestCoSheetId(ctx context.Context, tx *gorm.DB, userId int) (*int, error) {
	var c CoSheet
	err := tx.WithContext(ctx).Select("id").Where("user_id = ?", userId).Order("created_at DESC").Order("id DESC").Take(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c.ID, nil
}

type SendJDInput struct {
	// Email overrides the coordinator address stored on the row.
	Email *string `json:"email"`
}

// RequestJDSend queues the JD mail of a CoSheet. jd_sent_at is written by the
// mail workflow after the mail actually went out.
func RequestJDSend(ctx context.Context, id int, input *SendJDInput) (*MailOutbox, error) {
	release, err := config.ObtainLock(ctx, fmt.Sprintf("jd-send:%d", id), 10*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	record, err := GetCoSheet(ctx, id)
	if err != nil {
		return nil, err
	}
	recipient := record.EmailId
	if input != nil && input.Email != nil && strings.TrimSpace(*input.Email) != "" {
		recipient = input.Email
	}
	email, err := normalizeEmail("email", recipient)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, utils.NewFieldError("email", "college email is required to send the JD")
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	rec := MailOutbox{
		Kind:           MailKindJD,
		ReferenceType:  MailReferenceCoSheet,
		ReferenceId:    record.ID,
		Recipient:      *email,
		Subject:        settings.JD.Subject,
		Body:           jdMail(utils.DereferencePtr(record.CoordinatorName), utils.DereferencePtr(record.CollegeName)),
		AttachmentKey:  utils.NilIfEmpty(settings.JD.ObjectKey),
		AttachmentName: utils.NilIfEmpty(settings.JD.FileName),
	}
	if settings.JD.Bucket != "" {
		rec.AttachmentBucket = &settings.JD.Bucket
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return EnqueueMail(ctx, tx, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkJDSent records the send time once; later calls keep the first timestamp.
func MarkJDSent(ctx context.Context, tx *gorm.DB, id int, sentAt time.Time) error {
	res := tx.WithContext(ctx).Model(&CoSheet{}).
		Where("id = ? AND jd_sent_at IS NULL", id).
		UpdateColumn("jd_sent_at", sentAt.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.WithContext(ctx).Model(&CoSheet{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return utils.ErrorRecordNotFound
		}
	}
	return nil
}

func mustDimension(key analysis.DimensionKey) analysis.Dimension {
	d, err := analysis.LookupDimension(key)
	if err != nil {
		panic(err)
	}
	return d
}

func allowedOutcomes(categories []analysis.Category) string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Outcome
	}
	return strings.Join(names, ", ")
}
