package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	InternshipTypes = []string{"fulltime", "parttime", "sip", "liveproject", "wip", "others"}
	Courses         = []string{"mba", "pgdm", "mba+pgdm", "bba/bcom", "engineering", "other"}
	// SelectionStatuses are the values of the score card on a resume.
	SelectionStatuses = []string{"selected", "not selected", "on hold", "not answered / busy", "not interested"}
)

// StudentResume is one student resume received from a college, with its interview score card.
type StudentResume struct {
	ID             int        `gorm:"primary_key" json:"id"`
	Sr             *int       `json:"sr"`
	ResumeDate     *time.Time `gorm:"index:idx_resume_user_date,priority:2" json:"resumeDate"`
	CollegeName    *string    `gorm:"size:255;index" json:"collegeName"`
	Course         *string    `gorm:"size:50" json:"course"`
	InternshipType *string    `gorm:"size:50" json:"internshipType"`
	FollowupBy     *string    `gorm:"size:100;index" json:"followupBy"`
	StudentName    *string    `gorm:"size:255" json:"studentName"`
	MobileNumber   *string    `gorm:"size:20" json:"mobileNumber"`
	EmailId        *string    `gorm:"size:255" json:"emailId"`
	Domain         *string    `gorm:"size:100" json:"domain"`
	InterviewDate  *time.Time `gorm:"index:idx_resume_user_interview,priority:2" json:"interviewDate"`
	InterviewTime  *string    `gorm:"size:8" json:"interviewTime"`
	// score card
	InterviewedBy        *string          `gorm:"size:100" json:"interviewedBy"`
	KnowledgeScore       *int             `json:"knowledgeScore"`
	ApproachScore        *int             `json:"approachScore"`
	SkillsScore          *int             `json:"skillsScore"`
	OtherScore           *int             `json:"otherScore"`
	TotalAverageScore    *decimal.Decimal `gorm:"type:decimal(5,2)" json:"totalAverageScore"`
	FinalSelectionStatus *string          `gorm:"size:50" json:"finalSelectionStatus"`
	Comment              *string          `gorm:"type:text" json:"comment"`

	CoSheetId        *int       `gorm:"index" json:"coSheetId"`
	CoSheet          *CoSheet   `gorm:"foreignKey:CoSheetId" json:"coSheet,omitempty"`
	DateOfOnboarding *time.Time `json:"dateOfOnboarding"`
	UserId           *int       `gorm:"index:idx_resume_user_date,priority:1;index:idx_resume_user_interview,priority:1" json:"userId"`
	MailSentAt       *time.Time `json:"mailSentAt"`
	IsActive         bool       `gorm:"not null;default:true" json:"isActive"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (r StudentResume) GetCursor() string {
	return fmt.Sprint(r.ID)
}

type StudentResumeFields struct {
	Sr               *int    `json:"sr"`
	ResumeDate       *string `json:"resumeDate"`
	CollegeName      *string `json:"collegeName"`
	Course           *string `json:"course"`
	InternshipType   *string `json:"internshipType"`
	FollowupBy       *string `json:"followupBy"`
	StudentName      *string `json:"studentName"`
	MobileNumber     *string `json:"mobileNumber"`
	EmailId          *string `json:"emailId"`
	Domain           *string `json:"domain"`
	InterviewDate    *string `json:"interviewDate"`
	InterviewTime    *string `json:"interviewTime"`
	DateOfOnboarding *string `json:"dateOfOnboarding"`
	UserId           *int    `json:"userId"`
}

type NewStudentResume struct {
	StudentResumeFields
}

type UpdateStudentResumeInput struct {
	StudentResumeFields
}

type InterviewScoreInput struct {
	InterviewedBy        *string `json:"interviewedBy"`
	KnowledgeScore       *int    `json:"knowledgeScore"`
	ApproachScore        *int    `json:"approachScore"`
	SkillsScore          *int    `json:"skillsScore"`
	OtherScore           *int    `json:"otherScore"`
	Comment              *string `json:"comment"`
	FinalSelectionStatus *string `json:"finalSelectionStatus"`
}

func closedValue(field string, v *string, allowed []string) (*string, error) {
	v = trimmedPtr(v)
	if v == nil {
		return nil, nil
	}
	lower := strings.ToLower(*v)
	if !utils.OneOf(lower, allowed...) {
		return nil, utils.NewFieldError(field, "Invalid %s. Allowed: %s", field, strings.Join(allowed, ", "))
	}
	return &lower, nil
}

func parseInterviewTime(v *string) (*string, error) {
	v = trimmedPtr(v)
	if v == nil {
		return nil, nil
	}
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, strings.ToUpper(*v)); err == nil {
			s := t.Format("15:04")
			return &s, nil
		}
	}
	return nil, utils.NewFieldError("interviewTime", "invalid time %q, expected HH:MM", *v)
}

// columns converts the supplied fields to column updates. Unset fields are skipped.
func (f *StudentResumeFields) columns() (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if f.Sr != nil {
		updates["sr"] = *f.Sr
	}
	strs := []struct {
		column string
		value  *string
	}{
		{"college_name", f.CollegeName},
		{"followup_by", f.FollowupBy},
		{"student_name", f.StudentName},
		{"domain", f.Domain},
	}
	for _, s := range strs {
		if s.value != nil {
			updates[s.column] = trimmedPtr(s.value)
		}
	}
	if f.Course != nil {
		v, err := closedValue("course", f.Course, Courses)
		if err != nil {
			return nil, err
		}
		updates["course"] = v
	}
	if f.InternshipType != nil {
		v, err := closedValue("internshipType", f.InternshipType, InternshipTypes)
		if err != nil {
			return nil, err
		}
		updates["internship_type"] = v
	}
	if f.MobileNumber != nil {
		v, err := normalizePhone("mobileNumber", f.MobileNumber)
		if err != nil {
			return nil, err
		}
		updates["mobile_number"] = v
	}
	if f.EmailId != nil {
		v, err := normalizeEmail("emailId", f.EmailId)
		if err != nil {
			return nil, err
		}
		updates["email_id"] = v
	}
	if f.InterviewTime != nil {
		v, err := parseInterviewTime(f.InterviewTime)
		if err != nil {
			return nil, err
		}
		updates["interview_time"] = v
	}
	dates := []struct {
		field  string
		column string
		value  *string
	}{
		{"resumeDate", "resume_date", f.ResumeDate},
		{"interviewDate", "interview_date", f.InterviewDate},
		{"dateOfOnboarding", "date_of_onboarding", f.DateOfOnboarding},
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
	return updates, nil
}

func (input *NewStudentResume) toModel(userId int, coSheetId *int) (*StudentResume, error) {
	r := &StudentResume{
		Sr:             input.Sr,
		CollegeName:    trimmedPtr(input.CollegeName),
		Course:         trimmedPtr(input.Course),
		InternshipType: trimmedPtr(input.InternshipType),
		FollowupBy:     trimmedPtr(input.FollowupBy),
		StudentName:    trimmedPtr(input.StudentName),
		Domain:         trimmedPtr(input.Domain),
		CoSheetId:      coSheetId,
		UserId:         &userId,
		IsActive:       true,
	}
	var err error
	if r.MobileNumber, err = normalizePhone("mobileNumber", input.MobileNumber); err != nil {
		return nil, err
	}
	if r.EmailId, err = normalizeEmail("emailId", input.EmailId); err != nil {
		return nil, err
	}
	if r.InterviewTime, err = parseInterviewTime(input.InterviewTime); err != nil {
		return nil, err
	}
	if r.ResumeDate, err = parseTimestamp("resumeDate", input.ResumeDate); err != nil {
		return nil, err
	}
	if r.InterviewDate, err = parseTimestamp("interviewDate", input.InterviewDate); err != nil {
		return nil, err
	}
	if r.DateOfOnboarding, err = parseTimestamp("dateOfOnboarding", input.DateOfOnboarding); err != nil {
		return nil, err
	}
	return r, nil
}

func whereEqualOrNull(db *gorm.DB, column string, v *string) *gorm.DB {
	if v == nil {
		return db.Where(column + " IS NULL")
	}
	return db.Where(column+" = ?", *v)
}

func findDuplicateResume(ctx context.Context, r *StudentResume) (*StudentResume, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Where("user_id = ?", *r.UserId)
	q = whereEqualOrNull(q, "student_name", r.StudentName)
	q = whereEqualOrNull(q, "mobile_number", r.MobileNumber)
	q = whereEqualOrNull(q, "email_id", r.EmailId)
	var existing []StudentResume
	if err := q.Limit(1).Find(&existing).Error; err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}
	return &existing[0], nil
}

// CreateStudentResumes inserts the rows one by one, linking each to the newest
// CoSheet of its user. Duplicates of the same student are skipped with a warning.
func CreateStudentResumes(ctx context.Context, inputs []*NewStudentResume, defaultUserId int) ([]RowResult[StudentResume], error) {
	if len(inputs) == 0 {
		return nil, utils.NewValidationError("No data provided")
	}
	db := config.GetDB()
	results := make([]RowResult[StudentResume], 0, len(inputs))
	for _, input := range inputs {
		res, err := createStudentResume(ctx, db, input, defaultUserId)
		if err != nil {
			if !utils.IsValidationError(err) {
				config.LogError(config.GetLogger(), "StudentResume", "CreateStudentResumes", "create row", input, err)
			}
			results = append(results, RowResult[StudentResume]{Error: err.Error()})
			continue
		}
		results = append(results, res)
	}

	allFailed := true
	for _, r := range results {
		if r.Success || r.Warning != "" {
			allFailed = false
			break
		}
	}
	if allFailed {
		return results, utils.NewValidationError("All resume creations failed")
	}
	return results, nil
}

func createStudentResume(ctx context.Context, db *gorm.DB, input *NewStudentResume, defaultUserId int) (RowResult[StudentResume], error) {
	if input == nil {
		return RowResult[StudentResume]{}, utils.NewValidationError("empty row")
	}
	userId := utils.DereferencePtr(input.UserId, defaultUserId)
	if userId == 0 {
		return RowResult[StudentResume]{}, utils.NewFieldError("userId", "userId is required")
	}
	coSheetId, err := latestCoSheetId(ctx, db, userId)
	if err != nil {
		return RowResult[StudentResume]{}, err
	}
	if coSheetId == nil {
		return RowResult[StudentResume]{}, utils.NewValidationError("No CoSheet found for this user")
	}
	record, err := input.toModel(userId, coSheetId)
	if err != nil {
		return RowResult[StudentResume]{}, err
	}
	dup, err := findDuplicateResume(ctx, record)
	if err != nil {
		return RowResult[StudentResume]{}, err
	}
	if dup != nil {
		return RowResult[StudentResume]{Data: dup, Warning: "Duplicate record found. Skipped insert."}, nil
	}
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		return RowResult[StudentResume]{}, err
	}
	return RowResult[StudentResume]{Success: true, Data: record}, nil
}

func GetStudentResume(ctx context.Context, id int) (*StudentResume, error) {
	return utils.FetchSingleModel[StudentResume](ctx, id)
}

// UpdateStudentResume applies the supplied fields and re-links the row to the
// newest CoSheet of its (possibly new) user.
func UpdateStudentResume(ctx context.Context, id int, input *UpdateStudentResumeInput) (*StudentResume, error) {
	record, err := GetStudentResume(ctx, id)
	if err != nil {
		return nil, err
	}
	updates, err := input.columns()
	if err != nil {
		return nil, err
	}
	if input.UserId != nil {
		if err := utils.ValidateReference[User](ctx, *input.UserId, "User ID is not registered"); err != nil {
			return nil, err
		}
		updates["user_id"] = *input.UserId
	}
	if len(updates) == 0 {
		return nil, utils.NewValidationError("No fields to update")
	}

	db := config.GetDB()
	effectiveUserId := utils.DereferencePtr(input.UserId, utils.DereferencePtr(record.UserId))
	if effectiveUserId != 0 {
		coSheetId, err := latestCoSheetId(ctx, db, effectiveUserId)
		if err != nil {
			return nil, err
		}
		updates["co_sheet_id"] = coSheetId
	}
	if err := db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetStudentResume(ctx, id)
}

func averageScore(scores ...*int) *decimal.Decimal {
	sum := decimal.Zero
	for _, s := range scores {
		if s == nil {
			return nil
		}
		sum = sum.Add(decimal.NewFromInt(int64(*s)))
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(scores)))).Round(2)
	return &avg
}

func validScore(field string, v *int) error {
	if v != nil && (*v < 0 || *v > 10) {
		return utils.NewFieldError(field, "%s must be between 0 and 10", field)
	}
	return nil
}

// UpdateInterviewScore fills the score card. The average is stored once all four scores are known.
func UpdateInterviewScore(ctx context.Context, id int, input *InterviewScoreInput) (*StudentResume, error) {
	record, err := GetStudentResume(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	scores := []struct {
		field  string
		column string
		value  *int
		dest   **int
	}{
		{"knowledgeScore", "knowledge_score", input.KnowledgeScore, &record.KnowledgeScore},
		{"approachScore", "approach_score", input.ApproachScore, &record.ApproachScore},
		{"skillsScore", "skills_score", input.SkillsScore, &record.SkillsScore},
		{"otherScore", "other_score", input.OtherScore, &record.OtherScore},
	}
	for _, s := range scores {
		if s.value == nil {
			continue
		}
		if err := validScore(s.field, s.value); err != nil {
			return nil, err
		}
		updates[s.column] = *s.value
		*s.dest = s.value
	}
	if input.InterviewedBy != nil {
		updates["interviewed_by"] = trimmedPtr(input.InterviewedBy)
	}
	if input.Comment != nil {
		updates["comment"] = trimmedPtr(input.Comment)
	}
	if input.FinalSelectionStatus != nil {
		v, err := closedValue("finalSelectionStatus", input.FinalSelectionStatus, SelectionStatuses)
		if err != nil {
			return nil, err
		}
		updates["final_selection_status"] = v
	}
	if len(updates) == 0 {
		return nil, utils.NewValidationError("No fields to update")
	}
	if avg := averageScore(record.KnowledgeScore, record.ApproachScore, record.SkillsScore, record.OtherScore); avg != nil {
		updates["total_average_score"] = *avg
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetStudentResume(ctx, id)
}

// ListStudentResumes returns every resume, newest first, with its CoSheet.
func ListStudentResumes(ctx context.Context) ([]*StudentResume, error) {
	db := config.GetDB()
	var results []*StudentResume
	err := db.WithContext(ctx).
		Preload("CoSheet", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "college_name") }).
		Order("created_at DESC").Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ListStudentResumesByUser(ctx context.Context, userId int) ([]*StudentResume, error) {
	db := config.GetDB()
	var results []*StudentResume
	if err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC").Order("id DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListUpcomingInterviews returns the user's resumes with an interview from today on, soonest first.
func ListUpcomingInterviews(ctx context.Context, userId int) ([]*StudentResume, error) {
	from, _ := analysis.DayBounds(today(), today(), config.Location())
	db := config.GetDB()
	var results []*StudentResume
	if err := db.WithContext(ctx).
		Where("user_id = ? AND interview_date >= ?", userId, from.UTC()).
		Order("interview_date").Order("interview_time").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func DeleteStudentResume(ctx context.Context, id int) (*StudentResume, error) {
	record, err := GetStudentResume(ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// RequestStudentMail queues the acknowledgement mail of a resume.
func RequestStudentMail(ctx context.Context, id int) (*MailOutbox, error) {
	record, err := GetStudentResume(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.EmailId == nil || *record.EmailId == "" {
		return nil, utils.NewFieldError("emailId", "student email is required to send mail")
	}
	var interviewDate string
	if record.InterviewDate != nil {
		interviewDate = record.InterviewDate.In(config.Location()).Format("02 Jan 2006")
		if record.InterviewTime != nil {
			interviewDate += " " + *record.InterviewTime
		}
	}
	subject, body := studentMail(utils.DereferencePtr(record.StudentName), interviewDate)
	rec := MailOutbox{
		Kind:          MailKindStudent,
		ReferenceType: MailReferenceStudentResume,
		ReferenceId:   record.ID,
		Recipient:     *record.EmailId,
		Subject:       subject,
		Body:          body,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return EnqueueMail(ctx, tx, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkStudentMailSent stamps mail_sent_at on the first successful send.
func MarkStudentMailSent(ctx context.Context, tx *gorm.DB, id int, sentAt time.Time) error {
	return tx.WithContext(ctx).Model(&StudentResume{}).
		Where("id = ? AND mail_sent_at IS NULL", id).
		UpdateColumn("mail_sent_at", sentAt.UTC()).Error
}
