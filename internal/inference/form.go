package inference

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/churn-insight/dashboard/internal/features"
	"github.com/churn-insight/dashboard/internal/schema"
)

// Form is the employee attribute input shared by the HTML form and the JSON
// API. Bounds mirror schema.Attrition.
type Form struct {
	SatisfactionLevel   float64 `json:"satisfaction_level" form:"satisfaction_level" validate:"gte=0,lte=1"`
	LastEvaluation      float64 `json:"last_evaluation" form:"last_evaluation" validate:"gte=0,lte=1"`
	NumberProject       int     `json:"number_project" form:"number_project" validate:"gte=1,lte=10"`
	AverageMonthlyHours int     `json:"average_monthly_hours" form:"average_monthly_hours" validate:"gte=50,lte=400"`
	TimeSpendCompany    int     `json:"time_spend_company" form:"time_spend_company" validate:"gte=1,lte=20"`
	WorkAccident        int     `json:"work_accident" form:"work_accident" validate:"oneof=0 1"`
	PromotionLast5Years int     `json:"promotion_last_5years" form:"promotion_last_5years" validate:"oneof=0 1"`
	Salary              int     `json:"salary" form:"salary" validate:"oneof=0 1 2"`
	Department          string  `json:"department" form:"department" validate:"required"`
	HoursLevel          float64 `json:"hours_level" form:"hours_level" validate:"gte=0,lte=1"`
}

// DefaultForm returns the values the form is first shown with.
func DefaultForm() Form {
	return Form{
		SatisfactionLevel:   0.5,
		LastEvaluation:      0.5,
		NumberProject:       3,
		AverageMonthlyHours: 150,
		TimeSpendCompany:    3,
		Department:          schema.Departments[0],
		HoursLevel:          0.5,
	}
}

// SubmissionForm is the base a submitted form is parsed onto. Omitted numeric
// fields keep their defaults; the department has none and must be sent.
func SubmissionForm() Form {
	f := DefaultForm()
	f.Department = ""
	return f
}

func (f Form) Attributes() features.EmployeeAttributes {
	return features.EmployeeAttributes{
		SatisfactionLevel:   f.SatisfactionLevel,
		LastEvaluation:      f.LastEvaluation,
		NumberProject:       f.NumberProject,
		AverageMonthlyHours: f.AverageMonthlyHours,
		TimeSpendCompany:    f.TimeSpendCompany,
		WorkAccident:        f.WorkAccident,
		PromotionLast5Years: f.PromotionLast5Years,
		Salary:              f.Salary,
		Department:          f.Department,
		HoursLevel:          f.HoursLevel,
	}
}

// Values maps the numeric fields by schema field name, for rendering the form.
func (f Form) Values() map[string]float64 {
	return map[string]float64{
		schema.FieldSatisfaction: f.SatisfactionLevel,
		schema.FieldEvaluation:   f.LastEvaluation,
		schema.FieldProjects:     float64(f.NumberProject),
		schema.FieldMonthlyHours: float64(f.AverageMonthlyHours),
		schema.FieldTenure:       float64(f.TimeSpendCompany),
		schema.FieldAccident:     float64(f.WorkAccident),
		schema.FieldPromotion:    float64(f.PromotionLast5Years),
		schema.FieldSalary:       float64(f.Salary),
		schema.FieldHoursLevel:   f.HoursLevel,
	}
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every out-of-bounds form field.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "invalid input: " + strings.Join(msgs, "; ")
}

// Invalid reports whether field failed validation.
func (e *ValidationError) Invalid(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate returns a *ValidationError when any field is out of bounds.
func (f Form) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate form: %w", err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
