package features

import (
	"errors"
	"fmt"

	"github.com/churn-insight/dashboard/internal/schema"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrVectorShape     = errors.New("invalid feature vector")
)

// Vector is one model input row laid out per schema.Attrition.
type Vector []float64

// EmployeeAttributes are the raw form values. Bounds are enforced by the form
// layer; the assembler does not rescale anything.
type EmployeeAttributes struct {
	SatisfactionLevel   float64
	LastEvaluation      float64
	NumberProject       int
	AverageMonthlyHours int
	TimeSpendCompany    int
	WorkAccident        int
	PromotionLast5Years int
	Salary              int
	Department          string
	HoursLevel          float64
}

// scalars maps the non-categorical attributes by schema field name.
func (attrs EmployeeAttributes) scalars() map[string]float64 {
	return map[string]float64{
		schema.FieldSatisfaction: attrs.SatisfactionLevel,
		schema.FieldEvaluation:   attrs.LastEvaluation,
		schema.FieldProjects:     float64(attrs.NumberProject),
		schema.FieldMonthlyHours: float64(attrs.AverageMonthlyHours),
		schema.FieldTenure:       float64(attrs.TimeSpendCompany),
		schema.FieldAccident:     float64(attrs.WorkAccident),
		schema.FieldPromotion:    float64(attrs.PromotionLast5Years),
		schema.FieldSalary:       float64(attrs.Salary),
		schema.FieldHoursLevel:   attrs.HoursLevel,
	}
}

// Assembler turns attributes into vectors for one schema. Slot placement
// follows the schema's field order.
type Assembler struct {
	schema      *schema.Schema
	departments []string
	deptOffset  int
}

func NewAssembler(s *schema.Schema) *Assembler {
	a := &Assembler{schema: s}
	if f, ok := s.Field(schema.FieldDepartment); ok {
		a.departments = f.Categories
	}
	a.deptOffset, _ = s.Offset(schema.FieldDepartment)
	return a
}

// Default assembles against schema.Attrition.
var Default = NewAssembler(schema.Attrition)

func Assemble(attrs EmployeeAttributes) (Vector, error) {
	return Default.Assemble(attrs)
}

func (a *Assembler) Assemble(attrs EmployeeAttributes) (Vector, error) {
	values := attrs.scalars()

	v := make(Vector, 0, a.schema.Len())
	for _, f := range a.schema.Fields {
		if f.Kind == schema.KindOneHot {
			if f.Name != schema.FieldDepartment {
				return nil, fmt.Errorf("%w: no encoder for one-hot field %q", ErrVectorShape, f.Name)
			}
			dept, err := a.EncodeDepartment(attrs.Department)
			if err != nil {
				return nil, err
			}
			v = append(v, dept...)
			continue
		}

		value, ok := values[f.Name]
		if !ok {
			return nil, fmt.Errorf("%w: no attribute for field %q", ErrVectorShape, f.Name)
		}
		v = append(v, value)
	}

	if err := a.Check(v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeDepartment one-hot encodes name against the department list. Unknown
// names fail instead of producing an all-zero encoding.
func (a *Assembler) EncodeDepartment(name string) ([]float64, error) {
	out := make([]float64, len(a.departments))
	for i, d := range a.departments {
		if d == name {
			out[i] = 1
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: department %q", ErrUnknownCategory, name)
}

// Check verifies the vector width and that exactly one department slot is set.
func (a *Assembler) Check(v Vector) error {
	if len(v) != a.schema.Len() {
		return fmt.Errorf("%w: length %d, want %d", ErrVectorShape, len(v), a.schema.Len())
	}
	set := 0
	for i := a.deptOffset; i < a.deptOffset+len(a.departments); i++ {
		switch v[i] {
		case 0:
		case 1:
			set++
		default:
			return fmt.Errorf("%w: department slot %d is %v", ErrVectorShape, i, v[i])
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: %d department indicators set", ErrVectorShape, set)
	}
	return nil
}

// Department returns the department encoded in v, or "" if none is set.
func (a *Assembler) Department(v Vector) string {
	for i, d := range a.departments {
		if idx := a.deptOffset + i; idx < len(v) && v[idx] == 1 {
			return d
		}
	}
	return ""
}
