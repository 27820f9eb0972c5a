// Package schema is the single source of truth for the feature layout consumed by
// the attrition model: slot order, names, bounds and the department category list.
package schema

import "fmt"

type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindEnum
	KindOneHot
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindEnum:
		return "enum"
	case KindOneHot:
		return "one_hot"
	default:
		return "unknown"
	}
}

// Field describes one form input. One-hot fields expand to len(Categories) slots.
type Field struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Kind       Kind     `json:"-"`
	KindName   string   `json:"kind"`
	Min        float64  `json:"min"`
	Max        float64  `json:"max"`
	Step       float64  `json:"step,omitempty"`
	Default    float64  `json:"default"`
	Values     []int    `json:"values,omitempty"`
	Categories []string `json:"categories,omitempty"`
	ValueNames []string `json:"value_names,omitempty"`
}

// Slot is one column of the feature vector.
type Slot struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Field string `json:"field"`
}

type Schema struct {
	Fields []Field `json:"fields"`
	Slots  []Slot  `json:"slots"`
}

// Departments in model column order.
var Departments = []string{
	"IT", "RandD", "accounting", "hr", "management", "marketing",
	"product_mng", "sales", "support", "technical",
}

const (
	FieldSatisfaction = "satisfaction_level"
	FieldEvaluation   = "last_evaluation"
	FieldProjects     = "number_project"
	FieldMonthlyHours = "average_monthly_hours"
	FieldTenure       = "time_spend_company"
	FieldAccident     = "work_accident"
	FieldPromotion    = "promotion_last_5years"
	FieldSalary       = "salary"
	FieldDepartment   = "department"
	FieldHoursLevel   = "hours_level"
)

// VectorLen is the fixed width of an assembled feature vector.
const VectorLen = 19

// DepartmentOffset is the slot index of the first department indicator.
const DepartmentOffset = 8

// Attrition is the schema the shipped model was trained against. Slot names match
// the training columns, including their original spelling.
var Attrition = New([]Field{
	{Name: FieldSatisfaction, Label: "Satisfaction Level", Kind: KindFloat, Min: 0, Max: 1, Step: 0.01, Default: 0.5},
	{Name: FieldEvaluation, Label: "Last Evaluation Score", Kind: KindFloat, Min: 0, Max: 1, Step: 0.01, Default: 0.5},
	{Name: FieldProjects, Label: "Number of Projects", Kind: KindInt, Min: 1, Max: 10, Step: 1, Default: 3},
	{Name: FieldMonthlyHours, Label: "Average Monthly Hours", Kind: KindInt, Min: 50, Max: 400, Step: 1, Default: 150},
	{Name: FieldTenure, Label: "Years at Company", Kind: KindInt, Min: 1, Max: 20, Step: 1, Default: 3},
	{Name: FieldAccident, Label: "Work Accident", Kind: KindEnum, Min: 0, Max: 1, Values: []int{0, 1}, ValueNames: []string{"No", "Yes"}},
	{Name: FieldPromotion, Label: "Promotion in Last 5 Years", Kind: KindEnum, Min: 0, Max: 1, Values: []int{0, 1}, ValueNames: []string{"No", "Yes"}},
	{Name: FieldSalary, Label: "Salary Level", Kind: KindEnum, Min: 0, Max: 2, Values: []int{0, 1, 2}, ValueNames: []string{"Low", "Medium", "High"}},
	{Name: FieldDepartment, Label: "Department", Kind: KindOneHot, Categories: Departments},
	{Name: FieldHoursLevel, Label: "Hours Level (Scaled)", Kind: KindFloat, Min: 0, Max: 1, Step: 0.01, Default: 0.5},
}, map[string]string{
	FieldMonthlyHours: "average_montly_hours",
	FieldAccident:     "Work_accident",
})

// New builds a schema and derives its slot layout. columnNames overrides the slot
// name of scalar fields whose training column differs from the form name.
func New(fields []Field, columnNames map[string]string) *Schema {
	s := &Schema{Fields: make([]Field, len(fields))}
	copy(s.Fields, fields)

	for i := range s.Fields {
		f := &s.Fields[i]
		f.KindName = f.Kind.String()
		if f.Kind == KindOneHot {
			for _, c := range f.Categories {
				s.Slots = append(s.Slots, Slot{Index: len(s.Slots), Name: f.Name + "_" + c, Field: f.Name})
			}
			continue
		}
		name := f.Name
		if alt, ok := columnNames[f.Name]; ok {
			name = alt
		}
		s.Slots = append(s.Slots, Slot{Index: len(s.Slots), Name: name, Field: f.Name})
	}
	return s
}

// Len is the number of vector slots.
func (s *Schema) Len() int { return len(s.Slots) }

// SlotNames returns the vector column names in order.
func (s *Schema) SlotNames() []string {
	names := make([]string, len(s.Slots))
	for i, slot := range s.Slots {
		names[i] = slot.Name
	}
	return names
}

// Offset returns the index of the first slot belonging to field.
func (s *Schema) Offset(field string) (int, bool) {
	for _, slot := range s.Slots {
		if slot.Field == field {
			return slot.Index, true
		}
	}
	return 0, false
}

// Field looks up a field descriptor by form name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CheckColumns reports the first mismatch between names and the slot layout.
func (s *Schema) CheckColumns(names []string) error {
	if len(names) != len(s.Slots) {
		return fmt.Errorf("expected %d feature columns, got %d", len(s.Slots), len(names))
	}
	for i, slot := range s.Slots {
		if names[i] != slot.Name {
			return fmt.Errorf("feature column %d: expected %q, got %q", i, slot.Name, names[i])
		}
	}
	return nil
}
