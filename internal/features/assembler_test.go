package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churn-insight/dashboard/internal/schema"
)

func sampleAttributes(dept string) EmployeeAttributes {
	return EmployeeAttributes{
		SatisfactionLevel:   0.1,
		LastEvaluation:      0.9,
		NumberProject:       6,
		AverageMonthlyHours: 290,
		TimeSpendCompany:    5,
		WorkAccident:        0,
		PromotionLast5Years: 0,
		Salary:              0,
		Department:          dept,
		HoursLevel:          0.95,
	}
}

func TestAssemble_WorkedExample(t *testing.T) {
	v, err := Assemble(sampleAttributes("sales"))
	require.NoError(t, err)

	assert.Equal(t, Vector{
		0.1, 0.9, 6, 290, 5, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 1, 0, 0,
		0.95,
	}, v)
}

func TestAssemble_EveryDepartment(t *testing.T) {
	for i, dept := range schema.Departments {
		t.Run(dept, func(t *testing.T) {
			v, err := Assemble(sampleAttributes(dept))
			require.NoError(t, err)
			require.Len(t, v, schema.VectorLen)

			ones := 0
			for j := 0; j < len(schema.Departments); j++ {
				slot := v[schema.DepartmentOffset+j]
				if j == i {
					assert.Equal(t, 1.0, slot)
				} else {
					assert.Equal(t, 0.0, slot)
				}
				if slot == 1 {
					ones++
				}
			}
			assert.Equal(t, 1, ones)
			assert.Equal(t, dept, Default.Department(v))
		})
	}
}

func TestAssemble_UnknownDepartmentFails(t *testing.T) {
	for _, dept := range []string{"", "Sales", "finance", "IT "} {
		v, err := Assemble(sampleAttributes(dept))
		assert.Nil(t, v)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownCategory), "department %q", dept)
	}
}

func TestAssemble_NoScaling(t *testing.T) {
	attrs := sampleAttributes("hr")
	attrs.AverageMonthlyHours = 400
	attrs.Salary = 2

	v, err := Assemble(attrs)
	require.NoError(t, err)
	assert.Equal(t, 400.0, v[3])
	assert.Equal(t, 2.0, v[7])
}

func TestCheck(t *testing.T) {
	v, err := Assemble(sampleAttributes("IT"))
	require.NoError(t, err)
	assert.NoError(t, Default.Check(v))

	assert.ErrorIs(t, Default.Check(v[:18]), ErrVectorShape)

	zeroed := append(Vector(nil), v...)
	zeroed[schema.DepartmentOffset] = 0
	assert.ErrorIs(t, Default.Check(zeroed), ErrVectorShape)

	twice := append(Vector(nil), v...)
	twice[schema.DepartmentOffset+1] = 1
	assert.ErrorIs(t, Default.Check(twice), ErrVectorShape)

	fractional := append(Vector(nil), v...)
	fractional[schema.DepartmentOffset] = 0.5
	assert.ErrorIs(t, Default.Check(fractional), ErrVectorShape)
}

func TestEncodeDepartment(t *testing.T) {
	enc, err := Default.EncodeDepartment("technical")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, enc)
}

func TestAssemble_FollowsSchemaOrder(t *testing.T) {
	fields := append([]schema.Field(nil), schema.Attrition.Fields...)
	// hours_level first, department before salary
	reordered := []schema.Field{fields[9], fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6], fields[8], fields[7]}
	s := schema.New(reordered, nil)
	a := NewAssembler(s)

	v, err := a.Assemble(sampleAttributes("sales"))
	require.NoError(t, err)
	require.Len(t, v, schema.VectorLen)

	assert.Equal(t, 0.95, v[0])
	assert.Equal(t, 290.0, v[4])

	offset, ok := s.Offset(schema.FieldDepartment)
	require.True(t, ok)
	assert.Equal(t, 8, offset)
	assert.Equal(t, 1.0, v[offset+7])
	assert.Equal(t, "sales", a.Department(v))

	salary, ok := s.Offset(schema.FieldSalary)
	require.True(t, ok)
	assert.Equal(t, 18, salary)
	assert.NoError(t, a.Check(v))
}

func TestAssemble_UnsupportedOneHotField(t *testing.T) {
	s := schema.New([]schema.Field{
		{Name: "region", Kind: schema.KindOneHot, Categories: []string{"north", "south"}},
	}, nil)

	_, err := NewAssembler(s).Assemble(sampleAttributes("sales"))
	assert.ErrorIs(t, err, ErrVectorShape)
}
