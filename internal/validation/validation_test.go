package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Confirm  string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
	Role     string `json:"role" validate:"required,oneof=teacher student"`
	Dept     string `json:"department" validate:"required_if=Role teacher"`
}

type roster struct {
	Date    string `json:"date" validate:"isodate"`
	Entries []line `json:"entries" validate:"min=1,dive"`
}

type line struct {
	StudentID string `json:"studentId" validate:"required"`
}

func TestStruct_Valid(t *testing.T) {
	v := New()
	err := v.Struct(signup{Email: "s@school.edu", Password: "pw1234", Role: "student"})
	assert.NoError(t, err)
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	v := New()
	err := v.Struct(signup{Email: "nope", Password: "abc", Confirm: "abd", Role: "teacher"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email must be a valid email address", verr.Fields["email"])
	assert.Equal(t, "password must be at least 6 characters in length", verr.Fields["password"])
	assert.Equal(t, "confirmPassword does not match", verr.Fields["confirmPassword"])
	assert.Equal(t, "department is required", verr.Fields["department"])
	assert.NotContains(t, verr.Fields, "role")
}

func TestStruct_NestedPaths(t *testing.T) {
	v := New()
	err := v.Struct(roster{Date: "2024-13-01", Entries: []line{{StudentID: "S1"}, {StudentID: ""}}})

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "date must be a date in YYYY-MM-DD format", verr.Fields["date"])
	assert.Equal(t, "studentId is required", verr.Fields["entries[1].studentId"])
	assert.Len(t, verr.Fields, 2)
}

func TestInvalid(t *testing.T) {
	err := Invalid("entries", "duplicate student S1")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "invalid input: duplicate student S1", err.Error())
}
