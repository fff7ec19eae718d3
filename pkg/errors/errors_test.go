package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// AppError
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal", errors.CodeInternal, "unexpected failure"},
		{"missing column", errors.ErrCodeSchemaMissingColumn, "table is missing column study"},
		{"blocked", errors.ErrCodeBuildBlocked, "build blocked"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ae := errors.New(tc.code, tc.message)
			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.Contains(t, ae.Stack, "errors_test.go")
		})
	}
}

func TestAppError_ErrorFormat(t *testing.T) {
	ae := errors.New(errors.ErrCodeIO, "write failed")
	assert.Equal(t, "[COMMON_017] write failed", ae.Error())

	withDetail := ae.WithDetail("out/trials_curated.json")
	assert.Equal(t, "[COMMON_017] write failed: out/trials_curated.json", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")

	withCause := withDetail.WithCause(stderrors.New("disk full"))
	assert.Equal(t, "[COMMON_017] write failed: out/trials_curated.json: disk full", withCause.Error())
}

func TestAppError_NilReceivers(t *testing.T) {
	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.ErrCodeIO, "ignored"))

	base := stderrors.New("boom")
	w := errors.Wrap(base, errors.ErrCodeIO, "read failed")
	require.NotNil(t, w)
	assert.True(t, stderrors.Is(w, base))
	assert.Equal(t, errors.ErrCodeIO, w.Code)

	inner := errors.New(errors.ErrCodeSchemaMalformed, "bad json")
	kept := errors.Wrap(inner, errors.CodeUnknown, "loading overrides")
	assert.Equal(t, errors.ErrCodeSchemaMalformed, kept.Code)
}

func TestIsCode_TraversesChain(t *testing.T) {
	inner := errors.New(errors.ErrCodeSchemaDuplicateID, "duplicate")
	outer := fmt.Errorf("build: %w", errors.Wrap(inner, errors.ErrCodeInternal, "extract failed"))

	assert.True(t, errors.IsCode(outer, errors.ErrCodeSchemaDuplicateID))
	assert.True(t, errors.IsCode(outer, errors.ErrCodeInternal))
	assert.False(t, errors.IsCode(outer, errors.ErrCodeBuildBlocked))
	assert.True(t, errors.IsSchemaError(outer))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeIO, errors.GetCode(errors.New(errors.ErrCodeIO, "x")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Domain constructors
// ─────────────────────────────────────────────────────────────────────────────

func TestNewBuildBlocked_MessageNamesCountAndFlags(t *testing.T) {
	err := errors.NewBuildBlocked(3, map[string]int{"missing_n_total": 1, "bolus_out_of_range": 2})
	assert.Equal(t, errors.ErrCodeBuildBlocked, err.Code)
	assert.Contains(t, err.Error(), "3 record(s)")
	assert.Contains(t, err.Error(), "(bolus_out_of_range=2, missing_n_total=1)")
	assert.True(t, errors.IsBuildBlocked(fmt.Errorf("validate: %w", err)))
}

func TestNewSchemaError_CoercesCode(t *testing.T) {
	err := errors.NewSchemaError(errors.ErrCodeInternal, "row %d", 4)
	assert.Equal(t, errors.ErrCodeSchemaInvariant, err.Code)
	assert.Equal(t, "row 4", err.Message)

	dup := errors.NewSchemaError(errors.ErrCodeSchemaDuplicateID, "duplicate trial_id %q", "li_2023_p4")
	assert.Equal(t, errors.ErrCodeSchemaDuplicateID, dup.Code)
}

func TestNewOverrideKeyMiss(t *testing.T) {
	err := errors.NewOverrideKeyMiss("ghost_2020")
	assert.Equal(t, errors.ErrCodeOverrideKeyMiss, err.Code)
	assert.Equal(t, "ghost_2020", err.Detail)
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, errors.ExitOK, errors.ExitCodeFor(nil))
	assert.Equal(t, errors.ExitBuildBlocked, errors.ExitCodeFor(errors.NewBuildBlocked(1, nil)))
	assert.Equal(t, errors.ExitFailure, errors.ExitCodeFor(stderrors.New("x")))
	assert.Equal(t, errors.ExitFailure, errors.ExitCodeFor(errors.NewSchemaError(errors.ErrCodeSchemaMalformed, "x")))
}

//Personal.AI order the ending
