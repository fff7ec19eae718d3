package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunID(t *testing.T) {
	id := NewRunID()
	assert.NoError(t, id.Validate())
	assert.NotEqual(t, id, NewRunID())

	assert.Error(t, RunID("").Validate())
	assert.Error(t, RunID("run-1").Validate())
}

func TestErrorDetail_JSON(t *testing.T) {
	raw, err := json.Marshal(ErrorDetail{Code: "QA_002", Message: "validation report not found"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"QA_002","message":"validation report not found"}`, string(raw))
}

//Personal.AI order the ending
