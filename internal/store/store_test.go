package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeTools(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"json array", `["Read","Bash"]`, []string{"Read", "Bash"}},
		{"null", "null", []string{}},
		{"garbage", "Read,Bash", []string{}},
		{"wrong element type", `["Read", 3]`, []string{}},
		{"object", `{"tools":["Read"]}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeTools(tt.raw)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeTools(t *testing.T) {
	assert.Equal(t, "[]", EncodeTools(nil))
	assert.Equal(t, `["Read","Edit"]`, EncodeTools([]string{"Read", "Edit"}))
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusUnset, StatusPending, StatusPassed, StatusFailed} {
		assert.True(t, s.Valid(), "%q", s)
	}
	assert.False(t, Status("skipped").Valid())
}

func TestErrors(t *testing.T) {
	t.Run("NotFoundError", func(t *testing.T) {
		err := NewNotFoundError("execution", "session=1 agent=x")
		if !IsNotFound(err) {
			t.Error("IsNotFound should return true")
		}

		nfe := &NotFoundError{}
		if !errors.As(err, &nfe) {
			t.Fatal("should be NotFoundError")
		}
		if nfe.Entity != "execution" || nfe.ID != "session=1 agent=x" {
			t.Error("wrong entity/id in error")
		}
	})

	t.Run("connectionError", func(t *testing.T) {
		cause := errors.New("disk I/O error")
		err := connectionError("get execution", cause)
		assert.True(t, IsConnection(err))
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "get execution")
		assert.False(t, IsConnection(nil))
	})
}

func TestCheckKey(t *testing.T) {
	assert.NoError(t, checkKey(1, "agent"))
	assert.ErrorIs(t, checkKey(0, "agent"), ErrInvalidKey)
	assert.ErrorIs(t, checkKey(1, ""), ErrInvalidKey)
}
