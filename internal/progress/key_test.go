package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectKeyString(t *testing.T) {
	assert.Equal(t, "7", NewSubjectKey(7).String())
	assert.Equal(t, "7@42", NewVersionedKey(7, 42).String())
}

func TestSubjectKeyValidate(t *testing.T) {
	tests := []struct {
		name    string
		key     SubjectKey
		wantErr bool
	}{
		{"unversioned", NewSubjectKey(1), false},
		{"versioned", NewVersionedKey(7, 3), false},
		{"zero domain", NewSubjectKey(0), true},
		{"negative domain", NewSubjectKey(-4), true},
		{"zero version", NewVersionedKey(7, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubjectKeyEqual(t *testing.T) {
	assert.True(t, NewSubjectKey(7).Equal(NewSubjectKey(7)))
	assert.True(t, NewVersionedKey(7, 1).Equal(NewVersionedKey(7, 1)))
	assert.False(t, NewSubjectKey(7).Equal(NewVersionedKey(7, 1)))
	assert.False(t, NewVersionedKey(7, 1).Equal(NewVersionedKey(7, 2)))
	assert.False(t, NewSubjectKey(7).Equal(NewSubjectKey(8)))
}

func TestSubjectKeyCanonicalFormDistinct(t *testing.T) {
	// The unversioned line and version lines of the same domain are
	// distinct subjects and must never collide as map keys.
	seen := map[string]bool{}
	for _, k := range []SubjectKey{
		NewSubjectKey(7),
		NewVersionedKey(7, 1),
		NewVersionedKey(7, 2),
		NewSubjectKey(71),
	} {
		assert.False(t, seen[k.String()], "duplicate canonical form %s", k.String())
		seen[k.String()] = true
	}
}
