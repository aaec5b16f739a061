package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemory(t *testing.T) {
	now := time.Now()
	m := NewMemory("mem1", "user1", "Title", "desc", ContentKindText, "upload", "en", []string{"a"}, now)

	assert.Equal(t, "mem1", m.ID)
	assert.Equal(t, "user1", m.UserID)
	assert.Equal(t, ContentKindText, m.ContentKind)
	assert.Equal(t, now, m.CreatedAt)
	assert.Equal(t, now, m.UpdatedAt)
}

func TestValidateMemory(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		memory  *Memory
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid memory",
			memory:  NewMemory("mem1", "user1", "Title", "", ContentKindNote, "", "en", nil, now),
			wantErr: false,
		},
		{
			name:    "nil memory",
			memory:  nil,
			wantErr: true,
			errMsg:  "nil",
		},
		{
			name:    "missing ID",
			memory:  NewMemory("", "user1", "Title", "", ContentKindNote, "", "en", nil, now),
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name:    "missing UserID",
			memory:  NewMemory("mem1", "", "Title", "", ContentKindNote, "", "en", nil, now),
			wantErr: true,
			errMsg:  "UserID",
		},
		{
			name:    "missing Title",
			memory:  NewMemory("mem1", "user1", "", "", ContentKindNote, "", "en", nil, now),
			wantErr: true,
			errMsg:  "Title",
		},
		{
			name:    "invalid kind",
			memory:  NewMemory("mem1", "user1", "Title", "", ContentKind("vhs"), "", "en", nil, now),
			wantErr: true,
			errMsg:  "ContentKind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMemory(tt.memory)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIsValidContentKind(t *testing.T) {
	for _, k := range []ContentKind{
		ContentKindNote, ContentKindText, ContentKindVideo, ContentKindAudio,
		ContentKindImage, ContentKindGit, ContentKindYouTube,
		ContentKindNotion, ContentKindDrive, ContentKindMindMap,
	} {
		assert.True(t, IsValidContentKind(k), "kind %s", k)
	}
	assert.False(t, IsValidContentKind("vhs"))
}
