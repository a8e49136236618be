package bookmark

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesterapp/lester/internal/errors"
)

func TestValidateBookmark_TrimsFields(t *testing.T) {
	notes := "  "
	in, err := ValidateBookmark(NewBookmark{
		WorkspaceID: " ws1 ",
		URL:         "  https://example.com/a  ",
		Title:       "\tExample\n",
		Notes:       &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, "ws1", in.WorkspaceID)
	assert.Equal(t, "https://example.com/a", in.URL)
	assert.Equal(t, "Example", in.Title)
	assert.Nil(t, in.Notes)
}

func TestValidateBookmark_KeepsNotes(t *testing.T) {
	notes := "# heading"
	in, err := ValidateBookmark(NewBookmark{WorkspaceID: "ws", URL: "u", Title: "t", Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, in.Notes)
	assert.Equal(t, "# heading", *in.Notes)
}

func TestValidateBookmark_BlankURLOrTitle(t *testing.T) {
	tests := []struct {
		name  string
		in    NewBookmark
		field string
	}{
		{"blank url", NewBookmark{WorkspaceID: "ws", URL: "   ", Title: "Title"}, "url"},
		{"blank title", NewBookmark{WorkspaceID: "ws", URL: "https://x.dev", Title: ""}, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateBookmark(tt.in)
			require.Error(t, err)

			lErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrInvalidRequest, lErr.Code)
			assert.Equal(t, "bookmark url or title is empty", lErr.Message)

			fields := lErr.Details["fields"].(map[string]string)
			assert.Equal(t, "is required", fields[tt.field])
		})
	}
}

func TestValidateBookmark_MissingWorkspace(t *testing.T) {
	_, err := ValidateBookmark(NewBookmark{URL: "https://x.dev", Title: "X"})
	require.Error(t, err)

	lErr, _ := errors.As(err)
	assert.Equal(t, "invalid bookmark", lErr.Message)
	assert.Contains(t, lErr.Details["fields"], "workspace_id")
}

func TestValidateBookmark_TooLong(t *testing.T) {
	_, err := ValidateBookmark(NewBookmark{WorkspaceID: "ws", URL: "https://x.dev", Title: strings.Repeat("a", 1001)})
	require.Error(t, err)

	lErr, _ := errors.As(err)
	fields := lErr.Details["fields"].(map[string]string)
	assert.Equal(t, "must not exceed 1000 characters", fields["title"])
}

func TestValidateWorkspace(t *testing.T) {
	in, err := ValidateWorkspace(NewWorkspace{Name: "  Reading  "})
	require.NoError(t, err)
	assert.Equal(t, "Reading", in.Name)

	_, err = ValidateWorkspace(NewWorkspace{Name: " \t "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	assert.Contains(t, err.Error(), "workspace name is empty")
}
