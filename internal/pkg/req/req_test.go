package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quichat/internal/pkg/errs"
)

type announce struct {
	Text string `json:"text"`
}

func TestBindJSON(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		body        string
		wantCode    int
	}{
		{"valid", "application/json", `{"text":"hello"}`, 0},
		{"charset suffix", "application/json; charset=utf-8", `{"text":"hello"}`, 0},
		{"wrong content type", "text/plain", `{"text":"hello"}`, errs.ErrUnsupportedMediaType},
		{"syntax error", "application/json", `{"text":`, errs.ErrInvalidJSONFormat},
		{"unknown field", "application/json", `{"text":"a","x":1}`, errs.ErrInvalidJSONFormat},
		{"trailing value", "application/json", `{"text":"a"}{"text":"b"}`, errs.ErrExtraContentInBody},
		{"too large", "application/json", `{"text":"` + strings.Repeat("a", int(MaxBodySize)) + `"}`, errs.ErrRequestEntityTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			r.Header.Set("Content-Type", tc.contentType)

			var dst announce
			err := BindJSON(httptest.NewRecorder(), r, &dst)
			if tc.wantCode == 0 {
				require.Nil(t, err)
				assert.Equal(t, "hello", dst.Text)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tc.wantCode, err.Code)
		})
	}
}
