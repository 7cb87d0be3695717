package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/response"
	"github.com/ervnjmsdnts/ojt/core/template"
	"github.com/ervnjmsdnts/ojt/tests"
)

func Test_responseApi_latest(t *testing.T) {
	ctx := context.Background()
	srv, env := setup(t)
	token := getToken(t, env.Conf, testutil.Coordinator)
	testutil.CreateSubject(t, env.Subjects, "42", "Juan Dela Cruz", "Acme Corp")
	snap := testutil.CreateTemplate(t, env.TemplateSvc, testutil.AppraisalSeed())
	g := testutil.IssueGrant(t, env.GrantSvc, "42", snap.TemplateID, grant.RoleSupervisor)

	runHTTPTests(t, srv, []httpTest{
		{
			name:     "nothing submitted",
			method:   http.MethodGet,
			path:     "/v1/responses/42/appraisal/latest",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: response.ErrNotFound.Error()}),
		},
		{
			name:     "missing token",
			method:   http.MethodGet,
			path:     "/v1/responses/42/appraisal/latest",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "unknown kind",
			method:   http.MethodGet,
			path:     "/v1/responses/42/exit-interview/latest",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errUnknownKind),
		},
	})

	ref, err := env.ResponseSvc.StoreSignature(ctx, g.Code, testutil.SignaturePNG(t))
	require.NoError(t, err)
	answers := make(map[string]response.AnswerValue)
	for i, id := range snap.QuestionIDs() {
		answers[id] = response.RatingValue(i + 1) // 1+2+3 for Work Habits, 4+5 for Attitude
	}
	_, err = env.ResponseSvc.Submit(ctx, g.Code, response.Submission{Answers: answers, SignatureRef: ref})
	require.NoError(t, err)

	// edits after submission do not change what the response is read against
	_, err = env.TemplateSvc.SetQuestions(ctx, snap.TemplateID, snap.Categories[1].ID, template.SetQuestions{
		Questions: []string{"Initiative"},
	}, testutil.Coordinator)
	require.NoError(t, err)

	req, rec := newAuthRequest(http.MethodGet, "/v1/responses/42/appraisal/latest", token)
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view response.View
	unmarshal(t, rec, &view)
	assert.Equal(t, g.Code, view.Response.GrantCode)
	assert.Equal(t, 1, view.Template.Version)
	assert.Equal(t, snap.QuestionIDs(), view.Template.QuestionIDs())
	require.NotNil(t, view.Aggregate)
	assert.Equal(t, 15, view.Aggregate.Total)
	assert.Equal(t, []response.CategoryTotal{
		{CategoryID: snap.Categories[0].ID, Name: "Work Habits", Total: 6},
		{CategoryID: snap.Categories[1].ID, Name: "Attitude", Total: 9},
	}, view.Aggregate.Categories)
	assert.True(t, strings.HasPrefix(view.SignatureURL, env.Conf.Media.BaseURL+"/"))

	t.Run("signature is served", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, view.SignatureURL)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	})
}
