package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/grading"
	"github.com/tesina/backend/core/panel"
	"github.com/tesina/backend/core/user"
	"github.com/tesina/backend/tests"
)

type gradingFixture struct {
	env testEnv

	rubric  evalplan.Rubric
	rubItem evalplan.Item

	presidentToken string
	adminToken     string
	outsiderToken  string

	open   panel.Assignment
	locked panel.Assignment
}

func setupGrading(t *testing.T) gradingFixture {
	env := setupServer(t)

	c := testutil.CreateCareer(t, env.db, "Informatics", "INF")
	period := testutil.CreatePeriod(t, env.db, c.ID, "2026-1", true)
	plan := testutil.CreatePlan(t, env.db, period.ID, "Defense 2026-1", true)

	rubric := testutil.CreateRubric(t, env.db, "Thesis defense")
	rubItem := testutil.CreateItem(t, env.db, plan.ID, "Defense", evalplan.KindRubric, 60, evalplan.ByPanel, rubric.ID, 1)
	testutil.CreateItem(t, env.db, plan.ID, "Report", evalplan.KindDirectScore, 40, evalplan.ByGeneralGraders, "", 2)

	// the rubric's second component is graded off-panel
	testutil.AddComponentGrader(t, env.db, rubItem.ID, rubric.Components[1].ID, evalplan.ByGeneralGraders)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "adminuser1", "admin@test.cd", "pwd", []string{user.RoleAdmin}, true)
	testutil.CreateStaffAssignment(t, env.db, c.ID, admin.ID, career.KindDirector, true)

	var saIDs [3]int64
	var pres user.User
	unames := [3]string{"president1", "memberone1", "membertwo2"}
	for i, uname := range unames {
		usr := testutil.CreateUser(t, env.usrRepo, uname, uname, uname+"@test.cd", "pwd", []string{user.RoleExaminer}, true)
		saIDs[i] = testutil.CreateStaffAssignment(t, env.db, c.ID, usr.ID, career.KindTeacher, true).ID
		if i == 0 {
			pres = usr
		}
	}
	outsider := testutil.CreateUser(t, env.usrRepo, "Outsider", "outsider11", "out@test.cd", "pwd", []string{user.RoleExaminer}, true)

	p := testutil.CreatePanel(t, env.db, period.ID, 1, panel.Roster{President: saIDs[0], Member1: saIDs[1], Member2: saIDs[2]})
	open := testutil.CreateAssignment(t, env.db, p.ID, "student-1", false)
	locked := testutil.CreateAssignment(t, env.db, p.ID, "student-2", true)

	return gradingFixture{
		env:            env,
		rubric:         rubric,
		rubItem:        rubItem,
		presidentToken: env.getToken(t, pres, user.RoleExaminer),
		adminToken:     env.getToken(t, admin, user.RoleAdmin),
		outsiderToken:  env.getToken(t, outsider, user.RoleExaminer),
		open:           open,
		locked:         locked,
	}
}

func (f gradingFixture) submission(levelID string) []byte {
	comp := f.rubric.Components[0]
	crit := comp.Criteria[0]
	return []byte(`{"items":[{"item_id":"` + f.rubItem.ID + `","components":[{"component_id":"` + comp.ID +
		`","criteria":[{"criterion_id":"` + crit.ID + `","level_id":"` + levelID + `"}]}]}]}`)
}

func Test_gradingApi_structure(t *testing.T) {
	f := setupGrading(t)
	path := "/v1/assignments/" + f.open.ID + "/grading"

	tests := []httpTest{
		{name: "no token", method: http.MethodGet, path: path, wantCode: http.StatusUnauthorized},
		{name: "admin role is not a grading role", method: http.MethodGet, path: path, token: f.adminToken, wantCode: http.StatusForbidden},
		{name: "non-member", method: http.MethodGet, path: path, token: f.outsiderToken, wantCode: http.StatusForbidden},
		{name: "member", method: http.MethodGet, path: path, token: f.presidentToken, wantCode: http.StatusOK},
		{name: "unknown assignment", method: http.MethodGet, path: "/v1/assignments/nope/grading", token: f.presidentToken, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.token == "" {
				req = newRequest(tt.method, tt.path, tt.body)
			} else {
				req = newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			}
			rec := f.env.do(req)
			checkCodeAndData(t, tt, rec)

			if tt.name == "member" {
				var st grading.Structure
				if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
					t.Fatalf("unmarshalling Structure failed: %v", err)
				}
				if st.Designation != panel.President {
					t.Errorf("Designation = %s, want %s", st.Designation, panel.President)
				}
				if len(st.Items) != 1 {
					t.Errorf("len(Items) = %d, want 1", len(st.Items))
				}
			}
		})
	}
}

func Test_gradingApi_submit(t *testing.T) {
	f := setupGrading(t)

	regular := f.rubric.Components[0].Criteria[0].Levels[0]
	offLimits := f.rubric.Components[1].Criteria[0] // overridden to the general graders
	badBody := []byte(`{"items":[{"item_id":"` + f.rubItem.ID + `","components":[{"component_id":"` + f.rubric.Components[1].ID +
		`","criteria":[{"criterion_id":"` + offLimits.ID + `","level_id":"` + offLimits.Levels[0].ID + `"}]}]}]}`)

	gradingPath := func(a panel.Assignment) string { return "/v1/assignments/" + a.ID + "/grading/grades" }

	tests := []httpTest{
		{name: "locked assignment", method: http.MethodPost, path: gradingPath(f.locked), token: f.presidentToken, body: f.submission(regular.ID), wantCode: http.StatusConflict},
		{name: "malformed payload", method: http.MethodPost, path: gradingPath(f.open), token: f.presidentToken, body: []byte(`{"items":[]}`), wantCode: http.StatusBadRequest},
		{name: "valid submission", method: http.MethodPost, path: gradingPath(f.open), token: f.presidentToken, body: f.submission(regular.ID), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.env.do(newAuthRequest(tt.method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("unauthorized criterion names the cell", func(t *testing.T) {
		rec := f.env.do(newAuthRequest(http.MethodPost, gradingPath(f.open), f.presidentToken, badBody))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusForbidden, rec.Body.String())
		}
		var resp struct {
			Error     string `json:"error"`
			Criterion string `json:"criterion"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response failed: %v", err)
		}
		if resp.Criterion == "" {
			t.Error("missing criterion key in response")
		}
	})
}
