package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/certificate"
	"github.com/tesina/backend/core/panel"
	"github.com/tesina/backend/core/user"
	"github.com/tesina/backend/tests"
)

func Test_panelApi(t *testing.T) {
	env := setupServer(t)

	c := testutil.CreateCareer(t, env.db, "Informatics", "INF")
	period := testutil.CreatePeriod(t, env.db, c.ID, "2026-1", true)
	testutil.CreatePlan(t, env.db, period.ID, "Defense 2026-1", true)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "adminuser1", "admin@test.cd", "pwd", []string{user.RoleAdmin}, true)
	testutil.CreateStaffAssignment(t, env.db, c.ID, admin.ID, career.KindDirector, true)
	examiner := testutil.CreateUser(t, env.usrRepo, "Examiner", "examiner11", "exam@test.cd", "pwd", []string{user.RoleExaminer}, true)

	var roster panel.Roster
	var saIDs [3]int64
	unames := [3]string{"president1", "memberone1", "membertwo2"}
	for i, uname := range unames {
		usr := testutil.CreateUser(t, env.usrRepo, uname, uname, uname+"@test.cd", "pwd", []string{user.RoleExaminer}, true)
		saIDs[i] = testutil.CreateStaffAssignment(t, env.db, c.ID, usr.ID, career.KindTeacher, true).ID
	}
	roster = panel.Roster{President: saIDs[0], Member1: saIDs[1], Member2: saIDs[2]}

	adminToken := env.getToken(t, admin, user.RoleAdmin)
	examinerToken := env.getToken(t, examiner, user.RoleExaminer)

	newPanelBody := marchallObj(t, panel.NewPanel{CareerPeriodID: period.ID, Roster: roster})

	t.Run("create requires the admin role", func(t *testing.T) {
		rec := env.do(newAuthRequest(http.MethodPost, "/v1/panels", examinerToken, newPanelBody))
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusForbidden)
		}
	})

	var p panel.Panel
	t.Run("create allocates the first case number", func(t *testing.T) {
		rec := env.do(newAuthRequest(http.MethodPost, "/v1/panels", adminToken, newPanelBody))
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
			t.Fatalf("unmarshalling Panel failed: %v", err)
		}
		if p.CaseNumber != 1 {
			t.Errorf("CaseNumber = %d, want 1", p.CaseNumber)
		}
	})

	t.Run("query by period", func(t *testing.T) {
		rec := env.do(newAuthRequest(http.MethodGet, "/v1/panels", adminToken))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("missing period: code = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		rec = env.do(newAuthRequest(http.MethodGet, "/v1/panels?period="+period.ID, adminToken))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
		}
		var panels []panel.Panel
		if err := json.Unmarshal(rec.Body.Bytes(), &panels); err != nil {
			t.Fatalf("unmarshalling panels failed: %v", err)
		}
		if len(panels) != 1 {
			t.Errorf("len(panels) = %d, want 1", len(panels))
		}
	})

	t.Run("members expose the roster", func(t *testing.T) {
		rec := env.do(newAuthRequest(http.MethodGet, "/v1/panels/"+p.ID+"/members", adminToken))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
		}
		var members []panel.Member
		if err := json.Unmarshal(rec.Body.Bytes(), &members); err != nil {
			t.Fatalf("unmarshalling members failed: %v", err)
		}
		if len(members) != 3 {
			t.Errorf("len(members) = %d, want 3", len(members))
		}
	})

	var a panel.Assignment
	t.Run("schedule an assignment", func(t *testing.T) {
		body := marchallObj(t, panel.NewAssignment{
			PanelID:     p.ID,
			StudentID:   "student-1",
			ScheduledAt: time.Now().Add(24 * time.Hour).UTC(),
		})
		rec := env.do(newAuthRequest(http.MethodPost, "/v1/assignments", adminToken, body))
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
			t.Fatalf("unmarshalling Assignment failed: %v", err)
		}
	})

	t.Run("assignments are listed on the panel", func(t *testing.T) {
		rec := env.do(newAuthRequest(http.MethodGet, "/v1/panels/nope/assignments", adminToken))
		if rec.Code != http.StatusNotFound {
			t.Errorf("unknown panel: code = %d, want %d", rec.Code, http.StatusNotFound)
		}

		rec = env.do(newAuthRequest(http.MethodGet, "/v1/panels/"+p.ID+"/assignments", adminToken))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
		}
		var assignments []panel.Assignment
		if err := json.Unmarshal(rec.Body.Bytes(), &assignments); err != nil {
			t.Fatalf("unmarshalling assignments failed: %v", err)
		}
		if len(assignments) != 1 || assignments[0].ID != a.ID {
			t.Errorf("assignments = %+v, want the scheduled one", assignments)
		}
	})

	t.Run("entries of an open assignment conflict", func(t *testing.T) {
		rec := env.do(newAuthRequest(http.MethodGet, "/v1/assignments/"+a.ID+"/entries", adminToken))
		if rec.Code != http.StatusConflict {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusConflict)
		}
	})

	t.Run("certificate of an open assignment conflicts on generation", func(t *testing.T) {
		rec := env.do(newAuthRequest(http.MethodPost, "/v1/assignments/"+a.ID+"/certificate/generate", adminToken))
		if rec.Code != http.StatusConflict {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusConflict)
		}
	})

	t.Run("lock, generate, sign, then reopening is blocked", func(t *testing.T) {
		rec := env.do(newAuthRequest(http.MethodPost, "/v1/assignments/"+a.ID+"/lock", adminToken))
		if rec.Code != http.StatusOK {
			t.Fatalf("lock: code = %d, body %s", rec.Code, rec.Body.String())
		}

		rec = env.do(newAuthRequest(http.MethodGet, "/v1/assignments/"+a.ID+"/certificate", adminToken))
		if rec.Code != http.StatusNotFound {
			t.Errorf("certificate before generation: code = %d, want %d", rec.Code, http.StatusNotFound)
		}

		rec = env.do(newAuthRequest(http.MethodPost, "/v1/assignments/"+a.ID+"/certificate/generate", adminToken))
		if rec.Code != http.StatusOK {
			t.Fatalf("generate: code = %d, body %s", rec.Code, rec.Body.String())
		}
		var cert certificate.Certificate
		if err := json.Unmarshal(rec.Body.Bytes(), &cert); err != nil {
			t.Fatalf("unmarshalling Certificate failed: %v", err)
		}
		if cert.State != certificate.StateGenerated {
			t.Errorf("State = %s, want %s", cert.State, certificate.StateGenerated)
		}

		rec = env.do(newAuthRequest(http.MethodPost, "/v1/assignments/"+a.ID+"/certificate/sign", adminToken))
		if rec.Code != http.StatusOK {
			t.Fatalf("sign: code = %d, body %s", rec.Code, rec.Body.String())
		}

		rec = env.do(newAuthRequest(http.MethodPost, "/v1/assignments/"+a.ID+"/reopen", adminToken))
		if rec.Code != http.StatusConflict {
			t.Errorf("reopen signed: code = %d, want %d", rec.Code, http.StatusConflict)
		}
	})
}
