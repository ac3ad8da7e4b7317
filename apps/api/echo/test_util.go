package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/auth"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/certificate"
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/grading"
	"github.com/tesina/backend/core/panel"
	"github.com/tesina/backend/core/user"
	"github.com/tesina/backend/storage/database/inmem"
)

type testEnv struct {
	server Server
	db     *inmemdb.DB

	usrRepo user.Repository
	usrSvc  *user.Service
	authSvc *auth.Service
}

func setupServer(t *testing.T) testEnv {
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	careerRepo := inmemdb.NewCareerRepository(db)
	planRepo := inmemdb.NewPlanRepository(db)
	panelRepo := inmemdb.NewPanelRepository(db)
	gradeRepo := inmemdb.NewGradeRepository(db)
	certRepo := inmemdb.NewCertificateRepository(db)

	usrSvc := user.NewService(db, usrRepo)
	authSvc := auth.NewService(careerRepo)
	certSvc := certificate.NewService(certRepo, panelRepo, planRepo, gradeRepo)
	panelSvc := panel.NewService(db, panelRepo, careerRepo, usrRepo, certSvc, nil, core.NopLogger{})
	gradingSvc := grading.NewService(db, gradeRepo, panelRepo, planRepo, careerRepo, core.NopLogger{})

	srv := NewServer(&Options{
		Address:        "localhost:0",
		DisableReqLogs: true,
		Logger:         core.NopLogger{},
		UserSvc:        usrSvc,
		AuthSvc:        authSvc,
		CareerSvc:      career.NewService(careerRepo),
		PlanSvc:        evalplan.NewService(planRepo),
		PanelSvc:       panelSvc,
		GradingSvc:     gradingSvc,
		CertSvc:        certSvc,
	})

	return testEnv{
		server:  srv,
		db:      db,
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
		authSvc: authSvc,
	}
}

// getToken resolves the user's access for role and signs it, exactly like the
// login handler does.
func (env testEnv) getToken(t *testing.T, usr user.User, role string) string {
	acc, err := env.authSvc.Resolve(context.Background(), usr, role)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	token, err := GenerateToken(GetAccessClaims(acc))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	req := newRequest(method, path, data...)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req
}

func (env testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("%s %s code = %d, want %d; body %s", tt.method, tt.path, rec.Code, tt.wantCode, rec.Body.String())
		return
	}
	if tt.wantData == nil {
		return
	}
	eq, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Fatalf("jsonBytesEqual() failed: %v", err)
	}
	if !eq {
		t.Errorf("%s %s body = %s, want %s", tt.method, tt.path, rec.Body.String(), tt.wantData)
	}
}
