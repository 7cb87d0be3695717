package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"log"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/response"
	"github.com/ervnjmsdnts/ojt/core/subject"
	"github.com/ervnjmsdnts/ojt/core/template"
	blobsvc "github.com/ervnjmsdnts/ojt/services/blob"
	emailsvc "github.com/ervnjmsdnts/ojt/services/email"
	logsvc "github.com/ervnjmsdnts/ojt/services/logger"
	"github.com/ervnjmsdnts/ojt/storage/database"
	inmemdb "github.com/ervnjmsdnts/ojt/storage/database/inmem"
)

// Coordinator is the actor used by tests for admin operations.
var Coordinator = core.Actor{ID: "coord-1", Name: "OJT Coordinator", Role: core.RoleCoordinator}

// NewConfig returns the configuration used by tests. Media lives under a per-test temp dir.
func NewConfig(t *testing.T) *core.Config {
	return &core.Config{
		AppName:         "OJT Portal",
		Env:             "TEST",
		TestMode:        true,
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			Host:               "localhost",
			JWTExpirationDelta: time.Hour,
			RateLimit:          1000,
			RateBurst:          1000,
		},
		Grant: core.GrantConfig{
			TTL:        30 * 24 * time.Hour,
			CodeLength: 10,
		},
		Media: core.MediaConfig{
			Root:              t.TempDir(),
			BaseURL:           "/media",
			MaxSignatureWidth: 600,
			MaxUploadBytes:    2 << 20,
		},
	}
}

// NewLogger returns a logger that reports nowhere.
func NewLogger() core.Logger {
	l := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), &core.Config{TestMode: true})
	l.Enable(false)
	return l
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	template.InitValidators(validate, translator)
	grant.InitValidators(validate, translator)
	return validate, translator
}

// Env wires every service on top of the in-memory database.
type Env struct {
	Conf        *core.Config
	Logger      core.Logger
	DB          *inmemdb.DB
	Subjects    subject.Store
	Mail        *emailsvc.ConsoleServiceMock
	Blobs       core.BlobStore
	TemplateSvc template.Service
	GrantSvc    grant.Service
	ResponseSvc response.Service

	TemplateRepo template.Repository
	GrantRepo    grant.Repository
	ResponseRepo response.Repository
}

type EnvOption func(*envOptions)

type envOptions struct {
	clock        func() time.Time
	codes        []string
	grantRepo    func(grant.Repository) grant.Repository
	responseRepo func(response.Repository) response.Repository
}

// WithClock makes the grant service read the time from clock.
func WithClock(clock func() time.Time) EnvOption {
	return func(o *envOptions) { o.clock = clock }
}

// WithCodes makes the grant service hand out codes in order.
func WithCodes(codes ...string) EnvOption {
	return func(o *envOptions) { o.codes = codes }
}

// WithGrantRepository wraps the grant repository, e.g. to inject failures.
func WithGrantRepository(wrap func(grant.Repository) grant.Repository) EnvOption {
	return func(o *envOptions) { o.grantRepo = wrap }
}

// WithResponseRepository wraps the response repository, e.g. to inject failures.
func WithResponseRepository(wrap func(response.Repository) response.Repository) EnvOption {
	return func(o *envOptions) { o.responseRepo = wrap }
}

func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	var o envOptions
	for _, opt := range opts {
		opt(&o)
	}

	conf := NewConfig(t)
	core.ParseEmailTemplates(conf, NewLogger())

	blobs, err := blobsvc.NewFileStore(conf)
	if err != nil {
		t.Fatalf("NewFileStore(): %v", err)
	}

	env := &Env{
		Conf:   conf,
		Logger: NewLogger(),
		DB:     inmemdb.Open(),
		Mail:   emailsvc.NewConsoleServiceMock(conf),
		Blobs:  blobs,
	}
	env.Subjects = inmemdb.NewSubjectStore(env.DB)
	env.TemplateRepo = inmemdb.NewTemplateRepository(env.DB)
	env.GrantRepo = inmemdb.NewGrantRepository(env.DB)
	env.ResponseRepo = inmemdb.NewResponseRepository(env.DB)
	if o.grantRepo != nil {
		env.GrantRepo = o.grantRepo(env.GrantRepo)
	}
	if o.responseRepo != nil {
		env.ResponseRepo = o.responseRepo(env.ResponseRepo)
	}

	env.TemplateSvc = template.NewService(env.DB, env.TemplateRepo, env.Logger)
	env.GrantSvc = grant.NewServiceMock(
		env.DB, env.GrantRepo, env.TemplateSvc, env.Subjects, env.Mail, env.Logger, conf, o.clock, o.codes...,
	)
	env.ResponseSvc = response.NewService(env.DB, env.ResponseRepo, env.GrantSvc, env.TemplateSvc, env.Blobs, env.Logger)
	return env
}

func CreateSubject(t *testing.T, store subject.Store, id, student, company string) subject.Context {
	subj := subject.Context{
		SubjectID:      id,
		StudentName:    student,
		CompanyName:    company,
		SupervisorName: "Supervisor of " + student,
		StartDate:      null.TimeFrom(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:        null.TimeFrom(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)),
	}
	if err := store.PutSubject(context.Background(), subj); err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return subj
}

func CreateTemplate(t *testing.T, svc template.Service, nt template.NewTemplate) template.Snapshot {
	snap, err := svc.Create(context.Background(), nt, Coordinator)
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	return snap
}

// AppraisalSeed is a two-category appraisal: three questions under "Work Habits", two under "Attitude".
func AppraisalSeed() template.NewTemplate {
	return template.NewTemplate{
		Kind: template.KindAppraisal,
		Categories: []template.NewCategory{
			{Name: "Work Habits", DisplayOrder: 1, Questions: []string{"Punctuality", "Attendance", "Neatness"}},
			{Name: "Attitude", DisplayOrder: 2, Questions: []string{"Cooperation", "Initiative"}},
		},
	}
}

// FeedbackSeed is a flat choice-style template of the given kind.
func FeedbackSeed(kind template.Kind, questions ...string) template.NewTemplate {
	if len(questions) == 0 {
		questions = []string{"The student was well prepared", "The student communicated clearly"}
	}
	return template.NewTemplate{Kind: kind, Questions: questions}
}

func IssueGrant(t *testing.T, svc grant.Service, subjectID, templateID string, role grant.Role) grant.Grant {
	g, err := svc.Issue(context.Background(), subjectID, templateID, grant.IssueRequest{RespondentRole: role}, Coordinator)
	if err != nil {
		t.Fatalf("IssueGrant() failed: %v", err)
	}
	return g
}

// SignaturePNG returns a small valid PNG image.
func SignaturePNG(t *testing.T) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 10))
	for x := 0; x < 40; x++ {
		img.Set(x, 5, color.Black)
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("SignaturePNG() failed: %v", err)
	}
	return buf.Bytes()
}

// OpenDB opens the database named by TEST_DATABASE_URL, resets its schema and skips the test when unset.
func OpenDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("OpenURL() failed: %v", err)
	}
	if err = database.Reset(db); err != nil {
		_ = db.Close()
		t.Fatalf("Reset() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
