package grant

import (
	"fmt"
	"sync"
	"time"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/subject"
	"github.com/ervnjmsdnts/ojt/core/template"
)

// NewServiceMock returns a Service handing out codes in order (random ones once exhausted)
// and reading the time from clock when it is not nil.
func NewServiceMock(
	tx core.Transactor,
	repo Repository,
	tmplSvc template.Service,
	subjects subject.Projector,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
	clock func() time.Time,
	codes ...string,
) Service {
	svc := newService(tx, repo, tmplSvc, subjects, mailSvc, logger, conf)
	if clock != nil {
		svc.now = func() time.Time { return clock().UTC() }
	}

	var mu sync.Mutex
	svc.newCode = func(n int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return GenerateCode(n)
		}
		code := codes[0]
		codes = codes[1:]
		if code == "" {
			return "", fmt.Errorf("empty mock code")
		}
		return code, nil
	}
	return svc
}
