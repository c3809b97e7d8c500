package account

import (
	"github.com/globalitacademy/yscip/core"
)

type serviceMock struct {
	service
}

// NewServiceMock builds a Service for tests. An optional bootstrap config
// overrides the designated admin identity.
func NewServiceMock(repo Repository, mailSvc core.EmailService, logger core.Logger, boot ...core.BootstrapConfig) Service {
	b := core.Conf.Bootstrap
	if len(boot) > 0 {
		b = boot[0]
	}
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			logger:  logger,
			boot:    b,
		},
	}
}
