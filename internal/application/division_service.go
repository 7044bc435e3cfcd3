package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/gov-agenda/internal/authz"
)

// DivisionRepository captures the persistence operations needed by the division service.
type DivisionRepository interface {
	DivisionLookup
	CreateDivision(ctx context.Context, division Division) (Division, error)
	ListDivisions(ctx context.Context) ([]Division, error)
}

// DivisionService manages the divisions tasks are assigned to.
type DivisionService struct {
	divisions DivisionRepository
	now       func() time.Time
	logger    *slog.Logger
}

// NewDivisionService constructs a division service.
func NewDivisionService(divisions DivisionRepository, now func() time.Time, logger *slog.Logger) *DivisionService {
	if now == nil {
		now = time.Now
	}
	return &DivisionService{divisions: divisions, now: now, logger: defaultLogger(logger)}
}

// CreateDivision stores a division. Names are unique.
func (s *DivisionService) CreateDivision(ctx context.Context, principal Principal, name string) (division Division, err error) {
	if s == nil {
		err = fmt.Errorf("DivisionService is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "DivisionService", "CreateDivision", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create division", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("division_id", division.ID).InfoContext(ctx, "division created")
	}()

	if !authz.HasPermission(principal.Role, authz.ResourceDivisions, authz.ActionCreate) {
		err = ErrUnauthorized
		return
	}

	name = strings.TrimSpace(name)
	switch {
	case name == "":
		err = fieldError("name", "ce champ est obligatoire")
		return
	case len([]rune(name)) > 120:
		err = fieldError("name", "120 caractères au maximum")
		return
	}

	division = Division{Name: name, CreatedAt: s.now()}
	if s.divisions == nil {
		return
	}
	division, err = s.divisions.CreateDivision(ctx, division)
	if err != nil {
		err = mapRepoError(err, "name")
	}
	return
}

// ListDivisions returns every division ordered by name.
func (s *DivisionService) ListDivisions(ctx context.Context, principal Principal) ([]Division, error) {
	if s == nil {
		return nil, fmt.Errorf("DivisionService is nil")
	}
	if !authz.HasPermission(principal.Role, authz.ResourceDivisions, authz.ActionRead) {
		return nil, ErrUnauthorized
	}
	if s.divisions == nil {
		return nil, nil
	}
	divisions, err := s.divisions.ListDivisions(ctx)
	if err != nil {
		return nil, mapRepoError(err, "name")
	}
	return divisions, nil
}
