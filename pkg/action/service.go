package action

import (
	"context"

	"github.com/joshuapare/autorunkit/pkg/configstore"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// Service start types.
const (
	ServiceStartAutomatic uint32 = 2
	ServiceStartManual    uint32 = 3
	ServiceStartDisabled  uint32 = 4
)

// ServiceStrategy toggles a service's Start value. Services are never
// deleted.
type ServiceStrategy struct {
	acc configstore.Accessor
}

// NewServiceStrategy returns a strategy that edits service keys through acc.
func NewServiceStrategy(acc configstore.Accessor) *ServiceStrategy {
	return &ServiceStrategy{acc: acc}
}

func (s *ServiceStrategy) CanDisable(e types.Entry) bool  { return e.SourcePath != "" }
func (s *ServiceStrategy) CanDelete(types.Entry) bool     { return false }
func (s *ServiceStrategy) RequiresAdmin(types.Entry) bool { return true }

func (s *ServiceStrategy) Disable(ctx context.Context, e types.Entry) (types.Entry, error) {
	return s.setStart(ctx, e, ServiceStartDisabled, types.EntryDisabled)
}

func (s *ServiceStrategy) Enable(ctx context.Context, e types.Entry) (types.Entry, error) {
	return s.setStart(ctx, e, ServiceStartAutomatic, types.EntryEnabled)
}

func (s *ServiceStrategy) setStart(ctx context.Context, e types.Entry, start uint32, status types.EntryStatus) (types.Entry, error) {
	key := configstore.ServiceKeyPath(e.SourcePath)
	// The service must exist; SetValue would otherwise create the key.
	if _, err := s.acc.GetValue(ctx, key, "Start"); err != nil {
		return e, err
	}
	if err := s.acc.SetValue(ctx, key, "Start", types.DWordValue(start)); err != nil {
		return e, err
	}
	e.Status = status
	return e, nil
}

func (s *ServiceStrategy) Delete(context.Context, types.Entry) error {
	return types.Errorf(types.ErrKindUnsupported, "services cannot be deleted")
}
