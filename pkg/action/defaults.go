package action

import (
	"github.com/joshuapare/autorunkit/pkg/configstore"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// NewDefaultExecutor returns an Executor with the built-in strategies
// registered. Scheduled tasks have no built-in strategy.
func NewDefaultExecutor(acc configstore.Accessor, opts ExecutorOptions) *Executor {
	x := NewExecutor(opts)
	reg := NewRegistryStrategy(acc)
	x.Register(types.KindRegistryRun, reg)
	x.Register(types.KindRegistryRunOnce, reg)
	x.Register(types.KindWinlogon, reg)
	x.Register(types.KindStartupFolder, NewStartupFolderStrategy())
	x.Register(types.KindService, NewServiceStrategy(acc))
	return x
}
