package tui

import (
	"github.com/matheus3301/leadsync/internal/present"
	intsync "github.com/matheus3301/leadsync/internal/sync"
	"github.com/matheus3301/leadsync/internal/thread"
	"go.uber.org/fx"
)

// Module provides the terminal views as the engine's UI capabilities and
// the App that drives them.
func Module(sessionName string) fx.Option {
	return fx.Module("tui",
		fx.Provide(
			func() *Views { return NewViews(sessionName) },
			func(v *Views) present.Surface { return v.List },
			func(v *Views) thread.View { return v.Thread },
			func(v *Views) intsync.Composer { return v.Thread },
			func(v *Views) intsync.Notifier { return v.Flash },
			func(v *Views) intsync.StatsSink { return v.Status },
			func(v *Views) intsync.DocumentSink { return v.Status },
			func(e *intsync.Engine) Actions { return e },
			NewApp,
		),
	)
}
