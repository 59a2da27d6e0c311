// Package state defines shared program state.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/Abhishekkr206/WebBaseline/compat"
	"github.com/Abhishekkr206/WebBaseline/config"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// resolved from scan.bundle_charset, nil means keep entry names as stored
	CodePage encoding.Encoding

	dataset *compat.Dataset

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, &LocalEnv{start: time.Now()})
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// Dataset returns the compatibility dataset, loading it on first use. A
// snapshot path from the configuration wins over the embedded copy.
func (e *LocalEnv) Dataset() (*compat.Dataset, error) {
	if e.dataset != nil {
		return e.dataset, nil
	}

	var (
		d   *compat.Dataset
		err error
	)
	if e.Cfg != nil && len(e.Cfg.Dataset.Path) > 0 {
		d, err = compat.LoadFile(e.Cfg.Dataset.Path, e.Log)
	} else {
		d, err = compat.Embedded(e.Log)
	}
	if err != nil {
		return nil, err
	}
	e.dataset = d
	return d, nil
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
