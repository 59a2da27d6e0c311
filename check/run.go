package check

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/Abhishekkr206/WebBaseline/archive"
	"github.com/Abhishekkr206/WebBaseline/baseline"
	"github.com/Abhishekkr206/WebBaseline/compat"
	"github.com/Abhishekkr206/WebBaseline/config"
	"github.com/Abhishekkr206/WebBaseline/extract"
	"github.com/Abhishekkr206/WebBaseline/history"
	"github.com/Abhishekkr206/WebBaseline/misc"
	"github.com/Abhishekkr206/WebBaseline/report"
	"github.com/Abhishekkr206/WebBaseline/scan"
	"github.com/Abhishekkr206/WebBaseline/state"
	"github.com/Abhishekkr206/WebBaseline/suggest"
)

// Run is "check" command body.
func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("check")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		src = "."
	}
	src, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("unable to resolve source path: %w", err)
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many sources. Ignoring extras...",
			zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	applyFlags(cmd, env.Cfg, log)

	if cp := env.Cfg.Scan.BundleCharset; len(cp) > 0 {
		enc, err := ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
		} else {
			env.CodePage = enc
			log.Debug("Converting non UTF-8 entry names in bundles", zap.String("charset", cp))
		}
	}

	ds, err := env.Dataset()
	if err != nil {
		return err
	}

	r := &runner{
		env: env,
		cfg: env.Cfg,
		ds:  ds,
		sc:  scan.NewScanner(ds, env.Log),
		log: log,
	}

	if cmd.Bool("watch") {
		if cmd.Bool("suggest") {
			log.Warn("Advisor is not consulted in watch mode")
		}
		return watch(ctx, r, src)
	}

	log.Info("Check starting", zap.String("source", src), zap.Int("dataset_keys", ds.Len()))
	defer func(start time.Time) {
		log.Info("Check completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	rpt, err := r.runOnce(ctx, src)
	if err != nil {
		return err
	}
	if err := r.deliver(rpt); err != nil {
		return err
	}
	if cmd.Bool("suggest") {
		r.advise(ctx, rpt)
	}
	r.record(rpt, src)

	return r.outcome(rpt)
}

// applyFlags overlays command line switches on top of the loaded
// configuration. Unparsable values keep the configured ones.
func applyFlags(cmd *cli.Command, cfg *config.Config, log *zap.Logger) {
	if cmd.IsSet("format") {
		if f, err := report.ParseFormat(cmd.String("format")); err != nil {
			log.Warn("Unknown report format requested, keeping configured one", zap.Error(err))
		} else {
			cfg.Output.Format = f
		}
	}
	if cmd.IsSet("output") {
		cfg.Output.Destination = cmd.String("output")
	}
	if cmd.IsSet("fail-on") {
		if m, err := config.ParseFailMode(cmd.String("fail-on")); err != nil {
			log.Warn("Unknown fail mode requested, keeping configured one", zap.Error(err))
		} else {
			cfg.Output.FailOn = m
		}
	}
	if cmd.IsSet("dataset") {
		cfg.Dataset.Path = cmd.String("dataset")
	}
	if cmd.IsSet("debounce") {
		cfg.Watch.DebounceMs = int(cmd.Duration("debounce") / time.Millisecond)
	}
}

// runner holds everything a single check pass needs. The report behind rpt
// is rebuilt on every pass, watch mode reuses the runner itself.
type runner struct {
	env *state.LocalEnv
	cfg *config.Config
	ds  *compat.Dataset
	sc  *scan.Scanner
	log *zap.Logger

	mu  sync.Mutex
	rpt *report.Report
}

// runOnce checks src from scratch and returns the finished report.
func (r *runner) runOnce(ctx context.Context, src string) (*report.Report, error) {
	r.mu.Lock()
	r.rpt = report.New(r.ds.Source())
	r.mu.Unlock()

	start := time.Now()
	if err := r.process(ctx, src); err != nil {
		return nil, err
	}

	rpt := r.rpt
	rpt.Elapsed = time.Since(start)
	return rpt, nil
}

// process deciphers what src actually is: a directory, a single source file,
// a bundle, or a path pointing inside a bundle ("site.zip/css"). Walking the
// path up component by component finds the part that exists on disk.
func (r *runner) process(ctx context.Context, src string) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}
		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exist, probably a path inside a bundle
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := r.processDir(ctx, head); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s)", head)
		}

		bundle, err := isBundleFile(head)
		if err != nil {
			return fmt.Errorf("unable to check bundle type: %w", err)
		}
		if bundle {
			inner := strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := r.processBundle(ctx, head, filepath.Base(head), filepath.ToSlash(inner)); err != nil {
				return fmt.Errorf("unable to process bundle: %w", err)
			}
			break
		}
		if len(tail) == 0 && len(languageFor(filepath.Ext(head))) > 0 {
			if err := r.processFile(ctx, head, filepath.Base(head)); err != nil {
				return err
			}
			break
		}
		return fmt.Errorf("source is not something we can check (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks the tree under dir, fanning scannable files out to the
// worker pool. Problems with individual files are logged and counted, they
// never abort the whole pass.
func (r *runner) processDir(ctx context.Context, dir string) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			r.log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Scan.WorkerCount())

	err = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if cerr := gctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			r.log.Warn("Skipping inaccessible path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if fi.Mode().IsDir() {
			if path != dir && r.cfg.Scan.Excluded(fi.Name()) {
				r.log.Debug("Skipping directory", zap.String("dir", path))
				return filepath.SkipDir
			}
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		bundle, berr := isBundleFile(path)
		if berr != nil {
			r.log.Warn("Skipping unreadable file", zap.String("file", path), zap.Error(berr))
			r.skip()
			return nil
		}
		if bundle {
			count++
			g.Go(func() error {
				return r.processBundle(gctx, path, filepath.ToSlash(rel), "")
			})
			return nil
		}

		ext := filepath.Ext(path)
		if !r.cfg.Scan.Included(ext) {
			return nil
		}
		if len(languageFor(ext)) == 0 {
			r.log.Debug("No scanner for file type", zap.String("file", path))
			return nil
		}
		count++
		g.Go(func() error {
			return r.processFile(gctx, path, filepath.ToSlash(rel))
		})
		return nil
	})

	if werr := g.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

// processBundle scans matching entries inside a zip site bundle. Entry names
// in the report are prefixed with the bundle path, "site.zip/css/app.css"
// style. Only entries under prefix are considered when it is not empty.
func (r *runner) processBundle(ctx context.Context, path, display, prefix string) error {
	src := path
	if r.cfg.Scan.FixBundles {
		fixed, cleanup, err := r.repackBundle(path)
		if err != nil {
			r.log.Warn("Unable to repack bundle, reading as is", zap.String("bundle", path), zap.Error(err))
		} else {
			src = fixed
			defer cleanup()
		}
	}

	count := 0
	err := archive.Walk(src, prefix, func(_ string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := archive.DecodedName(f, r.env.CodePage)
		ext := filepath.Ext(name)
		if !r.cfg.Scan.Included(ext) || len(languageFor(ext)) == 0 {
			return nil
		}
		count++

		if r.cfg.Scan.Oversized(int64(f.UncompressedSize64)) {
			r.log.Warn("Skipping oversized bundle entry",
				zap.String("bundle", path), zap.String("entry", f.Name),
				zap.Uint64("size", f.UncompressedSize64), zap.Int64("limit", r.cfg.Scan.MaxFileSize))
			r.skip()
			return nil
		}

		rc, err := f.Open()
		if err != nil {
			r.log.Error("Unable to open bundle entry",
				zap.String("bundle", path), zap.String("entry", f.Name), zap.Error(err))
			r.skip()
			return nil
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			r.log.Error("Unable to read bundle entry",
				zap.String("bundle", path), zap.String("entry", f.Name), zap.Error(err))
			r.skip()
			return nil
		}

		r.scanSource(display+"/"+name, data, languageFor(ext))
		return nil
	})
	if err == nil && count == 0 {
		r.log.Debug("Nothing to process", zap.String("bundle", path))
	}
	return err
}

// repackBundle rewrites a bundle with problematic zip headers into a
// temporary copy. Caller runs cleanup when done with it.
func (r *runner) repackBundle(path string) (string, func(), error) {
	out, err := os.CreateTemp("", misc.GetAppName()+"-bundle-*.zip")
	if err != nil {
		return "", nil, err
	}
	out.Close()

	if err := archive.Repack(path, out.Name()); err != nil {
		os.Remove(out.Name())
		return "", nil, err
	}
	r.log.Debug("Bundle repacked", zap.String("bundle", path), zap.String("copy", out.Name()))
	return out.Name(), func() { os.Remove(out.Name()) }, nil
}

// processFile reads and scans a single source file. Read errors are logged
// and counted, not returned.
func (r *runner) processFile(ctx context.Context, path, display string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if fi, err := os.Stat(path); err == nil && r.cfg.Scan.Oversized(fi.Size()) {
		r.log.Warn("Skipping oversized file",
			zap.String("file", path), zap.Int64("size", fi.Size()), zap.Int64("limit", r.cfg.Scan.MaxFileSize))
		r.skip()
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		r.log.Error("Unable to read file", zap.String("file", path), zap.Error(err))
		r.skip()
		return nil
	}
	r.scanSource(display, data, languageFor(filepath.Ext(path)))
	return nil
}

// scanSource decodes one document, runs the scanner over it and folds the
// findings into the pass report. For HTML family documents embedded style
// blocks and attributes get a second, CSS pass.
func (r *runner) scanSource(display string, data []byte, language string) {
	defer func(start time.Time) {
		if p := recover(); p != nil {
			r.log.Error("Scan ended with panic",
				zap.String("source", display),
				zap.Any("panic", p),
				zap.Duration("elapsed", time.Since(start)),
				zap.ByteString("stack", debug.Stack()))
			r.skip()
		}
	}(time.Now())

	if isBinary(data) {
		r.log.Warn("Skipping binary content behind a source extension", zap.String("source", display))
		r.skip()
		return
	}

	family := scan.LanguageFamily(language)

	text, err := decodeText(data, family)
	if err != nil {
		r.log.Warn("Unable to decode file, scanning raw bytes", zap.String("source", display), zap.Error(err))
		text = string(data)
	}

	res := r.sc.Scan(text, language)
	if family == scan.FamilyHTML && r.cfg.Scan.EmbeddedCSS {
		for _, region := range extract.CSSRegions(text) {
			res.Merge(r.sc.Scan(region.Content, "css"), region.Offset)
		}
	}

	findings := report.Collect(display, text, res, r.ds)

	r.mu.Lock()
	r.rpt.Files++
	r.rpt.Add(findings...)
	r.mu.Unlock()

	r.log.Debug("Source scanned", zap.String("source", display), zap.Int("findings", len(findings)))
}

// skip counts a source that could not be checked.
func (r *runner) skip() {
	r.mu.Lock()
	r.rpt.Skipped++
	r.mu.Unlock()
}

// deliver renders the report to the configured destination and feeds the
// debug capture when one is active.
func (r *runner) deliver(rpt *report.Report) error {
	out := r.cfg.Output

	if r.env.Rpt != nil {
		var buf bytes.Buffer
		if err := report.FormatJSON.Write(&buf, rpt); err == nil {
			r.env.Rpt.StoreData("findings.json", buf.Bytes())
		}
	}

	if len(out.Destination) == 0 {
		if out.Format == report.FormatText {
			return report.WriteConsole(os.Stdout, rpt, out.Color.Enabled(os.Stdout))
		}
		return out.Format.Write(os.Stdout, rpt)
	}

	f, err := os.Create(out.Destination)
	if err != nil {
		return fmt.Errorf("unable to create report destination: %w", err)
	}
	defer f.Close()

	if err := out.Format.Write(f, rpt); err != nil {
		return fmt.Errorf("unable to write report: %w", err)
	}
	if r.env.Rpt != nil {
		r.env.Rpt.Store("report-"+config.CleanFileName(filepath.Base(out.Destination)), out.Destination)
	}
	r.log.Info("Report written", zap.String("destination", out.Destination), zap.Stringer("format", out.Format))
	return nil
}

// advise asks the configured advisor about each distinct limited availability
// feature in the report and prints the answers to standard output. Advisor
// trouble never fails the check.
func (r *runner) advise(ctx context.Context, rpt *report.Report) {
	sc := r.cfg.Suggest
	if len(sc.APIKey) == 0 {
		r.log.Warn("Advisor enabled without an api key, calls will likely be rejected")
	}
	client := suggest.NewClient(suggest.Config{
		Endpoint:   sc.Endpoint,
		Model:      sc.Model,
		APIKey:     string(sc.APIKey),
		Timeout:    sc.Timeout(),
		MaxRetries: sc.MaxRetries,
	}, r.env.Log)
	sess := suggest.NewSession()

	seen := make(map[string]bool)
	for _, f := range rpt.Findings {
		if f.Tier != baseline.TierLimited || seen[f.Key] {
			continue
		}
		seen[f.Key] = true

		name := f.Name
		var missing []string
		if feature, ok := r.ds.Lookup(f.Key); ok {
			name = feature.Name
			missing = baseline.Missing(feature.Status)
		}
		answer, err := client.Advise(ctx, sess, suggest.Request{
			Feature: name,
			Key:     f.Key,
			Tier:    baseline.TierLimited,
			Missing: missing,
		})
		if err != nil {
			r.log.Warn("Advisor call failed", zap.String("key", f.Key), zap.Error(err))
			continue
		}
		fmt.Fprintf(os.Stdout, "\nadvice for %s:\n%s\n", f.Key, strings.TrimRight(answer, "\n"))
	}
}

// record appends the pass to the run history database when enabled and trims
// it to the configured depth. History trouble never fails the check.
func (r *runner) record(rpt *report.Report, src string) {
	if !r.cfg.History.Enable {
		return
	}

	store, err := history.Open(r.cfg.History.Path, r.log)
	if err != nil {
		r.log.Warn("Unable to open run history", zap.String("path", r.cfg.History.Path), zap.Error(err))
		return
	}
	defer store.Close()

	worst, _ := rpt.Worst()
	run := history.Run{
		Path:    src,
		Files:   rpt.Files,
		Skipped: rpt.Skipped,
		Limited: rpt.Count(baseline.TierLimited),
		Newly:   rpt.Count(baseline.TierNewly),
		Widely:  rpt.Count(baseline.TierWidely),
		Worst:   worst,
		Dataset: rpt.Dataset,
		Elapsed: rpt.Elapsed,
	}
	if err := store.Record(run); err != nil {
		r.log.Warn("Unable to record run", zap.Error(err))
		return
	}
	if err := store.Prune(r.cfg.History.Keep); err != nil {
		r.log.Warn("Unable to prune run history", zap.Error(err))
	}
}

// outcome translates finding counts into the process exit status per the
// fail_on setting.
func (r *runner) outcome(rpt *report.Report) error {
	limited := rpt.Count(baseline.TierLimited)
	newly := rpt.Count(baseline.TierNewly)
	widely := rpt.Count(baseline.TierWidely)

	if r.cfg.Output.FailOn.Triggered(limited, newly, widely) {
		return fmt.Errorf("findings breached the %s threshold: %d limited, %d newly available, %d widely available",
			r.cfg.Output.FailOn, limited, newly, widely)
	}
	return nil
}
